package pipeline

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/glassbox-ml/glassbox/core/model"
	"github.com/glassbox-ml/glassbox/dataset"
	"github.com/glassbox-ml/glassbox/pkg/errors"
	"github.com/glassbox-ml/glassbox/pkg/log"
	"github.com/glassbox-ml/glassbox/preprocessing"
)

// ColumnTransformer fits the declared bindings against a feature table and
// produces the engineered matrix models consume. It is a value object once
// fitted: a second Fit returns an error instead of mutating learned state,
// so a fitted transformer can be shared by training, evaluation and
// explanation code without copies.
//
// Engineered columns are laid out binding by binding in declaration order,
// columns in listed order within each binding. Mapping() exposes the span of
// engineered columns behind every raw column for folding attributions back.
type ColumnTransformer struct {
	state    *model.StateManager
	bindings []Binding

	fitted    map[string]*fittedColumn
	inputCols []string
	mapping   *FeatureMapping
	logger    log.Logger
}

// fittedColumn holds the per-column fitted steps and the engineered span.
type fittedColumn struct {
	name        string
	categorical bool
	start, end  int

	numImputer *numericImputer
	catImputer *categoricalImputer
	scaler     model.Transformer
	encoder    *OneHotEncoder
}

// NewColumnTransformer creates an unfitted transformer over the given
// bindings. The binding set is validated against the table at Fit time.
func NewColumnTransformer(bindings ...Binding) *ColumnTransformer {
	return &ColumnTransformer{
		state:    model.NewStateManager(),
		bindings: bindings,
		logger:   log.GetLoggerWithName("pipeline.ColumnTransformer"),
	}
}

// Bindings returns a copy of the declared bindings.
func (ct *ColumnTransformer) Bindings() []Binding {
	out := make([]Binding, len(ct.bindings))
	copy(out, ct.bindings)
	return out
}

// IsFitted returns whether Fit has completed.
func (ct *ColumnTransformer) IsFitted() bool {
	return ct.state.IsFitted()
}

// Fit validates the bindings against the table and learns every step's
// parameters (medians, fill categories, scaling statistics, one-hot
// vocabularies) from it. Validation failures surface before any fitting.
func (ct *ColumnTransformer) Fit(t *dataset.Table) (err error) {
	defer errors.Recover(&err, "ColumnTransformer.Fit")

	if ct.state.IsFitted() {
		return errors.NewValueError("ColumnTransformer.Fit",
			"transformer is already fitted; create a new one to refit")
	}
	if err := Validate(ct.bindings, t); err != nil {
		return err
	}

	n := t.NumRows()
	fitted := make(map[string]*fittedColumn, t.NumCols())
	engineeredNames := make([]string, 0, t.NumCols())
	offset := 0

	for _, b := range ct.bindings {
		for _, name := range b.Columns {
			col, _ := t.Column(name)
			fc, names, err := fitColumn(b, col, n)
			if err != nil {
				return err
			}
			fc.start = offset
			fc.end = offset + len(names)
			offset = fc.end
			engineeredNames = append(engineeredNames, names...)
			fitted[name] = fc
		}
	}

	if offset == 0 {
		return errors.NewValueError("ColumnTransformer.Fit", "bindings produce no engineered columns")
	}

	raw := make([]RawFeature, 0, t.NumCols())
	for _, name := range t.ColumnNames() {
		fc := fitted[name]
		raw = append(raw, RawFeature{Name: name, Start: fc.start, End: fc.end})
	}

	ct.fitted = fitted
	ct.inputCols = t.ColumnNames()
	ct.mapping = &FeatureMapping{raw: raw, engineeredNames: engineeredNames}
	ct.state.SetDimensions(len(ct.inputCols), n)
	ct.state.SetFitted()

	ct.logger.Info("fitted column transformer",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.RawFeaturesKey, len(ct.inputCols),
		log.EngineeredKey, offset,
	)
	return nil
}

// fitColumn runs one binding's steps over one column and returns the fitted
// state plus the engineered column names it produces.
func fitColumn(b Binding, col dataset.Column, n int) (*fittedColumn, []string, error) {
	fc := &fittedColumn{name: col.Name, categorical: col.Kind == dataset.Categorical}

	var numVals []float64
	var strVals []string
	if fc.categorical {
		strVals = append([]string(nil), col.Str...)
	} else {
		numVals = append([]float64(nil), col.Float...)
	}
	missing := col.Missing

	for _, s := range b.Steps {
		switch s.Kind {
		case StepImpute:
			if fc.categorical {
				im, err := fitCategoricalImputer(s.Strategy, s.FillValue, strVals, missing)
				if err != nil {
					return nil, nil, err
				}
				strVals = im.apply(strVals, missing)
				fc.catImputer = im
			} else {
				im, err := fitNumericImputer(s.Strategy, numVals, missing)
				if err != nil {
					return nil, nil, err
				}
				numVals = im.apply(numVals, missing)
				fc.numImputer = im
			}
			missing = nil

		case StepScale:
			sc := newScaler(s.Strategy)
			X := mat.NewDense(n, 1, numVals)
			if err := sc.Fit(X); err != nil {
				return nil, nil, err
			}
			Xs, err := sc.Transform(X)
			if err != nil {
				return nil, nil, err
			}
			numVals = mat.Col(nil, 0, Xs)
			fc.scaler = sc

		case StepOneHot:
			vals := strVals
			if !fc.categorical {
				vals = formatFloats(numVals)
			}
			enc := NewOneHotEncoder(s.Drop == "first")
			if err := enc.FitStrings(vals); err != nil {
				return nil, nil, err
			}
			fc.encoder = enc
		}
	}

	var names []string
	if fc.encoder != nil {
		names = fc.encoder.FeatureNames(col.Name)
	} else {
		names = []string{col.Name}
	}
	return fc, names, nil
}

// Transform applies the fitted steps to a table with the same columns the
// transformer was fitted on (order may differ) and returns the engineered
// matrix. Missing cells are filled with the training-time imputation values;
// a column carrying missing cells without a fitted imputer is an error, it
// is never dropped or zero-filled silently.
func (ct *ColumnTransformer) Transform(t *dataset.Table) (X *mat.Dense, err error) {
	defer errors.Recover(&err, "ColumnTransformer.Transform")

	if err := ct.state.RequireFitted(); err != nil {
		return nil, errors.NewNotFittedError("ColumnTransformer", "Fit")
	}
	if t == nil {
		return nil, errors.NewValidationError("table", "table must not be nil", nil)
	}
	if t.NumCols() != len(ct.inputCols) {
		return nil, errors.NewDimensionError("ColumnTransformer.Transform", len(ct.inputCols), t.NumCols(), 1)
	}
	for _, name := range ct.inputCols {
		if !t.HasColumn(name) {
			return nil, errors.NewValidationError("table",
				fmt.Sprintf("column %q was fitted but is not in the table", name), nil)
		}
	}

	n := t.NumRows()
	X = mat.NewDense(n, ct.mapping.NumEngineered(), nil)
	for _, name := range ct.inputCols {
		fc := ct.fitted[name]
		col, _ := t.Column(name)
		if err := fc.transformInto(X, col, n); err != nil {
			return nil, err
		}
	}

	ct.logger.Debug("transformed table",
		log.OperationKey, log.OperationTransform,
		log.SamplesKey, n,
		log.EngineeredKey, ct.mapping.NumEngineered(),
	)
	return X, nil
}

// transformInto writes one column's engineered block into X at the fitted
// span.
func (fc *fittedColumn) transformInto(X *mat.Dense, col dataset.Column, n int) error {
	if (col.Kind == dataset.Categorical) != fc.categorical {
		return errors.NewValidationError("table",
			fmt.Sprintf("column %q changed kind since fitting", col.Name), col.Kind.String())
	}

	var numVals []float64
	var strVals []string
	missing := col.Missing
	if fc.categorical {
		strVals = append([]string(nil), col.Str...)
		if fc.catImputer != nil {
			strVals = fc.catImputer.apply(strVals, missing)
			missing = nil
		}
	} else {
		numVals = append([]float64(nil), col.Float...)
		if fc.numImputer != nil {
			numVals = fc.numImputer.apply(numVals, missing)
			missing = nil
		}
	}
	if missing != nil {
		for _, m := range missing {
			if m {
				return errors.NewValidationError("table",
					fmt.Sprintf("column %q has missing values but no imputer was fitted", col.Name), nil)
			}
		}
	}

	if fc.encoder != nil {
		vals := strVals
		if !fc.categorical {
			vals = formatFloats(numVals)
		}
		block, err := fc.encoder.TransformStrings(vals)
		if err != nil {
			return err
		}
		if block == nil {
			return nil // zero-width span
		}
		for i := 0; i < n; i++ {
			for j := fc.start; j < fc.end; j++ {
				X.Set(i, j, block.At(i, j-fc.start))
			}
		}
		return nil
	}

	if fc.scaler != nil {
		Xs, err := fc.scaler.Transform(mat.NewDense(n, 1, numVals))
		if err != nil {
			return err
		}
		numVals = mat.Col(nil, 0, Xs)
	}
	for i := 0; i < n; i++ {
		X.Set(i, fc.start, numVals[i])
	}
	return nil
}

// FitTransform fits the bindings and transforms the same table.
func (ct *ColumnTransformer) FitTransform(t *dataset.Table) (*mat.Dense, error) {
	if err := ct.Fit(t); err != nil {
		return nil, err
	}
	return ct.Transform(t)
}

// Mapping returns the fitted raw-to-engineered column mapping, or nil before
// Fit. The mapping shares no state with the transformer's internals and is
// safe to hold across calls.
func (ct *ColumnTransformer) Mapping() *FeatureMapping {
	if !ct.state.IsFitted() {
		return nil
	}
	raw := make([]RawFeature, len(ct.mapping.raw))
	copy(raw, ct.mapping.raw)
	names := make([]string, len(ct.mapping.engineeredNames))
	copy(names, ct.mapping.engineeredNames)
	return &FeatureMapping{raw: raw, engineeredNames: names}
}

// InputColumns returns the fitted feature-table column names in mapping
// order, or nil before Fit.
func (ct *ColumnTransformer) InputColumns() []string {
	if !ct.state.IsFitted() {
		return nil
	}
	out := make([]string, len(ct.inputCols))
	copy(out, ct.inputCols)
	return out
}

// newScaler maps a scale strategy to its estimator ("" means standard).
func newScaler(strategy string) model.Transformer {
	if strategy == "minmax" {
		return preprocessing.NewMinMaxScalerDefault()
	}
	return preprocessing.NewStandardScalerDefault()
}

// formatFloats renders numeric cells as category labels for one-hot
// encoding, with the shortest representation that round-trips (3 -> "3").
func formatFloats(values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

func (ct *ColumnTransformer) String() string {
	if !ct.state.IsFitted() {
		return fmt.Sprintf("ColumnTransformer(bindings=%d, unfitted)", len(ct.bindings))
	}
	return fmt.Sprintf("ColumnTransformer(bindings=%d, raw=%d, engineered=%d)",
		len(ct.bindings), ct.mapping.NumRaw(), ct.mapping.NumEngineered())
}
