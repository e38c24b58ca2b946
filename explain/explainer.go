package explain

import (
	"gonum.org/v1/gonum/mat"

	"github.com/glassbox-ml/glassbox/pipeline"
	"github.com/glassbox-ml/glassbox/pkg/errors"
	"github.com/glassbox-ml/glassbox/pkg/log"
)

// ModelExplainer computes per-sample attributions on the engineered
// feature space of a fitted model.
type ModelExplainer interface {
	// ShapValues returns one attribution per engineered feature and
	// sample for the given class index.
	ShapValues(X mat.Matrix, class int) (*SHAPValues, error)
	// NumFeatures returns the engineered width the model was fitted on.
	NumFeatures() int
	// NumClasses returns the number of target classes.
	NumClasses() int
}

// PipelineExplainer folds model attributions computed on engineered
// features back to the raw table columns they came from. Engineered
// columns that share a raw parent (for example the one-hot block of a
// categorical column) are merged into a single entry, so explanations
// read in terms of the original table.
type PipelineExplainer struct {
	mapping *pipeline.FeatureMapping
	model   ModelExplainer
	classes []int
	logger  log.Logger
}

// NewPipelineExplainer pairs a model explainer with the feature mapping
// of the transformer that produced the model's input. The mapping's
// engineered width must match the model's.
func NewPipelineExplainer(mapping *pipeline.FeatureMapping, m ModelExplainer, classes []int) (*PipelineExplainer, error) {
	if mapping == nil {
		return nil, errors.NewValueError("NewPipelineExplainer", "feature mapping must not be nil")
	}
	if m == nil {
		return nil, errors.NewValueError("NewPipelineExplainer", "model explainer must not be nil")
	}
	if mapping.NumEngineered() != m.NumFeatures() {
		return nil, errors.NewDimensionError("NewPipelineExplainer", mapping.NumEngineered(), m.NumFeatures(), 1)
	}
	if len(classes) != m.NumClasses() {
		return nil, errors.NewValidationError("classes",
			"class labels must match the model's class count", len(classes))
	}

	labels := make([]int, len(classes))
	copy(labels, classes)
	return &PipelineExplainer{
		mapping: mapping,
		model:   m,
		classes: labels,
		logger:  log.GetLoggerWithName("explain.pipeline"),
	}, nil
}

// NumRawFeatures returns the number of raw table columns.
func (p *PipelineExplainer) NumRawFeatures() int { return p.mapping.NumRaw() }

// Classes returns the class labels in index order.
func (p *PipelineExplainer) Classes() []int {
	out := make([]int, len(p.classes))
	copy(out, p.classes)
	return out
}

// Global computes the mean absolute folded contribution per raw column
// over an evaluation subset, averaged across model outputs. The subset
// must be non-empty: a global explanation of nothing is a caller bug,
// not a zero vector.
func (p *PipelineExplainer) Global(X mat.Matrix) (*GlobalExplanation, error) {
	if X == nil {
		return nil, errors.NewValidationError("evaluation_rows",
			"global explanation requires a non-empty evaluation subset", 0)
	}
	rows, cols := X.Dims()
	if rows == 0 {
		return nil, errors.NewValidationError("evaluation_rows",
			"global explanation requires a non-empty evaluation subset", rows)
	}
	if cols != p.mapping.NumEngineered() {
		return nil, errors.NewDimensionError("PipelineExplainer.Global", p.mapping.NumEngineered(), cols, 1)
	}

	// Binary models expose a single output, the positive class. For
	// multiclass every class contributes to the average.
	classIndices := []int{1}
	if p.model.NumClasses() > 2 {
		classIndices = make([]int, p.model.NumClasses())
		for c := range classIndices {
			classIndices[c] = c
		}
	}

	accum := make([]float64, p.mapping.NumRaw())
	baseSum := 0.0
	for _, class := range classIndices {
		sv, err := p.model.ShapValues(X, class)
		if err != nil {
			return nil, err
		}
		for i := 0; i < rows; i++ {
			folded, err := p.mapping.FoldAbs(sv.Values.RawRowView(i))
			if err != nil {
				return nil, err
			}
			for j, v := range folded {
				accum[j] += v
			}
		}
		baseSum += sv.BaseValue
	}

	denom := float64(rows * len(classIndices))
	for j := range accum {
		accum[j] /= denom
	}

	features, rank := rankFeatures(p.mapping.RawNames(), accum)
	p.logger.Info("Global explanation computed",
		log.ExplainScopeKey, log.ScopeGlobal,
		log.ExplainRowsKey, rows,
		log.RawFeaturesKey, p.mapping.NumRaw(),
		log.EngineeredKey, p.mapping.NumEngineered(),
	)
	return &GlobalExplanation{
		Features:  features,
		RankIndex: rank,
		BaseValue: baseSum / float64(len(classIndices)),
		Rows:      rows,
	}, nil
}

// Local explains a single engineered sample toward one class. A negative
// class selects the model's predicted class for the sample. BaseValue
// plus the folded contributions equals the class's raw score exactly.
func (p *PipelineExplainer) Local(x []float64, class int) (*LocalExplanation, error) {
	if len(x) != p.mapping.NumEngineered() {
		return nil, errors.NewDimensionError("PipelineExplainer.Local", p.mapping.NumEngineered(), len(x), 1)
	}
	if class >= len(p.classes) {
		return nil, errors.NewValidationError("class",
			"class index out of range", class)
	}

	row := mat.NewDense(1, len(x), nil)
	for j, v := range x {
		row.Set(0, j, v)
	}

	if class < 0 {
		predicted, err := p.predictedClass(row)
		if err != nil {
			return nil, err
		}
		class = predicted
	}

	sv, err := p.model.ShapValues(row, class)
	if err != nil {
		return nil, err
	}
	folded, err := p.mapping.Fold(sv.Values.RawRowView(0))
	if err != nil {
		return nil, err
	}

	features, rank := rankFeatures(p.mapping.RawNames(), folded)
	p.logger.Debug("Local explanation computed",
		log.ExplainScopeKey, log.ScopeLocal,
		log.ExplainClassKey, p.classes[class],
		log.RawFeaturesKey, p.mapping.NumRaw(),
	)
	return &LocalExplanation{
		Class:      p.classes[class],
		Classes:    p.Classes(),
		Features:   features,
		RankIndex:  rank,
		BaseValue:  sv.BaseValue,
		Prediction: sv.Sum(0),
	}, nil
}

// predictedClass picks the class a fitted model would assign to the row,
// from the attribution raw scores alone.
func (p *PipelineExplainer) predictedClass(row *mat.Dense) (int, error) {
	if len(p.classes) == 2 {
		sv, err := p.model.ShapValues(row, 1)
		if err != nil {
			return 0, err
		}
		if sv.Sum(0) >= 0 {
			return 1, nil
		}
		return 0, nil
	}

	best, bestScore := 0, 0.0
	for c := range p.classes {
		sv, err := p.model.ShapValues(row, c)
		if err != nil {
			return 0, err
		}
		if score := sv.Sum(0); c == 0 || score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, nil
}
