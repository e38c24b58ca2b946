package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glassbox-ml/glassbox/dataset"
	"github.com/glassbox-ml/glassbox/pkg/errors"
)

// miniTitanic builds a 6-row feature table with the five classic columns:
// numeric age (2 missing) and fare, categorical embarked (1 missing), sex
// and one-hot-able numeric pclass.
func miniTitanic(t *testing.T) *dataset.Table {
	t.Helper()
	tbl, err := dataset.NewTable(
		dataset.NewNumericColumn("age",
			[]float64{22, 38, math.NaN(), 35, 28, math.NaN()},
			[]bool{false, false, true, false, false, true}),
		dataset.NewNumericColumn("fare",
			[]float64{7.25, 71.28, 7.92, 53.1, 8.05, 8.46}, nil),
		dataset.NewCategoricalColumn("embarked",
			[]string{"S", "C", "S", "S", "", "Q"},
			[]bool{false, false, false, false, true, false}),
		dataset.NewCategoricalColumn("sex",
			[]string{"male", "female", "female", "female", "male", "male"}, nil),
		dataset.NewNumericColumn("pclass",
			[]float64{3, 1, 3, 1, 3, 2}, nil),
	)
	require.NoError(t, err)
	return tbl
}

func miniBindings() []Binding {
	return []Binding{
		{Name: "numeric", Columns: []string{"age", "fare"}, Steps: []StepSpec{Impute("median"), Scale("standard")}},
		{Name: "embarked", Columns: []string{"embarked"}, Steps: []StepSpec{Impute("most_frequent"), OneHot()}},
		{Name: "sex", Columns: []string{"sex"}, Steps: []StepSpec{OneHot()}},
		{Name: "pclass", Columns: []string{"pclass"}, Steps: []StepSpec{OneHot()}},
	}
}

// TestColumnTransformerEngineeredLayout checks the canonical expansion:
// 2 scaled numerics + 3 embarkation ports + 2 sexes + 3 classes give a
// 10-column engineered matrix over 5 raw columns.
func TestColumnTransformerEngineeredLayout(t *testing.T) {
	tbl := miniTitanic(t)
	ct := NewColumnTransformer(miniBindings()...)

	X, err := ct.FitTransform(tbl)
	require.NoError(t, err)

	r, c := X.Dims()
	assert.Equal(t, 6, r)
	assert.Equal(t, 10, c)

	m := ct.Mapping()
	require.NotNil(t, m)
	assert.Equal(t, 5, m.NumRaw())
	assert.Equal(t, 10, m.NumEngineered())
	assert.Equal(t, []string{"age", "fare", "embarked", "sex", "pclass"}, m.RawNames())
	assert.Equal(t, []string{
		"age", "fare",
		"embarked=C", "embarked=Q", "embarked=S",
		"sex=female", "sex=male",
		"pclass=1", "pclass=2", "pclass=3",
	}, m.EngineeredNames())

	// Raw features are listed in table column order with contiguous spans.
	expected := []RawFeature{
		{Name: "age", Start: 0, End: 1},
		{Name: "fare", Start: 1, End: 2},
		{Name: "embarked", Start: 2, End: 5},
		{Name: "sex", Start: 5, End: 7},
		{Name: "pclass", Start: 7, End: 10},
	}
	for i, want := range expected {
		assert.Equal(t, want, m.Raw(i))
	}
}

// TestColumnTransformerFold checks that a 10-element engineered vector folds
// to 5 per-raw-column sums parallel to the table's column order.
func TestColumnTransformerFold(t *testing.T) {
	tbl := miniTitanic(t)
	ct := NewColumnTransformer(miniBindings()...)
	require.NoError(t, ct.Fit(tbl))

	m := ct.Mapping()
	engineered := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	folded, err := m.Fold(engineered)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 12, 13, 27}, folded)

	_, err = m.Fold([]float64{1, 2, 3})
	var dimErr *errors.DimensionError
	assert.ErrorAs(t, err, &dimErr)
}

// TestColumnTransformerImputation checks the fitted fill values: the two
// missing ages both land on the scaled train median, and the missing
// embarkation port takes the most frequent category.
func TestColumnTransformerImputation(t *testing.T) {
	tbl := miniTitanic(t)
	ct := NewColumnTransformer(miniBindings()...)

	X, err := ct.FitTransform(tbl)
	require.NoError(t, err)

	// Observed ages {22, 38, 35, 28}: median 31.5, shared by rows 2 and 5.
	assert.InDelta(t, X.At(2, 0), X.At(5, 0), 1e-12)
	fc := ct.fitted["age"]
	require.NotNil(t, fc.numImputer)
	assert.InDelta(t, 31.5, fc.numImputer.Fill, 1e-12)

	// Row 4's missing port imputes to S (3 of 5 observed), engineered
	// column "embarked=S".
	assert.Equal(t, 1.0, X.At(4, 4))
	assert.Equal(t, 0.0, X.At(4, 2))
	assert.Equal(t, 0.0, X.At(4, 3))

	// pclass one-hot: row 0 travels third class.
	assert.Equal(t, 1.0, X.At(0, 9))
	assert.Equal(t, 0.0, X.At(0, 7))
	assert.Equal(t, 0.0, X.At(0, 8))
}

// TestColumnTransformerScaling checks that scaled numeric columns come out
// with zero mean over the training rows.
func TestColumnTransformerScaling(t *testing.T) {
	tbl := miniTitanic(t)
	ct := NewColumnTransformer(miniBindings()...)

	X, err := ct.FitTransform(tbl)
	require.NoError(t, err)

	for _, j := range []int{0, 1} {
		sum := 0.0
		for i := 0; i < 6; i++ {
			sum += X.At(i, j)
		}
		assert.InDelta(t, 0.0, sum/6.0, 1e-10)
	}
}

// TestColumnTransformerTransformNewTable applies fitted parameters to fresh
// rows: train-time medians fill new missing cells and unseen categories
// encode as all zeros.
func TestColumnTransformerTransformNewTable(t *testing.T) {
	ct := NewColumnTransformer(miniBindings()...)
	require.NoError(t, ct.Fit(miniTitanic(t)))

	fresh, err := dataset.NewTable(
		dataset.NewNumericColumn("age", []float64{math.NaN()}, []bool{true}),
		dataset.NewNumericColumn("fare", []float64{10.0}, nil),
		dataset.NewCategoricalColumn("embarked", []string{"X"}, nil),
		dataset.NewCategoricalColumn("sex", []string{"female"}, nil),
		dataset.NewNumericColumn("pclass", []float64{2}, nil),
	)
	require.NoError(t, err)

	X, err := ct.Transform(fresh)
	require.NoError(t, err)

	r, c := X.Dims()
	assert.Equal(t, 1, r)
	assert.Equal(t, 10, c)

	// Missing age fills with the train median before scaling.
	sc := ct.fitted["age"]
	require.NotNil(t, sc.numImputer)
	assert.InDelta(t, 31.5, sc.numImputer.Fill, 1e-12)

	// Port "X" was never seen at fit time: the whole embarked block is zero.
	assert.Equal(t, 0.0, X.At(0, 2))
	assert.Equal(t, 0.0, X.At(0, 3))
	assert.Equal(t, 0.0, X.At(0, 4))

	// Known categories still light up.
	assert.Equal(t, 1.0, X.At(0, 5)) // sex=female
	assert.Equal(t, 1.0, X.At(0, 8)) // pclass=2
}

// TestColumnTransformerNotFitted checks the transform guard.
func TestColumnTransformerNotFitted(t *testing.T) {
	ct := NewColumnTransformer(miniBindings()...)

	_, err := ct.Transform(miniTitanic(t))
	var notFitted *errors.NotFittedError
	assert.ErrorAs(t, err, &notFitted)
	assert.Nil(t, ct.Mapping())
	assert.Nil(t, ct.InputColumns())
}

// TestColumnTransformerRefit checks that a fitted transformer refuses a
// second fit instead of mutating learned state.
func TestColumnTransformerRefit(t *testing.T) {
	ct := NewColumnTransformer(miniBindings()...)
	require.NoError(t, ct.Fit(miniTitanic(t)))

	err := ct.Fit(miniTitanic(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already fitted")
}

// TestColumnTransformerColumnMismatch checks transform-time table shape
// errors: wrong column count and renamed columns.
func TestColumnTransformerColumnMismatch(t *testing.T) {
	ct := NewColumnTransformer(miniBindings()...)
	require.NoError(t, ct.Fit(miniTitanic(t)))

	narrow, err := dataset.NewTable(
		dataset.NewNumericColumn("age", []float64{30}, nil),
	)
	require.NoError(t, err)
	_, err = ct.Transform(narrow)
	var dimErr *errors.DimensionError
	assert.ErrorAs(t, err, &dimErr)

	renamed, err := dataset.NewTable(
		dataset.NewNumericColumn("age", []float64{30}, nil),
		dataset.NewNumericColumn("fare", []float64{9}, nil),
		dataset.NewCategoricalColumn("embarked", []string{"S"}, nil),
		dataset.NewCategoricalColumn("sex", []string{"male"}, nil),
		dataset.NewNumericColumn("class_of_travel", []float64{1}, nil),
	)
	require.NoError(t, err)
	_, err = ct.Transform(renamed)
	var valErr *errors.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

// TestColumnTransformerZeroWidthSpan checks that a drop-first one-hot over a
// single-category column contributes no engineered columns and folds to
// zero importance rather than failing.
func TestColumnTransformerZeroWidthSpan(t *testing.T) {
	tbl, err := dataset.NewTable(
		dataset.NewNumericColumn("x", []float64{1, 2, 3, 4}, nil),
		dataset.NewCategoricalColumn("constant", []string{"a", "a", "a", "a"}, nil),
	)
	require.NoError(t, err)

	ct := NewColumnTransformer(
		Binding{Name: "x", Columns: []string{"x"}, Steps: []StepSpec{Scale("standard")}},
		Binding{Name: "constant", Columns: []string{"constant"}, Steps: []StepSpec{OneHotDropFirst()}},
	)
	X, err := ct.FitTransform(tbl)
	require.NoError(t, err)

	r, c := X.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 1, c)

	m := ct.Mapping()
	span, ok := m.Span("constant")
	require.True(t, ok)
	assert.Equal(t, 0, span.Width())

	folded, err := m.Fold([]float64{0.7})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.7, 0.0}, folded)
}

// TestColumnTransformerMinMax checks the minmax scale strategy wires through.
func TestColumnTransformerMinMax(t *testing.T) {
	tbl, err := dataset.NewTable(
		dataset.NewNumericColumn("x", []float64{0, 5, 10}, nil),
	)
	require.NoError(t, err)

	ct := NewColumnTransformer(
		Binding{Name: "x", Columns: []string{"x"}, Steps: []StepSpec{Scale("minmax")}},
	)
	X, err := ct.FitTransform(tbl)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, X.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5, X.At(1, 0), 1e-12)
	assert.InDelta(t, 1.0, X.At(2, 0), 1e-12)
}

// TestColumnTransformerFoldAbs checks magnitude folding keeps sign
// cancellation from hiding a feature.
func TestColumnTransformerFoldAbs(t *testing.T) {
	tbl := miniTitanic(t)
	ct := NewColumnTransformer(miniBindings()...)
	require.NoError(t, ct.Fit(tbl))

	m := ct.Mapping()
	engineered := make([]float64, 10)
	engineered[2] = 0.5  // embarked=C
	engineered[4] = -0.5 // embarked=S

	folded, err := m.Fold(engineered)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, folded[2], 1e-12)

	absFolded, err := m.FoldAbs(engineered)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, absFolded[2], 1e-12)
}
