package explain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/glassbox-ml/glassbox/boosting"
	"github.com/glassbox-ml/glassbox/dataset"
	"github.com/glassbox-ml/glassbox/linear"
	"github.com/glassbox-ml/glassbox/pipeline"
)

// miniTitanic builds a small passenger table whose label tracks sex, with
// missing cells in age and embarked.
func miniTitanic(t *testing.T) (*dataset.Table, []float64) {
	t.Helper()
	n := 24
	age := make([]float64, n)
	ageMissing := make([]bool, n)
	fare := make([]float64, n)
	embarked := make([]string, n)
	embarkedMissing := make([]bool, n)
	sex := make([]string, n)
	pclass := make([]string, n)
	y := make([]float64, n)

	ports := []string{"S", "C", "Q"}
	classes := []string{"1", "2", "3"}
	for i := 0; i < n; i++ {
		age[i] = 20 + float64(i%9)*3
		if i%8 == 3 {
			ageMissing[i] = true
		}
		fare[i] = 10 + float64(i%5)*12
		embarked[i] = ports[i%3]
		if i%11 == 7 {
			embarkedMissing[i] = true
		}
		if i%2 == 0 {
			sex[i] = "female"
			y[i] = 1
		} else {
			sex[i] = "male"
		}
		pclass[i] = classes[i%3]
	}

	table, err := dataset.NewTable(
		dataset.NewNumericColumn("age", age, ageMissing),
		dataset.NewNumericColumn("fare", fare, nil),
		dataset.NewCategoricalColumn("embarked", embarked, embarkedMissing),
		dataset.NewCategoricalColumn("sex", sex, nil),
		dataset.NewCategoricalColumn("pclass", pclass, nil),
	)
	require.NoError(t, err)
	return table, y
}

func miniTitanicBindings() []pipeline.Binding {
	return []pipeline.Binding{
		{
			Name:    "numeric",
			Columns: []string{"age", "fare"},
			Steps:   []pipeline.StepSpec{pipeline.Impute("median"), pipeline.Scale("standard")},
		},
		{
			Name:    "embarked",
			Columns: []string{"embarked"},
			Steps:   []pipeline.StepSpec{pipeline.Impute("most_frequent"), pipeline.OneHot()},
		},
		{
			Name:    "sex",
			Columns: []string{"sex"},
			Steps:   []pipeline.StepSpec{pipeline.OneHot()},
		},
		{
			Name:    "pclass",
			Columns: []string{"pclass"},
			Steps:   []pipeline.StepSpec{pipeline.OneHot()},
		},
	}
}

// fitTitanicPipeline fits the transformer and a logistic model, returning
// the assembled explainer alongside the engineered matrix and the model.
func fitTitanicPipeline(t *testing.T) (*PipelineExplainer, *mat.Dense, *linear.LogisticRegression) {
	t.Helper()
	table, y := miniTitanic(t)
	ct := pipeline.NewColumnTransformer(miniTitanicBindings()...)
	X, err := ct.FitTransform(table)
	require.NoError(t, err)

	n, cols := X.Dims()
	require.Equal(t, 10, cols, "engineered width: 2 numeric + 3 embarked + 2 sex + 3 pclass")

	lr := fitLogistic(t, X, mat.NewDense(n, 1, y))

	modelExplainer, err := NewLinearExplainer(lr, X)
	require.NoError(t, err)
	explainer, err := NewPipelineExplainer(ct.Mapping(), modelExplainer, lr.Classes())
	require.NoError(t, err)
	return explainer, X, lr
}

func TestPipelineExplainerGlobalCollapse(t *testing.T) {
	explainer, X, _ := fitTitanicPipeline(t)

	global, err := explainer.Global(X)
	require.NoError(t, err)

	// Ten engineered columns fold back to the five raw ones.
	require.Len(t, global.Features, 5)
	require.Len(t, global.RankIndex, 5)
	assert.Equal(t, 24, global.Rows)

	rawNames := []string{"age", "fare", "embarked", "sex", "pclass"}
	seen := make(map[string]bool)
	for pos, f := range global.Features {
		assert.Equal(t, rawNames[global.RankIndex[pos]], f.Name,
			"rank index must point at the feature's raw column")
		assert.GreaterOrEqual(t, f.Value, 0.0)
		seen[f.Name] = true
	}
	for _, name := range rawNames {
		assert.True(t, seen[name], "missing raw column %s", name)
	}

	for i := 1; i < len(global.Features); i++ {
		assert.GreaterOrEqual(t, global.Features[i-1].Value, global.Features[i].Value,
			"features must be ranked by descending magnitude")
	}

	// The label is a function of sex alone, so its folded importance
	// dominates.
	assert.Equal(t, "sex", global.Features[0].Name)
}

func TestPipelineExplainerGlobalEmptySubset(t *testing.T) {
	explainer, _, _ := fitTitanicPipeline(t)

	_, err := explainer.Global(nil)
	assert.Error(t, err)

	_, err = explainer.Global(zeroRowMatrix{cols: 10})
	assert.Error(t, err)
}

// zeroRowMatrix stands in for an evaluation subset that filtered down to
// nothing, which mat.Dense cannot represent.
type zeroRowMatrix struct{ cols int }

func (m zeroRowMatrix) Dims() (int, int)    { return 0, m.cols }
func (m zeroRowMatrix) At(i, j int) float64 { return 0 }
func (m zeroRowMatrix) T() mat.Matrix       { return m }

func TestPipelineExplainerLocalAdditivity(t *testing.T) {
	explainer, X, fixture := fitTitanicPipeline(t)

	scores, err := fixture.DecisionFunction(X)
	require.NoError(t, err)

	for _, i := range []int{0, 1, 7, 16, 23} {
		local, err := explainer.Local(X.RawRowView(i), 1)
		require.NoError(t, err)

		require.Len(t, local.Features, 5)
		assert.Equal(t, 1, local.Class)
		assert.Equal(t, []int{0, 1}, local.Classes)

		total := local.BaseValue
		for _, f := range local.Features {
			total += f.Value
		}
		assert.InDelta(t, local.Prediction, total, 1e-12,
			"base plus contributions must equal the reported prediction")
		assert.InDelta(t, scores.At(i, 0), local.Prediction, 1e-9,
			"prediction must be the raw decision score")
	}
}

func TestPipelineExplainerLocalPredictedClass(t *testing.T) {
	explainer, X, fixture := fitTitanicPipeline(t)

	preds, err := fixture.Predict(X)
	require.NoError(t, err)

	rows, _ := X.Dims()
	for i := 0; i < rows; i++ {
		local, err := explainer.Local(X.RawRowView(i), -1)
		require.NoError(t, err)
		assert.Equal(t, int(preds.At(i, 0)), local.Class,
			"row %d: default class must match Predict", i)
	}
}

func TestPipelineExplainerLocalClassZero(t *testing.T) {
	explainer, X, _ := fitTitanicPipeline(t)

	positive, err := explainer.Local(X.RawRowView(4), 1)
	require.NoError(t, err)
	negative, err := explainer.Local(X.RawRowView(4), 0)
	require.NoError(t, err)

	assert.Equal(t, 0, negative.Class)
	assert.InDelta(t, -positive.Prediction, negative.Prediction, 1e-12)
	assert.InDelta(t, -positive.BaseValue, negative.BaseValue, 1e-12)

	// The same columns appear with flipped signs; the magnitude ranking is
	// unchanged.
	for pos, f := range positive.Features {
		assert.Equal(t, f.Name, negative.Features[pos].Name)
		assert.InDelta(t, -f.Value, negative.Features[pos].Value, 1e-12)
	}
}

func TestPipelineExplainerLocalRanking(t *testing.T) {
	explainer, X, _ := fitTitanicPipeline(t)

	local, err := explainer.Local(X.RawRowView(2), 1)
	require.NoError(t, err)

	for i := 1; i < len(local.Features); i++ {
		prev := local.Features[i-1].Value
		cur := local.Features[i].Value
		assert.GreaterOrEqual(t, abs(prev), abs(cur),
			"local features must be ranked by descending magnitude")
	}

	rawNames := []string{"age", "fare", "embarked", "sex", "pclass"}
	for pos, f := range local.Features {
		assert.Equal(t, rawNames[local.RankIndex[pos]], f.Name)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestPipelineExplainerDeterminism(t *testing.T) {
	explainer, X, _ := fitTitanicPipeline(t)

	first, err := explainer.Global(X)
	require.NoError(t, err)
	second, err := explainer.Global(X)
	require.NoError(t, err)

	assert.Equal(t, first.Features, second.Features)
	assert.Equal(t, first.RankIndex, second.RankIndex)
	assert.Equal(t, first.BaseValue, second.BaseValue)
}

func TestPipelineExplainerWithTreeModel(t *testing.T) {
	table, y := miniTitanic(t)
	ct := pipeline.NewColumnTransformer(miniTitanicBindings()...)
	X, err := ct.FitTransform(table)
	require.NoError(t, err)

	n, _ := X.Dims()
	clf := boosting.NewGBDTClassifier().
		WithNumIterations(15).
		WithLearningRate(0.3).
		WithNumLeaves(4).
		WithMinChildSamples(2)
	require.NoError(t, clf.Fit(X, mat.NewDense(n, 1, y)))

	modelExplainer, err := NewTreeExplainer(clf.Model)
	require.NoError(t, err)
	explainer, err := NewPipelineExplainer(ct.Mapping(), modelExplainer, clf.Classes())
	require.NoError(t, err)

	global, err := explainer.Global(X)
	require.NoError(t, err)
	require.Len(t, global.Features, 5)
	assert.Equal(t, "sex", global.Features[0].Name)

	// Local additivity against the ensemble's raw score.
	features := X.RawRowView(6)
	local, err := explainer.Local(features, 1)
	require.NoError(t, err)

	total := local.BaseValue
	for _, f := range local.Features {
		total += f.Value
	}
	assert.InDelta(t, local.Prediction, total, 1e-12)
	assert.InDelta(t, clf.Model.RawSingle(features, -1)[0], local.Prediction, 1e-9)
}

func TestNewPipelineExplainerValidation(t *testing.T) {
	table, _ := miniTitanic(t)
	ct := pipeline.NewColumnTransformer(miniTitanicBindings()...)
	_, err := ct.FitTransform(table)
	require.NoError(t, err)
	mapping := ct.Mapping()

	X, y := binaryTrainingData(30)
	lr := fitLogistic(t, X, y)
	narrow, err := NewLinearExplainer(lr, X)
	require.NoError(t, err)

	t.Run("nil mapping", func(t *testing.T) {
		_, err := NewPipelineExplainer(nil, narrow, []int{0, 1})
		assert.Error(t, err)
	})

	t.Run("nil model", func(t *testing.T) {
		_, err := NewPipelineExplainer(mapping, nil, []int{0, 1})
		assert.Error(t, err)
	})

	t.Run("width mismatch", func(t *testing.T) {
		// The mapping spans 10 engineered columns, the model only 2.
		_, err := NewPipelineExplainer(mapping, narrow, []int{0, 1})
		assert.Error(t, err)
	})

	t.Run("class count mismatch", func(t *testing.T) {
		table, y := miniTitanic(t)
		ct := pipeline.NewColumnTransformer(miniTitanicBindings()...)
		X, err := ct.FitTransform(table)
		require.NoError(t, err)
		n, _ := X.Dims()
		lr := fitLogistic(t, X, mat.NewDense(n, 1, y))
		wide, err := NewLinearExplainer(lr, X)
		require.NoError(t, err)
		_, err = NewPipelineExplainer(ct.Mapping(), wide, []int{0, 1, 2})
		assert.Error(t, err)
	})
}

func TestPipelineExplainerLocalValidation(t *testing.T) {
	explainer, X, _ := fitTitanicPipeline(t)

	t.Run("wrong width", func(t *testing.T) {
		_, err := explainer.Local([]float64{1, 2, 3}, 1)
		assert.Error(t, err)
	})

	t.Run("class index out of range", func(t *testing.T) {
		_, err := explainer.Local(X.RawRowView(0), 2)
		assert.Error(t, err)
	})
}
