package explain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/glassbox-ml/glassbox/boosting"
)

// binaryTrainingData builds two separable blobs with alternating labels.
func binaryTrainingData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		off := float64(i%7) * 0.1
		if i%2 == 0 {
			X.Set(i, 0, -2+off)
			X.Set(i, 1, -1-off)
		} else {
			X.Set(i, 0, 2-off)
			X.Set(i, 1, 1+off)
			y.Set(i, 0, 1)
		}
	}
	return X, y
}

// threeClassTrainingData builds three separable blobs labeled 0, 1, 2.
func threeClassTrainingData(n int) (*mat.Dense, *mat.Dense) {
	centers := [][2]float64{{-3, 0}, {0, 3}, {3, 0}}
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		c := i % 3
		off := float64(i%5) * 0.1
		X.Set(i, 0, centers[c][0]+off)
		X.Set(i, 1, centers[c][1]-off)
		y.Set(i, 0, float64(c))
	}
	return X, y
}

func fitBinaryGBDT(t *testing.T, X, y *mat.Dense) *boosting.Model {
	t.Helper()
	clf := boosting.NewGBDTClassifier().
		WithNumIterations(10).
		WithLearningRate(0.3).
		WithNumLeaves(7).
		WithMinChildSamples(2)
	require.NoError(t, clf.Fit(X, y))
	return clf.Model
}

func TestTreeExplainerAdditivityBinary(t *testing.T) {
	X, y := binaryTrainingData(60)
	model := fitBinaryGBDT(t, X, y)

	explainer, err := NewTreeExplainer(model)
	require.NoError(t, err)
	assert.Equal(t, 2, explainer.NumFeatures())
	assert.Equal(t, 2, explainer.NumClasses())

	sv, err := explainer.ShapValues(X, 1)
	require.NoError(t, err)

	rows, cols := sv.Values.Dims()
	assert.Equal(t, 60, rows)
	assert.Equal(t, 2, cols)

	features := make([]float64, 2)
	for i := 0; i < rows; i++ {
		mat.Row(features, i, X)
		raw := model.RawSingle(features, -1)[0]
		assert.InDelta(t, raw, sv.Sum(i), 1e-9, "row %d", i)
	}
}

func TestTreeExplainerClassZeroNegation(t *testing.T) {
	X, y := binaryTrainingData(40)
	model := fitBinaryGBDT(t, X, y)

	explainer, err := NewTreeExplainer(model)
	require.NoError(t, err)

	positive, err := explainer.ShapValues(X, 1)
	require.NoError(t, err)
	negative, err := explainer.ShapValues(X, 0)
	require.NoError(t, err)

	assert.InDelta(t, -positive.BaseValue, negative.BaseValue, 1e-12)
	rows, cols := positive.Values.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			assert.InDelta(t, -positive.Values.At(i, j), negative.Values.At(i, j), 1e-12)
		}
	}
}

func TestTreeExplainerAdditivityMulticlass(t *testing.T) {
	X, y := threeClassTrainingData(90)
	clf := boosting.NewGBDTClassifier().
		WithNumIterations(8).
		WithLearningRate(0.3).
		WithNumLeaves(5).
		WithMinChildSamples(2)
	require.NoError(t, clf.Fit(X, y))

	explainer, err := NewTreeExplainer(clf.Model)
	require.NoError(t, err)
	assert.Equal(t, 3, explainer.NumClasses())

	features := make([]float64, 2)
	for class := 0; class < 3; class++ {
		sv, err := explainer.ShapValues(X, class)
		require.NoError(t, err)
		for i := 0; i < 90; i++ {
			mat.Row(features, i, X)
			raw := clf.Model.RawSingle(features, -1)[class]
			assert.InDelta(t, raw, sv.Sum(i), 1e-9, "class %d row %d", class, i)
		}
	}
}

func TestTreeExplainerMissingValues(t *testing.T) {
	X, y := binaryTrainingData(60)
	// Blank out one feature on a few rows; prediction and attribution must
	// route them identically.
	for _, i := range []int{3, 17, 42} {
		X.Set(i, 0, math.NaN())
	}
	model := fitBinaryGBDT(t, X, y)

	explainer, err := NewTreeExplainer(model)
	require.NoError(t, err)
	sv, err := explainer.ShapValues(X, 1)
	require.NoError(t, err)

	features := make([]float64, 2)
	for _, i := range []int{3, 17, 42} {
		mat.Row(features, i, X)
		raw := model.RawSingle(features, -1)[0]
		assert.InDelta(t, raw, sv.Sum(i), 1e-9, "row %d", i)
	}
}

func TestTreeExplainerConstantFeature(t *testing.T) {
	X, y := binaryTrainingData(60)
	wide := mat.NewDense(60, 3, nil)
	for i := 0; i < 60; i++ {
		wide.Set(i, 0, X.At(i, 0))
		wide.Set(i, 1, X.At(i, 1))
		wide.Set(i, 2, 5.0)
	}
	model := fitBinaryGBDT(t, wide, y)

	explainer, err := NewTreeExplainer(model)
	require.NoError(t, err)
	sv, err := explainer.ShapValues(wide, 1)
	require.NoError(t, err)

	for i := 0; i < 60; i++ {
		assert.Zero(t, sv.Values.At(i, 2), "constant feature must get no credit")
	}
}

func TestTreeExplainerValidation(t *testing.T) {
	X, y := binaryTrainingData(40)
	model := fitBinaryGBDT(t, X, y)

	t.Run("nil model", func(t *testing.T) {
		_, err := NewTreeExplainer(nil)
		assert.Error(t, err)
	})

	t.Run("untrained model", func(t *testing.T) {
		_, err := NewTreeExplainer(boosting.NewModel())
		assert.Error(t, err)
	})

	t.Run("class out of range", func(t *testing.T) {
		explainer, err := NewTreeExplainer(model)
		require.NoError(t, err)
		_, err = explainer.ShapValues(X, 2)
		assert.Error(t, err)
		_, err = explainer.ShapValues(X, -1)
		assert.Error(t, err)
	})

	t.Run("feature width mismatch", func(t *testing.T) {
		explainer, err := NewTreeExplainer(model)
		require.NoError(t, err)
		_, err = explainer.ShapValues(mat.NewDense(4, 5, nil), 1)
		assert.Error(t, err)
	})
}
