package explain

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/glassbox-ml/glassbox/core/model"
	"github.com/glassbox-ml/glassbox/pkg/errors"
)

// LinearExplainer attributes a linear classifier's decision scores to its
// input features relative to a background reference point. The
// contribution of feature j toward class c is w_c[j]*(x[j]-mean[j]), and
// the base value is the score of the background mean, so base plus
// contributions reproduces the decision score exactly.
type LinearExplainer struct {
	weights    *mat.Dense
	intercepts []float64
	classes    []int
	means      []float64
}

// NewLinearExplainer creates an explainer for a fitted linear model using
// background data to fix the reference point.
func NewLinearExplainer(m model.LinearModel, background mat.Matrix) (*LinearExplainer, error) {
	if m == nil {
		return nil, errors.NewValueError("NewLinearExplainer", "model is nil")
	}
	weights := m.Weights()
	if weights == nil {
		return nil, errors.NewNotFittedError("LinearExplainer", "NewLinearExplainer")
	}

	_, nFeatures := weights.Dims()
	rows, cols := background.Dims()
	if cols != nFeatures {
		return nil, errors.NewDimensionError("NewLinearExplainer", nFeatures, cols, 1)
	}
	if rows == 0 {
		return nil, errors.NewValueError("NewLinearExplainer",
			"background data must not be empty")
	}

	means := make([]float64, nFeatures)
	column := make([]float64, rows)
	for j := 0; j < nFeatures; j++ {
		mat.Col(column, j, background)
		means[j] = stat.Mean(column, nil)
	}

	return &LinearExplainer{
		weights:    mat.DenseCopyOf(weights),
		intercepts: m.Intercepts(),
		classes:    m.Classes(),
		means:      means,
	}, nil
}

// NumFeatures returns the feature count the explainer expects.
func (e *LinearExplainer) NumFeatures() int {
	_, cols := e.weights.Dims()
	return cols
}

// NumClasses returns the number of classes the model separates.
func (e *LinearExplainer) NumClasses() int { return len(e.classes) }

// ShapValues computes contributions toward the decision score of the given
// class index for every row of X. Binary models carry one coefficient row
// for the positive class; explaining class 0 negates it.
func (e *LinearExplainer) ShapValues(X mat.Matrix, class int) (*SHAPValues, error) {
	if class < 0 || class >= len(e.classes) {
		return nil, errors.NewValidationError("class",
			"class index out of range", class)
	}
	rows, cols := X.Dims()
	nRows, nFeatures := e.weights.Dims()
	if cols != nFeatures {
		return nil, errors.NewDimensionError("LinearExplainer.ShapValues",
			nFeatures, cols, 1)
	}

	row := class
	negate := false
	if nRows == 1 {
		row = 0
		negate = class == 0
	}

	coef := e.weights.RawRowView(row)
	base := e.intercepts[row]
	for j, w := range coef {
		base += w * e.means[j]
	}

	sign := 1.0
	if negate {
		sign = -1.0
		base = -base
	}

	values := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			values.Set(i, j, sign*coef[j]*(X.At(i, j)-e.means[j]))
		}
	}

	return &SHAPValues{Values: values, BaseValue: base}, nil
}
