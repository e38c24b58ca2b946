package explain

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/glassbox-ml/glassbox/boosting"
	"github.com/glassbox-ml/glassbox/core/parallel"
	"github.com/glassbox-ml/glassbox/pkg/errors"
)

// SHAPValues holds per-feature signed contributions for a batch of samples
// in raw-score space. For every row, BaseValue plus the row sum of Values
// equals the model's raw score exactly.
type SHAPValues struct {
	Values       *mat.Dense // samples x features
	BaseValue    float64
	FeatureNames []string
}

// Sum returns BaseValue plus the contribution sum of one row, which by the
// additivity identity is the raw score of that sample.
func (s *SHAPValues) Sum(row int) float64 {
	total := s.BaseValue
	_, cols := s.Values.Dims()
	for j := 0; j < cols; j++ {
		total += s.Values.At(row, j)
	}
	return total
}

// TreeExplainer attributes a boosted ensemble's raw scores to its input
// features by walking each sample's decision paths. At every split the
// change in the node value between parent and child is credited to the
// split feature, so contributions telescope from the ensemble's expected
// value down to the exact leaf sum.
type TreeExplainer struct {
	model *boosting.Model
}

// NewTreeExplainer creates an explainer for a trained ensemble.
func NewTreeExplainer(m *boosting.Model) (*TreeExplainer, error) {
	if m == nil || len(m.Trees) == 0 {
		return nil, errors.NewValueError("NewTreeExplainer",
			"explainer requires a trained model")
	}
	if len(m.InitScores) == 0 {
		return nil, errors.NewValueError("NewTreeExplainer",
			"model is missing init scores")
	}
	return &TreeExplainer{model: m}, nil
}

// NumFeatures returns the engineered feature count the explainer expects.
func (e *TreeExplainer) NumFeatures() int { return e.model.NumFeatures }

// NumClasses returns the number of classes the model separates.
func (e *TreeExplainer) NumClasses() int { return e.model.NumClass }

func (e *TreeExplainer) numOutputs() int {
	if e.model.NumClass > 2 {
		return e.model.NumClass
	}
	return 1
}

// ShapValues computes contributions toward the raw score of the given
// class index for every row of X. Binary models carry one score for the
// positive class; explaining class 0 negates it.
func (e *TreeExplainer) ShapValues(X mat.Matrix, class int) (*SHAPValues, error) {
	if class < 0 || class >= e.model.NumClass {
		return nil, errors.NewValidationError("class",
			"class index out of range", class)
	}
	rows, cols := X.Dims()
	if cols != e.model.NumFeatures {
		return nil, errors.NewDimensionError("TreeExplainer.ShapValues",
			e.model.NumFeatures, cols, 1)
	}

	output := class
	negate := false
	if e.numOutputs() == 1 {
		output = 0
		negate = class == 0
	}

	values := mat.NewDense(rows, cols, nil)
	parallel.Parallelize(rows, func(start, end int) {
		features := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(features, i, X)
			contribs := e.pathContributions(features, output)
			if negate {
				for j := range contribs {
					contribs[j] = -contribs[j]
				}
			}
			values.SetRow(i, contribs)
		}
	})

	base := e.baseValue(output)
	if negate {
		base = -base
	}
	return &SHAPValues{
		Values:       values,
		BaseValue:    base,
		FeatureNames: append([]string(nil), e.model.FeatureNames...),
	}, nil
}

// baseValue is the expected raw score before seeing any feature: the init
// score plus each tree's shrunk root value.
func (e *TreeExplainer) baseValue(output int) float64 {
	outputs := e.numOutputs()
	base := e.model.InitScores[output]
	for i := range e.model.Trees {
		if i%outputs != output {
			continue
		}
		tree := &e.model.Trees[i]
		base += tree.Nodes[0].InternalValue * tree.ShrinkageRate
	}
	return base
}

// pathContributions walks one sample through every tree of the given
// output and credits each split feature with the node-value change it
// caused. Missing features follow the split's default direction, exactly
// like prediction.
func (e *TreeExplainer) pathContributions(features []float64, output int) []float64 {
	contribs := make([]float64, e.model.NumFeatures)
	outputs := e.numOutputs()

	for i := range e.model.Trees {
		if i%outputs != output {
			continue
		}
		tree := &e.model.Trees[i]

		nodeID := 0
		for {
			node := &tree.Nodes[nodeID]
			if node.IsLeaf() {
				break
			}

			v := features[node.SplitFeature]
			var childID int
			switch {
			case math.IsNaN(v):
				if node.DefaultLeft {
					childID = node.LeftChild
				} else {
					childID = node.RightChild
				}
			case v <= node.Threshold:
				childID = node.LeftChild
			default:
				childID = node.RightChild
			}

			child := &tree.Nodes[childID]
			delta := (child.InternalValue - node.InternalValue) * tree.ShrinkageRate
			contribs[node.SplitFeature] += delta
			nodeID = childID
		}
	}
	return contribs
}
