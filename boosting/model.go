// Package boosting implements gradient-boosted decision trees for
// classification: histogram-based training, a compact tree ensemble model,
// and per-node statistics that downstream explainers rely on.
package boosting

import (
	"gonum.org/v1/gonum/mat"

	"github.com/glassbox-ml/glassbox/pkg/errors"
)

// NodeType represents the type of a tree node.
type NodeType int

const (
	// LeafNode is a terminal node with a value.
	LeafNode NodeType = iota
	// NumericalNode splits on a numeric threshold.
	NumericalNode
)

// Node is a single node in a decision tree. Every node, leaf or split,
// carries the cover count and the value the node would predict as a leaf;
// explainers use these to attribute score changes along a decision path.
type Node struct {
	NodeID     int      `json:"node_id"`
	ParentID   int      `json:"parent_id"`
	LeftChild  int      `json:"left_child"`
	RightChild int      `json:"right_child"`
	NodeType   NodeType `json:"node_type"`

	// Split information (non-leaf nodes)
	SplitFeature int     `json:"split_feature"`
	Threshold    float64 `json:"threshold"`
	DefaultLeft  bool    `json:"default_left"`
	Gain         float64 `json:"gain"`

	// Leaf information
	LeafValue float64 `json:"leaf_value"`

	// Node statistics, filled during training for every node
	InternalValue float64 `json:"internal_value"`
	InternalCount int     `json:"internal_count"`
}

// IsLeaf returns true if the node is a leaf node.
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree is a single decision tree in the ensemble.
type Tree struct {
	TreeIndex     int     `json:"tree_index"`
	NumLeaves     int     `json:"num_leaves"`
	ShrinkageRate float64 `json:"shrinkage_rate"`
	Nodes         []Node  `json:"nodes"`
}

// Predict routes one sample through the tree and returns the shrunk leaf
// value. Missing features (NaN) follow the node's default direction.
func (t *Tree) Predict(features []float64) float64 {
	nodeID := 0
	for nodeID >= 0 && nodeID < len(t.Nodes) {
		node := &t.Nodes[nodeID]
		if node.IsLeaf() {
			return node.LeafValue * t.ShrinkageRate
		}

		v := features[node.SplitFeature]
		if v != v { // NaN
			if node.DefaultLeft {
				nodeID = node.LeftChild
			} else {
				nodeID = node.RightChild
			}
			continue
		}
		if v <= node.Threshold {
			nodeID = node.LeftChild
		} else {
			nodeID = node.RightChild
		}
	}
	return 0.0
}

// ObjectiveType names the training objective.
type ObjectiveType string

const (
	// BinaryLogistic is binary classification with sigmoid output.
	BinaryLogistic ObjectiveType = "binary"
	// MulticlassSoftmax is multiclass classification with softmax output.
	MulticlassSoftmax ObjectiveType = "multiclass"
)

// Model is a trained gradient-boosted tree ensemble. For multiclass
// objectives trees are interleaved by class: tree i belongs to class
// i % NumClass and the ensemble trains NumClass trees per iteration.
type Model struct {
	Objective    ObjectiveType `json:"objective"`
	NumClass     int           `json:"num_class"`
	NumIteration int           `json:"num_iteration"`
	LearningRate float64       `json:"learning_rate"`
	NumLeaves    int           `json:"num_leaves"`
	MaxDepth     int           `json:"max_depth"`

	Trees []Tree `json:"trees"`

	NumFeatures  int      `json:"num_features"`
	FeatureNames []string `json:"feature_names,omitempty"`

	// InitScores holds the per-output baseline raw score: one entry for
	// binary models, NumClass entries for multiclass.
	InitScores []float64 `json:"init_scores"`

	BestIteration int `json:"best_iteration,omitempty"`
}

// NewModel creates an empty model with LightGBM-style defaults.
func NewModel() *Model {
	return &Model{
		Trees:        make([]Tree, 0),
		LearningRate: 0.1,
		NumLeaves:    31,
		MaxDepth:     -1,
	}
}

// numOutputs returns the width of the raw-score vector.
func (m *Model) numOutputs() int {
	if m.NumClass > 2 {
		return m.NumClass
	}
	return 1
}

// RawSingle accumulates the untransformed raw scores for one sample using
// the first numIteration boosting rounds (-1 for all). The result has one
// entry for binary models and NumClass entries for multiclass.
func (m *Model) RawSingle(features []float64, numIteration int) []float64 {
	outputs := m.numOutputs()
	nTrees := len(m.Trees)
	if numIteration >= 0 && numIteration*outputs < nTrees {
		nTrees = numIteration * outputs
	}

	raw := make([]float64, outputs)
	copy(raw, m.InitScores)
	for i := 0; i < nTrees; i++ {
		raw[i%outputs] += m.Trees[i].Predict(features)
	}
	return raw
}

// PredictSingle returns the transformed prediction for one sample: the
// positive-class probability for binary models, softmax probabilities for
// multiclass.
func (m *Model) PredictSingle(features []float64, numIteration int) []float64 {
	raw := m.RawSingle(features, numIteration)
	return m.transform(raw)
}

// transform applies the objective's link function to raw scores in place.
func (m *Model) transform(raw []float64) []float64 {
	switch m.Objective {
	case BinaryLogistic:
		raw[0] = sigmoid(raw[0])
	case MulticlassSoftmax:
		lse := errors.LogSumExp(raw)
		for i, v := range raw {
			raw[i] = errors.StabilizeExp(v - lse)
		}
	}
	return raw
}

// RawScores returns untransformed scores for a batch: nSamples x 1 for
// binary models, nSamples x NumClass for multiclass.
func (m *Model) RawScores(X mat.Matrix) (*mat.Dense, error) {
	rows, cols := X.Dims()
	if cols != m.NumFeatures {
		return nil, errors.NewDimensionError("Model.RawScores", m.NumFeatures, cols, 1)
	}

	out := mat.NewDense(rows, m.numOutputs(), nil)
	features := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(features, i, X)
		out.SetRow(i, m.RawSingle(features, -1))
	}
	return out, nil
}

// Predict returns transformed predictions for a batch: the positive-class
// probability column for binary models, per-class probability rows for
// multiclass.
func (m *Model) Predict(X mat.Matrix) (mat.Matrix, error) {
	rows, cols := X.Dims()
	if cols != m.NumFeatures {
		return nil, errors.NewDimensionError("Model.Predict", m.NumFeatures, cols, 1)
	}

	out := mat.NewDense(rows, m.numOutputs(), nil)
	features := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(features, i, X)
		out.SetRow(i, m.PredictSingle(features, -1))
	}
	return out, nil
}

// GetFeatureImportance aggregates per-feature importance over all trees.
// "split" counts how often a feature is used; "gain" sums its split gains.
// Scores are normalized to sum to one when any split exists.
func (m *Model) GetFeatureImportance(importanceType string) []float64 {
	importance := make([]float64, m.NumFeatures)
	for _, tree := range m.Trees {
		for _, node := range tree.Nodes {
			if node.IsLeaf() {
				continue
			}
			switch importanceType {
			case "split":
				importance[node.SplitFeature]++
			case "gain":
				importance[node.SplitFeature] += node.Gain
			}
		}
	}

	total := 0.0
	for _, v := range importance {
		total += v
	}
	if total > 0 {
		for i := range importance {
			importance[i] /= total
		}
	}
	return importance
}

// sigmoid evaluates the logistic function with overflow-safe exp.
func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + errors.StabilizeExp(-x))
}
