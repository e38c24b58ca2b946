package boosting

import (
	"encoding/json"
	"os"

	"github.com/glassbox-ml/glassbox/pkg/errors"
)

// SaveJSON writes the model to path as indented JSON.
func (m *Model) SaveJSON(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "glassbox: encoding model")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "glassbox: writing model file")
	}
	return nil
}

// LoadModelJSON reads a model saved by SaveJSON and validates its
// structure before returning it.
func LoadModelJSON(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "glassbox: reading model file")
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "glassbox: decoding model")
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// validate checks structural invariants of a deserialized model.
func (m *Model) validate() error {
	switch m.Objective {
	case BinaryLogistic, MulticlassSoftmax:
	default:
		return errors.NewValidationError("objective",
			"unknown objective", string(m.Objective))
	}
	if m.NumFeatures <= 0 {
		return errors.NewValidationError("num_features",
			"model must record its feature count", m.NumFeatures)
	}
	if len(m.InitScores) != m.numOutputs() {
		return errors.NewValidationError("init_scores",
			"init score count must match model outputs", len(m.InitScores))
	}

	for ti := range m.Trees {
		tree := &m.Trees[ti]
		for ni := range tree.Nodes {
			node := &tree.Nodes[ni]
			if node.IsLeaf() {
				continue
			}
			if node.LeftChild < 0 || node.LeftChild >= len(tree.Nodes) ||
				node.RightChild < 0 || node.RightChild >= len(tree.Nodes) {
				return errors.NewValidationError("trees",
					"node child index out of range", tree.TreeIndex)
			}
			if node.SplitFeature < 0 || node.SplitFeature >= m.NumFeatures {
				return errors.NewValidationError("trees",
					"split feature index out of range", node.SplitFeature)
			}
		}
	}
	return nil
}
