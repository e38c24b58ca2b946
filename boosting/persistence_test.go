package boosting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelSaveLoadJSON(t *testing.T) {
	X, y := makeBinaryBlobs(80)
	trainer := NewTrainer(TrainingParams{
		NumIterations: 5,
		NumLeaves:     7,
		MinDataInLeaf: 5,
		Objective:     BinaryLogistic,
	})
	require.NoError(t, trainer.Fit(X, y))
	original := trainer.GetModel()

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, original.SaveJSON(path))

	loaded, err := LoadModelJSON(path)
	require.NoError(t, err)
	assert.Equal(t, original.Objective, loaded.Objective)
	assert.Equal(t, original.NumFeatures, loaded.NumFeatures)
	assert.Len(t, loaded.Trees, len(original.Trees))

	for _, row := range [][]float64{{-2, -1}, {2, 1}, {0.3, -0.4}} {
		want := original.PredictSingle(row, -1)
		got := loaded.PredictSingle(row, -1)
		require.Len(t, got, len(want))
		assert.InDelta(t, want[0], got[0], 1e-12)
	}
}

func TestLoadModelJSONErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadModelJSON(filepath.Join(dir, "absent.json"))
		assert.Error(t, err)
	})

	t.Run("Malformed JSON", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.json")
		require.NoError(t, os.WriteFile(path, []byte("not a model"), 0o600))
		_, err := LoadModelJSON(path)
		assert.Error(t, err)
	})

	t.Run("Unknown objective", func(t *testing.T) {
		bad := &Model{
			Objective:   ObjectiveType("quantile"),
			NumFeatures: 2,
			InitScores:  []float64{0},
		}
		path := filepath.Join(dir, "bad_objective.json")
		require.NoError(t, bad.SaveJSON(path))
		_, err := LoadModelJSON(path)
		assert.Error(t, err)
	})

	t.Run("Child index out of range", func(t *testing.T) {
		tree := stumpTree(-1, 1, 0.5)
		tree.Nodes[0].RightChild = 99
		bad := &Model{
			Objective:   BinaryLogistic,
			NumClass:    2,
			NumFeatures: 1,
			InitScores:  []float64{0},
			Trees:       []Tree{tree},
		}
		path := filepath.Join(dir, "bad_tree.json")
		require.NoError(t, bad.SaveJSON(path))
		_, err := LoadModelJSON(path)
		assert.Error(t, err)
	})

	t.Run("Init score arity mismatch", func(t *testing.T) {
		bad := &Model{
			Objective:   MulticlassSoftmax,
			NumClass:    3,
			NumFeatures: 2,
			InitScores:  []float64{0},
		}
		path := filepath.Join(dir, "bad_init.json")
		require.NoError(t, bad.SaveJSON(path))
		_, err := LoadModelJSON(path)
		assert.Error(t, err)
	})
}
