package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the CLI with the given arguments and returns the
// report written to the root command's writer.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	root := newRootCommand()
	root.Writer = &buf
	err := root.Run(context.Background(), append([]string{"glassbox"}, args...))
	return buf.String(), err
}

// payloadDoc mirrors the payload fields the tests assert on.
type payloadDoc struct {
	Model struct {
		Name               string `json:"name"`
		Kind               string `json:"kind"`
		Classes            []int  `json:"classes"`
		RawFeatures        int    `json:"raw_features"`
		EngineeredFeatures int    `json:"engineered_features"`
	} `json:"model"`
	Global *struct {
		Features []struct {
			Name  string  `json:"name"`
			Value float64 `json:"value"`
		} `json:"features"`
		RankIndex []int `json:"rank_index"`
		Rows      int   `json:"rows"`
	} `json:"global"`
	Locals []struct {
		Class   int   `json:"class"`
		Classes []int `json:"classes"`
	} `json:"locals"`
	Metrics map[string]float64 `json:"metrics"`
}

func decodePayload(t *testing.T, out string) payloadDoc {
	t.Helper()
	var doc payloadDoc
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	return doc
}

func TestTitanicCommand(t *testing.T) {
	dir := t.TempDir()
	payloadPath := filepath.Join(dir, "payload.json")
	plotPath := filepath.Join(dir, "importance.png")
	modelPath := filepath.Join(dir, "model.gob")

	out, err := runCommand(t,
		"--format", "json",
		"titanic",
		"--payload", payloadPath,
		"--plot", plotPath,
		"--model-out", modelPath,
	)
	require.NoError(t, err)

	doc := decodePayload(t, out)
	assert.Equal(t, "titanic-survival", doc.Model.Name)
	assert.Equal(t, "logistic_regression", doc.Model.Kind)
	assert.Equal(t, []int{0, 1}, doc.Model.Classes)
	assert.Equal(t, 7, doc.Model.RawFeatures)
	assert.Equal(t, 12, doc.Model.EngineeredFeatures)

	require.NotNil(t, doc.Global)
	assert.Len(t, doc.Global.Features, 7)
	assert.Len(t, doc.Global.RankIndex, 7)
	require.Len(t, doc.Locals, 1)
	assert.Contains(t, []int{0, 1}, doc.Locals[0].Class)
	assert.Contains(t, doc.Metrics, "accuracy")
	assert.Contains(t, doc.Metrics, "mae")

	for _, path := range []string{payloadPath, plotPath, modelPath} {
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.Positive(t, info.Size(), path)
	}
}

func TestTitanicTextReport(t *testing.T) {
	out, err := runCommand(t, "titanic")
	require.NoError(t, err)

	assert.Contains(t, out, "Feature importance (")
	assert.Contains(t, out, "accuracy:")
	assert.Contains(t, out, "Local explanation for class")
}

func TestTitanicCustomSpec(t *testing.T) {
	specPath := filepath.Join(t.TempDir(), "bindings.yaml")
	spec := `bindings:
  - name: numeric
    columns: [age, fare, sibsp, parch]
    steps:
      - kind: impute
        strategy: mean
      - kind: scale
        strategy: minmax
  - name: embarked
    columns: [embarked]
    steps:
      - kind: impute
        strategy: most_frequent
      - kind: onehot
  - name: sex
    columns: [sex]
    steps:
      - kind: onehot
        drop: first
  - name: pclass
    columns: [pclass]
    steps:
      - kind: onehot
        drop: first
`
	require.NoError(t, os.WriteFile(specPath, []byte(spec), 0o600))

	out, err := runCommand(t, "--format", "json", "titanic", "--spec", specPath)
	require.NoError(t, err)

	doc := decodePayload(t, out)
	assert.Equal(t, 7, doc.Model.RawFeatures)
	assert.Equal(t, 10, doc.Model.EngineeredFeatures)
}

func TestTitanicSpecMissingColumn(t *testing.T) {
	specPath := filepath.Join(t.TempDir(), "bindings.yaml")
	spec := `bindings:
  - name: numeric
    columns: [age, boarding_fee, sibsp, parch]
    steps:
      - kind: impute
        strategy: median
  - name: embarked
    columns: [embarked]
    steps:
      - kind: impute
        strategy: most_frequent
      - kind: onehot
  - name: sex
    columns: [sex]
    steps:
      - kind: onehot
  - name: pclass
    columns: [pclass]
    steps:
      - kind: onehot
`
	require.NoError(t, os.WriteFile(specPath, []byte(spec), 0o600))

	_, err := runCommand(t, "titanic", "--spec", specPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boarding_fee")
}

func TestBreastCancerCommand(t *testing.T) {
	dir := t.TempDir()
	payloadPath := filepath.Join(dir, "payload.yaml")
	modelPath := filepath.Join(dir, "model.json")

	out, err := runCommand(t,
		"--format", "json",
		"breastcancer",
		"--iterations", "15",
		"--payload", payloadPath,
		"--model-out", modelPath,
	)
	require.NoError(t, err)

	doc := decodePayload(t, out)
	assert.Equal(t, "breast-cancer-diagnosis", doc.Model.Name)
	assert.Equal(t, "gbdt", doc.Model.Kind)
	assert.Equal(t, 10, doc.Model.RawFeatures)
	assert.Equal(t, 10, doc.Model.EngineeredFeatures)

	require.NotNil(t, doc.Global)
	assert.Len(t, doc.Global.Features, 10)
	assert.Contains(t, doc.Metrics, "accuracy")

	for _, path := range []string{payloadPath, modelPath} {
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.Positive(t, info.Size(), path)
	}
}

func TestBreastCancerCrossValidation(t *testing.T) {
	out, err := runCommand(t,
		"--format", "json",
		"breastcancer",
		"--iterations", "10",
		"--cv", "3",
	)
	require.NoError(t, err)

	doc := decodePayload(t, out)
	assert.Contains(t, doc.Metrics, "cv_accuracy_mean")
	assert.Contains(t, doc.Metrics, "cv_accuracy_std")
}

func TestUnknownFormat(t *testing.T) {
	_, err := runCommand(t, "--format", "xml", "titanic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestRowOutOfRange(t *testing.T) {
	_, err := runCommand(t, "titanic", "--row", "99")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestLocalClassOutOfRange(t *testing.T) {
	_, err := runCommand(t, "titanic", "--class", "5")
	require.Error(t, err)
}
