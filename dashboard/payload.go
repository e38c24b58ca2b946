// Package dashboard emits the artifacts an external explanation dashboard
// consumes: a payload bundling explanations with evaluation metrics, a
// ranked importance chart, and a plain-text report. The dashboard itself
// lives elsewhere; this package only fixes the data contract.
package dashboard

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glassbox-ml/glassbox/explain"
	"github.com/glassbox-ml/glassbox/pkg/errors"
)

// ModelInfo identifies the trained model a payload describes.
type ModelInfo struct {
	Name               string                 `json:"name" yaml:"name"`
	Kind               string                 `json:"kind" yaml:"kind"`
	Classes            []int                  `json:"classes" yaml:"classes"`
	RawFeatures        int                    `json:"raw_features" yaml:"raw_features"`
	EngineeredFeatures int                    `json:"engineered_features" yaml:"engineered_features"`
	Params             map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
}

// Payload is the complete data contract for one trained flow: model
// identity, global and per-instance explanations, evaluation metrics and
// the evaluated rows they refer to.
type Payload struct {
	GeneratedAt time.Time                   `json:"generated_at" yaml:"generated_at"`
	Model       ModelInfo                   `json:"model" yaml:"model"`
	Global      *explain.GlobalExplanation  `json:"global,omitempty" yaml:"global,omitempty"`
	Locals      []*explain.LocalExplanation `json:"locals,omitempty" yaml:"locals,omitempty"`
	Metrics     map[string]float64          `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	ColumnNames []string                    `json:"column_names,omitempty" yaml:"column_names,omitempty"`
	EvalRows    [][]float64                 `json:"eval_rows,omitempty" yaml:"eval_rows,omitempty"`
}

// NewPayload starts a payload for the given model, stamped with the
// current UTC time.
func NewPayload(model ModelInfo) *Payload {
	return &Payload{GeneratedAt: time.Now().UTC(), Model: model}
}

// WriteJSON encodes the payload as indented JSON.
func (p *Payload) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return errors.Wrap(err, "glassbox: encoding dashboard payload")
	}
	return nil
}

// WriteYAML encodes the payload as YAML.
func (p *Payload) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(p); err != nil {
		enc.Close()
		return errors.Wrap(err, "glassbox: encoding dashboard payload")
	}
	return errors.Wrap(enc.Close(), "glassbox: encoding dashboard payload")
}

// SaveFile writes the payload to path, picking the encoding from the
// extension: ".yaml" and ".yml" produce YAML, everything else JSON.
func (p *Payload) SaveFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "glassbox: creating payload file")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "glassbox: closing payload file")
		}
	}()

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return p.WriteYAML(f)
	default:
		return p.WriteJSON(f)
	}
}
