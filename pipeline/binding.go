// Package pipeline declares and fits column transformation bindings: the
// mapping from raw table columns to the engineered matrix a model consumes,
// together with the bookkeeping needed to fold engineered columns back onto
// their raw sources for explanation.
//
// A binding assigns a group of raw columns an ordered sequence of steps
// (impute, scale, one-hot). Every raw feature column must appear in exactly
// one binding; this is validated before any fitting happens.
package pipeline

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/glassbox-ml/glassbox/pkg/errors"
)

// StepKind tags the transformation variant a step applies.
type StepKind int

const (
	// StepImpute fills missing cells (numeric: median/mean; categorical:
	// constant/most_frequent).
	StepImpute StepKind = iota
	// StepScale rescales numeric columns (standard/minmax).
	StepScale
	// StepOneHot expands a column into indicator columns, one per category
	// learned at fit time.
	StepOneHot
)

// String returns the serialized kind name.
func (k StepKind) String() string {
	switch k {
	case StepImpute:
		return "impute"
	case StepScale:
		return "scale"
	case StepOneHot:
		return "onehot"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler (JSON uses this).
func (k StepKind) MarshalText() ([]byte, error) {
	switch k {
	case StepImpute, StepScale, StepOneHot:
		return []byte(k.String()), nil
	default:
		return nil, errors.NewValueError("StepKind.MarshalText", fmt.Sprintf("unknown step kind %d", int(k)))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *StepKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "impute":
		*k = StepImpute
	case "scale":
		*k = StepScale
	case "onehot":
		*k = StepOneHot
	default:
		return errors.NewValidationError("kind", "unknown step kind", string(text))
	}
	return nil
}

// MarshalYAML serializes the kind as its string name.
func (k StepKind) MarshalYAML() (interface{}, error) {
	b, err := k.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// UnmarshalYAML parses the string form.
func (k *StepKind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return errors.Wrap(err, "glassbox: decoding step kind")
	}
	return k.UnmarshalText([]byte(s))
}

// StepSpec is one tagged transformation step. Strategy, FillValue and Drop
// are only meaningful for the kinds that use them; Validate rejects stray
// fields before anything is fitted.
type StepSpec struct {
	Kind StepKind `yaml:"kind" json:"kind"`

	// Strategy selects the variant within a kind.
	// Impute: "median" (numeric default), "mean", "constant" (categorical
	// default), "most_frequent". Scale: "standard" (default), "minmax".
	Strategy string `yaml:"strategy,omitempty" json:"strategy,omitempty"`

	// FillValue is the sentinel for impute strategy "constant"
	// (default "missing").
	FillValue string `yaml:"fill_value,omitempty" json:"fill_value,omitempty"`

	// Drop is the one-hot reference-level policy: "" keeps every category,
	// "first" drops the first category of the fitted vocabulary.
	Drop string `yaml:"drop,omitempty" json:"drop,omitempty"`
}

// Impute builds an impute step with the given strategy ("" for the
// column-kind default).
func Impute(strategy string) StepSpec {
	return StepSpec{Kind: StepImpute, Strategy: strategy}
}

// ImputeConstant builds a constant-fill impute step for categorical columns.
func ImputeConstant(fill string) StepSpec {
	return StepSpec{Kind: StepImpute, Strategy: "constant", FillValue: fill}
}

// Scale builds a scale step ("standard" or "minmax"; "" means standard).
func Scale(strategy string) StepSpec {
	return StepSpec{Kind: StepScale, Strategy: strategy}
}

// OneHot builds a one-hot expansion step.
func OneHot() StepSpec {
	return StepSpec{Kind: StepOneHot}
}

// OneHotDropFirst builds a one-hot step that drops the first category as the
// reference level. On a single-category column this produces zero engineered
// columns, which folds to zero importance rather than an error.
func OneHotDropFirst() StepSpec {
	return StepSpec{Kind: StepOneHot, Drop: "first"}
}

// Binding assigns an ordered step sequence to a group of raw columns.
type Binding struct {
	Name    string     `yaml:"name" json:"name"`
	Columns []string   `yaml:"columns" json:"columns"`
	Steps   []StepSpec `yaml:"steps" json:"steps"`
}
