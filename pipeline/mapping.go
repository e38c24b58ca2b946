package pipeline

import (
	"fmt"

	"github.com/glassbox-ml/glassbox/pkg/errors"
)

// RawFeature records the half-open span [Start, End) of engineered columns
// that one raw column produced. A zero-width span (Start == End) is legal:
// the column contributed nothing to the engineered matrix and folds to zero.
type RawFeature struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Width returns the number of engineered columns in the span.
func (r RawFeature) Width() int { return r.End - r.Start }

// FeatureMapping is the fitted correspondence between raw table columns and
// engineered matrix columns. Raw features are listed in the column order of
// the table the transformer was fitted on, so folded vectors stay parallel
// to that order.
type FeatureMapping struct {
	raw             []RawFeature
	engineeredNames []string
}

// NumRaw returns the number of raw columns.
func (m *FeatureMapping) NumRaw() int { return len(m.raw) }

// NumEngineered returns the total engineered width.
func (m *FeatureMapping) NumEngineered() int { return len(m.engineeredNames) }

// RawNames returns the raw column names in mapping order.
func (m *FeatureMapping) RawNames() []string {
	names := make([]string, len(m.raw))
	for i, r := range m.raw {
		names[i] = r.Name
	}
	return names
}

// EngineeredNames returns the engineered column names in matrix order
// (scaled numerics keep their raw name, one-hot columns are "col=category").
func (m *FeatureMapping) EngineeredNames() []string {
	out := make([]string, len(m.engineeredNames))
	copy(out, m.engineeredNames)
	return out
}

// Raw returns the span record for the i-th raw column.
func (m *FeatureMapping) Raw(i int) RawFeature { return m.raw[i] }

// Span returns the span for a raw column by name.
func (m *FeatureMapping) Span(name string) (RawFeature, bool) {
	for _, r := range m.raw {
		if r.Name == name {
			return r, true
		}
	}
	return RawFeature{}, false
}

// Fold sums an engineered-space vector back onto raw columns. Summation is
// the right aggregate for additive attributions: the per-column sums keep
// base + sum(folded) equal to base + sum(engineered). The result is parallel
// to RawNames; zero-width spans fold to zero.
func (m *FeatureMapping) Fold(engineered []float64) ([]float64, error) {
	if len(engineered) != m.NumEngineered() {
		return nil, errors.NewDimensionError("FeatureMapping.Fold", m.NumEngineered(), len(engineered), 0)
	}
	out := make([]float64, len(m.raw))
	for i, r := range m.raw {
		sum := 0.0
		for j := r.Start; j < r.End; j++ {
			sum += engineered[j]
		}
		out[i] = sum
	}
	return out, nil
}

// FoldAbs sums absolute values over each span, for magnitude summaries where
// sign cancellation across indicator columns would hide a feature.
func (m *FeatureMapping) FoldAbs(engineered []float64) ([]float64, error) {
	if len(engineered) != m.NumEngineered() {
		return nil, errors.NewDimensionError("FeatureMapping.FoldAbs", m.NumEngineered(), len(engineered), 0)
	}
	out := make([]float64, len(m.raw))
	for i, r := range m.raw {
		sum := 0.0
		for j := r.Start; j < r.End; j++ {
			v := engineered[j]
			if v < 0 {
				v = -v
			}
			sum += v
		}
		out[i] = sum
	}
	return out, nil
}

func (m *FeatureMapping) String() string {
	return fmt.Sprintf("FeatureMapping(raw=%d, engineered=%d)", m.NumRaw(), m.NumEngineered())
}
