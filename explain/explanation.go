package explain

import (
	"math"
	"sort"
)

// FeatureImportance pairs a raw column with its attributed value.
type FeatureImportance struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

// GlobalExplanation summarizes the mean attribution magnitude per raw
// column over an evaluation subset. Features are ranked descending by
// value; RankIndex maps each ranked entry back to its position in the raw
// column order.
type GlobalExplanation struct {
	Features  []FeatureImportance `json:"features" yaml:"features"`
	RankIndex []int               `json:"rank_index" yaml:"rank_index"`
	BaseValue float64             `json:"base_value" yaml:"base_value"`
	Rows      int                 `json:"rows" yaml:"rows"`
}

// LocalExplanation carries signed per-column contributions for one sample
// toward one class. BaseValue plus the contribution values equals
// Prediction, the raw score of the explained class. Features are ranked
// descending by magnitude; RankIndex maps each ranked entry back to its
// position in the raw column order.
type LocalExplanation struct {
	Class      int                 `json:"class" yaml:"class"`
	Classes    []int               `json:"classes" yaml:"classes"`
	Features   []FeatureImportance `json:"features" yaml:"features"`
	RankIndex  []int               `json:"rank_index" yaml:"rank_index"`
	BaseValue  float64             `json:"base_value" yaml:"base_value"`
	Prediction float64             `json:"prediction" yaml:"prediction"`
}

// rankFeatures orders columns by descending attribution magnitude. The
// sort is stable, so equal magnitudes keep the raw column order, and the
// returned index slice maps rank positions back to original columns.
func rankFeatures(names []string, values []float64) ([]FeatureImportance, []int) {
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return math.Abs(values[order[a]]) > math.Abs(values[order[b]])
	})

	ranked := make([]FeatureImportance, len(names))
	for pos, i := range order {
		ranked[pos] = FeatureImportance{Name: names[i], Value: values[i]}
	}
	return ranked, order
}
