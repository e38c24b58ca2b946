package pipeline

import (
	"fmt"
	"sort"

	"github.com/glassbox-ml/glassbox/pkg/errors"
)

// numericImputer fills missing numeric cells with a statistic learned at fit
// time. Imputation is always explicit: rows are filled, never dropped.
type numericImputer struct {
	Strategy string
	Fill     float64
}

// fitNumericImputer learns the fill value from the non-missing cells.
// An empty strategy defaults to "median".
func fitNumericImputer(strategy string, values []float64, missing []bool) (*numericImputer, error) {
	if strategy == "" {
		strategy = "median"
	}
	observed := make([]float64, 0, len(values))
	for i, v := range values {
		if missing != nil && missing[i] {
			continue
		}
		observed = append(observed, v)
	}
	if len(observed) == 0 {
		return nil, errors.NewValueError("pipeline.fitNumericImputer", "cannot impute a column with no observed values")
	}

	var fill float64
	switch strategy {
	case "median":
		sort.Float64s(observed)
		mid := len(observed) / 2
		if len(observed)%2 == 0 {
			fill = (observed[mid-1] + observed[mid]) / 2.0
		} else {
			fill = observed[mid]
		}
	case "mean":
		sum := 0.0
		for _, v := range observed {
			sum += v
		}
		fill = sum / float64(len(observed))
	default:
		return nil, errors.NewValidationError("strategy", "unknown numeric impute strategy", strategy)
	}
	return &numericImputer{Strategy: strategy, Fill: fill}, nil
}

// apply returns a copy of values with missing cells replaced by the fitted
// fill value.
func (im *numericImputer) apply(values []float64, missing []bool) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	if missing == nil {
		return out
	}
	for i, m := range missing {
		if m {
			out[i] = im.Fill
		}
	}
	return out
}

// categoricalImputer fills missing categorical cells with a constant sentinel
// or with the most frequent category of the training data.
type categoricalImputer struct {
	Strategy string
	Fill     string
}

// fitCategoricalImputer learns the fill category. An empty strategy defaults
// to "constant"; an empty fill value defaults to "missing". Ties under
// "most_frequent" resolve to the lexicographically smallest category so the
// result does not depend on row order.
func fitCategoricalImputer(strategy, fillValue string, values []string, missing []bool) (*categoricalImputer, error) {
	if strategy == "" {
		strategy = "constant"
	}
	switch strategy {
	case "constant":
		fill := fillValue
		if fill == "" {
			fill = "missing"
		}
		return &categoricalImputer{Strategy: strategy, Fill: fill}, nil
	case "most_frequent":
		counts := make(map[string]int)
		for i, v := range values {
			if missing != nil && missing[i] {
				continue
			}
			counts[v]++
		}
		if len(counts) == 0 {
			return nil, errors.NewValueError("pipeline.fitCategoricalImputer", "cannot impute a column with no observed values")
		}
		best := ""
		bestCount := -1
		for v, c := range counts {
			if c > bestCount || (c == bestCount && v < best) {
				best, bestCount = v, c
			}
		}
		return &categoricalImputer{Strategy: strategy, Fill: best}, nil
	default:
		return nil, errors.NewValidationError("strategy", "unknown categorical impute strategy", strategy)
	}
}

// apply returns a copy of values with missing cells replaced by the fitted
// fill category.
func (im *categoricalImputer) apply(values []string, missing []bool) []string {
	out := make([]string, len(values))
	copy(out, values)
	if missing == nil {
		return out
	}
	for i, m := range missing {
		if m {
			out[i] = im.Fill
		}
	}
	return out
}

func (im *numericImputer) String() string {
	return fmt.Sprintf("numericImputer(strategy=%s, fill=%g)", im.Strategy, im.Fill)
}

func (im *categoricalImputer) String() string {
	return fmt.Sprintf("categoricalImputer(strategy=%s, fill=%q)", im.Strategy, im.Fill)
}
