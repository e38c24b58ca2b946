package pipeline

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/glassbox-ml/glassbox/core/model"
	"github.com/glassbox-ml/glassbox/pkg/errors"
)

// OneHotEncoder expands a categorical column into indicator columns, one per
// category of the vocabulary learned at fit time. The vocabulary is sorted
// lexicographically so the engineered layout is deterministic regardless of
// row order. Categories unseen at fit time encode as an all-zeros row.
type OneHotEncoder struct {
	model.BaseEstimator

	// Categories is the fitted vocabulary in lexicographic order.
	Categories []string
	// DropFirst drops the first vocabulary entry as the reference level.
	DropFirst bool

	index map[string]int
}

// NewOneHotEncoder creates an unfitted encoder.
func NewOneHotEncoder(dropFirst bool) *OneHotEncoder {
	return &OneHotEncoder{DropFirst: dropFirst}
}

// FitStrings learns the vocabulary from the given cell values.
func (e *OneHotEncoder) FitStrings(values []string) error {
	if len(values) == 0 {
		return errors.NewValueError("OneHotEncoder.FitStrings", "cannot fit on an empty column")
	}
	uniq := make(map[string]bool, len(values))
	for _, v := range values {
		uniq[v] = true
	}
	cats := make([]string, 0, len(uniq))
	for v := range uniq {
		cats = append(cats, v)
	}
	sort.Strings(cats)

	e.Categories = cats
	e.index = make(map[string]int, len(cats))
	for i, v := range cats {
		e.index[v] = i
	}
	e.SetFitted()
	return nil
}

// Width returns the number of engineered columns the encoder produces.
// With DropFirst on a single-category column this is zero; the column then
// contributes nothing to the engineered matrix and folds to zero importance.
func (e *OneHotEncoder) Width() int {
	w := len(e.Categories)
	if e.DropFirst && w > 0 {
		w--
	}
	return w
}

// TransformStrings encodes values into an n×Width indicator matrix. When
// Width is zero it returns (nil, nil) and the caller skips the column.
func (e *OneHotEncoder) TransformStrings(values []string) (*mat.Dense, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("OneHotEncoder", "TransformStrings")
	}
	w := e.Width()
	if w == 0 {
		return nil, nil
	}
	out := mat.NewDense(len(values), w, nil)
	offset := 0
	if e.DropFirst {
		offset = 1
	}
	for i, v := range values {
		j, ok := e.index[v]
		if !ok {
			continue // unseen category: all zeros
		}
		j -= offset
		if j < 0 {
			continue // dropped reference level: all zeros
		}
		out.Set(i, j, 1.0)
	}
	return out, nil
}

// FeatureNames returns the engineered column names for the given raw column,
// in engineered order ("embarked=C", "embarked=Q", ...).
func (e *OneHotEncoder) FeatureNames(column string) []string {
	w := e.Width()
	names := make([]string, 0, w)
	start := 0
	if e.DropFirst {
		start = 1
	}
	for _, cat := range e.Categories[start:] {
		names = append(names, fmt.Sprintf("%s=%s", column, cat))
	}
	return names
}
