// Package dataset provides tabular data ingestion for training and
// explanation flows: CSV parsing with per-column type inference, remote
// fetching, bundled reference samples, missing-value fills, and seeded
// train/test splitting.
//
// A Table is a value object. Operations that change data (fills, splits,
// column selection) return a new Table and leave the receiver untouched.
package dataset

import (
	"sort"

	"github.com/glassbox-ml/glassbox/pkg/errors"
)

// ColumnKind classifies a table column.
type ColumnKind int

const (
	// Numeric columns hold float64 values.
	Numeric ColumnKind = iota
	// Categorical columns hold string values.
	Categorical
)

// String returns the lowercase kind name used in logs and error messages.
func (k ColumnKind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Column is a single named column. Numeric columns populate Float,
// categorical columns populate Str. Missing marks cells that were empty or
// unparseable at ingestion; missing numeric cells hold NaN in Float.
type Column struct {
	Name    string
	Kind    ColumnKind
	Float   []float64
	Str     []string
	Missing []bool
}

// NewNumericColumn builds a numeric column. A nil missing slice means no
// missing cells.
func NewNumericColumn(name string, values []float64, missing []bool) Column {
	if missing == nil {
		missing = make([]bool, len(values))
	}
	return Column{Name: name, Kind: Numeric, Float: values, Missing: missing}
}

// NewCategoricalColumn builds a categorical column. A nil missing slice means
// no missing cells.
func NewCategoricalColumn(name string, values []string, missing []bool) Column {
	if missing == nil {
		missing = make([]bool, len(values))
	}
	return Column{Name: name, Kind: Categorical, Str: values, Missing: missing}
}

func (c Column) length() int {
	if c.Kind == Numeric {
		return len(c.Float)
	}
	return len(c.Str)
}

// clone deep-copies the column's payload slices.
func (c Column) clone() Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	if c.Float != nil {
		out.Float = append([]float64(nil), c.Float...)
	}
	if c.Str != nil {
		out.Str = append([]string(nil), c.Str...)
	}
	if c.Missing != nil {
		out.Missing = append([]bool(nil), c.Missing...)
	}
	return out
}

// Table is an immutable collection of equally sized named columns.
type Table struct {
	cols  []Column
	nrows int
}

// NewTable validates and assembles columns into a table. Columns must be
// non-empty, equally sized, and uniquely named.
func NewTable(cols ...Column) (*Table, error) {
	if len(cols) == 0 {
		return nil, errors.NewValueError("NewTable", "table needs at least one column")
	}

	n := cols[0].length()
	if n == 0 {
		return nil, errors.NewModelError("NewTable", "empty column", errors.ErrEmptyData)
	}

	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		if c.Name == "" {
			return nil, errors.NewValueError("NewTable", "column name must not be empty")
		}
		if _, dup := seen[c.Name]; dup {
			return nil, errors.NewValidationError("column", "duplicate column name", c.Name)
		}
		seen[c.Name] = struct{}{}

		if c.length() != n {
			return nil, errors.NewDimensionError("NewTable", n, c.length(), 0)
		}
		if len(c.Missing) != n {
			return nil, errors.NewDimensionError("NewTable", n, len(c.Missing), 0)
		}
	}

	owned := make([]Column, len(cols))
	for i, c := range cols {
		owned[i] = c.clone()
	}

	return &Table{cols: owned, nrows: n}, nil
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.nrows }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.cols) }

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether a column with the given name exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Column returns the named column. The returned struct shares payload slices
// with the table; callers must not mutate them.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.cols {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Columns returns the columns in table order, sharing payload slices with
// the table.
func (t *Table) Columns() []Column {
	return append([]Column(nil), t.cols...)
}

// Select returns a new table restricted to the named columns, in the order
// given. Unknown names are configuration errors.
func (t *Table) Select(names ...string) (*Table, error) {
	if len(names) == 0 {
		return nil, errors.NewValueError("Table.Select", "no columns selected")
	}

	cols := make([]Column, 0, len(names))
	for _, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, errors.NewValidationError("column", "column not found in table", name)
		}
		cols = append(cols, c)
	}

	return NewTable(cols...)
}

// Drop returns a new table without the named columns. Unknown names are
// configuration errors.
func (t *Table) Drop(names ...string) (*Table, error) {
	dropped := make(map[string]bool, len(names))
	for _, name := range names {
		if !t.HasColumn(name) {
			return nil, errors.NewValidationError("column", "column not found in table", name)
		}
		dropped[name] = true
	}

	cols := make([]Column, 0, len(t.cols))
	for _, c := range t.cols {
		if !dropped[c.Name] {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return nil, errors.NewValueError("Table.Drop", "dropping all columns leaves an empty table")
	}

	return NewTable(cols...)
}

// Features splits off the label column and returns the remaining feature
// table together with the label vector. The label column never appears in the
// feature set. Numeric labels are returned as-is; categorical labels are
// encoded as the index of the class in lexicographic order. Missing label
// cells are configuration errors.
func (t *Table) Features(label string) (*Table, []float64, error) {
	labelCol, ok := t.Column(label)
	if !ok {
		return nil, nil, errors.NewValidationError("label", "label column not found in table", label)
	}

	for i := 0; i < t.nrows; i++ {
		if labelCol.Missing[i] {
			return nil, nil, errors.NewValidationError("label", "label column contains missing values", label)
		}
	}

	y := make([]float64, t.nrows)
	switch labelCol.Kind {
	case Numeric:
		copy(y, labelCol.Float)
	case Categorical:
		classes := uniqueSorted(labelCol.Str)
		index := make(map[string]int, len(classes))
		for i, cls := range classes {
			index[cls] = i
		}
		for i, v := range labelCol.Str {
			y[i] = float64(index[v])
		}
	}

	features, err := t.Drop(label)
	if err != nil {
		return nil, nil, err
	}

	return features, y, nil
}

// LabelClasses returns the lexicographically ordered class names of a
// categorical label column, matching the encoding used by Features. Numeric
// label columns return nil.
func (t *Table) LabelClasses(label string) ([]string, error) {
	labelCol, ok := t.Column(label)
	if !ok {
		return nil, errors.NewValidationError("label", "label column not found in table", label)
	}
	if labelCol.Kind != Categorical {
		return nil, nil
	}
	return uniqueSorted(labelCol.Str), nil
}

// subset returns a new table containing the given rows in the given order.
func (t *Table) subset(rows []int) *Table {
	cols := make([]Column, len(t.cols))
	for ci, c := range t.cols {
		out := Column{Name: c.Name, Kind: c.Kind, Missing: make([]bool, len(rows))}
		if c.Kind == Numeric {
			out.Float = make([]float64, len(rows))
			for i, r := range rows {
				out.Float[i] = c.Float[r]
				out.Missing[i] = c.Missing[r]
			}
		} else {
			out.Str = make([]string, len(rows))
			for i, r := range rows {
				out.Str[i] = c.Str[r]
				out.Missing[i] = c.Missing[r]
			}
		}
		cols[ci] = out
	}
	return &Table{cols: cols, nrows: len(rows)}
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
