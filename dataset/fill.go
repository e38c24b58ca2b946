package dataset

import (
	"github.com/glassbox-ml/glassbox/pkg/errors"
	"github.com/glassbox-ml/glassbox/pkg/log"
)

// FillForward returns a copy of the table where missing cells in the named
// columns take the most recent earlier value in the same column. Leading
// missing cells stay missing. With no names, every column is filled.
// Unknown names are configuration errors.
func (t *Table) FillForward(cols ...string) (*Table, error) {
	return t.fill("FillForward", cols, forward)
}

// FillBackward is the mirror of FillForward: missing cells take the next
// later value; trailing missing cells stay missing.
func (t *Table) FillBackward(cols ...string) (*Table, error) {
	return t.fill("FillBackward", cols, backward)
}

type fillDirection int

const (
	forward fillDirection = iota
	backward
)

func (t *Table) fill(op string, names []string, dir fillDirection) (*Table, error) {
	target := make(map[string]bool, len(names))
	for _, name := range names {
		if !t.HasColumn(name) {
			return nil, errors.NewValidationError("column", "column not found in table", name)
		}
		target[name] = true
	}
	all := len(names) == 0

	filled := 0
	cols := make([]Column, len(t.cols))
	for i, c := range t.cols {
		out := c.clone()
		if all || target[c.Name] {
			filled += fillColumn(&out, dir)
		}
		cols[i] = out
	}

	if filled > 0 {
		log.GetLoggerWithName("dataset").Debug("missing cells filled",
			log.OperationKey, op,
			log.MissingKey, filled,
		)
	}

	return &Table{cols: cols, nrows: t.nrows}, nil
}

// fillColumn fills one column in place and returns the number of cells filled.
func fillColumn(c *Column, dir fillDirection) int {
	n := c.length()
	filled := 0

	idx := func(i int) int {
		if dir == forward {
			return i
		}
		return n - 1 - i
	}

	haveLast := false
	var lastFloat float64
	var lastStr string

	for i := 0; i < n; i++ {
		j := idx(i)
		if !c.Missing[j] {
			haveLast = true
			if c.Kind == Numeric {
				lastFloat = c.Float[j]
			} else {
				lastStr = c.Str[j]
			}
			continue
		}
		if !haveLast {
			continue
		}
		if c.Kind == Numeric {
			c.Float[j] = lastFloat
		} else {
			c.Str[j] = lastStr
		}
		c.Missing[j] = false
		filled++
	}

	return filled
}
