package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/glassbox-ml/glassbox/pkg/errors"
	"github.com/glassbox-ml/glassbox/pkg/log"
)

// defaultNumericThreshold is the share of non-empty cells that must parse as
// float for a column to be inferred numeric.
const defaultNumericThreshold = 0.8

type parseOptions struct {
	comma            rune
	numericThreshold float64
}

// ParseOption adjusts CSV parsing behavior.
type ParseOption func(*parseOptions)

// WithComma sets the field delimiter. The default is ','.
func WithComma(c rune) ParseOption {
	return func(o *parseOptions) { o.comma = c }
}

// WithNumericThreshold overrides the numeric type-inference threshold in
// (0, 1]. The default is 0.8.
func WithNumericThreshold(th float64) ParseOption {
	return func(o *parseOptions) { o.numericThreshold = th }
}

// ParseCSV reads a table from CSV data. The first record is a mandatory
// header row. Column types are inferred: a column is Numeric when at least
// the threshold share of its non-empty cells parses as float64, otherwise
// Categorical. Empty cells become missing values; unparseable cells in a
// numeric column are converted to missing with a DataConversionWarning
// rather than silently dropped.
func ParseCSV(r io.Reader, opts ...ParseOption) (*Table, error) {
	cfg := parseOptions{comma: ',', numericThreshold: defaultNumericThreshold}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.numericThreshold <= 0 || cfg.numericThreshold > 1 {
		return nil, errors.NewValidationError("numeric_threshold", "must be in (0, 1]", cfg.numericThreshold)
	}

	reader := csv.NewReader(r)
	reader.Comma = cfg.comma
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "glassbox: reading CSV")
	}
	if len(records) == 0 {
		return nil, errors.NewValueError("ParseCSV", "missing header row")
	}

	header := records[0]
	rows := records[1:]
	if len(rows) == 0 {
		return nil, errors.NewModelError("ParseCSV", "no data rows", errors.ErrEmptyData)
	}

	cols := make([]Column, len(header))
	for j, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.NewValueError("ParseCSV", fmt.Sprintf("empty column name at position %d", j))
		}
		cols[j] = inferColumn(name, rows, j, cfg.numericThreshold)
	}

	table, err := NewTable(cols...)
	if err != nil {
		return nil, err
	}

	log.GetLoggerWithName("dataset").Debug("CSV parsed",
		log.SamplesKey, table.NumRows(),
		log.FeaturesKey, table.NumCols(),
	)

	return table, nil
}

// inferColumn types and materializes column j of the raw records.
func inferColumn(name string, rows [][]string, j int, threshold float64) Column {
	n := len(rows)

	nonEmpty := 0
	parsable := 0
	for i := 0; i < n; i++ {
		cell := strings.TrimSpace(rows[i][j])
		if cell == "" {
			continue
		}
		nonEmpty++
		if _, err := strconv.ParseFloat(cell, 64); err == nil {
			parsable++
		}
	}

	numeric := nonEmpty > 0 && float64(parsable)/float64(nonEmpty) >= threshold

	missing := make([]bool, n)
	if !numeric {
		values := make([]string, n)
		for i := 0; i < n; i++ {
			cell := strings.TrimSpace(rows[i][j])
			if cell == "" {
				missing[i] = true
				continue
			}
			values[i] = cell
		}
		return Column{Name: name, Kind: Categorical, Str: values, Missing: missing}
	}

	values := make([]float64, n)
	converted := 0
	for i := 0; i < n; i++ {
		cell := strings.TrimSpace(rows[i][j])
		if cell == "" {
			values[i] = math.NaN()
			missing[i] = true
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			values[i] = math.NaN()
			missing[i] = true
			converted++
			continue
		}
		values[i] = v
	}

	if converted > 0 {
		errors.Warn(errors.NewDataConversionWarning("string", "float64",
			fmt.Sprintf("column %q: %d unparseable cells treated as missing", name, converted)))
	}

	return Column{Name: name, Kind: Numeric, Float: values, Missing: missing}
}
