package table

import (
	"io"
	"strconv"
	"strings"

	"refinery/internal/domain"
)

// Probe inspects materialized dataset bytes and produces the structural
// and statistical summary validation runs against. It is a pure function:
// deterministic for identical input, no side effects, and it never keeps
// row data around.
func Probe(data []byte) (*domain.Schema, error) {
	rr, err := NewRowReaderBytes(data)
	if err != nil {
		return nil, err
	}
	return probeRows(rr)
}

// ProbeTable summarizes an already materialized table, used after preview
// execution where the result never round-trips through bytes.
func ProbeTable(t *Table) *domain.Schema {
	accs := newAccumulators(t.Header)
	for _, row := range t.Rows {
		observeRow(accs, row)
	}
	return summarize(accs, int64(len(t.Rows)))
}

func probeRows(rr *RowReader) (*domain.Schema, error) {
	accs := newAccumulators(rr.Header())
	var rows int64
	for {
		rec, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		observeRow(accs, rec)
		rows++
	}
	return summarize(accs, rows), nil
}

// columnAcc accumulates per-column statistics in a single streaming pass.
type columnAcc struct {
	name     string
	nulls    int64
	distinct map[string]struct{}
	// type inference: a column is the narrowest type every non-null cell
	// satisfies. int ⊂ float; bool and string stand alone.
	canInt   bool
	canFloat bool
	canBool  bool
	seen     int64
}

func newAccumulators(header []string) []*columnAcc {
	accs := make([]*columnAcc, len(header))
	for i, name := range header {
		accs[i] = &columnAcc{
			name:     name,
			distinct: make(map[string]struct{}),
			canInt:   true,
			canFloat: true,
			canBool:  true,
		}
	}
	return accs
}

func observeRow(accs []*columnAcc, row []string) {
	for i, acc := range accs {
		var cell string
		if i < len(row) {
			cell = row[i]
		}
		if cell == "" {
			acc.nulls++
			continue
		}
		acc.seen++
		acc.distinct[cell] = struct{}{}
		if acc.canInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				acc.canInt = false
			}
		}
		if acc.canFloat {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				acc.canFloat = false
			}
		}
		if acc.canBool && !isBoolCell(cell) {
			acc.canBool = false
		}
	}
}

func summarize(accs []*columnAcc, rows int64) *domain.Schema {
	schema := &domain.Schema{RowCount: rows, Columns: make([]domain.Column, len(accs))}
	for i, acc := range accs {
		col := domain.Column{Name: acc.name, Type: inferType(acc)}
		if rows > 0 {
			col.NullRatio = float64(acc.nulls) / float64(rows)
			col.DistinctRatio = float64(len(acc.distinct)) / float64(rows)
		}
		schema.Columns[i] = col
	}
	return schema
}

func inferType(acc *columnAcc) domain.ColumnType {
	if acc.seen == 0 {
		// All-null column: nothing to infer from.
		return domain.ColumnString
	}
	switch {
	case acc.canInt:
		return domain.ColumnInt
	case acc.canFloat:
		return domain.ColumnFloat
	case acc.canBool:
		return domain.ColumnBool
	default:
		return domain.ColumnString
	}
}

func isBoolCell(cell string) bool {
	switch strings.ToLower(cell) {
	case "true", "false":
		return true
	}
	return false
}

// ParseFloatCell parses a numeric cell in double precision.
func ParseFloatCell(cell string) (float64, bool) {
	v, err := strconv.ParseFloat(cell, 64)
	return v, err == nil
}
