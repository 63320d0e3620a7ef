// Package table provides the tabular data model: canonical CSV
// serialization, content hashing, streaming row access, and the schema
// probe.
package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"refinery/internal/domain"
)

// Table is a fully materialized tabular dataset. Cells are strings; the
// empty string is the null marker. Small datasets and previews are handled
// materialized; full execution streams rows instead (see RowReader).
type Table struct {
	Header []string
	Rows   [][]string
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.Rows) }

// NumColumns returns the column count.
func (t *Table) NumColumns() int { return len(t.Header) }

// ColumnIndex returns the index of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Decode parses canonical CSV bytes into a Table. Every record must have
// the same width as the header.
func Decode(data []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.ReuseRecord = false

	header, err := r.Read()
	if err == io.EOF {
		return nil, domain.ErrValidation("dataset has no header row")
	}
	if err != nil {
		return nil, domain.ErrValidation("parse csv header: %v", err)
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, domain.ErrValidation("parse csv row %d: %v", len(rows)+2, err)
		}
		rows = append(rows, rec)
	}
	return &Table{Header: header, Rows: rows}, nil
}

// Encode serializes a Table to canonical CSV bytes: RFC 4180, minimal
// quoting, "\n" terminators, header row always present. Identical logical
// content always encodes to identical bytes, which is what makes content
// hashing a valid dedup key.
func Encode(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return nil, fmt.Errorf("encode row %d: width %d != header width %d", i, len(row), len(t.Header))
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Canonicalize re-encodes arbitrary CSV input into canonical bytes,
// normalizing line endings and quoting so uploads of logically identical
// content deduplicate.
func Canonicalize(data []byte) ([]byte, error) {
	t, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Encode(t)
}

// FormatFloat renders a float64 cell value canonically.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
