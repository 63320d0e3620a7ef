package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"refinery/internal/domain"
)

// RowReader streams records from canonical CSV without materializing the
// whole table, so full-mode execution keeps peak memory proportional to
// the chunk size rather than the dataset size.
type RowReader struct {
	header []string
	r      *csv.Reader
	row    int
}

// NewRowReader reads and validates the header, leaving the reader
// positioned at the first data row.
func NewRowReader(src io.Reader) (*RowReader, error) {
	cr := csv.NewReader(src)
	cr.ReuseRecord = false
	header, err := cr.Read()
	if err == io.EOF {
		return nil, domain.ErrValidation("dataset has no header row")
	}
	if err != nil {
		return nil, domain.ErrValidation("parse csv header: %v", err)
	}
	return &RowReader{header: header, r: cr}, nil
}

// NewRowReaderBytes is a convenience wrapper over a byte slice.
func NewRowReaderBytes(data []byte) (*RowReader, error) {
	return NewRowReader(bytes.NewReader(data))
}

// Header returns the column names.
func (rr *RowReader) Header() []string { return rr.header }

// Next returns the next record, or io.EOF when the input is exhausted.
func (rr *RowReader) Next() ([]string, error) {
	rec, err := rr.r.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("read csv row %d: %w", rr.row+2, err)
	}
	rr.row++
	return rec, nil
}

// NextChunk returns up to n records. A short (possibly empty) chunk with
// io.EOF signals the end of input.
func (rr *RowReader) NextChunk(n int) ([][]string, error) {
	chunk := make([][]string, 0, n)
	for len(chunk) < n {
		rec, err := rr.Next()
		if err == io.EOF {
			return chunk, io.EOF
		}
		if err != nil {
			return nil, err
		}
		chunk = append(chunk, rec)
	}
	return chunk, nil
}

// ChunkWriter incrementally writes canonical CSV rows and finishes with
// the encoded bytes. It is the streaming counterpart of Encode.
type ChunkWriter struct {
	buf bytes.Buffer
	w   *csv.Writer
	n   int64
}

// NewChunkWriter writes the header immediately.
func NewChunkWriter(header []string) (*ChunkWriter, error) {
	cw := &ChunkWriter{}
	cw.w = csv.NewWriter(&cw.buf)
	if err := cw.w.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return cw, nil
}

// WriteRow appends one record.
func (cw *ChunkWriter) WriteRow(row []string) error {
	if err := cw.w.Write(row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	cw.n++
	return nil
}

// RowsWritten returns the number of data rows written so far.
func (cw *ChunkWriter) RowsWritten() int64 { return cw.n }

// Bytes flushes and returns the canonical CSV bytes.
func (cw *ChunkWriter) Bytes() ([]byte, error) {
	cw.w.Flush()
	if err := cw.w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return cw.buf.Bytes(), nil
}
