// Package transform implements the transformation executor: it runs a
// validated step sequence against dataset bytes, either on a bounded
// deterministic sample (preview) or on the full dataset (chunked,
// row-at-a-time).
package transform

import (
	"context"
	"fmt"

	"refinery/internal/domain"
	"refinery/internal/table"
	"refinery/internal/validate"
)

// Mode selects preview or full execution.
type Mode string

// Execution modes.
const (
	ModePreview Mode = "preview"
	ModeFull    Mode = "full"
)

// Defaults fixed here rather than guessed per call site; both are
// configurable through the executor options.
const (
	DefaultSampleRows = 1000
	DefaultSampleSeed = 42
	DefaultChunkRows  = 4096
)

// StepDiagnostic reports what a single step did during execution.
type StepDiagnostic struct {
	StepIndex  int             `json:"step_index"`
	Kind       domain.StepKind `json:"kind"`
	RowsIn     int64           `json:"rows_in"`
	RowsOut    int64           `json:"rows_out"`
	ColumnsIn  int             `json:"columns_in"`
	ColumnsOut int             `json:"columns_out"`
	Note       string          `json:"note,omitempty"`
}

// Result is the outcome of an execution. Full mode populates Bytes with
// the canonical result; preview mode populates the before/after samples
// instead and leaves Bytes nil.
type Result struct {
	Bytes        []byte
	RowsBefore   int64
	RowsAfter    int64
	Schema       *domain.Schema
	Report       *domain.ValidationReport
	Diagnostics  []StepDiagnostic
	SampleBefore *table.Table
	SampleAfter  *table.Table
}

// Executor executes step sequences. It always re-validates internally
// before touching any data: a validation report computed earlier cannot be
// trusted because the schema may have drifted since.
type Executor struct {
	validator  *validate.Engine
	sampleRows int
	sampleSeed int64
	chunkRows  int
}

// Option configures an Executor.
type Option func(*Executor)

// WithSample overrides the preview sample size and seed.
func WithSample(rows int, seed int64) Option {
	return func(e *Executor) {
		if rows > 0 {
			e.sampleRows = rows
		}
		e.sampleSeed = seed
	}
}

// WithChunkRows overrides the full-mode chunk size.
func WithChunkRows(rows int) Option {
	return func(e *Executor) {
		if rows > 0 {
			e.chunkRows = rows
		}
	}
}

// NewExecutor creates an executor backed by the given validation engine.
func NewExecutor(validator *validate.Engine, opts ...Option) *Executor {
	e := &Executor{
		validator:  validator,
		sampleRows: DefaultSampleRows,
		sampleSeed: DefaultSampleSeed,
		chunkRows:  DefaultChunkRows,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the steps against source bytes. On validation rejection it
// returns *domain.ValidationRejectedError and produces no output; on
// execution failure it returns *domain.ExecutionError and produces no
// partial output. Steps execute strictly in order; each step's output
// schema is the next step's input schema.
func (e *Executor) Execute(ctx context.Context, source []byte, steps []domain.Step, mode Mode) (*Result, error) {
	schema, err := table.Probe(source)
	if err != nil {
		return nil, err
	}

	report := e.validator.Validate(schema, steps)
	if report.Rejected() {
		return nil, &domain.ValidationRejectedError{Report: report}
	}

	switch mode {
	case ModePreview:
		return e.executePreview(ctx, source, schema, steps, report)
	case ModeFull:
		return e.executeFull(ctx, source, schema, steps, report)
	default:
		return nil, domain.ErrValidation("unknown execution mode %q", mode)
	}
}

// executePreview runs the steps against a bounded deterministic sample and
// never touches stored state. Bounded sample size means bounded time
// regardless of full dataset size.
func (e *Executor) executePreview(ctx context.Context, source []byte, schema *domain.Schema, steps []domain.Step, report *domain.ValidationReport) (*Result, error) {
	sample, err := sampleRows(source, e.sampleRows, e.sampleSeed)
	if err != nil {
		return nil, err
	}

	current := &table.Table{Header: append([]string(nil), sample.Header...), Rows: sample.Rows}
	diags := make([]StepDiagnostic, 0, len(steps))
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, diag, err := applyStepTable(current, i, step)
		if err != nil {
			return nil, err
		}
		diags = append(diags, diag)
		current = next
	}

	return &Result{
		RowsBefore:   int64(sample.NumRows()),
		RowsAfter:    int64(current.NumRows()),
		Schema:       table.ProbeTable(current),
		Report:       report,
		Diagnostics:  diags,
		SampleBefore: sample,
		SampleAfter:  current,
	}, nil
}

// executeFull runs the steps against the entire dataset, chunked so rows
// are processed a bounded number at a time. Each step streams its input:
// a stats pass first when the step needs global statistics, then the
// transform pass.
func (e *Executor) executeFull(ctx context.Context, source []byte, schema *domain.Schema, steps []domain.Step, report *domain.ValidationReport) (*Result, error) {
	current := source
	rowsBefore := schema.RowCount
	diags := make([]StepDiagnostic, 0, len(steps))

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, diag, err := e.applyStepStream(ctx, current, i, step)
		if err != nil {
			return nil, err
		}
		diags = append(diags, diag)
		current = next
	}

	// Canonicalize even when there are no steps, so a no-op apply hashes
	// identically to the stored source.
	if len(steps) == 0 {
		c, err := table.Canonicalize(current)
		if err != nil {
			return nil, err
		}
		current = c
	}

	resultSchema, err := table.Probe(current)
	if err != nil {
		return nil, fmt.Errorf("probe result: %w", err)
	}

	return &Result{
		Bytes:       current,
		RowsBefore:  rowsBefore,
		RowsAfter:   resultSchema.RowCount,
		Schema:      resultSchema,
		Report:      report,
		Diagnostics: diags,
	}, nil
}
