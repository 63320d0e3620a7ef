// Package validate implements the validation engine for transformation
// step sequences. Validation works purely on the schema summary — it never
// touches row data — so it is O(steps × columns) regardless of dataset
// size.
package validate

import (
	"fmt"
	"math"
	"strconv"

	"refinery/internal/domain"
)

// DefaultLossWarnThreshold is the estimated row-loss fraction above which
// a drop_missing step is flagged as a warning when the step itself does
// not carry a threshold.
const DefaultLossWarnThreshold = 0.5

// Engine validates ordered step sequences against a schema summary.
type Engine struct {
	lossWarnThreshold float64
}

// NewEngine creates a validation engine. A non-positive threshold selects
// the default.
func NewEngine(lossWarnThreshold float64) *Engine {
	if lossWarnThreshold <= 0 || lossWarnThreshold > 1 {
		lossWarnThreshold = DefaultLossWarnThreshold
	}
	return &Engine{lossWarnThreshold: lossWarnThreshold}
}

// Validate evaluates the sequence as a simulated pipeline: each step is
// checked against the schema as projected by the steps before it, not the
// original. The sequence is rejected on any structural failure, downgraded
// to warning on data-loss risk, ok otherwise. Validation never mutates the
// caller's schema.
func (e *Engine) Validate(schema *domain.Schema, steps []domain.Step) *domain.ValidationReport {
	report := &domain.ValidationReport{Status: domain.ReportOK, Findings: []domain.Finding{}}

	if len(steps) == 0 {
		return report
	}
	if len(schema.Columns) == 0 {
		report.AddFinding(domain.Finding{
			StepIndex: 0,
			Severity:  domain.SeverityError,
			Message:   "dataset has no columns: nothing to transform",
		})
		return report
	}
	if schema.RowCount == 0 {
		report.AddFinding(domain.Finding{
			StepIndex: 0,
			Severity:  domain.SeverityError,
			Message:   "dataset has no rows: nothing to transform",
		})
		return report
	}

	projected := schema.Clone()
	for i, step := range steps {
		rejected := e.validateStep(projected, i, step, report)
		if rejected {
			// Later steps would be checked against a schema we cannot
			// project, so stop at the first structural failure.
			return report
		}
		projectStep(projected, step)
	}
	return report
}

// validateStep runs checks (1)-(4) for one step against the projected
// schema, appending findings. Returns true when the step is rejected.
func (e *Engine) validateStep(schema *domain.Schema, idx int, step domain.Step, report *domain.ValidationReport) bool {
	// (1) parameter well-formedness
	if err := step.Validate(); err != nil {
		report.AddFinding(domain.Finding{StepIndex: idx, Severity: domain.SeverityError, Message: err.Error()})
		return true
	}

	// (2)+(3) referenced columns exist in the projected schema, and types
	// are compatible with the operation.
	for _, name := range step.Columns {
		col := schema.Column(name)
		if col == nil {
			report.AddFinding(domain.Finding{
				StepIndex: idx,
				Severity:  domain.SeverityError,
				Message:   fmt.Sprintf("column %q does not exist at this point in the pipeline", name),
			})
			return true
		}
		if msg := typeCheck(step, col); msg != "" {
			report.AddFinding(domain.Finding{StepIndex: idx, Severity: domain.SeverityError, Message: msg})
			return true
		}
	}

	if step.Kind == domain.StepRenameColumn && schema.HasColumn(step.NewName) {
		report.AddFinding(domain.Finding{
			StepIndex: idx,
			Severity:  domain.SeverityError,
			Message:   fmt.Sprintf("rename_column: column %q already exists", step.NewName),
		})
		return true
	}

	// (4) data-loss estimation for drop_missing
	if step.Kind == domain.StepDropMissing {
		loss := estimateRowLoss(schema, step.Columns)
		threshold := step.Threshold
		if threshold == 0 {
			threshold = e.lossWarnThreshold
		}
		f := domain.Finding{
			StepIndex:           idx,
			Severity:            domain.SeverityInfo,
			Message:             fmt.Sprintf("drop_missing removes an estimated %.1f%% of rows", loss*100),
			EstimatedRowLossPct: round1(loss * 100),
		}
		if loss > threshold {
			f.Severity = domain.SeverityWarning
			f.Message = fmt.Sprintf("drop_missing removes an estimated %.1f%% of rows, above the %.0f%% threshold", loss*100, threshold*100)
		}
		report.AddFinding(f)
	}

	return false
}

// typeCheck enforces operation/type compatibility for a single column.
func typeCheck(step domain.Step, col *domain.Column) string {
	switch step.Kind {
	case domain.StepScale:
		if !col.Type.Numeric() {
			return fmt.Sprintf("scale requires a numeric column, %q is %s", col.Name, col.Type)
		}
	case domain.StepImpute:
		switch step.Method {
		case domain.ImputeMean, domain.ImputeMedian:
			if !col.Type.Numeric() {
				return fmt.Sprintf("impute method %q requires a numeric column, %q is %s", step.Method, col.Name, col.Type)
			}
		case domain.ImputeConstant:
			if col.Type.Numeric() {
				if _, err := strconv.ParseFloat(step.Value, 64); err != nil {
					return fmt.Sprintf("impute constant %q is not numeric but column %q is %s", step.Value, col.Name, col.Type)
				}
			}
		}
	}
	return ""
}

// estimateRowLoss estimates the fraction of rows removed by dropping rows
// with nulls in the target columns (all columns when none given). Columns
// are assumed independent; a single target column degenerates to its null
// ratio exactly.
func estimateRowLoss(schema *domain.Schema, columns []string) float64 {
	keep := 1.0
	if len(columns) == 0 {
		for _, c := range schema.Columns {
			keep *= 1 - c.NullRatio
		}
	} else {
		for _, name := range columns {
			if c := schema.Column(name); c != nil {
				keep *= 1 - c.NullRatio
			}
		}
	}
	return 1 - keep
}

// projectStep applies a step's schema-level effect to the working copy so
// subsequent steps are checked against what the data will look like.
func projectStep(schema *domain.Schema, step domain.Step) {
	switch step.Kind {
	case domain.StepDropMissing:
		loss := estimateRowLoss(schema, step.Columns)
		schema.RowCount = int64(math.Round(float64(schema.RowCount) * (1 - loss)))
		targets := step.Columns
		if len(targets) == 0 {
			targets = schema.ColumnNames()
		}
		for _, name := range targets {
			if c := schema.Column(name); c != nil {
				c.NullRatio = 0
			}
		}
	case domain.StepImpute:
		for _, name := range step.Columns {
			if c := schema.Column(name); c != nil {
				c.NullRatio = 0
			}
		}
	case domain.StepScale:
		for _, name := range step.Columns {
			if c := schema.Column(name); c != nil {
				c.Type = domain.ColumnFloat
			}
		}
	case domain.StepOneHot:
		// The expansion columns cannot be named without row data; what
		// matters for later steps is that the original column is gone.
		dropColumns(schema, step.Columns)
	case domain.StepLabelEncode:
		for _, name := range step.Columns {
			if c := schema.Column(name); c != nil {
				c.Type = domain.ColumnInt
			}
		}
	case domain.StepTypeCast:
		for _, name := range step.Columns {
			if c := schema.Column(name); c != nil {
				c.Type = step.TargetType
			}
		}
	case domain.StepDropColumns:
		dropColumns(schema, step.Columns)
	case domain.StepRenameColumn:
		if c := schema.Column(step.Columns[0]); c != nil {
			c.Name = step.NewName
		}
	}
}

func dropColumns(schema *domain.Schema, names []string) {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	kept := schema.Columns[:0]
	for _, c := range schema.Columns {
		if _, ok := drop[c.Name]; !ok {
			kept = append(kept, c)
		}
	}
	schema.Columns = kept
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
