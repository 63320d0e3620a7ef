package domain

import "time"

// ReportStatus is the overall outcome of validating a step sequence.
type ReportStatus string

// Validation outcomes. Rejected if any step fails a structural check,
// warning if only data-loss estimation fired, ok otherwise.
const (
	ReportOK       ReportStatus = "ok"
	ReportWarning  ReportStatus = "warning"
	ReportRejected ReportStatus = "rejected"
)

// Severity grades a single validation finding.
type Severity string

// Finding severities.
const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is a single per-step validation result.
type Finding struct {
	StepIndex           int      `json:"step_index"`
	Severity            Severity `json:"severity"`
	Message             string   `json:"message"`
	EstimatedRowLossPct float64  `json:"estimated_row_loss_pct,omitempty"`
}

// ValidationReport is the structured result of validating a step sequence
// against a schema. Persisted only as an audit trail attached to the
// transformation config that used it.
type ValidationReport struct {
	ID        string    `json:"id,omitempty"`
	Status    ReportStatus `json:"status"`
	Findings  []Finding `json:"findings"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Rejected reports whether the sequence must not be applied.
func (r *ValidationReport) Rejected() bool { return r.Status == ReportRejected }

// AddFinding appends a finding and downgrades the overall status as needed.
func (r *ValidationReport) AddFinding(f Finding) {
	r.Findings = append(r.Findings, f)
	switch f.Severity {
	case SeverityError:
		r.Status = ReportRejected
	case SeverityWarning:
		if r.Status != ReportRejected {
			r.Status = ReportWarning
		}
	}
}
