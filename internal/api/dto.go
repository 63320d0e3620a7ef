package api

import (
	"time"

	"refinery/internal/domain"
	"refinery/internal/transform"
)

// API representations of domain objects. Kept separate so the wire format
// stays stable while domain types evolve.

type datasetDTO struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	HeadVersionID *string   `json:"head_version_id,omitempty"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func datasetToAPI(d *domain.Dataset) datasetDTO {
	return datasetDTO{
		ID:            d.ID,
		Name:          d.Name,
		Description:   d.Description,
		HeadVersionID: d.HeadVersionID,
		CreatedBy:     d.CreatedBy,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type versionDTO struct {
	ID              string         `json:"id"`
	DatasetID       string         `json:"dataset_id"`
	ContentHash     string         `json:"content_hash"`
	ParentVersionID *string        `json:"parent_version_id,omitempty"`
	RowCount        int64          `json:"row_count"`
	ColumnCount     int            `json:"column_count"`
	Schema          *domain.Schema `json:"schema,omitempty"`
	CreatedBy       string         `json:"created_by"`
	CreatedAt       time.Time      `json:"created_at"`
}

func versionToAPI(v *domain.DatasetVersion) versionDTO {
	return versionDTO{
		ID:              v.ID,
		DatasetID:       v.DatasetID,
		ContentHash:     v.ContentHash,
		ParentVersionID: v.ParentVersionID,
		RowCount:        v.RowCount,
		ColumnCount:     v.ColumnCount,
		Schema:          v.Schema,
		CreatedBy:       v.CreatedBy,
		CreatedAt:       v.CreatedAt,
	}
}

type edgeDTO struct {
	ID                 string        `json:"id"`
	SourceVersionID    string        `json:"source_version_id"`
	ResultVersionID    string        `json:"result_version_id"`
	Steps              []domain.Step `json:"steps"`
	ValidationReportID string        `json:"validation_report_id"`
	AppliedBy          string        `json:"applied_by"`
	AppliedAt          time.Time     `json:"applied_at"`
}

func edgeToAPI(c *domain.TransformationConfig) *edgeDTO {
	if c == nil {
		return nil
	}
	return &edgeDTO{
		ID:                 c.ID,
		SourceVersionID:    c.SourceVersionID,
		ResultVersionID:    c.ResultVersionID,
		Steps:              c.Steps,
		ValidationReportID: c.ValidationReportID,
		AppliedBy:          c.AppliedBy,
		AppliedAt:          c.AppliedAt,
	}
}

type lineageEntryDTO struct {
	Version versionDTO `json:"version"`
	Edge    *edgeDTO   `json:"edge,omitempty"`
}

func lineageToAPI(entries []domain.LineageEntry) []lineageEntryDTO {
	out := make([]lineageEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = lineageEntryDTO{Version: versionToAPI(e.Version), Edge: edgeToAPI(e.Edge)}
	}
	return out
}

type jobDTO struct {
	ID              string        `json:"id"`
	DatasetID       string        `json:"dataset_id"`
	RequestID       string        `json:"request_id"`
	Steps           []domain.Step `json:"steps"`
	Status          string        `json:"status"`
	Attempt         int           `json:"attempt"`
	ResultVersionID *string       `json:"result_version_id,omitempty"`
	ReportID        *string       `json:"report_id,omitempty"`
	ErrorMessage    *string       `json:"error_message,omitempty"`
	CreatedBy       string        `json:"created_by"`
	CreatedAt       time.Time     `json:"created_at"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
}

func jobToAPI(j *domain.ApplyJob) jobDTO {
	return jobDTO{
		ID:              j.ID,
		DatasetID:       j.DatasetID,
		RequestID:       j.RequestID,
		Steps:           j.Steps,
		Status:          string(j.Status),
		Attempt:         j.Attempt,
		ResultVersionID: j.ResultVersionID,
		ReportID:        j.ReportID,
		ErrorMessage:    j.ErrorMessage,
		CreatedBy:       j.CreatedBy,
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
}

type recipeDTO struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Steps       []domain.Step `json:"steps"`
	CreatedBy   string        `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func recipeToAPI(rec *domain.Recipe) recipeDTO {
	return recipeDTO{
		ID:          rec.ID,
		Name:        rec.Name,
		Description: rec.Description,
		Steps:       rec.Steps,
		CreatedBy:   rec.CreatedBy,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

type auditEntryDTO struct {
	ID            string    `json:"id"`
	PrincipalName string    `json:"principal_name"`
	Action        string    `json:"action"`
	DatasetID     *string   `json:"dataset_id,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func auditEntryToAPI(e domain.AuditEntry) auditEntryDTO {
	return auditEntryDTO{
		ID:            e.ID,
		PrincipalName: e.PrincipalName,
		Action:        e.Action,
		DatasetID:     e.DatasetID,
		Detail:        e.Detail,
		Status:        e.Status,
		CreatedAt:     e.CreatedAt,
	}
}

type sampleDTO struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

type previewResponse struct {
	Report       *domain.ValidationReport   `json:"report"`
	RowsBefore   int64                      `json:"rows_before"`
	RowsAfter    int64                      `json:"rows_after"`
	Schema       *domain.Schema             `json:"schema"`
	Diagnostics  []transform.StepDiagnostic `json:"diagnostics,omitempty"`
	SampleBefore *sampleDTO                 `json:"sample_before,omitempty"`
	SampleAfter  *sampleDTO                 `json:"sample_after,omitempty"`
}

func previewToAPI(res *transform.Result) previewResponse {
	out := previewResponse{
		Report:      res.Report,
		RowsBefore:  res.RowsBefore,
		RowsAfter:   res.RowsAfter,
		Schema:      res.Schema,
		Diagnostics: res.Diagnostics,
	}
	if res.SampleBefore != nil {
		out.SampleBefore = &sampleDTO{Header: res.SampleBefore.Header, Rows: res.SampleBefore.Rows}
	}
	if res.SampleAfter != nil {
		out.SampleAfter = &sampleDTO{Header: res.SampleAfter.Header, Rows: res.SampleAfter.Rows}
	}
	return out
}

type listResponse[T any] struct {
	Data          []T    `json:"data"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

func listToAPI[D any, T any](items []D, page domain.PageRequest, total int64, conv func(*D) T) listResponse[T] {
	out := listResponse[T]{Data: make([]T, len(items))}
	for i := range items {
		out.Data[i] = conv(&items[i])
	}
	out.NextPageToken = domain.NextPageToken(page.Offset(), page.Limit(), total)
	return out
}
