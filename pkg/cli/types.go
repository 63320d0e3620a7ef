package cli

import "time"

// Response shapes mirrored from the server API.

type datasetResource struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	HeadVersionID *string   `json:"head_version_id,omitempty"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type versionResource struct {
	ID              string    `json:"id"`
	DatasetID       string    `json:"dataset_id"`
	ContentHash     string    `json:"content_hash"`
	ParentVersionID *string   `json:"parent_version_id,omitempty"`
	RowCount        int64     `json:"row_count"`
	ColumnCount     int       `json:"column_count"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

type stepResource struct {
	Kind       string   `json:"kind"`
	Columns    []string `json:"columns,omitempty"`
	Method     string   `json:"method,omitempty"`
	Value      string   `json:"value,omitempty"`
	NewName    string   `json:"new_name,omitempty"`
	TargetType string   `json:"target_type,omitempty"`
}

type edgeResource struct {
	ID              string         `json:"id"`
	SourceVersionID string         `json:"source_version_id"`
	ResultVersionID string         `json:"result_version_id"`
	Steps           []stepResource `json:"steps"`
	AppliedBy       string         `json:"applied_by"`
	AppliedAt       time.Time      `json:"applied_at"`
}

type lineageEntryResource struct {
	Version versionResource `json:"version"`
	Edge    *edgeResource   `json:"edge,omitempty"`
}

type jobResource struct {
	ID              string     `json:"id"`
	DatasetID       string     `json:"dataset_id"`
	RequestID       string     `json:"request_id"`
	Status          string     `json:"status"`
	Attempt         int        `json:"attempt"`
	ResultVersionID *string    `json:"result_version_id,omitempty"`
	ReportID        *string    `json:"report_id,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

type recipeResource struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Steps       []stepResource `json:"steps"`
	CreatedBy   string         `json:"created_by"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type auditEntryResource struct {
	ID            string    `json:"id"`
	PrincipalName string    `json:"principal_name"`
	Action        string    `json:"action"`
	DatasetID     *string   `json:"dataset_id,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type listPage[T any] struct {
	Data          []T    `json:"data"`
	NextPageToken string `json:"next_page_token,omitempty"`
}
