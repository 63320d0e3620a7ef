package domain

import "time"

// Dataset is a logical entity owning a lineage graph root and a current
// head version pointer. Created on first upload, never deleted while any
// version references it.
type Dataset struct {
	ID            string
	Name          string
	Description   string
	HeadVersionID *string // nil until the root version is committed
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateDatasetRequest holds parameters for creating a dataset from an
// initial upload.
type CreateDatasetRequest struct {
	Name        string
	Description string
	Data        []byte
}

// Validate checks that the request is well-formed.
func (r *CreateDatasetRequest) Validate() error {
	if r.Name == "" {
		return ErrValidation("name is required")
	}
	if len(r.Data) == 0 {
		return ErrValidation("dataset payload must not be empty")
	}
	return nil
}

// DatasetVersion is an immutable snapshot of a dataset. Versions are
// write-once; "mutation" is only ever the creation of a new version.
// Multiple versions may reference the same blob via ContentHash.
type DatasetVersion struct {
	ID              string
	DatasetID       string
	ContentHash     string
	ParentVersionID *string // nil for roots
	RowCount        int64
	ColumnCount     int
	Schema          *Schema
	CreatedBy       string
	CreatedAt       time.Time
}

// Root reports whether this version is the lineage root of its dataset.
func (v *DatasetVersion) Root() bool { return v.ParentVersionID == nil }

// TransformationConfig is an applied lineage edge: the ordered step
// sequence that produced ResultVersionID from SourceVersionID. Immutable
// once committed. Every non-root version has exactly one inbound edge.
type TransformationConfig struct {
	ID                 string
	DatasetID          string
	SourceVersionID    string
	ResultVersionID    string
	Steps              []Step
	ValidationReportID string
	AppliedBy          string
	AppliedAt          time.Time
}
