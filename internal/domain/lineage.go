package domain

// LineageEntry pairs a version with the inbound edge that produced it.
// The root entry has a nil Edge.
type LineageEntry struct {
	Version *DatasetVersion       `json:"version"`
	Edge    *TransformationConfig `json:"edge,omitempty"`
}

// VersionDiff is the result of comparing two versions of the same dataset.
// When Related is false the versions share no lineage path and StepsBetween
// is empty.
type VersionDiff struct {
	VersionA     string `json:"version_a"`
	VersionB     string `json:"version_b"`
	Related      bool   `json:"related"`
	CommonAncestor string `json:"common_ancestor,omitempty"`
	// StepsBetween lists, edge by edge, the ordered step sequences on the
	// path from A's side and B's side of the common ancestor.
	StepsBetween []DiffEdge `json:"steps_between,omitempty"`
	RowDelta     int64      `json:"row_delta"`
	ColumnDelta  int        `json:"column_delta"`
}

// DiffEdge is one lineage edge on a diff path, tagged with the direction
// relative to version A.
type DiffEdge struct {
	Direction       string `json:"direction"` // "up" (A→ancestor) or "down" (ancestor→B)
	SourceVersionID string `json:"source_version_id"`
	ResultVersionID string `json:"result_version_id"`
	Steps           []Step `json:"steps"`
}
