package domain

// ColumnType is the inferred logical type of a column.
type ColumnType string

// Supported column types.
const (
	ColumnInt    ColumnType = "int"
	ColumnFloat  ColumnType = "float"
	ColumnBool   ColumnType = "bool"
	ColumnString ColumnType = "string"
)

// ValidColumnType reports whether t is one of the supported types.
func ValidColumnType(t ColumnType) bool {
	switch t {
	case ColumnInt, ColumnFloat, ColumnBool, ColumnString:
		return true
	}
	return false
}

// Numeric reports whether the type supports arithmetic.
func (t ColumnType) Numeric() bool {
	return t == ColumnInt || t == ColumnFloat
}

// Column is the structural/statistical summary of a single column.
type Column struct {
	Name          string     `json:"name"`
	Type          ColumnType `json:"inferred_type"`
	NullRatio     float64    `json:"null_ratio"`
	DistinctRatio float64    `json:"distinct_ratio"`
}

// Schema is the structural summary of a materialized dataset version,
// produced by the schema probe and consumed by validation. It carries no
// row data.
type Schema struct {
	Columns  []Column `json:"columns"`
	RowCount int64    `json:"row_count"`
}

// Column returns the column with the given name, or nil.
func (s *Schema) Column(name string) *Column {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether a column with the given name exists.
func (s *Schema) HasColumn(name string) bool {
	return s.Column(name) != nil
}

// Clone returns a deep copy. Validation mutates its working copy while
// projecting step effects and must never touch the caller's schema.
func (s *Schema) Clone() *Schema {
	c := &Schema{RowCount: s.RowCount, Columns: make([]Column, len(s.Columns))}
	copy(c.Columns, s.Columns)
	return c
}

// ColumnNames returns the column names in schema order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}
