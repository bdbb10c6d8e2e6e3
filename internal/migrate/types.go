package migrate

import (
	"errors"
	"time"
)

// ColumnDescriptor is one source column as reported by the source catalog.
type ColumnDescriptor struct {
	Name       string
	SourceType string // engine type name, compared case-insensitively
	Length     *int   // nil when the catalog reports no length; -1 means MAX
	Nullable   bool
	Default    *string // raw default expression, nil when absent
}

// TableDefinition is a source table and its columns in declared order.
type TableDefinition struct {
	Name    string
	Columns []ColumnDescriptor
}

// TargetColumnSpec is the destination rendering of one column.
type TargetColumnSpec struct {
	NormalizedName string
	TargetType     string
	NullableClause string
	DefaultClause  string // "" or "DEFAULT <value>"
}

// SynthesizedTable is the result of DDL synthesis for one table.
type SynthesizedTable struct {
	Name       string // normalized table name
	Columns    []TargetColumnSpec
	PrimaryKey string
	DDL        string
}

// StringColumns returns the set of normalized column names whose target type
// is a sized or unbounded string type.
func (s *SynthesizedTable) StringColumns() map[string]bool {
	out := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		out[c.NormalizedName] = IsStringTarget(c.TargetType)
	}
	return out
}

var (
	// ErrEmptySchema is returned by the synthesizer for a table with no columns.
	ErrEmptySchema = errors.New("table has no columns")
	// ErrInvalidIdentifier is returned when a name normalizes to "".
	ErrInvalidIdentifier = errors.New("identifier is empty after normalization")
)

// Field is one named value of a source row. DBType is the driver's database
// type name for the column (e.g. "UNIQUEIDENTIFIER", "DECIMAL").
type Field struct {
	Name   string
	DBType string
	Value  interface{}
}

// Row is a source row with fields in result-set order.
type Row []Field

// TableResult summarizes the processing of one table.
type TableResult struct {
	Table            string
	NormalizedName   string
	SchemaApplied    bool
	Truncated        bool
	ArtifactPath     string
	RowsRead         int64
	RowsInserted     int64
	RowsFailed       int64
	FieldsDropped    int64
	FieldsAnonymized int64
	Duration         time.Duration
	Skipped          bool
	SkipReason       string
}

// Report is the outcome of a run. A run always completes; degraded tables are
// visible through Errors and each TableResult.
type Report struct {
	Tables   map[string]TableResult
	Order    []string
	Errors   []ErrorRecord
	Duration time.Duration
}

// Degraded reports whether any error was recorded during the run.
func (r *Report) Degraded() bool { return len(r.Errors) > 0 }
