package migrate

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

// ErrorKind classifies a recorded failure.
type ErrorKind string

const (
	EmptySchema          ErrorKind = "empty_schema"
	SchemaQueryFailure   ErrorKind = "schema_query"
	DdlExecutionFailure  ErrorKind = "ddl_execution"
	TruncateFailure      ErrorKind = "truncate"
	ArtifactWriteFailure ErrorKind = "artifact_write"
	DataReadFailure      ErrorKind = "data_read"
	RowInsertFailure     ErrorKind = "row_insert"
	Cancelled            ErrorKind = "cancelled"
)

// ErrorRecord is one local failure. Row is the 1-based source row number for
// row-level failures and 0 otherwise.
type ErrorRecord struct {
	Table   string
	Phase   string
	Row     int64
	Kind    ErrorKind
	Message string
	Data    map[string]interface{}
}

func (r ErrorRecord) Error() string {
	if r.Row > 0 {
		return fmt.Sprintf("%s: %s row %d (%s): %s", r.Table, r.Phase, r.Row, r.Kind, r.Message)
	}
	return fmt.Sprintf("%s: %s (%s): %s", r.Table, r.Phase, r.Kind, r.Message)
}

// ErrorLog is an append-only, goroutine-safe list of ErrorRecords.
type ErrorLog struct {
	mu      sync.Mutex
	records []ErrorRecord
}

func (l *ErrorLog) Append(rec ErrorRecord) {
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
}

// Records returns a copy of the records in append order.
func (l *ErrorLog) Records() []ErrorRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ErrorRecord, len(l.records))
	copy(out, l.records)
	return out
}

func (l *ErrorLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Err folds every record into a single error, or nil when the log is empty.
func (l *ErrorLog) Err() error {
	var err error
	for _, rec := range l.Records() {
		err = multierr.Append(err, rec)
	}
	return err
}
