package migrate

import "context"

// Source is the read side of a migration: catalog queries and row streams.
type Source interface {
	// ListBaseTables returns every base table name, sorted.
	ListBaseTables(ctx context.Context) ([]string, error)
	// Columns returns the table's columns in ordinal order.
	Columns(ctx context.Context, table string) ([]ColumnDescriptor, error)
	// OpenRows starts streaming every row of the table.
	OpenRows(ctx context.Context, table string) (RowCursor, error)
}

// RowCursor iterates a source row stream. Callers must Close it.
type RowCursor interface {
	Next() bool
	Row() (Row, error)
	Err() error
	Close() error
}

// Destination is the write side of a migration.
type Destination interface {
	ExecDDL(ctx context.Context, ddl string) error
	// DeleteAll removes every row of table and returns the number removed.
	DeleteAll(ctx context.Context, table string) (int64, error)
	// Insert writes one row; columns and values are index-aligned.
	Insert(ctx context.Context, table string, columns []string, values []interface{}) error
}

// ArtifactWriter persists generated DDL. written is false when the target
// location does not exist, which is not an error.
type ArtifactWriter interface {
	WriteDDL(table, ddl string) (path string, written bool, err error)
}
