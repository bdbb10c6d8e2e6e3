package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/arwahdevops/mssql2mysql/internal/utils"
)

// SQLServerSource reads catalog metadata and rows from SQL Server through gorm.
type SQLServerSource struct {
	db      *gorm.DB
	schema  string // "" means any schema
	dialect string
	logger  *zap.Logger
}

// NewSQLServerSource builds a source over db. dialect selects identifier
// quoting and is "sqlserver" outside tests.
func NewSQLServerSource(db *gorm.DB, dialect, schema string, logger *zap.Logger) *SQLServerSource {
	return &SQLServerSource{db: db, schema: schema, dialect: dialect, logger: logger.Named("source")}
}

var _ Source = (*SQLServerSource)(nil)

func (s *SQLServerSource) ListBaseTables(ctx context.Context) ([]string, error) {
	var tables []string
	q := s.db.WithContext(ctx)
	var err error
	if s.schema != "" {
		err = q.Raw(`SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = ?
			ORDER BY TABLE_NAME`, s.schema).Scan(&tables).Error
	} else {
		err = q.Raw(`SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_TYPE = 'BASE TABLE'
			ORDER BY TABLE_NAME`).Scan(&tables).Error
	}
	if err != nil {
		return nil, fmt.Errorf("query INFORMATION_SCHEMA.TABLES: %w", err)
	}
	return tables, nil
}

type sqlServerColumn struct {
	ColumnName             string         `gorm:"column:COLUMN_NAME"`
	DataType               string         `gorm:"column:DATA_TYPE"`
	ColumnDefault          sql.NullString `gorm:"column:COLUMN_DEFAULT"`
	IsNullable             string         `gorm:"column:IS_NULLABLE"`
	CharacterMaximumLength sql.NullInt64  `gorm:"column:CHARACTER_MAXIMUM_LENGTH"`
	NumericPrecision       sql.NullInt64  `gorm:"column:NUMERIC_PRECISION"`
}

const columnsQuery = `SELECT COLUMN_NAME, DATA_TYPE, COLUMN_DEFAULT, IS_NULLABLE,
	CHARACTER_MAXIMUM_LENGTH, CAST(NUMERIC_PRECISION AS INT) AS NUMERIC_PRECISION
	FROM INFORMATION_SCHEMA.COLUMNS
	WHERE TABLE_NAME = ?`

func (s *SQLServerSource) Columns(ctx context.Context, table string) ([]ColumnDescriptor, error) {
	var rows []sqlServerColumn
	q := s.db.WithContext(ctx)
	var err error
	if s.schema != "" {
		err = q.Raw(columnsQuery+" AND TABLE_SCHEMA = ? ORDER BY ORDINAL_POSITION", table, s.schema).Scan(&rows).Error
	} else {
		err = q.Raw(columnsQuery+" ORDER BY ORDINAL_POSITION", table).Scan(&rows).Error
	}
	if err != nil {
		return nil, fmt.Errorf("query INFORMATION_SCHEMA.COLUMNS for %s: %w", table, err)
	}
	return toColumnDescriptors(rows), nil
}

func toColumnDescriptors(rows []sqlServerColumn) []ColumnDescriptor {
	cols := make([]ColumnDescriptor, 0, len(rows))
	for _, r := range rows {
		col := ColumnDescriptor{
			Name:       r.ColumnName,
			SourceType: r.DataType,
			Nullable:   strings.EqualFold(r.IsNullable, "YES"),
		}
		switch {
		case r.CharacterMaximumLength.Valid:
			n := int(r.CharacterMaximumLength.Int64)
			col.Length = &n
		case r.NumericPrecision.Valid && isPrecisionTyped(r.DataType):
			n := int(r.NumericPrecision.Int64)
			col.Length = &n
		}
		if r.ColumnDefault.Valid {
			d := r.ColumnDefault.String
			col.Default = &d
		}
		cols = append(cols, col)
	}
	return cols
}

func isPrecisionTyped(dataType string) bool {
	k := ParseSourceType(dataType).Kind
	return k == KindDecimal || k == KindNumeric
}

// OpenRows runs SELECT * against the table.
func (s *SQLServerSource) OpenRows(ctx context.Context, table string) (RowCursor, error) {
	name := utils.QuoteIdentifier(table, s.dialect)
	if s.schema != "" {
		name = utils.QuoteIdentifier(s.schema, s.dialect) + "." + name
	}
	rows, err := s.db.WithContext(ctx).Raw("SELECT * FROM " + name).Rows()
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", name, err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("column types for %s: %w", name, err)
	}
	return &sqlRowCursor{rows: rows, types: types}, nil
}

type sqlRowCursor struct {
	rows  *sql.Rows
	types []*sql.ColumnType
}

func (c *sqlRowCursor) Next() bool   { return c.rows.Next() }
func (c *sqlRowCursor) Err() error   { return c.rows.Err() }
func (c *sqlRowCursor) Close() error { return c.rows.Close() }

func (c *sqlRowCursor) Row() (Row, error) {
	values := make([]interface{}, len(c.types))
	ptrs := make([]interface{}, len(c.types))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	row := make(Row, len(c.types))
	for i, ct := range c.types {
		row[i] = Field{Name: ct.Name(), DBType: ct.DatabaseTypeName(), Value: values[i]}
	}
	return row, nil
}
