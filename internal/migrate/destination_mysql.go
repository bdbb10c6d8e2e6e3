package migrate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/arwahdevops/mssql2mysql/internal/utils"
)

// MySQLDestination executes DDL, truncation and single-row inserts through
// gorm. Every statement runs on its own pooled connection in autocommit mode.
type MySQLDestination struct {
	db      *gorm.DB
	dialect string
	logger  *zap.Logger
}

// NewMySQLDestination builds a destination over db. dialect selects
// identifier quoting and the all-defaults insert form; it is "mysql" outside tests.
func NewMySQLDestination(db *gorm.DB, dialect string, logger *zap.Logger) *MySQLDestination {
	return &MySQLDestination{db: db, dialect: dialect, logger: logger.Named("destination")}
}

var _ Destination = (*MySQLDestination)(nil)

func (d *MySQLDestination) ExecDDL(ctx context.Context, ddl string) error {
	if err := d.db.WithContext(ctx).Exec(ddl).Error; err != nil {
		return fmt.Errorf("execute DDL: %w", err)
	}
	return nil
}

func (d *MySQLDestination) DeleteAll(ctx context.Context, table string) (int64, error) {
	res := d.db.WithContext(ctx).Exec("DELETE FROM " + utils.QuoteIdentifier(table, d.dialect))
	if res.Error != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, res.Error)
	}
	return res.RowsAffected, nil
}

func (d *MySQLDestination) Insert(ctx context.Context, table string, columns []string, values []interface{}) error {
	if len(columns) != len(values) {
		return fmt.Errorf("insert into %s: %d columns but %d values", table, len(columns), len(values))
	}
	quoted := utils.QuoteIdentifier(table, d.dialect)
	var stmt string
	switch {
	case len(columns) > 0:
		stmt = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoted,
			utils.QuoteIdentifiers(columns, d.dialect),
			strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "),
		)
	case d.dialect == "sqlite":
		// Every field was dropped; all columns take their defaults.
		stmt = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quoted)
	default:
		stmt = fmt.Sprintf("INSERT INTO %s () VALUES ()", quoted)
	}
	if err := d.db.WithContext(ctx).Exec(stmt, values...).Error; err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}
