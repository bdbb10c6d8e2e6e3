package migrate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arwahdevops/mssql2mysql/internal/anonymize"
	"github.com/arwahdevops/mssql2mysql/internal/metrics"
	"github.com/arwahdevops/mssql2mysql/internal/utils"
)

// Options is the run configuration the Migrator consumes. It is read-only
// for the duration of a run and shared by all workers.
type Options struct {
	// Tables restricts the run to these source tables; empty means every base table.
	Tables []string
	// Workers is the number of tables processed concurrently. 1 is sequential.
	Workers int
	// TableTimeout bounds one table's schema and data phases; 0 disables it.
	TableTimeout time.Duration
	Anonymize    anonymize.Set
	AnonymizeKey string
	NativeJSON   bool
}

// Migrator drives a one-shot copy from a SQL Server source to a MySQL
// destination. Failures are recorded per table or row and never abort the run.
type Migrator struct {
	src       Source
	dst       Destination
	artifacts ArtifactWriter
	opts      Options
	ddl       *DDLSynthesizer
	normalize func(string) string
	logger    *zap.Logger
	metrics   *metrics.Store
	errs      *ErrorLog
}

// NewMigrator wires a Migrator. artifacts may be nil.
func NewMigrator(src Source, dst Destination, artifacts ArtifactWriter, opts Options, logger *zap.Logger, metricsStore *metrics.Store) *Migrator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	log := logger.Named("migrator")
	return &Migrator{
		src:       src,
		dst:       dst,
		artifacts: artifacts,
		opts:      opts,
		ddl:       NewDDLSynthesizer(TypeMapper{NativeJSON: opts.NativeJSON}, log),
		normalize: utils.NormalizeIdentifier,
		logger:    log,
		metrics:   metricsStore,
		errs:      &ErrorLog{},
	}
}

// Run migrates every selected table and always returns a Report.
func (m *Migrator) Run(ctx context.Context) *Report {
	startTime := time.Now()
	m.logger.Info("Starting migration run",
		zap.Int("workers", m.opts.Workers),
		zap.Int("explicit_tables", len(m.opts.Tables)),
		zap.Int("anonymized_columns", m.opts.Anonymize.Columns()),
		zap.Duration("table_timeout", m.opts.TableTimeout),
	)
	m.metrics.Running.Set(1)
	defer m.metrics.Running.Set(0)

	report := &Report{Tables: make(map[string]TableResult)}

	tables, err := m.listTables(ctx)
	if err != nil {
		m.logger.Error("Failed to list source tables", zap.Error(err))
		m.record(ErrorRecord{Phase: "discovery", Kind: SchemaQueryFailure, Message: err.Error()})
	} else if len(tables) == 0 {
		m.logger.Warn("No tables to migrate")
	} else {
		report.Order = tables
		report.Tables = m.runTableProcessingPool(ctx, tables)
	}

	report.Errors = m.errs.Records()
	report.Duration = time.Since(startTime)
	m.metrics.RunDuration.Observe(report.Duration.Seconds())
	m.logger.Info("Migration run completed",
		zap.Duration("total_duration", report.Duration),
		zap.Int("tables", len(report.Tables)),
		zap.Int("errors", len(report.Errors)),
	)
	return report
}

// Errors returns the accumulated error log.
func (m *Migrator) Errors() *ErrorLog { return m.errs }

func (m *Migrator) listTables(ctx context.Context) ([]string, error) {
	if len(m.opts.Tables) > 0 {
		m.logger.Info("Using explicit table list", zap.Strings("tables", m.opts.Tables))
		return m.opts.Tables, nil
	}
	tables, err := m.src.ListBaseTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list base tables: %w", err)
	}
	m.logger.Info("Found source base tables", zap.Int("count", len(tables)), zap.Strings("tables", tables))
	return tables, nil
}

func (m *Migrator) record(rec ErrorRecord) {
	m.errs.Append(rec)
	m.metrics.ErrorsTotal.WithLabelValues(string(rec.Kind), rec.Table).Inc()
}
