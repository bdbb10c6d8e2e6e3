package migrate

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// processSingleTable runs schema, truncate, artifact and data phases for one
// table. A failure in any phase is recorded and ends processing of the table
// where later phases would be unsafe.
func (m *Migrator) processSingleTable(ctx context.Context, table string) TableResult {
	log := m.logger.With(zap.String("table", table))
	startTime := time.Now()
	result := TableResult{Table: table, NormalizedName: m.normalize(table)}

	defer func() {
		result.Duration = time.Since(startTime)
		m.metrics.TableDuration.WithLabelValues(result.NormalizedName).Observe(result.Duration.Seconds())
		m.logFinalTableResult(log, result)
	}()

	tableCtx := ctx
	if m.opts.TableTimeout > 0 {
		var cancel context.CancelFunc
		tableCtx, cancel = context.WithTimeout(ctx, m.opts.TableTimeout)
		defer cancel()
	}

	// --- Schema ---
	log.Info("Reading source columns")
	cols, err := m.src.Columns(tableCtx, table)
	if err != nil {
		m.skip(&result, log, "schema", SchemaQueryFailure, err)
		return result
	}

	synth, err := m.ddl.Synthesize(TableDefinition{Name: table, Columns: cols})
	if err != nil {
		kind := SchemaQueryFailure
		if errors.Is(err, ErrEmptySchema) {
			kind = EmptySchema
		}
		m.skip(&result, log, "schema", kind, err)
		return result
	}
	log.Debug("Synthesized DDL", zap.String("ddl", synth.DDL), zap.String("primary_key", synth.PrimaryKey))

	// The artifact is written before execution so a rejected statement can be inspected.
	if m.artifacts != nil {
		path, written, werr := m.artifacts.WriteDDL(synth.Name, synth.DDL)
		switch {
		case werr != nil:
			log.Warn("Failed to write DDL artifact", zap.Error(werr))
			m.record(ErrorRecord{Table: table, Phase: "artifact", Kind: ArtifactWriteFailure, Message: werr.Error()})
		case written:
			result.ArtifactPath = path
			m.metrics.ArtifactsWrittenTotal.Inc()
		}
	}

	if err := m.dst.ExecDDL(tableCtx, synth.DDL); err != nil {
		m.skip(&result, log, "ddl", DdlExecutionFailure, err)
		return result
	}
	result.SchemaApplied = true

	deleted, err := m.dst.DeleteAll(tableCtx, synth.Name)
	if err != nil {
		m.skip(&result, log, "truncate", TruncateFailure, err)
		return result
	}
	result.Truncated = true
	log.Info("Destination table prepared", zap.Int64("rows_deleted", deleted))

	// --- Data ---
	stats, err := m.copyRows(tableCtx, table, synth, log)
	result.RowsRead = stats.read
	result.RowsInserted = stats.inserted
	result.RowsFailed = stats.failed
	result.FieldsDropped = stats.dropped
	result.FieldsAnonymized = stats.anonymized
	if err != nil {
		m.skip(&result, log, "data", DataReadFailure, err)
	}
	return result
}

func (m *Migrator) skip(result *TableResult, log *zap.Logger, phase string, kind ErrorKind, err error) {
	log.Error("Table phase failed", zap.String("phase", phase), zap.String("kind", string(kind)), zap.Error(err))
	m.record(ErrorRecord{Table: result.Table, Phase: phase, Kind: kind, Message: err.Error()})
	result.Skipped = true
	result.SkipReason = phase + ": " + string(kind)
}

func (m *Migrator) logFinalTableResult(log *zap.Logger, result TableResult) {
	fields := []zap.Field{
		zap.Duration("duration", result.Duration),
		zap.Bool("schema_applied", result.SchemaApplied),
		zap.Bool("truncated", result.Truncated),
		zap.Int64("rows_read", result.RowsRead),
		zap.Int64("rows_inserted", result.RowsInserted),
		zap.Int64("rows_failed", result.RowsFailed),
		zap.Int64("fields_dropped", result.FieldsDropped),
		zap.Int64("fields_anonymized", result.FieldsAnonymized),
	}
	if result.ArtifactPath != "" {
		fields = append(fields, zap.String("artifact", result.ArtifactPath))
	}

	switch {
	case result.Skipped:
		fields = append(fields, zap.String("skip_reason", result.SkipReason))
		log.Warn("Table migration SKIPPED or INTERRUPTED", fields...)
	case result.RowsFailed > 0:
		log.Warn("Table migration finished with row failures", fields...)
	default:
		log.Info("Table migration finished SUCCESSFULLY", fields...)
		m.metrics.TableSuccessTotal.WithLabelValues(result.NormalizedName).Inc()
	}
}
