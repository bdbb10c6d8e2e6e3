package migrate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arwahdevops/mssql2mysql/internal/anonymize"
)

type copyStats struct {
	read       int64
	inserted   int64
	failed     int64
	dropped    int64
	anonymized int64
}

// rowOutcome is the result of handling one source row.
type rowOutcome struct {
	columns []string
	values  []interface{}
	dropped int64
	masked  int64
}

// copyRows streams the source table into the destination one row at a time.
// It returns an error only when the row stream cannot be read; insert
// failures are recorded per row and the fold continues.
func (m *Migrator) copyRows(ctx context.Context, table string, synth *SynthesizedTable, log *zap.Logger) (copyStats, error) {
	var stats copyStats

	cursor, err := m.src.OpenRows(ctx, table)
	if err != nil {
		return stats, fmt.Errorf("open rows: %w", err)
	}
	defer func() {
		if cerr := cursor.Close(); cerr != nil {
			log.Warn("Failed to close source cursor", zap.Error(cerr))
		}
	}()

	stringCols := synth.StringColumns()
	log.Info("Copying rows")

	for cursor.Next() {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("interrupted after %d rows: %w", stats.read, err)
		}
		stats.read++

		row, err := cursor.Row()
		if err != nil {
			stats.failed++
			m.recordRowFailure(table, stats.read, DataReadFailure, err, nil, log)
			continue
		}

		out := m.prepareRow(synth.Name, row, stringCols)
		stats.dropped += out.dropped
		stats.anonymized += out.masked

		if err := m.dst.Insert(ctx, synth.Name, out.columns, out.values); err != nil {
			stats.failed++
			m.recordRowFailure(table, stats.read, RowInsertFailure, err, rowData(out), log)
			continue
		}
		stats.inserted++
	}
	if err := cursor.Err(); err != nil {
		return stats, fmt.Errorf("row stream failed after %d rows: %w", stats.read, err)
	}

	m.metrics.RowsInsertedTotal.WithLabelValues(synth.Name).Add(float64(stats.inserted))
	if stats.failed > 0 {
		m.metrics.RowsFailedTotal.WithLabelValues(synth.Name).Add(float64(stats.failed))
	}
	return stats, nil
}

// prepareRow normalizes field names, anonymizes configured fields, trims the
// rest and drops blank fields whose destination type is not a string type.
func (m *Migrator) prepareRow(table string, row Row, stringCols map[string]bool) rowOutcome {
	out := rowOutcome{
		columns: make([]string, 0, len(row)),
		values:  make([]interface{}, 0, len(row)),
	}
	for _, f := range row {
		name := m.normalize(f.Name)
		if name == "" {
			out.dropped++
			continue
		}

		v := displayValue(f.Value, f.DBType)
		if m.opts.Anonymize.Has(table, name) && v != nil {
			v = anonymize.Value(stringOf(v), m.opts.AnonymizeKey)
			out.masked++
		} else if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}

		isString, known := stringCols[name]
		if known && !isString && isBlank(v) {
			out.dropped++
			continue
		}

		out.columns = append(out.columns, name)
		out.values = append(out.values, v)
	}
	return out
}

func stringOf(v interface{}) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

func rowData(out rowOutcome) map[string]interface{} {
	data := make(map[string]interface{}, len(out.columns))
	for i, c := range out.columns {
		data[c] = out.values[i]
	}
	return data
}

func (m *Migrator) recordRowFailure(table string, row int64, kind ErrorKind, err error, data map[string]interface{}, log *zap.Logger) {
	log.Warn("Row skipped", zap.Int64("row", row), zap.String("kind", string(kind)), zap.Error(err))
	m.record(ErrorRecord{Table: table, Phase: "data", Row: row, Kind: kind, Message: err.Error(), Data: data})
}
