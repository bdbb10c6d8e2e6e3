package migrate

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// runTableProcessingPool processes tables with at most opts.Workers running
// at once. Each table's phases stay ordered inside its own worker.
func (m *Migrator) runTableProcessingPool(ctx context.Context, tables []string) map[string]TableResult {
	results := make(map[string]TableResult, len(tables))
	var wg sync.WaitGroup
	resultChan := make(chan TableResult, len(tables))
	sem := make(chan struct{}, m.opts.Workers)

schedule:
	for i, tableName := range tables {
		if ctx.Err() != nil {
			m.handleRemainingTablesOnCancel(ctx, tables[i:], results)
			break
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			m.handleRemainingTablesOnCancel(ctx, tables[i:], results)
			break schedule
		}

		wg.Add(1)
		go func(tbl string) {
			defer wg.Done()
			defer func() { <-sem }()
			resultChan <- m.processSingleTable(ctx, tbl)
		}(tableName)
	}

	go func() {
		wg.Wait()
		close(resultChan)
		m.logger.Debug("All table workers have completed")
	}()

	for res := range resultChan {
		results[res.Table] = res
	}
	return results
}

// handleRemainingTablesOnCancel marks tables that never started as skipped.
func (m *Migrator) handleRemainingTablesOnCancel(ctx context.Context, remaining []string, results map[string]TableResult) {
	if len(remaining) == 0 {
		return
	}
	m.logger.Warn("Context cancelled; marking remaining tables as skipped",
		zap.String("first_remaining_table", remaining[0]),
		zap.Int("count_remaining", len(remaining)),
		zap.Error(ctx.Err()),
	)
	for _, tbl := range remaining {
		if _, exists := results[tbl]; exists {
			continue
		}
		results[tbl] = TableResult{
			Table:          tbl,
			NormalizedName: m.normalize(tbl),
			Skipped:        true,
			SkipReason:     "context cancelled before processing started",
		}
		m.record(ErrorRecord{
			Table:   tbl,
			Phase:   "schedule",
			Kind:    Cancelled,
			Message: fmt.Sprintf("not started: %v", ctx.Err()),
		})
	}
}
