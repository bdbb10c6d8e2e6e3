package migrate

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type fakeSource struct {
	tables  []string
	listErr error
	columns map[string][]ColumnDescriptor
	colErr  map[string]error
	rows    map[string][]Row
	openErr map[string]error
	scanErr map[string]map[int]error // table -> 0-based row index -> error
}

func (s *fakeSource) ListBaseTables(ctx context.Context) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.tables, nil
}

func (s *fakeSource) Columns(ctx context.Context, table string) ([]ColumnDescriptor, error) {
	if err := s.colErr[table]; err != nil {
		return nil, err
	}
	return s.columns[table], nil
}

func (s *fakeSource) OpenRows(ctx context.Context, table string) (RowCursor, error) {
	if err := s.openErr[table]; err != nil {
		return nil, err
	}
	return &fakeCursor{rows: s.rows[table], scanErr: s.scanErr[table], pos: -1}, nil
}

type fakeCursor struct {
	rows    []Row
	scanErr map[int]error
	pos     int
	closed  bool
}

func (c *fakeCursor) Next() bool {
	c.pos++
	return c.pos < len(c.rows)
}

func (c *fakeCursor) Row() (Row, error) {
	if err := c.scanErr[c.pos]; err != nil {
		return nil, err
	}
	return c.rows[c.pos], nil
}

func (c *fakeCursor) Err() error   { return nil }
func (c *fakeCursor) Close() error { c.closed = true; return nil }

type insertCall struct {
	columns []string
	values  []interface{}
}

type fakeDestination struct {
	mu        sync.Mutex
	ddl       []string
	deleted   []string
	inserts   map[string][]insertCall
	ddlErr    map[string]error // keyed by normalized table name
	deleteErr map[string]error
	// rejectInsert fails the insert when it returns a non-nil error.
	rejectInsert func(table string, columns []string, values []interface{}) error
}

func newFakeDestination() *fakeDestination {
	return &fakeDestination{inserts: make(map[string][]insertCall)}
}

func (d *fakeDestination) ExecDDL(ctx context.Context, ddl string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for table, err := range d.ddlErr {
		if containsTable(ddl, table) {
			return err
		}
	}
	d.ddl = append(d.ddl, ddl)
	return nil
}

func containsTable(ddl, table string) bool {
	return strings.Contains(ddl, fmt.Sprintf("EXISTS `%s` (", table))
}

func (d *fakeDestination) DeleteAll(ctx context.Context, table string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.deleteErr[table]; err != nil {
		return 0, err
	}
	d.deleted = append(d.deleted, table)
	n := int64(len(d.inserts[table]))
	delete(d.inserts, table)
	return n, nil
}

func (d *fakeDestination) Insert(ctx context.Context, table string, columns []string, values []interface{}) error {
	if d.rejectInsert != nil {
		if err := d.rejectInsert(table, columns, values); err != nil {
			return err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inserts[table] = append(d.inserts[table], insertCall{columns: columns, values: values})
	return nil
}

func (d *fakeDestination) insertsFor(table string) []insertCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]insertCall(nil), d.inserts[table]...)
}
