package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	gormlogger "gorm.io/gorm/logger"

	"github.com/arwahdevops/mssql2mysql/internal/db"
	"github.com/arwahdevops/mssql2mysql/internal/metrics"
)

func openSQLite(t *testing.T) *db.Connector {
	t.Helper()
	conn, err := db.New("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared", gormlogger.Discard, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHealthz(t *testing.T) {
	mux := newMux(false, metrics.NewMetricsStore(), nil, nil, zaptest.NewLogger(t))
	code, body := get(t, mux, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK\n", body)
}

func TestReadyzWithoutConnections(t *testing.T) {
	mux := newMux(false, metrics.NewMetricsStore(), nil, nil, zaptest.NewLogger(t))
	code, body := get(t, mux, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "source connection not established")
	assert.Contains(t, body, "destination connection not established")
}

func TestReadyzWithConnections(t *testing.T) {
	src := openSQLite(t)
	dst := openSQLite(t)
	mux := newMux(false, metrics.NewMetricsStore(), src, dst, zaptest.NewLogger(t))

	code, body := get(t, mux, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Ready\n", body)
}

func TestMetricsEndpoint(t *testing.T) {
	store := metrics.NewMetricsStore()
	store.RowsInsertedTotal.WithLabelValues("Customers").Add(3)

	mux := newMux(false, store, nil, nil, zaptest.NewLogger(t))
	code, body := get(t, mux, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `mssql2mysql_rows_inserted_total{table="Customers"} 3`)
}

func TestPprofToggle(t *testing.T) {
	off := newMux(false, metrics.NewMetricsStore(), nil, nil, zaptest.NewLogger(t))
	code, _ := get(t, off, "/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, code)

	on := newMux(true, metrics.NewMetricsStore(), nil, nil, zaptest.NewLogger(t))
	code, _ = get(t, on, "/debug/pprof/")
	assert.Equal(t, http.StatusOK, code)
}
