package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Store holds the Prometheus collectors for a migration process.
type Store struct {
	Registry              *prometheus.Registry // custom registry, safe to create per test
	Running               prometheus.Gauge
	RunDuration           prometheus.Histogram
	TableDuration         *prometheus.HistogramVec
	TableSuccessTotal     *prometheus.CounterVec
	RowsInsertedTotal     *prometheus.CounterVec
	RowsFailedTotal       *prometheus.CounterVec
	ErrorsTotal           *prometheus.CounterVec
	ArtifactsWrittenTotal prometheus.Counter
	ConnectionAttempts    *prometheus.CounterVec
}

// NewMetricsStore creates and registers the collectors on a fresh registry.
func NewMetricsStore() *Store {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Store{
		Registry: registry,
		Running: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mssql2mysql_up",
			Help: "1 while a migration run is in progress, 0 otherwise.",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mssql2mysql_run_duration_seconds",
			Help:    "Duration of a whole migration run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 15),
		}),
		TableDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mssql2mysql_table_duration_seconds",
			Help:    "Duration of schema and data migration for one table.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 16),
		}, []string{"table"}),
		TableSuccessTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mssql2mysql_table_success_total",
			Help: "Tables migrated without any recorded error.",
		}, []string{"table"}),
		RowsInsertedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mssql2mysql_rows_inserted_total",
			Help: "Rows inserted into the destination, labeled by table.",
		}, []string{"table"}),
		RowsFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mssql2mysql_rows_failed_total",
			Help: "Rows that could not be read or inserted, labeled by table.",
		}, []string{"table"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mssql2mysql_errors_total",
			Help: "Recorded errors, labeled by kind and table.",
		}, []string{"kind", "table"}), // kinds: see migrate.ErrorKind plus connection, connection_cancelled, connection_failed
		ArtifactsWrittenTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "mssql2mysql_ddl_artifacts_written_total",
			Help: "DDL files written to the output directory.",
		}),
		ConnectionAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mssql2mysql_connection_attempts_total",
			Help: "Database connection attempts, labeled by database and outcome.",
		}, []string{"db", "outcome"}),
	}
}
