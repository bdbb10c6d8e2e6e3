package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"net"
	"net/url"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/arwahdevops/mssql2mysql/internal/anonymize"
	"github.com/arwahdevops/mssql2mysql/internal/config"
	"github.com/arwahdevops/mssql2mysql/internal/db"
	"github.com/arwahdevops/mssql2mysql/internal/logger"
	"github.com/arwahdevops/mssql2mysql/internal/metrics"
	"github.com/arwahdevops/mssql2mysql/internal/migrate"
	"github.com/arwahdevops/mssql2mysql/internal/secrets"
	"github.com/arwahdevops/mssql2mysql/internal/server"
	"github.com/arwahdevops/mssql2mysql/internal/utils"
)

var (
	workersOverride   int
	tablesOverride    string
	ddlDirOverride    string
	timeoutOverride   time.Duration
	nativeJSONDisable bool
)

func main() {
	flag.IntVar(&workersOverride, "workers", 0, "Override WORKERS (must be > 0)")
	flag.StringVar(&tablesOverride, "tables", "", "Override TABLES (comma separated source table names)")
	flag.StringVar(&ddlDirOverride, "ddl-dir", "", "Override DDL_OUTPUT_PATH")
	flag.DurationVar(&timeoutOverride, "table-timeout", 0, "Override TABLE_TIMEOUT")
	flag.BoolVar(&nativeJSONDisable, "no-native-json", false, "Map SQL Server json columns to TEXT instead of JSON")
	flag.Parse()

	// 1. .env overrides the process environment
	if err := godotenv.Overload(".env"); err != nil {
		stdlog.Printf("Warning: Could not load .env file: %v. Relying on environment variables.\n", err)
	}

	// 2. Logger settings are needed before the full config can be validated
	preCfg := &struct {
		EnableJsonLogging bool `env:"ENABLE_JSON_LOGGING" envDefault:"false"`
		DebugMode         bool `env:"DEBUG_MODE" envDefault:"false"`
	}{}
	if err := env.Parse(preCfg); err != nil {
		stdlog.Fatalf("Failed to parse pre-configuration for logger: %v", err)
	}
	if err := logger.Init(preCfg.DebugMode, preCfg.EnableJsonLogging); err != nil {
		stdlog.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Log.Sync() }()

	// 3. Full configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal("Configuration loading error from environment", zap.Error(err))
	}
	applyCliOverrides(cfg)
	logLoadedConfig(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsStore := metrics.NewMetricsStore()

	// 4. Secret managers
	vaultMgr, vaultErr := secrets.NewVaultManager(cfg, logger.Log)
	if vaultErr != nil {
		logger.Log.Fatal("Failed to initialize Vault secret manager", zap.Error(vaultErr))
	}
	availableSecretManagers := make([]secrets.SecretManager, 0, 1)
	if vaultMgr.IsEnabled() {
		availableSecretManagers = append(availableSecretManagers, vaultMgr)
	}

	// 5. Credentials
	srcCreds, err := loadCredentials(ctx, &cfg.SrcDB, "source", cfg.SrcSecretPath, cfg.SrcUsernameKey, cfg.SrcPasswordKey, availableSecretManagers)
	if err != nil {
		logger.Log.Fatal("Failed to load source DB credentials", zap.Error(err))
	}
	dstCreds, err := loadCredentials(ctx, &cfg.DstDB, "destination", cfg.DstSecretPath, cfg.DstUsernameKey, cfg.DstPasswordKey, availableSecretManagers)
	if err != nil {
		logger.Log.Fatal("Failed to load destination DB credentials", zap.Error(err))
	}

	// 6. Connections
	logger.Log.Info("Connecting to databases...")
	var srcConn, dstConn *db.Connector
	var srcErr, dstErr error
	var dbWg sync.WaitGroup
	dbWg.Add(2)
	go func() {
		defer dbWg.Done()
		srcConn, srcErr = connectDBWithRetry(ctx, cfg.SrcDB, srcCreds.Username, srcCreds.Password, cfg.MaxRetries, cfg.RetryInterval, "source", metricsStore)
	}()
	go func() {
		defer dbWg.Done()
		dstConn, dstErr = connectDBWithRetry(ctx, cfg.DstDB, dstCreds.Username, dstCreds.Password, cfg.MaxRetries, cfg.RetryInterval, "destination", metricsStore)
	}()
	dbWg.Wait()
	if srcErr != nil {
		logger.Log.Fatal("Failed to establish source DB connection", zap.Error(srcErr))
	}
	if dstErr != nil {
		logger.Log.Fatal("Failed to establish destination DB connection", zap.Error(dstErr))
	}
	defer func() {
		for _, conn := range []*db.Connector{srcConn, dstConn} {
			if err := conn.Close(); err != nil {
				logger.Log.Error("Error closing DB connection", zap.String("dialect", conn.Dialect), zap.Error(err))
			}
		}
	}()

	if err := srcConn.Optimize(cfg.ConnPoolSize, cfg.ConnMaxLifetime); err != nil {
		logger.Log.Warn("Failed to optimize source DB pool", zap.Error(err))
	}
	if err := dstConn.Optimize(cfg.ConnPoolSize, cfg.ConnMaxLifetime); err != nil {
		logger.Log.Warn("Failed to optimize destination DB pool", zap.Error(err))
	}

	// 7. Metrics and health endpoints
	serverCtx, stopServer := context.WithCancel(ctx)
	var serverWg sync.WaitGroup
	if cfg.MetricsPort != 0 {
		serverWg.Add(1)
		go func() {
			defer serverWg.Done()
			server.RunHTTPServer(serverCtx, cfg, metricsStore, srcConn, dstConn, logger.Log)
		}()
	}

	// 8. Migration
	migrator := migrate.NewMigrator(
		migrate.NewSQLServerSource(srcConn.DB, srcConn.Dialect, cfg.SrcDB.Schema, logger.Log),
		migrate.NewMySQLDestination(dstConn.DB, dstConn.Dialect, logger.Log),
		newArtifactWriter(cfg.DDLOutputPath),
		migrate.Options{
			Tables:       cfg.Tables,
			Workers:      cfg.Workers,
			TableTimeout: cfg.TableTimeout,
			Anonymize:    anonymize.NewSet(cfg.AnonymizeMap(), utils.NormalizeIdentifier),
			AnonymizeKey: cfg.AnonymizeKey,
			NativeJSON:   cfg.NativeJSON,
		},
		logger.Log,
		metricsStore,
	)
	processResults(migrator.Run(ctx))

	stopServer()
	serverWg.Wait()
	logger.Log.Info("Shutdown complete. Exiting.")
}

// newArtifactWriter returns nil when no output directory is configured so the
// migrator skips artifact writing entirely.
func newArtifactWriter(dir string) migrate.ArtifactWriter {
	if dir == "" {
		return nil
	}
	return migrate.NewDDLWriter(afero.NewOsFs(), dir, logger.Log)
}

func applyCliOverrides(cfg *config.Config) {
	if workersOverride > 0 {
		logger.Log.Info("Overriding WORKERS with CLI flag", zap.Int("env_value", cfg.Workers), zap.Int("cli_value", workersOverride))
		cfg.Workers = workersOverride
	}
	if tablesOverride != "" {
		tables := splitTables(tablesOverride)
		logger.Log.Info("Overriding TABLES with CLI flag", zap.Strings("env_value", cfg.Tables), zap.Strings("cli_value", tables))
		cfg.Tables = tables
	}
	if ddlDirOverride != "" {
		logger.Log.Info("Overriding DDL_OUTPUT_PATH with CLI flag", zap.String("env_value", cfg.DDLOutputPath), zap.String("cli_value", ddlDirOverride))
		cfg.DDLOutputPath = ddlDirOverride
	}
	if timeoutOverride > 0 {
		logger.Log.Info("Overriding TABLE_TIMEOUT with CLI flag", zap.Duration("env_value", cfg.TableTimeout), zap.Duration("cli_value", timeoutOverride))
		cfg.TableTimeout = timeoutOverride
	}
	if nativeJSONDisable {
		logger.Log.Info("Disabling native JSON columns via CLI flag")
		cfg.NativeJSON = false
	}
}

func splitTables(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func logLoadedConfig(cfg *config.Config) {
	passwordSource := func(dbCfg config.DatabaseConfig, secretPath string) string {
		switch {
		case dbCfg.Password != "":
			return "env var"
		case cfg.VaultEnabled && secretPath != "":
			return "vault"
		default:
			return "not set"
		}
	}

	anonymized := make([]string, 0, len(cfg.AnonymizeMap()))
	for table, cols := range cfg.AnonymizeMap() {
		anonymized = append(anonymized, table+":"+strings.Join(cols, "|"))
	}

	logger.Log.Info("Final configuration in use",
		zap.Strings("tables", cfg.Tables), zap.Int("workers", cfg.Workers), zap.Duration("table_timeout", cfg.TableTimeout),
		zap.String("ddl_output_path", cfg.DDLOutputPath), zap.Bool("native_json", cfg.NativeJSON),
		zap.Strings("anonymize", anonymized), zap.Bool("anonymize_key_present", cfg.AnonymizeKey != ""),
		zap.String("src_host", cfg.SrcDB.Host), zap.Int("src_port", cfg.SrcDB.Port), zap.String("src_user", cfg.SrcDB.User), zap.String("src_password_source", passwordSource(cfg.SrcDB, cfg.SrcSecretPath)), zap.String("src_dbname", cfg.SrcDB.DBName), zap.String("src_schema", cfg.SrcDB.Schema), zap.String("src_sslmode", cfg.SrcDB.SSLMode),
		zap.String("dst_host", cfg.DstDB.Host), zap.Int("dst_port", cfg.DstDB.Port), zap.String("dst_user", cfg.DstDB.User), zap.String("dst_password_source", passwordSource(cfg.DstDB, cfg.DstSecretPath)), zap.String("dst_dbname", cfg.DstDB.DBName), zap.String("dst_sslmode", cfg.DstDB.SSLMode),
		zap.Int("max_retries", cfg.MaxRetries), zap.Duration("retry_interval", cfg.RetryInterval),
		zap.Int("conn_pool_size", cfg.ConnPoolSize), zap.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
		zap.Bool("json_logging", cfg.EnableJsonLogging), zap.Bool("enable_pprof", cfg.EnablePprof), zap.Int("metrics_port", cfg.MetricsPort), zap.Bool("debug_mode", cfg.DebugMode),
		zap.Bool("vault_enabled", cfg.VaultEnabled), zap.String("vault_addr", cfg.VaultAddr), zap.String("vault_kv_mount", cfg.VaultKVMount), zap.Bool("vault_token_present", cfg.VaultToken != ""),
	)
}

// loadCredentials prefers a password from the environment and falls back to
// the enabled secret managers when a secret path is configured.
func loadCredentials(
	ctx context.Context,
	dbCfg *config.DatabaseConfig,
	dbLabel string,
	secretPath string,
	usernameKey string,
	passwordKey string,
	secretManagers []secrets.SecretManager,
) (*secrets.Credentials, error) {
	log := logger.Log.With(zap.String("db", dbLabel))
	envPrefix := "SRC"
	if dbLabel != "source" {
		envPrefix = "DST"
	}

	if dbCfg.Password != "" {
		if dbCfg.User == "" {
			return nil, fmt.Errorf("password provided for %s DB via env var, but %s_USER is missing", dbLabel, envPrefix)
		}
		log.Info("Using credentials from environment variables")
		return &secrets.Credentials{Username: dbCfg.User, Password: dbCfg.Password}, nil
	}

	if secretPath == "" {
		return nil, fmt.Errorf("could not load credentials for %s DB: set %s_PASSWORD or enable Vault with %s_SECRET_PATH", dbLabel, envPrefix, envPrefix)
	}
	if len(secretManagers) == 0 {
		log.Warn("Secret path is configured, but no secret managers are enabled", zap.String("path_or_id", secretPath))
	}

	for _, sm := range secretManagers {
		getCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		creds, err := sm.GetCredentials(getCtx, secretPath, usernameKey, passwordKey)
		cancel()
		if err != nil {
			log.Warn("Failed to retrieve credentials from secret manager",
				zap.String("manager_type", fmt.Sprintf("%T", sm)), zap.Error(err))
			continue
		}
		if creds.Username == "" {
			creds.Username = dbCfg.User
		}
		if creds.Username == "" {
			return nil, fmt.Errorf("password retrieved for %s, but username is missing in both secret and %s_USER", dbLabel, envPrefix)
		}
		return creds, nil
	}
	return nil, fmt.Errorf("could not load credentials for %s DB from any enabled secret manager (path %q)", dbLabel, secretPath)
}

func connectDBWithRetry(
	ctx context.Context,
	dbCfg config.DatabaseConfig,
	username string,
	password string,
	maxRetries int,
	retryInterval time.Duration,
	dbLabel string,
	metricsStore *metrics.Store,
) (*db.Connector, error) {
	gl := logger.GetGormLogger()
	var lastErr error

	dsn, err := buildDSN(dbCfg, username, password)
	if err != nil {
		metricsStore.ConnectionAttempts.WithLabelValues(dbLabel, "invalid_dsn").Inc()
		return nil, fmt.Errorf("could not build DSN for %s DB: %w", dbLabel, err)
	}

	for i := 0; i <= maxRetries; i++ {
		attemptStartTime := time.Now()
		if i > 0 {
			logger.Log.Warn("Retrying database connection",
				zap.String("db", dbLabel),
				zap.Int("attempt", i+1),
				zap.Int("max_attempts", maxRetries+1),
				zap.Duration("wait_interval", retryInterval),
				zap.NamedError("previous_error", lastErr))
			timer := time.NewTimer(retryInterval)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				metricsStore.ConnectionAttempts.WithLabelValues(dbLabel, "cancelled").Inc()
				return nil, fmt.Errorf("context cancelled while waiting to retry connection to %s DB (attempt %d): %w; last error: %v", dbLabel, i+1, ctx.Err(), lastErr)
			}
		}

		logger.Log.Info("Attempting to connect",
			zap.String("db", dbLabel),
			zap.String("dialect", dbCfg.Dialect),
			zap.String("host", dbCfg.Host),
			zap.Int("port", dbCfg.Port),
			zap.String("dbname", dbCfg.DBName),
			zap.String("user", username),
			zap.Int("attempt", i+1))

		conn, err := db.New(dbCfg.Dialect, dsn, gl, logger.Log)
		if err != nil {
			metricsStore.ConnectionAttempts.WithLabelValues(dbLabel, "failed").Inc()
			lastErr = fmt.Errorf("connect attempt %d/%d failed for %s: %w", i+1, maxRetries+1, dbLabel, err)
			continue
		}

		if pingErr := conn.Ping(ctx); pingErr != nil {
			metricsStore.ConnectionAttempts.WithLabelValues(dbLabel, "failed").Inc()
			lastErr = fmt.Errorf("ping attempt %d/%d failed for %s: %w", i+1, maxRetries+1, dbLabel, pingErr)
			_ = conn.Close()
			continue
		}

		metricsStore.ConnectionAttempts.WithLabelValues(dbLabel, "success").Inc()
		logger.Log.Info("Database connection successful",
			zap.String("db", dbLabel),
			zap.Duration("connect_duration", time.Since(attemptStartTime)))
		return conn, nil
	}

	return nil, fmt.Errorf("failed to connect to %s DB (%s at %s:%d) after %d attempts: %w", dbLabel, dbCfg.Dialect, dbCfg.Host, dbCfg.Port, maxRetries+1, lastErr)
}

// buildDSN renders the driver-specific connection string.
func buildDSN(cfg config.DatabaseConfig, username, password string) (string, error) {
	sslmode := strings.ToLower(cfg.SSLMode)
	hostPort := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	switch strings.ToLower(cfg.Dialect) {
	case config.DialectSQLServer:
		query := url.Values{}
		query.Set("database", cfg.DBName)
		query.Set("connection timeout", "10")
		switch sslmode {
		case "", "disable":
			query.Set("encrypt", "disable")
		case "require":
			query.Set("encrypt", "true")
			query.Set("TrustServerCertificate", "true")
		case "verify-full":
			query.Set("encrypt", "true")
		case "strict":
			query.Set("encrypt", "strict")
		default:
			return "", fmt.Errorf("unsupported sslmode %q for sqlserver", sslmode)
		}
		u := &url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(username, password),
			Host:     hostPort,
			RawQuery: query.Encode(),
		}
		return u.String(), nil

	case config.DialectMySQL:
		mc := mysql.NewConfig()
		mc.User = username
		mc.Passwd = password
		mc.Net = "tcp"
		mc.Addr = hostPort
		mc.DBName = cfg.DBName
		mc.ParseTime = true
		mc.Loc = time.Local
		mc.Timeout = 10 * time.Second
		mc.ReadTimeout = 60 * time.Second
		mc.WriteTimeout = 60 * time.Second
		mc.Params = map[string]string{"charset": "utf8mb4"}
		switch sslmode {
		case "", "disable":
			mc.TLSConfig = "false"
		case "require":
			mc.TLSConfig = "skip-verify"
		case "verify-full":
			mc.TLSConfig = "true"
		default:
			return "", fmt.Errorf("unsupported sslmode %q for mysql", sslmode)
		}
		return mc.FormatDSN(), nil

	default:
		return "", fmt.Errorf("unsupported dialect: %s", cfg.Dialect)
	}
}

// processResults logs one line per table and the full error list. A completed
// run exits 0 even when degraded; callers inspect the log and metrics.
func processResults(report *migrate.Report) {
	if len(report.Order) == 0 && !report.Degraded() {
		logger.Log.Warn("Migration finished, but no tables were found in the source or all were filtered out.")
		return
	}

	var okTables, degradedTables, skippedTables []string
	failedByTable := make(map[string]int)
	for _, rec := range report.Errors {
		failedByTable[rec.Table]++
	}

	for _, table := range report.Order {
		res := report.Tables[table]
		fields := []zap.Field{
			zap.String("table", table),
			zap.String("target_table", res.NormalizedName),
			zap.Duration("duration", res.Duration),
			zap.Bool("schema_applied", res.SchemaApplied),
			zap.Bool("truncated", res.Truncated),
			zap.Int64("rows_read", res.RowsRead),
			zap.Int64("rows_inserted", res.RowsInserted),
			zap.Int64("rows_failed", res.RowsFailed),
			zap.Int64("fields_dropped", res.FieldsDropped),
			zap.Int64("fields_anonymized", res.FieldsAnonymized),
			zap.Int("errors", failedByTable[table]),
		}
		if res.ArtifactPath != "" {
			fields = append(fields, zap.String("ddl_artifact", res.ArtifactPath))
		}

		switch {
		case res.Skipped:
			skippedTables = append(skippedTables, table)
			logger.Log.Warn("Table SKIPPED.", append(fields, zap.String("skip_reason", res.SkipReason))...)
		case failedByTable[table] > 0:
			degradedTables = append(degradedTables, table)
			logger.Log.Warn("Table migrated with errors.", fields...)
		default:
			okTables = append(okTables, table)
			logger.Log.Info("Table migrated.", fields...)
		}
	}

	for _, rec := range report.Errors {
		logger.Log.Error("Migration error",
			zap.String("table", rec.Table),
			zap.String("phase", rec.Phase),
			zap.Int64("row", rec.Row),
			zap.String("kind", string(rec.Kind)),
			zap.String("message", rec.Message),
		)
	}

	logger.Log.Info("-------------------- Migration Summary --------------------",
		zap.Int("total_tables", len(report.Order)),
		zap.Int("tables_ok", len(okTables)),
		zap.Int("tables_degraded", len(degradedTables)),
		zap.Int("tables_skipped", len(skippedTables)),
		zap.Int("errors", len(report.Errors)),
		zap.Duration("duration", report.Duration),
	)
	if report.Degraded() {
		logger.Log.Warn("Overall migration: COMPLETED WITH ERRORS (inspect the error list above).",
			zap.Strings("degraded_tables", degradedTables),
			zap.Strings("skipped_tables", skippedTables))
	} else {
		logger.Log.Info("Overall migration: COMPLETED SUCCESSFULLY.")
	}
}
