package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
	"go.uber.org/multierr"

	"github.com/arwahdevops/mssql2mysql/internal/utils"
)

type Config struct {
	// Migration Settings
	Tables        []string          `env:"TABLES" envSeparator:","`                           // Empty = all base tables
	DDLOutputPath string            `env:"DDL_OUTPUT_PATH"`                                   // Written only if the directory exists
	Anonymize     map[string]string `env:"ANONYMIZE" envSeparator:";" envKeyValSeparator:":"` // table:col1|col2;table2:col
	AnonymizeKey  string            `env:"ANONYMIZE_KEY"`
	NativeJSON    bool              `env:"NATIVE_JSON" envDefault:"true"` // Destination supports JSON columns
	Workers       int               `env:"WORKERS" envDefault:"1"`        // 1 = strictly sequential
	TableTimeout  time.Duration     `env:"TABLE_TIMEOUT" envDefault:"0s"` // 0 = no timeout per table

	anonymizeMap map[string][]string // parsed from Anonymize by validateConfig

	// Retry Logic (connection establishment only)
	MaxRetries    int           `env:"MAX_RETRIES" envDefault:"3"`
	RetryInterval time.Duration `env:"RETRY_INTERVAL" envDefault:"5s"`

	// Connection Pool
	ConnPoolSize    int           `env:"CONN_POOL_SIZE" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"1h"`

	// Observability & Debugging
	EnableJsonLogging bool `env:"ENABLE_JSON_LOGGING" envDefault:"false"`
	DebugMode         bool `env:"DEBUG_MODE" envDefault:"false"`
	EnablePprof       bool `env:"ENABLE_PPROF" envDefault:"false"`
	MetricsPort       int  `env:"METRICS_PORT" envDefault:"9091"` // 0 disables /metrics, /healthz, /readyz

	// Vault
	VaultEnabled    bool   `env:"VAULT_ENABLED" envDefault:"false"`
	VaultAddr       string `env:"VAULT_ADDR" envDefault:"http://127.0.0.1:8200"`
	VaultToken      string `env:"VAULT_TOKEN"`
	VaultCACert     string `env:"VAULT_CACERT"`
	VaultSkipVerify bool   `env:"VAULT_SKIP_VERIFY" envDefault:"false"`
	VaultKVMount    string `env:"VAULT_KV_MOUNT" envDefault:"secret"`
	SrcSecretPath   string `env:"SRC_SECRET_PATH"`
	DstSecretPath   string `env:"DST_SECRET_PATH"`
	SrcUsernameKey  string `env:"SRC_USERNAME_KEY" envDefault:"username"`
	SrcPasswordKey  string `env:"SRC_PASSWORD_KEY" envDefault:"password"`
	DstUsernameKey  string `env:"DST_USERNAME_KEY" envDefault:"username"`
	DstPasswordKey  string `env:"DST_PASSWORD_KEY" envDefault:"password"`

	// Database Configurations
	SrcDB DatabaseConfig `envPrefix:"SRC_"`
	DstDB DatabaseConfig `envPrefix:"DST_"`
}

// DatabaseConfig holds one endpoint. Dialect is fixed by Load: the source is
// always sqlserver and the destination always mysql. Port 0 selects the
// dialect default, an empty Password means Vault lookup, and Schema filters
// SQL Server tables (e.g. dbo). SSLMode is disable, require or verify-full;
// the source also accepts strict.
type DatabaseConfig struct {
	Dialect  string
	Host     string `env:"HOST,required,notEmpty"`
	Port     int    `env:"PORT"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	DBName   string `env:"DBNAME,required,notEmpty"`
	Schema   string `env:"SCHEMA"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
}

const (
	DialectSQLServer = "sqlserver"
	DialectMySQL     = "mysql"
)

var defaultPorts = map[string]int{DialectSQLServer: 1433, DialectMySQL: 3306}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config parsing error: %w", err)
	}
	cfg.SrcDB.Dialect = DialectSQLServer
	cfg.DstDB.Dialect = DialectMySQL

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AnonymizeMap returns table -> columns as configured by ANONYMIZE.
func (c *Config) AnonymizeMap() map[string][]string {
	return c.anonymizeMap
}

func validateConfig(cfg *Config) error {
	var errs error

	for _, db := range []*DatabaseConfig{&cfg.SrcDB, &cfg.DstDB} {
		if db.Port == 0 {
			db.Port = defaultPorts[db.Dialect]
		}
		db.SSLMode = strings.ToLower(strings.TrimSpace(db.SSLMode))
	}

	validatePort := func(port int, name string) {
		if port < 1 || port > 65535 {
			errs = multierr.Append(errs, fmt.Errorf("invalid %s port: %d", name, port))
		}
	}
	validatePort(cfg.SrcDB.Port, "source")
	validatePort(cfg.DstDB.Port, "destination")
	if cfg.MetricsPort != 0 {
		validatePort(cfg.MetricsPort, "metrics")
	}

	if cfg.Workers <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("workers must be positive"))
	}
	if cfg.MaxRetries < 0 {
		errs = multierr.Append(errs, fmt.Errorf("max retries cannot be negative"))
	}
	if cfg.ConnPoolSize <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("connection pool size must be positive"))
	}
	if cfg.TableTimeout < 0 {
		errs = multierr.Append(errs, fmt.Errorf("table timeout cannot be negative"))
	}

	validSSL := map[string]bool{"disable": true, "require": true, "verify-full": true}
	if !validSSL[cfg.SrcDB.SSLMode] && cfg.SrcDB.SSLMode != "strict" {
		errs = multierr.Append(errs, fmt.Errorf("invalid SSL mode for source DB: %s", cfg.SrcDB.SSLMode))
	}
	if !validSSL[cfg.DstDB.SSLMode] {
		errs = multierr.Append(errs, fmt.Errorf("invalid SSL mode for destination DB: %s", cfg.DstDB.SSLMode))
	}

	cfg.Tables = compact(cfg.Tables)

	parsed, err := parseAnonymize(cfg.Anonymize)
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	cfg.anonymizeMap = parsed
	if len(parsed) > 0 && cfg.AnonymizeKey == "" {
		errs = multierr.Append(errs, fmt.Errorf("ANONYMIZE_KEY is required when ANONYMIZE is set"))
	}

	return errs
}

// parseAnonymize splits "col1|col2" values. Table and column names are kept
// raw; they are normalized when the lookup set is built.
func parseAnonymize(raw map[string]string) (map[string][]string, error) {
	out := make(map[string][]string, len(raw))
	var errs error
	for table, cols := range raw {
		table = strings.TrimSpace(table)
		if utils.NormalizeIdentifier(table) == "" {
			errs = multierr.Append(errs, fmt.Errorf("anonymize: table name %q is empty after normalization", table))
			continue
		}
		columns := compact(strings.Split(cols, "|"))
		if len(columns) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("anonymize: no columns listed for table %q", table))
			continue
		}
		for _, c := range columns {
			if utils.NormalizeIdentifier(c) == "" {
				errs = multierr.Append(errs, fmt.Errorf("anonymize: column name %q of table %q is empty after normalization", c, table))
			}
		}
		out[table] = append(out[table], columns...)
	}
	return out, errs
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
