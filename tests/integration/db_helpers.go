//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	mssqlImage = "mcr.microsoft.com/mssql/server:2022-latest"
	mysqlImage = "mysql:8.0"
)

// TestDBInstance holds a running container and an open GORM handle to it.
type TestDBInstance struct {
	Container testcontainers.Container
	DSN       string
	Dialect   string
	DB        *gorm.DB
	Host      string
	Port      nat.Port
	Username  string
	Password  string
	DBName    string
}

func mustPortInt(t *testing.T, port nat.Port) int {
	t.Helper()
	p, err := strconv.Atoi(port.Port())
	if err != nil {
		t.Fatalf("Failed to convert port %s to int: %v", port.Port(), err)
	}
	return p
}

func startContainer(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest, port nat.Port) (testcontainers.Container, string, nat.Port) {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start %s container: %s", req.Image, err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("Failed to get container host: %s", err)
	}
	mappedPort, err := container.MappedPort(ctx, port)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("Failed to get mapped port %s: %s", port, err)
	}
	return container, host, mappedPort
}

// openWithRetry opens and pings until the server accepts connections; both
// images report ready slightly before logins succeed.
func openWithRetry(ctx context.Context, t *testing.T, dialector func() gorm.Dialector) *gorm.DB {
	t.Helper()
	var lastErr error
	for i := 0; i < 15; i++ {
		gormDB, err := gorm.Open(dialector(), &gorm.Config{Logger: gormlogger.Discard})
		if err == nil {
			sqlDB, dbErr := gormDB.DB()
			if dbErr == nil {
				pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err = sqlDB.PingContext(pingCtx)
				cancel()
				if err == nil {
					return gormDB
				}
				_ = sqlDB.Close()
			} else {
				err = dbErr
			}
		}
		lastErr = err
		t.Logf("Connection attempt %d failed: %v. Retrying in 2s...", i+1, err)
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			t.Fatalf("Context cancelled while retrying connection: %v", ctx.Err())
		}
	}
	t.Fatalf("Failed to connect after retries: %v", lastErr)
	return nil
}

func startMSSQLContainer(ctx context.Context, t *testing.T) *TestDBInstance {
	t.Helper()
	dbName := "legacy"
	dbUser := "sa"
	dbPassword := "Migr4te!Str0ng"

	container, host, port := startContainer(ctx, t, testcontainers.ContainerRequest{
		Image:        mssqlImage,
		ExposedPorts: []string{"1433/tcp"},
		Env: map[string]string{
			"ACCEPT_EULA":       "Y",
			"MSSQL_SA_PASSWORD": dbPassword,
			"MSSQL_PID":         "Developer",
		},
		WaitingFor: wait.ForLog("SQL Server is now ready for client connections").
			WithStartupTimeout(180 * time.Second),
	}, "1433/tcp")

	dsnFor := func(database string) string {
		return fmt.Sprintf("sqlserver://%s:%s@%s:%s?database=%s&encrypt=disable", dbUser, dbPassword, host, port.Port(), database)
	}

	master := openWithRetry(ctx, t, func() gorm.Dialector { return sqlserver.Open(dsnFor("master")) })
	if err := master.Exec("CREATE DATABASE " + dbName).Error; err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("Failed to create database %s: %v", dbName, err)
	}
	if sqlDB, err := master.DB(); err == nil {
		_ = sqlDB.Close()
	}

	dsn := dsnFor(dbName)
	gormDB := openWithRetry(ctx, t, func() gorm.Dialector { return sqlserver.Open(dsn) })
	t.Logf("SQL Server container started. Host: %s, Port: %s", host, port.Port())

	return &TestDBInstance{
		Container: container,
		DSN:       dsn,
		Dialect:   "sqlserver",
		DB:        gormDB,
		Host:      host,
		Port:      port,
		Username:  dbUser,
		Password:  dbPassword,
		DBName:    dbName,
	}
}

func startMySQLContainer(ctx context.Context, t *testing.T) *TestDBInstance {
	t.Helper()
	dbName := "modern"
	dbUser := "migrator"
	dbPassword := "migratorpass"

	container, host, port := startContainer(ctx, t, testcontainers.ContainerRequest{
		Image:        mysqlImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_DATABASE":      dbName,
			"MYSQL_USER":          dbUser,
			"MYSQL_PASSWORD":      dbPassword,
			"MYSQL_ROOT_PASSWORD": "r00t-pass",
		},
		WaitingFor: wait.ForListeningPort("3306/tcp").
			WithStartupTimeout(120 * time.Second),
	}, "3306/tcp")

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=20s",
		dbUser, dbPassword, host, port.Port(), dbName)
	gormDB := openWithRetry(ctx, t, func() gorm.Dialector { return mysql.Open(dsn) })
	t.Logf("MySQL container started. Host: %s, Port: %s", host, port.Port())

	return &TestDBInstance{
		Container: container,
		DSN:       dsn,
		Dialect:   "mysql",
		DB:        gormDB,
		Host:      host,
		Port:      port,
		Username:  dbUser,
		Password:  dbPassword,
		DBName:    dbName,
	}
}

func stopContainer(ctx context.Context, t *testing.T, instance *TestDBInstance) {
	t.Helper()
	if instance == nil {
		return
	}
	if instance.DB != nil {
		if sqlDB, _ := instance.DB.DB(); sqlDB != nil {
			_ = sqlDB.Close()
		}
	}
	if instance.Container != nil {
		if err := instance.Container.Terminate(ctx); err != nil {
			t.Logf("Warning: failed to terminate container for %s: %s", instance.Dialect, err)
		}
	}
}

// splitSQLStatements splits a script on semicolons outside single-quoted
// strings and drops "--" line comments.
func splitSQLStatements(script string) []string {
	var statements []string
	var current strings.Builder
	inQuote := false

	runes := []rune(script)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if !inQuote && c == '-' && i+1 < len(runes) && runes[i+1] == '-' {
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			current.WriteRune('\n')
			continue
		}
		if c == '\'' {
			inQuote = !inQuote
		}
		if c == ';' && !inQuote {
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
			continue
		}
		current.WriteRune(c)
	}
	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}

func executeSQLFile(t *testing.T, db *gorm.DB, filePath string) {
	t.Helper()
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		t.Fatalf("Failed to get absolute path for SQL file %s: %s", filePath, err)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		t.Fatalf("Failed to read SQL file %s: %s", filePath, err)
	}

	for i, stmt := range splitSQLStatements(string(content)) {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("Failed to execute statement #%d from %s: %v\n%s", i+1, filePath, err, stmt)
		}
	}
}
