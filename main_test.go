package main

import (
	"net/url"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arwahdevops/mssql2mysql/internal/config"
)

func TestBuildDSNSQLServer(t *testing.T) {
	dsn, err := buildDSN(config.DatabaseConfig{
		Dialect: config.DialectSQLServer,
		Host:    "mssql.local",
		Port:    1433,
		DBName:  "Legacy DB",
		SSLMode: "require",
	}, "sa", "p@ss:w/rd?")
	require.NoError(t, err)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "mssql.local:1433", u.Host)
	assert.Equal(t, "sa", u.User.Username())
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss:w/rd?", password)
	assert.Equal(t, "Legacy DB", u.Query().Get("database"))
	assert.Equal(t, "true", u.Query().Get("encrypt"))
	assert.Equal(t, "true", u.Query().Get("TrustServerCertificate"))
}

func TestBuildDSNSQLServerEncryptModes(t *testing.T) {
	for mode, want := range map[string]string{"disable": "disable", "": "disable", "verify-full": "true", "strict": "strict"} {
		dsn, err := buildDSN(config.DatabaseConfig{Dialect: config.DialectSQLServer, Host: "h", Port: 1433, DBName: "d", SSLMode: mode}, "u", "p")
		require.NoError(t, err, mode)
		u, err := url.Parse(dsn)
		require.NoError(t, err)
		assert.Equal(t, want, u.Query().Get("encrypt"), mode)
		assert.Empty(t, u.Query().Get("TrustServerCertificate"), mode)
	}
}

func TestBuildDSNMySQL(t *testing.T) {
	dsn, err := buildDSN(config.DatabaseConfig{
		Dialect: config.DialectMySQL,
		Host:    "mysql.local",
		Port:    3307,
		DBName:  "modern",
		SSLMode: "disable",
	}, "app", "s3:cr@t")
	require.NoError(t, err)

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "app", parsed.User)
	assert.Equal(t, "s3:cr@t", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "mysql.local:3307", parsed.Addr)
	assert.Equal(t, "modern", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, 10*time.Second, parsed.Timeout)
	assert.Equal(t, "utf8mb4", parsed.Params["charset"])
}

func TestBuildDSNErrors(t *testing.T) {
	_, err := buildDSN(config.DatabaseConfig{Dialect: "postgres", Host: "h", Port: 5432}, "u", "p")
	assert.Error(t, err)

	_, err = buildDSN(config.DatabaseConfig{Dialect: config.DialectMySQL, Host: "h", Port: 3306, SSLMode: "strict"}, "u", "p")
	assert.Error(t, err)
}

func TestSplitTables(t *testing.T) {
	assert.Equal(t, []string{"Customers", "Order Details"}, splitTables(" Customers ,, Order Details,"))
	assert.Nil(t, splitTables(" , "))
}
