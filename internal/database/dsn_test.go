package database

import (
	"testing"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "staffhub", Name: "staffhub"})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=staffhub dbname=staffhub sslmode=disable", dsn)
}

func TestBuildPostgresDSNWithOptions(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "user",
		Name:     "db",
		Host:     "db.example.com",
		Port:     6543,
		Password: "pass",
		Options: map[string]string{
			"sslmode":     "require",
			"search_path": "public",
		},
	})
	require.NoError(t, err)
	for _, part := range []string{
		"host=db.example.com", "port=6543", "user=user", "dbname=db",
		"password=pass", "sslmode=require", "search_path=public",
	} {
		require.Contains(t, dsn, part)
	}
}

func TestBuildPostgresDSNQuotesAwkwardPasswords(t *testing.T) {
	const password = `p w'd\x`
	dsn, err := buildPostgresDSN(Config{User: "hr", Name: "staffhub", Password: password})
	require.NoError(t, err)

	parsed, err := pgconn.ParseConfig(dsn)
	require.NoError(t, err)
	require.Equal(t, password, parsed.Password)
	require.Equal(t, "hr", parsed.User)
	require.Equal(t, "staffhub", parsed.Database)
}

func TestBuildPostgresDSNRejectsMalformedDSN(t *testing.T) {
	_, err := buildPostgresDSN(Config{DSN: "postgres://bad host:notaport/db"})
	require.Error(t, err)

	dsn, err := buildPostgresDSN(Config{DSN: "postgres://hr:pw@db:5432/staffhub"})
	require.NoError(t, err)
	require.Equal(t, "postgres://hr:pw@db:5432/staffhub", dsn)
}

func TestBuildPostgresDSNRequiresUserAndName(t *testing.T) {
	_, err := buildPostgresDSN(Config{})
	require.Error(t, err)
}

func TestBuildMySQLDSNDefaults(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "staffhub", Name: "staffhub"})
	require.NoError(t, err)

	parsed, err := mysqldrv.ParseDSN(dsn)
	require.NoError(t, err)
	require.Equal(t, "staffhub", parsed.User)
	require.Equal(t, "127.0.0.1:3306", parsed.Addr)
	require.Equal(t, "staffhub", parsed.DBName)
	require.True(t, parsed.ParseTime)
	require.Equal(t, time.UTC, parsed.Loc)
	require.Contains(t, dsn, "charset=utf8mb4")
}

func TestBuildMySQLDSNWithOptions(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "user",
		Password: "s3cr@t/",
		Name:     "db",
		Host:     "db.example.com",
		Port:     3307,
		Options:  map[string]string{"timeout": "5s"},
	})
	require.NoError(t, err)

	parsed, err := mysqldrv.ParseDSN(dsn)
	require.NoError(t, err)
	require.Equal(t, "s3cr@t/", parsed.Passwd)
	require.Equal(t, "db.example.com:3307", parsed.Addr)
	require.Equal(t, 5*time.Second, parsed.Timeout)
}

func TestBuildMySQLDSNRequiresUserAndName(t *testing.T) {
	_, err := buildMySQLDSN(Config{Host: "localhost"})
	require.Error(t, err)
}
