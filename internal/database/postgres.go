package database

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.Open(dsn), gormConfig())
}

func buildPostgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		if _, err := pgconn.ParseConfig(cfg.DSN); err != nil {
			return "", fmt.Errorf("invalid postgres dsn: %w", err)
		}
		return cfg.DSN, nil
	}

	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	params := []string{
		"host=" + quoteDSNValue(host),
		fmt.Sprintf("port=%d", port),
		"user=" + quoteDSNValue(cfg.User),
		"dbname=" + quoteDSNValue(cfg.Name),
	}

	if cfg.Password != "" {
		params = append(params, "password="+quoteDSNValue(cfg.Password))
	}

	options := map[string]string{}
	for key, value := range cfg.Options {
		options[key] = value
	}

	if _, ok := options["sslmode"]; !ok {
		options["sslmode"] = "disable"
	}

	if len(options) > 0 {
		keys := make([]string, 0, len(options))
		for key := range options {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			params = append(params, key+"="+quoteDSNValue(options[key]))
		}
	}

	return strings.Join(params, " "), nil
}

// quoteDSNValue applies libpq key/value quoting when v has spaces, quotes or
// backslashes.
func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// PostgresDSN renders the key/value connection string used by both the gorm
// driver and the pgx-backed store.
func PostgresDSN(cfg Config) (string, error) {
	return buildPostgresDSN(cfg)
}
