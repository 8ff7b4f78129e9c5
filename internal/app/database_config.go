package app

import (
	"strings"

	"github.com/charlesng35/staffhub/internal/database"
)

const (
	// AdapterGorm stores data through gorm on sqlite, postgres or mysql.
	AdapterGorm = "gorm"
	// AdapterPgx stores data through database/sql on the pgx driver.
	AdapterPgx = "pgx"
)

// AdapterName returns the normalised store adapter, defaulting to gorm.
func (c DatabaseConfig) AdapterName() string {
	adapter := strings.ToLower(strings.TrimSpace(c.Adapter))
	if adapter == "" {
		return AdapterGorm
	}
	return adapter
}

// ConnectionConfig converts DatabaseConfig into the database package representation.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	return database.Config{
		Driver:       strings.TrimSpace(c.Driver),
		Path:         strings.TrimSpace(c.Path),
		DSN:          strings.TrimSpace(c.DSN),
		Host:         strings.TrimSpace(c.Host),
		Port:         c.Port,
		Name:         strings.TrimSpace(c.Name),
		User:         strings.TrimSpace(c.User),
		Password:     c.Password,
		Options:      c.Options,
		MaxOpenConns: c.MaxOpenConns,
	}
}

// PostgresDSN renders the connection string used by the pgx adapter.
func (c DatabaseConfig) PostgresDSN() (string, error) {
	return database.PostgresDSN(c.ConnectionConfig())
}
