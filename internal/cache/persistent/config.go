package persistent

import (
	"fmt"

	"cache-engine/internal/common/errors"
)

// Driver selects the SQL backend.
type Driver string

const (
	// DriverSQLite stores entries in a local SQLite file
	DriverSQLite Driver = "sqlite"
	// DriverPostgres stores entries in a PostgreSQL database
	DriverPostgres Driver = "postgres"
)

// Config holds the persistent tier settings.
type Config struct {
	Driver Driver `json:"driver"`

	// SQLite
	Path string `json:"path,omitempty"`

	// PostgreSQL
	Host     string `json:"host,omitempty"`
	Port     string `json:"port,omitempty"`
	Database string `json:"database,omitempty"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	SSLMode  string `json:"ssl_mode,omitempty"`
}

// Validate checks the config for the selected driver.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			return errors.Config("sqlite database path is required")
		}
	case DriverPostgres:
		if c.Host == "" {
			return errors.Config("postgres host is required")
		}
		if c.Database == "" {
			return errors.Config("postgres database name is required")
		}
		if c.User == "" {
			return errors.Config("postgres user is required")
		}
	default:
		return errors.Config(fmt.Sprintf("unknown persistent store driver: %s", c.Driver))
	}
	return nil
}

// dsn builds the driver-specific connection string.
func (c *Config) dsn() string {
	switch c.Driver {
	case DriverPostgres:
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
			c.Host, c.Port, c.Database, c.User, c.Password, sslMode)
	default:
		return c.Path
	}
}

// driverName returns the database/sql driver name.
func (c *Config) driverName() string {
	if c.Driver == DriverPostgres {
		return "pgx"
	}
	return "sqlite3"
}
