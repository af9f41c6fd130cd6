package sqlstore

import (
	"fmt"
	"os"
	"strconv"
)

// Config assembles a DSN and dialect from TYLER_DB_* environment variables
// (spec.md §4.2's "connection URL; if unset, an ephemeral local database is
// used").
type Config struct {
	Dialect  Dialect
	DSN      string
	PoolSize int
}

// ConfigFromEnv reads TYLER_DB_TYPE (postgres|sqlite, default sqlite) and
// TYLER_DB_HOST/PORT/NAME/USER/PASSWORD/POOL_SIZE; TYLER_DB_ECHO and
// TYLER_DB_MAX_OVERFLOW are not read. An unset or invalid TYLER_DB_TYPE
// selects SQLite at TYLER_DB_NAME, or an ephemeral in-memory SQLite
// database when TYLER_DB_NAME is unset, matching the ambient "no partial
// configuration" rule.
func ConfigFromEnv() Config {
	dialect := Dialect(os.Getenv("TYLER_DB_TYPE"))
	poolSize := 0
	if v := os.Getenv("TYLER_DB_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			poolSize = n
		}
	}

	switch dialect {
	case DialectPostgres:
		host := envOr("TYLER_DB_HOST", "localhost")
		port := envOr("TYLER_DB_PORT", "5432")
		name := envOr("TYLER_DB_NAME", "tyler")
		user := envOr("TYLER_DB_USER", "tyler")
		password := os.Getenv("TYLER_DB_PASSWORD")
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)
		return Config{Dialect: DialectPostgres, DSN: dsn, PoolSize: poolSize}
	default:
		path := envOr("TYLER_DB_NAME", "file::memory:?cache=shared")
		return Config{Dialect: DialectSQLite, DSN: path, PoolSize: poolSize}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
