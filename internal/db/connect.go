package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

type driverInfo struct {
	sqlName    string
	defaultDSN string
	schema     string
}

var drivers = map[Driver]driverInfo{
	DriverSQLite: {
		sqlName:    "sqlite",
		defaultDSN: "file:examportal.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		schema:     schemaSQLite,
	},
	DriverPostgres: {
		sqlName:    "pgx",
		defaultDSN: "postgres://localhost:5432/examportal?sslmode=disable",
		schema:     schemaPostgres,
	},
}

// Open connects, verifies the connection and creates any missing tables.
// An empty dsn selects the driver's local default.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	info, ok := drivers[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
	if dsn == "" {
		dsn = info.defaultDSN
	}
	dbh, err := sql.Open(info.sqlName, dsn)
	if err != nil {
		return nil, err
	}
	switch driver {
	case DriverSQLite:
		// a single writer connection; concurrent autosaves queue instead of failing with SQLITE_BUSY
		dbh.SetMaxOpenConns(1)
	case DriverPostgres:
		dbh.SetMaxOpenConns(20)
		dbh.SetConnMaxIdleTime(5 * time.Minute)
	}
	if err := dbh.PingContext(ctx); err != nil {
		dbh.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := EnsureSchema(ctx, dbh, driver); err != nil {
		dbh.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	return dbh, nil
}

func EnsureSchema(ctx context.Context, dbh *sql.DB, driver Driver) error {
	info, ok := drivers[driver]
	if !ok {
		return fmt.Errorf("unsupported driver: %s", driver)
	}
	_, err := dbh.ExecContext(ctx, info.schema)
	return err
}

// IsUniqueViolation reports whether err came from a unique index on either driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
