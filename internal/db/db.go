// Package db provides helpers for connecting to PostgreSQL or MySQL and
// running migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // mysql driver
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

// DriverFor picks the database/sql driver name from the DSN scheme.
// postgres:// and postgresql:// select pgx; everything else is treated as a
// MySQL DSN.
func DriverFor(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "pgx"
	}
	return "mysql"
}

// Connect opens a connection pool and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	driver := DriverFor(dsn)
	db, err := sql.Open(driver, openDSN(driver, dsn))
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}

	slog.Info("database connected", "driver", driver, "dsn_host", sanitizeDSN(dsn))
	return db, nil
}

// Healthy returns nil when the database is reachable.
func Healthy(ctx context.Context, db *sql.DB) error {
	return db.PingContext(ctx)
}

// openDSN converts a config DSN into the form the driver expects.
// go-sql-driver takes "user:pass@tcp(host:port)/name" without a scheme.
func openDSN(driver, dsn string) string {
	if driver == "mysql" {
		return strings.TrimPrefix(dsn, "mysql://")
	}
	return dsn
}

// sanitizeDSN strips the password from the DSN for logging purposes.
func sanitizeDSN(dsn string) string {
	// Simple approach: just show enough to identify the target.
	if len(dsn) > 40 {
		return dsn[:40] + "..."
	}
	return dsn
}
