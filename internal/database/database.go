// Package database opens the membership database for either the current
// PostgreSQL schema or the legacy MySQL one.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/ignite/membership-admin/internal/config"
	"github.com/ignite/membership-admin/internal/pkg/logger"
)

// Driver names accepted in config.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// ErrNoURL is returned when no connection string is configured.
var ErrNoURL = errors.New("database url is required (set DATABASE_URL)")

// DriverName validates and normalizes a configured driver name.
func DriverName(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "postgres", "postgresql", "pg":
		return DriverPostgres, nil
	case "mysql", "mariadb":
		return DriverMySQL, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", name)
}

// NormalizeDSN makes sure the MySQL DSN scans DATE columns into time.Time.
// PostgreSQL DSNs are returned unchanged.
func NormalizeDSN(driver, dsn string) (string, error) {
	if driver != DriverMySQL {
		return dsn, nil
	}
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	c.ParseTime = true
	return c.FormatDSN(), nil
}

// Open opens the database described by cfg, applies pool settings and
// pings it within the configured timeout.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, string, error) {
	if cfg.URL == "" {
		return nil, "", ErrNoURL
	}
	driver, err := DriverName(cfg.Driver)
	if err != nil {
		return nil, "", err
	}
	dsn, err := NormalizeDSN(driver, cfg.URL)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", driver, err)
	}
	Configure(db, cfg)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("ping %s: %w", driver, err)
	}
	logger.Info("connected to database", "driver", driver)
	return db, driver, nil
}

// Configure applies the pool limits from cfg.
func Configure(db *sql.DB, cfg config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime())
	}
}
