package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MigrationResult records the outcome of one migration file.
type MigrationResult struct {
	File string
	Err  error
}

// MigrationFiles returns the .sql files of dir in lexical order.
func MigrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Migrate applies every file in dir. Files are expected to be idempotent
// (CREATE ... IF NOT EXISTS). A failing file is reported and the next one
// still runs. On PostgreSQL each file runs in its own transaction; MySQL
// commits DDL implicitly, so its files run statement by statement.
func Migrate(ctx context.Context, db *sql.DB, driver, dir string) ([]MigrationResult, error) {
	files, err := MigrationFiles(dir)
	if err != nil {
		return nil, err
	}

	var results []MigrationResult
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return results, fmt.Errorf("read %s: %w", f, err)
		}
		content := string(data)
		if strings.TrimSpace(content) == "" {
			continue
		}

		if driver == DriverMySQL {
			err = execStatements(ctx, db, content)
		} else {
			err = execInTx(ctx, db, content)
		}
		results = append(results, MigrationResult{File: f, Err: err})
	}
	return results, nil
}

func execInTx(ctx context.Context, db *sql.DB, content string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, content); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func execStatements(ctx context.Context, db *sql.DB, content string) error {
	for _, stmt := range SplitStatements(content) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SplitStatements splits a SQL script on semicolons that end a line,
// dropping "--" comment lines. It does not understand semicolons inside
// string literals that end a line.
func SplitStatements(script string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(cur.String()), ";")
			out = append(out, stmt)
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}

// ListTables returns the membership tables present in the current schema.
func ListTables(ctx context.Context, db *sql.DB, driver string) ([]string, error) {
	q := `SELECT tablename FROM pg_tables WHERE schemaname = current_schema() ORDER BY tablename`
	if driver == DriverMySQL {
		q = `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name`
	}
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}
