package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ignite/membership-admin/internal/app"
	"github.com/ignite/membership-admin/internal/config"
	"github.com/ignite/membership-admin/internal/database"
	"github.com/ignite/membership-admin/internal/pkg/logger"
)

// Usage: migrate [--list] [dir]
// dir defaults to migrations/ (migrations/mysql/ for the mysql driver).
func main() {
	dir := ""
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		} else {
			dir = a
		}
	}

	cfg, err := config.LoadFromEnv(app.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	app.ConfigureLogger(cfg.Logging)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, driver, err := database.Open(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if listOnly {
		tables, err := database.ListTables(ctx, db, driver)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(1)
		}
		for _, t := range tables {
			fmt.Println(" ", t)
		}
		fmt.Printf("Total: %d tables\n", len(tables))
		return
	}

	if dir == "" {
		dir = "migrations"
		if driver == database.DriverMySQL {
			dir = filepath.Join(dir, "mysql")
		}
	}

	results, err := database.Migrate(ctx, db, driver, dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	var okCount, errCount int
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("  %s ... ERROR: %v\n", r.File, r.Err)
			errCount++
			continue
		}
		fmt.Printf("  %s ... OK\n", r.File)
		okCount++
	}
	logger.Info("migrations complete", "dir", dir, "ok", okCount, "errors", errCount)
	if errCount > 0 {
		os.Exit(1)
	}
}
