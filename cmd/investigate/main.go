package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ignite/membership-admin/internal/app"
	"github.com/ignite/membership-admin/internal/audit"
	"github.com/ignite/membership-admin/internal/pkg/logger"
	"github.com/ignite/membership-admin/internal/service/geography"
	"github.com/ignite/membership-admin/internal/storage"
)

func main() {
	configPath := flag.String("config", app.ConfigPath(), "path to config.yaml (empty: defaults and env only)")
	wards := flag.String("wards", "", "comma-separated ward codes to spot-check (default from config)")
	archiveDir := flag.String("archive-dir", "", "write the JSON report here when no S3 bucket is configured")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall deadline")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	env, err := app.Setup(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	defer env.Close()
	cfg := env.Config

	sampleWards := cfg.Geography.SampleWards
	if *wards != "" {
		sampleWards = nil
		for _, w := range strings.Split(*wards, ",") {
			if w = strings.TrimSpace(w); w != "" {
				sampleWards = append(sampleWards, w)
			}
		}
	}

	inv := audit.NewInvestigator(
		env.Members,
		geography.NewAuditor(env.GeoRepo, cfg.Geography.AuditSamples),
		env.Resolver,
		audit.Options{
			SampleWards:   sampleWards,
			ScanBatchSize: cfg.Membership.BatchSize,
			SampleLimit:   cfg.Membership.SampleLimit,
		},
	)
	rep := inv.Run(ctx)

	renderer, err := audit.NewRenderer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	text, err := renderer.Render(rep)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(text)

	if archive := selectArchive(ctx, cfg.Reports.Enabled(), *archiveDir, env); archive != nil {
		loc, err := archive.Save(ctx, rep.RunID, rep.StartedAt, rep)
		if err != nil {
			logger.Error("report archive failed", "run_id", rep.RunID, "error", err)
		} else {
			fmt.Printf("Report archived to %s\n", loc)
		}
	}

	if !rep.Passed() {
		os.Exit(1)
	}
}

func selectArchive(ctx context.Context, s3Enabled bool, dir string, env *app.Env) storage.Archive {
	if s3Enabled {
		a, err := storage.NewS3Archive(ctx, env.Config.Reports)
		if err != nil {
			logger.Error("s3 archive unavailable", "error", err)
			return nil
		}
		return a
	}
	if dir != "" {
		return storage.FileArchive{Dir: dir}
	}
	return nil
}
