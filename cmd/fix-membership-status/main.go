package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/membership-admin/internal/app"
	"github.com/ignite/membership-admin/internal/pkg/distlock"
	"github.com/ignite/membership-admin/internal/pkg/logger"
	"github.com/ignite/membership-admin/internal/service/membership"
)

func main() {
	configPath := flag.String("config", app.ConfigPath(), "path to config.yaml (empty: defaults and env only)")
	dryRun := flag.Bool("dry-run", false, "count mismatches without writing")
	batchSize := flag.Int("batch-size", 0, "members per batch (default from config)")
	maxBatches := flag.Int("max-batches", 0, "stop after this many batches (0 = all)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := app.Setup(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	defer env.Close()
	cfg := env.Config

	opts := membership.ReconcileOptions{
		BatchSize:   cfg.Membership.BatchSize,
		MaxBatches:  *maxBatches,
		DryRun:      *dryRun,
		Pause:       cfg.Membership.BatchPause(),
		SampleLimit: cfg.Membership.SampleLimit,
	}
	if *batchSize != 0 {
		opts.BatchSize = *batchSize
	}

	fmt.Println("=========================================================")
	fmt.Println(" Membership Status Correction")
	fmt.Println("=========================================================")
	fmt.Printf("Mode:         %s\n", mode(opts.DryRun))
	fmt.Printf("Grace days:   %d\n", cfg.Membership.GraceDays)
	fmt.Printf("Timezone:     %s\n", cfg.Membership.Location())
	fmt.Printf("Batch size:   %d\n", opts.BatchSize)
	fmt.Println("---------------------------------------------------------")

	var summary *membership.ReconcileSummary
	lock := distlock.NewLock(env.Redis, env.DB, env.Driver, cfg.Lock.Key, cfg.Lock.TTL())
	err = distlock.Run(ctx, lock, cfg.Lock.TTL(), func(ctx context.Context) error {
		var runErr error
		summary, runErr = env.Members.Reconcile(ctx, opts)
		return runErr
	})
	if errors.Is(err, distlock.ErrLockHeld) {
		fmt.Fprintln(os.Stderr, "FATAL: another fix-membership-status run holds the lock")
		os.Exit(2)
	}

	if summary != nil {
		printSummary(summary)
	}
	if err != nil {
		logger.Error("reconcile failed", "error", err)
		fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
		os.Exit(1)
	}
}

func mode(dryRun bool) string {
	if dryRun {
		return "DRY RUN (no writes)"
	}
	return "APPLY"
}

func printSummary(s *membership.ReconcileSummary) {
	fmt.Printf("Run ID:         %s\n", s.RunID)
	fmt.Printf("As of:          %s\n", s.AsOf.Format("2006-01-02"))
	fmt.Printf("Batches:        %d\n", s.Batches)
	fmt.Printf("Scanned:        %d\n", s.Scanned)
	fmt.Printf("No expiry date: %d\n", s.UnknownExpiry)
	fmt.Printf("Mismatched:     %d\n", s.Mismatched)
	fmt.Printf("Updated:        %d\n", s.Updated)
	fmt.Printf("Elapsed:        %s\n", s.Elapsed.Round(time.Millisecond))
	if len(s.Transitions) > 0 {
		fmt.Println("Transitions:")
		for _, k := range s.TransitionKeys() {
			fmt.Printf("  %-32s %d\n", k, s.Transitions[k])
		}
	}
	if len(s.Samples) > 0 {
		fmt.Println("Sample changes:")
		for _, c := range s.Samples {
			expiry := "-"
			if c.ExpiryDate != nil {
				expiry = c.ExpiryDate.Format("2006-01-02")
			}
			fmt.Printf("  member %-10d expiry %s  %s -> %s\n", c.MemberID, expiry, c.FromStatus, c.ToStatus)
		}
	}
	fmt.Println("=========================================================")
}
