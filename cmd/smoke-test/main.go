package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ignite/membership-admin/internal/app"
	"github.com/ignite/membership-admin/internal/config"
	"github.com/ignite/membership-admin/internal/smoketest"
)

func main() {
	configPath := flag.String("config", app.ConfigPath(), "path to config.yaml (empty: defaults and env only)")
	baseURL := flag.String("base-url", "", "API base URL (default from config / API_BASE_URL)")
	memberID := flag.Int64("member", 0, "member_id to probe (default from config)")
	ward := flag.String("ward", "", "ward code to probe (default from config)")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	app.ConfigureLogger(cfg.Logging)

	if *baseURL != "" {
		cfg.API.BaseURL = *baseURL
	}
	if *memberID == 0 {
		*memberID = cfg.API.SampleMemberID
	}
	if *ward == "" {
		*ward = cfg.API.SampleWardCode
	}

	fmt.Println("=========================================================")
	fmt.Println(" Membership Admin API Smoke Test")
	fmt.Println("=========================================================")
	fmt.Printf("Target:   %s\n", cfg.API.BaseURL)
	fmt.Println("---------------------------------------------------------")

	client := smoketest.NewClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout(), cfg.API.MaxRetries)
	today := time.Now().In(cfg.Membership.Location())
	results := client.Run(context.Background(), smoketest.DefaultChecks(today, *memberID, *ward))

	allPassed := true
	for i, r := range results {
		status := "PASS ✓"
		if !r.Passed {
			status = "FAIL ✗"
			allPassed = false
		}
		fmt.Printf("  [%d] %-40s %s  (%s)\n", i+1, r.Name, status, r.Elapsed.Round(time.Millisecond))
		fmt.Printf("      %s %s\n", r.Method, r.Path)
		for _, line := range strings.Split(r.Detail, "\n") {
			fmt.Printf("      %s\n", line)
		}
	}

	fmt.Println("=========================================================")
	if allPassed {
		fmt.Println("  OVERALL: PASS ✓  All endpoints responded as expected")
		fmt.Println("=========================================================")
		return
	}
	fmt.Println("  OVERALL: FAIL ✗  One or more endpoints failed")
	fmt.Println("=========================================================")
	os.Exit(1)
}
