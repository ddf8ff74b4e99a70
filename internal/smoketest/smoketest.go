// Package smoketest exercises a running membership admin API end to end.
package smoketest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/membership-admin/internal/pkg/httpretry"
	"github.com/ignite/membership-admin/internal/pkg/logger"
)

// Check describes one endpoint probe.
type Check struct {
	Name       string
	Method     string
	Path       string
	Body       string
	Auth       bool
	WantStatus int
	// Validate inspects the decoded JSON body of a response with WantStatus.
	Validate func(body map[string]interface{}) error
}

// CheckResult is the outcome of one Check.
type CheckResult struct {
	Name    string
	Method  string
	Path    string
	Status  int
	Passed  bool
	Detail  string
	Elapsed time.Duration
}

// Client talks to the API with bearer auth and retries.
type Client struct {
	baseURL string
	token   string
	http    *httpretry.RetryClient
}

// NewClient creates a smoke-test client.
func NewClient(baseURL, token string, timeout time.Duration, maxRetries int) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpretry.NewRetryClient(&http.Client{Timeout: timeout}, maxRetries),
	}
}

// SetBackoff adjusts the retry backoff.
func (c *Client) SetBackoff(base, maxDelay time.Duration) { c.http.SetBackoff(base, maxDelay) }

// Run executes checks in order. A failing check never stops the run.
func (c *Client) Run(ctx context.Context, checks []Check) []CheckResult {
	results := make([]CheckResult, 0, len(checks))
	for _, chk := range checks {
		res := c.run(ctx, chk)
		if !res.Passed {
			logger.Warn("smoke check failed", "check", chk.Name, "status", res.Status, "detail", res.Detail)
		}
		results = append(results, res)
	}
	return results
}

func (c *Client) run(ctx context.Context, chk Check) CheckResult {
	start := time.Now()
	res := CheckResult{Name: chk.Name, Method: chk.Method, Path: chk.Path}
	fail := func(format string, args ...interface{}) CheckResult {
		res.Detail = fmt.Sprintf(format, args...)
		res.Elapsed = time.Since(start)
		return res
	}

	var body io.Reader
	if chk.Body != "" {
		body = bytes.NewReader([]byte(chk.Body))
	}
	req, err := http.NewRequestWithContext(ctx, chk.Method, c.baseURL+chk.Path, body)
	if err != nil {
		return fail("build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if chk.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if chk.Auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fail("request error: %v", err)
	}
	defer resp.Body.Close()
	res.Status = resp.StatusCode

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fail("read body: %v", err)
	}
	if resp.StatusCode != chk.WantStatus {
		return fail("expected HTTP %d, got %d: %s", chk.WantStatus, resp.StatusCode, truncate(string(raw), 200))
	}

	if chk.Validate != nil {
		var payload map[string]interface{}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fail("invalid JSON: %v", err)
		}
		if err := chk.Validate(payload); err != nil {
			return fail("%v", err)
		}
	}

	res.Passed = true
	res.Detail = fmt.Sprintf("HTTP %d", resp.StatusCode)
	res.Elapsed = time.Since(start)
	return res
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// DefaultChecks returns the standard suite. memberID and wardCode add the
// record-specific probes when set. today anchors the classify probes.
func DefaultChecks(today time.Time, memberID int64, wardCode string) []Check {
	checks := []Check{
		{Name: "Health", Method: http.MethodGet, Path: "/health", WantStatus: http.StatusOK,
			Validate: func(b map[string]interface{}) error {
				if b["status"] == "unhealthy" {
					return fmt.Errorf("server reports unhealthy: %v", b["checks"])
				}
				return nil
			}},
		{Name: "Liveness", Method: http.MethodGet, Path: "/health/live", WantStatus: http.StatusOK},
		{Name: "Rejects missing token", Method: http.MethodGet, Path: "/api/v1/membership/breakdown", WantStatus: http.StatusUnauthorized},
		{Name: "Status breakdown", Method: http.MethodGet, Path: "/api/v1/membership/breakdown", Auth: true, WantStatus: http.StatusOK,
			Validate: requireKeys("rows", "total", "mismatched")},
		classifyCheck("Classify today+30d", today.AddDate(0, 0, 30), "Active"),
		classifyCheck("Classify today-10d", today.AddDate(0, 0, -10), "Grace Period"),
		classifyCheck("Classify today-200d", today.AddDate(0, 0, -200), "Expired"),
	}
	if memberID > 0 {
		checks = append(checks, Check{
			Name: "Member status", Method: http.MethodGet, Path: fmt.Sprintf("/api/v1/members/%d/status", memberID),
			Auth: true, WantStatus: http.StatusOK, Validate: requireKeys("stored_status", "derived_status", "consistent"),
		})
	}
	if wardCode != "" {
		checks = append(checks, Check{
			Name: "Ward geography", Method: http.MethodGet, Path: "/api/v1/wards/" + wardCode + "/geography",
			Auth: true, WantStatus: http.StatusOK,
			Validate: func(b map[string]interface{}) error {
				if b["complete"] != true {
					return fmt.Errorf("ward %s does not resolve to a province: %v", wardCode, b["resolution"])
				}
				return nil
			},
		})
	}
	return checks
}

func classifyCheck(name string, expiry time.Time, want string) Check {
	return Check{
		Name: name, Method: http.MethodPost, Path: "/api/v1/membership/classify",
		Body: fmt.Sprintf(`{"expiry_date":%q}`, expiry.Format("2006-01-02")),
		Auth: true, WantStatus: http.StatusOK,
		Validate: func(b map[string]interface{}) error {
			if b["status"] != want {
				return fmt.Errorf("expected %q, got %v", want, b["status"])
			}
			return nil
		},
	}
}

func requireKeys(keys ...string) func(map[string]interface{}) error {
	return func(b map[string]interface{}) error {
		for _, k := range keys {
			if _, ok := b[k]; !ok {
				return fmt.Errorf("response missing %q", k)
			}
		}
		return nil
	}
}
