// Package audit runs the membership investigation checks and renders their
// PASS/FAIL report.
//
// An investigation is read-only: status consistency is measured with a
// dry-run reconcile, and the geography hierarchy is probed with the
// data-quality queries plus a resolution spot-check of configured wards.
// Every check runs even when an earlier one fails.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/membership-admin/internal/domain"
	"github.com/ignite/membership-admin/internal/pkg/logger"
	"github.com/ignite/membership-admin/internal/service/geography"
	"github.com/ignite/membership-admin/internal/service/membership"
)

// CheckResult is the outcome of one investigation check.
type CheckResult struct {
	Name    string        `json:"name"`
	Passed  bool          `json:"passed"`
	Detail  string        `json:"detail,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Report aggregates one investigation run.
type Report struct {
	RunID      string                       `json:"run_id"`
	StartedAt  time.Time                    `json:"started_at"`
	FinishedAt time.Time                    `json:"finished_at"`
	Checks     []CheckResult                `json:"checks"`
	Reconcile  *membership.ReconcileSummary `json:"reconcile,omitempty"`
	Breakdown  []domain.StatusCount         `json:"breakdown,omitempty"`
	Defects    []geography.DefectReport     `json:"defects,omitempty"`
	Wards      []*domain.GeoResolution      `json:"wards,omitempty"`
}

// Passed reports whether every check passed.
func (r *Report) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Failed returns the names of the failing checks.
func (r *Report) Failed() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c.Name)
		}
	}
	return out
}

// JSON encodes the report for archiving.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Options tunes an investigation.
type Options struct {
	// SampleWards are resolved end to end as a spot-check.
	SampleWards []string
	// ScanBatchSize is the page size of the dry-run reconcile.
	ScanBatchSize int
	// SampleLimit bounds the mismatch samples kept from the dry run.
	SampleLimit int
}

// Investigator runs the checks against the membership and geography services.
type Investigator struct {
	members  *membership.Service
	auditor  *geography.Auditor
	resolver geography.WardResolver
	opts     Options
}

// NewInvestigator creates an investigator. resolver may be nil when no
// sample wards are configured.
func NewInvestigator(members *membership.Service, auditor *geography.Auditor, resolver geography.WardResolver, opts Options) *Investigator {
	return &Investigator{members: members, auditor: auditor, resolver: resolver, opts: opts}
}

// Run executes every check and returns the report.
func (inv *Investigator) Run(ctx context.Context) *Report {
	rep := &Report{RunID: uuid.New().String(), StartedAt: time.Now().UTC()}
	logger.Info("investigation started", "run_id", rep.RunID)

	rep.Checks = append(rep.Checks, inv.checkStatusConsistency(ctx, rep))
	rep.Checks = append(rep.Checks, inv.checkBreakdown(ctx, rep))

	rep.Defects = inv.auditor.Run(ctx)
	for _, d := range rep.Defects {
		rep.Checks = append(rep.Checks, defectCheck(d))
	}

	for _, code := range inv.opts.SampleWards {
		rep.Checks = append(rep.Checks, inv.checkWard(ctx, rep, code))
	}

	rep.FinishedAt = time.Now().UTC()
	logger.Info("investigation finished",
		"run_id", rep.RunID,
		"checks", len(rep.Checks),
		"failed", len(rep.Failed()),
		"elapsed", rep.FinishedAt.Sub(rep.StartedAt).String(),
	)
	return rep
}

func (inv *Investigator) checkStatusConsistency(ctx context.Context, rep *Report) CheckResult {
	name := "Stored status matches expiry date"
	start := time.Now()

	sum, err := inv.members.Reconcile(ctx, membership.ReconcileOptions{
		BatchSize:   inv.opts.ScanBatchSize,
		DryRun:      true,
		SampleLimit: inv.opts.SampleLimit,
	})
	if err != nil {
		logger.Error("status consistency check failed", "error", err)
		return CheckResult{Name: name, Passed: false, Detail: fmt.Sprintf("Query error: %v", err), Elapsed: time.Since(start)}
	}
	rep.Reconcile = sum

	var b strings.Builder
	fmt.Fprintf(&b, "Scanned %d members, %d mismatched, %d without expiry date", sum.Scanned, sum.Mismatched, sum.UnknownExpiry)
	for _, k := range sum.TransitionKeys() {
		fmt.Fprintf(&b, "\n%s: %d", k, sum.Transitions[k])
	}
	return CheckResult{Name: name, Passed: sum.Mismatched == 0, Detail: b.String(), Elapsed: time.Since(start)}
}

func (inv *Investigator) checkBreakdown(ctx context.Context, rep *Report) CheckResult {
	name := "Province breakdown agrees with derived status"
	start := time.Now()

	rows, err := inv.members.StatusBreakdown(ctx)
	if err != nil {
		logger.Error("status breakdown check failed", "error", err)
		return CheckResult{Name: name, Passed: false, Detail: fmt.Sprintf("Query error: %v", err), Elapsed: time.Since(start)}
	}
	rep.Breakdown = rows

	mismatched := make(map[string]int64)
	var total, bad int64
	for _, r := range rows {
		total += r.Members
		if !r.Mismatched() {
			continue
		}
		bad += r.Members
		mismatched[r.ProvinceName] += r.Members
	}

	provinces := make([]string, 0, len(mismatched))
	for p := range mismatched {
		provinces = append(provinces, p)
	}
	sort.Strings(provinces)

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d members counted under the wrong status", bad, total)
	for _, p := range provinces {
		fmt.Fprintf(&b, "\n%s: %d", p, mismatched[p])
	}
	return CheckResult{Name: name, Passed: bad == 0, Detail: b.String(), Elapsed: time.Since(start)}
}

func defectCheck(d geography.DefectReport) CheckResult {
	name := "No " + strings.ReplaceAll(string(d.Kind), "_", " ")
	if d.Err != "" {
		return CheckResult{Name: name, Passed: false, Detail: "Query error: " + d.Err, Elapsed: d.Elapsed}
	}
	detail := fmt.Sprintf("%d rows", d.Count)
	if len(d.Samples) > 0 {
		detail += "\nsample: " + strings.Join(d.Samples, ", ")
	}
	return CheckResult{Name: name, Passed: d.Count == 0, Detail: detail, Elapsed: d.Elapsed}
}

func (inv *Investigator) checkWard(ctx context.Context, rep *Report, wardCode string) CheckResult {
	name := "Ward " + wardCode + " resolves to a province"
	start := time.Now()

	if inv.resolver == nil {
		return CheckResult{Name: name, Passed: false, Detail: "no resolver configured", Elapsed: time.Since(start)}
	}
	res, err := inv.resolver.Resolve(ctx, wardCode)
	if err != nil {
		logger.Error("ward resolution check failed", "ward_code", wardCode, "error", err)
		return CheckResult{Name: name, Passed: false, Detail: fmt.Sprintf("Query error: %v", err), Elapsed: time.Since(start)}
	}
	rep.Wards = append(rep.Wards, res)

	if !res.Complete() {
		return CheckResult{Name: name, Passed: false, Detail: "gaps: " + strings.Join(res.Gaps, ", "), Elapsed: time.Since(start)}
	}
	detail := fmt.Sprintf("%s -> %s -> %s", res.Municipality.Code, res.District.Code, res.Province.Code)
	if res.ResolvedViaParent {
		detail += fmt.Sprintf(" (via parent %s)", res.Parent.Code)
	}
	return CheckResult{Name: name, Passed: true, Detail: detail, Elapsed: time.Since(start)}
}
