package geography

import (
	"context"
	"time"

	"github.com/ignite/membership-admin/internal/pkg/logger"
)

// DefectReport is the outcome of one data-quality query.
type DefectReport struct {
	Kind    DefectKind    `json:"kind"`
	Count   int64         `json:"count"`
	Samples []string      `json:"samples,omitempty"`
	Err     string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Auditor runs the hierarchy data-quality queries.
type Auditor struct {
	repo        Repository
	sampleLimit int
}

// NewAuditor creates an auditor returning up to sampleLimit codes per defect.
func NewAuditor(repo Repository, sampleLimit int) *Auditor {
	if sampleLimit <= 0 {
		sampleLimit = 10
	}
	return &Auditor{repo: repo, sampleLimit: sampleLimit}
}

// Run executes every defect query. A failing query is logged and reported
// in its DefectReport; the remaining queries still run.
func (a *Auditor) Run(ctx context.Context) []DefectReport {
	reports := make([]DefectReport, 0, len(AllDefectKinds))
	for _, kind := range AllDefectKinds {
		reports = append(reports, a.Check(ctx, kind))
	}
	return reports
}

// Check executes one defect query.
func (a *Auditor) Check(ctx context.Context, kind DefectKind) DefectReport {
	start := time.Now()
	count, samples, err := a.repo.Defects(ctx, kind, a.sampleLimit)
	rep := DefectReport{Kind: kind, Count: count, Samples: samples, Elapsed: time.Since(start)}
	if err != nil {
		logger.Error("geography audit query failed", "kind", kind, "error", err)
		rep.Err = err.Error()
	}
	return rep
}
