package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/osteele/liquid"
)

const reportTemplate = `=========================================================
 MEMBERSHIP INVESTIGATION REPORT
=========================================================
Run ID:   {{ run_id }}
Started:  {{ started_at }}
---------------------------------------------------------
{% for c in checks %}  [{{ forloop.index }}] {{ c.name | pad: 48 }} {{ c.status }}  ({{ c.elapsed }})
{% for line in c.detail %}      {{ line }}
{% endfor %}{% endfor %}=========================================================
  OVERALL: {{ overall }}
=========================================================
`

// Renderer turns a Report into the operator-facing text report.
type Renderer struct {
	tpl *liquid.Template
}

// NewRenderer compiles the report template.
func NewRenderer() (*Renderer, error) {
	engine := liquid.NewEngine()

	// Right-pad to a fixed width: {{ name | pad: 40 }}
	engine.RegisterFilter("pad", func(s string, width int) string {
		if len(s) >= width {
			return s
		}
		return s + strings.Repeat(" ", width-len(s))
	})

	tpl, err := engine.ParseString(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &Renderer{tpl: tpl}, nil
}

// Render produces the text report.
func (r *Renderer) Render(rep *Report) (string, error) {
	checks := make([]map[string]any, 0, len(rep.Checks))
	for _, c := range rep.Checks {
		status := "PASS ✓"
		if !c.Passed {
			status = "FAIL ✗"
		}
		var detail []string
		if c.Detail != "" {
			detail = strings.Split(c.Detail, "\n")
		}
		checks = append(checks, map[string]any{
			"name":    c.Name,
			"status":  status,
			"elapsed": c.Elapsed.Round(time.Millisecond).String(),
			"detail":  detail,
		})
	}

	overall := "PASS ✓  All checks succeeded"
	if !rep.Passed() {
		overall = fmt.Sprintf("FAIL ✗  %d check(s) failed", len(rep.Failed()))
	}

	out, err := r.tpl.RenderString(map[string]any{
		"run_id":     rep.RunID,
		"started_at": rep.StartedAt.Format(time.RFC3339),
		"checks":     checks,
		"overall":    overall,
	})
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return out, nil
}
