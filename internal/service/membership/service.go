package membership

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/membership-admin/internal/domain"
	"github.com/ignite/membership-admin/internal/pkg/logger"
)

// DefaultBatchSize bounds the rows touched by one reconcile transaction.
const DefaultBatchSize = 1000

// Service implements membership status business logic.
type Service struct {
	repo       Repository
	classifier Classifier
	now        func() time.Time
}

// NewService creates a membership service backed by the given repository.
func NewService(repo Repository, classifier Classifier) *Service {
	return &Service{repo: repo, classifier: classifier, now: time.Now}
}

// SetClock replaces the service clock. Tests pin "today" with it.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Classifier returns the rule the service applies.
func (s *Service) Classifier() Classifier { return s.classifier }

// Classify derives the status for an expiry date as of today.
func (s *Service) Classify(expiry *time.Time) domain.MembershipStatus {
	return s.classifier.Classify(expiry, s.now())
}

// ClassifyMember classifies m as of now, honouring the explicit Inactive mark.
func (s *Service) ClassifyMember(m domain.Member) domain.MembershipStatus {
	return s.classifier.ClassifyMember(m, s.now())
}

// Today returns the current day in the classifier's timezone.
func (s *Service) Today() time.Time { return s.classifier.Window(s.now()).Today }

// MemberStatusView compares a member's stored status with the derived one.
type MemberStatusView struct {
	Member        domain.Member           `json:"member"`
	StoredStatus  string                  `json:"stored_status"`
	DerivedStatus domain.MembershipStatus `json:"derived_status"`
	Consistent    bool                    `json:"consistent"`
	AsOf          time.Time               `json:"as_of"`
}

// MemberStatus loads a member and classifies it. A member with no expiry
// date is reported consistent, since no rule applies to it.
func (s *Service) MemberStatus(ctx context.Context, memberID int64) (*MemberStatusView, error) {
	m, err := s.repo.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	today := s.now()
	derived := s.classifier.ClassifyMember(*m, today)
	stored := domain.CanonicalStatusName(m.StatusName)
	return &MemberStatusView{
		Member:        *m,
		StoredStatus:  stored,
		DerivedStatus: derived,
		Consistent:    derived == domain.StatusUnknown || string(derived) == stored,
		AsOf:          s.classifier.Window(today).Today,
	}, nil
}

// ReconcileOptions controls a reconcile run.
type ReconcileOptions struct {
	BatchSize int
	// MaxBatches stops the run early; 0 scans every member.
	MaxBatches  int
	DryRun      bool
	Pause       time.Duration
	SampleLimit int
}

// ReconcileSummary reports what a reconcile run found and changed.
type ReconcileSummary struct {
	RunID         string                `json:"run_id"`
	DryRun        bool                  `json:"dry_run"`
	AsOf          time.Time             `json:"as_of"`
	Batches       int                   `json:"batches"`
	Scanned       int64                 `json:"scanned"`
	UnknownExpiry int64                 `json:"unknown_expiry"`
	Mismatched    int64                 `json:"mismatched"`
	Updated       int64                 `json:"updated"`
	Transitions   map[string]int64      `json:"transitions"`
	Samples       []domain.StatusChange `json:"samples,omitempty"`
	Elapsed       time.Duration         `json:"elapsed"`
}

// TransitionKeys returns the transition labels in stable order.
func (r *ReconcileSummary) TransitionKeys() []string {
	keys := make([]string, 0, len(r.Transitions))
	for k := range r.Transitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reconcile walks every member in member_id order, classifies each one and
// corrects membership_status_id where it disagrees with the rule. Each batch
// is written in its own transaction. In dry-run mode nothing is written.
func (s *Service) Reconcile(ctx context.Context, opts ReconcileOptions) (*ReconcileSummary, error) {
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchSize < 0 {
		return nil, ErrInvalidBatchSize
	}

	ids, err := s.repo.StatusIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load status lookup: %w", err)
	}
	for _, st := range []domain.MembershipStatus{domain.StatusActive, domain.StatusGracePeriod, domain.StatusExpired, domain.StatusInactive} {
		if _, ok := ids[st]; !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrStatusLookup, st)
		}
	}
	names := make(map[int]string, len(ids))
	for st, id := range ids {
		names[id] = string(st)
	}

	start := time.Now()
	today := s.now()
	summary := &ReconcileSummary{
		RunID:       uuid.New().String(),
		DryRun:      opts.DryRun,
		AsOf:        s.classifier.Window(today).Today,
		Transitions: make(map[string]int64),
	}
	logger.Info("reconcile starting", "run_id", summary.RunID, "dry_run", opts.DryRun, "batch_size", opts.BatchSize)

	var after int64
	for opts.MaxBatches == 0 || summary.Batches < opts.MaxBatches {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		members, err := s.repo.ScanMembers(ctx, after, opts.BatchSize)
		if err != nil {
			return summary, fmt.Errorf("scan members after %d: %w", after, err)
		}
		if len(members) == 0 {
			break
		}
		after = members[len(members)-1].MemberID
		summary.Batches++

		var changes []domain.StatusChange
		for _, m := range members {
			summary.Scanned++
			derived := s.classifier.ClassifyMember(m, today)
			if derived == domain.StatusUnknown {
				summary.UnknownExpiry++
				continue
			}
			target := ids[derived]
			if m.MembershipStatusID != nil && *m.MembershipStatusID == target {
				continue
			}

			from := "none"
			if m.MembershipStatusID != nil {
				from = names[*m.MembershipStatusID]
				if from == "" {
					from = fmt.Sprintf("status#%d", *m.MembershipStatusID)
				}
			}
			change := domain.StatusChange{
				MemberID:   m.MemberID,
				FromID:     m.MembershipStatusID,
				ToID:       target,
				FromStatus: from,
				ToStatus:   derived,
				ExpiryDate: m.ExpiryDate,
			}
			changes = append(changes, change)
			summary.Mismatched++
			summary.Transitions[from+" -> "+string(derived)]++
			if len(summary.Samples) < opts.SampleLimit {
				summary.Samples = append(summary.Samples, change)
			}
		}

		if !opts.DryRun && len(changes) > 0 {
			n, err := s.repo.ApplyStatusChanges(ctx, summary.RunID, changes)
			if err != nil {
				return summary, fmt.Errorf("apply batch %d: %w", summary.Batches, err)
			}
			summary.Updated += n
		}
		logger.Debug("reconcile batch", "run_id", summary.RunID, "batch", summary.Batches, "last_member_id", after, "changes", len(changes))

		if len(members) < opts.BatchSize {
			break
		}
		if opts.Pause > 0 {
			t := time.NewTimer(opts.Pause)
			select {
			case <-ctx.Done():
				t.Stop()
				return summary, ctx.Err()
			case <-t.C:
			}
		}
	}

	summary.Elapsed = time.Since(start)
	logger.Info("reconcile finished", "run_id", summary.RunID, "scanned", summary.Scanned,
		"mismatched", summary.Mismatched, "updated", summary.Updated, "elapsed", summary.Elapsed.Round(time.Millisecond))
	return summary, nil
}

// StatusBreakdown returns per-province counts of stored against derived status.
func (s *Service) StatusBreakdown(ctx context.Context) ([]domain.StatusCount, error) {
	return s.repo.StatusBreakdown(ctx, s.classifier.Window(s.now()))
}
