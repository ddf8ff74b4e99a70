package membership

import (
	"context"

	"github.com/ignite/membership-admin/internal/domain"
)

// Repository defines the data access contract for membership status work.
type Repository interface {
	// StatusIDs returns the membership_status lookup keyed by status name.
	StatusIDs(ctx context.Context) (map[domain.MembershipStatus]int, error)

	// GetMember returns one member. Returns ErrMemberNotFound if it doesn't exist.
	GetMember(ctx context.Context, memberID int64) (*domain.Member, error)

	// ScanMembers returns up to limit members with member_id > afterID,
	// ordered by member_id.
	ScanMembers(ctx context.Context, afterID int64, limit int) ([]domain.Member, error)

	// ApplyStatusChanges writes the changes and one audit row per change in
	// a single transaction. Returns the number of member rows updated.
	ApplyStatusChanges(ctx context.Context, runID string, changes []domain.StatusChange) (int64, error)

	// StatusBreakdown counts members per province, stored status and
	// derived status, using the window's bounds for the date rule.
	StatusBreakdown(ctx context.Context, w StatusWindow) ([]domain.StatusCount, error)
}
