package membership

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ignite/membership-admin/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepo is an in-memory repository for testing.
type mockRepo struct {
	mu       sync.Mutex
	ids      map[domain.MembershipStatus]int
	members  map[int64]*domain.Member
	applied  []domain.StatusChange
	runIDs   map[string]int
	scans    int
	applyErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		ids: map[domain.MembershipStatus]int{
			domain.StatusActive:      1,
			domain.StatusExpired:     2,
			domain.StatusInactive:    3,
			domain.StatusGracePeriod: 4,
		},
		members: make(map[int64]*domain.Member),
		runIDs:  make(map[string]int),
	}
}

func (m *mockRepo) add(id int64, expiry *time.Time, statusID int) {
	mem := &domain.Member{MemberID: id, ExpiryDate: expiry}
	if statusID > 0 {
		sid := statusID
		mem.MembershipStatusID = &sid
	}
	m.members[id] = mem
}

func (m *mockRepo) StatusIDs(_ context.Context) (map[domain.MembershipStatus]int, error) {
	out := make(map[domain.MembershipStatus]int, len(m.ids))
	for k, v := range m.ids {
		out[k] = v
	}
	return out, nil
}

func (m *mockRepo) GetMember(_ context.Context, id int64) (*domain.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[id]
	if !ok {
		return nil, ErrMemberNotFound
	}
	cp := *mem
	return &cp, nil
}

func (m *mockRepo) ScanMembers(_ context.Context, afterID int64, limit int) ([]domain.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans++
	var keys []int64
	for id := range m.members {
		if id > afterID {
			keys = append(keys, id)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	if len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([]domain.Member, 0, len(keys))
	for _, id := range keys {
		out = append(out, *m.members[id])
	}
	return out, nil
}

func (m *mockRepo) ApplyStatusChanges(_ context.Context, runID string, changes []domain.StatusChange) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return 0, m.applyErr
	}
	for _, c := range changes {
		to := c.ToID
		m.members[c.MemberID].MembershipStatusID = &to
		m.applied = append(m.applied, c)
		m.runIDs[runID]++
	}
	return int64(len(changes)), nil
}

func (m *mockRepo) StatusBreakdown(_ context.Context, w StatusWindow) ([]domain.StatusCount, error) {
	return []domain.StatusCount{{ProvinceCode: "KZN", StoredStatus: "Active", DerivedStatus: w.Today.Format("2006-01-02"), Members: 1}}, nil
}

func newTestService(repo Repository) *Service {
	svc := NewService(repo, NewClassifier(90, time.UTC))
	svc.SetClock(func() time.Time { return testToday })
	return svc
}

func TestMemberStatus(t *testing.T) {
	repo := newMockRepo()
	repo.add(1, daysFrom(testToday, -10), 1)
	repo.members[1].StatusName = "Active"
	repo.add(2, nil, 2)
	repo.members[2].StatusName = "Expired"

	svc := newTestService(repo)
	ctx := context.Background()

	v, err := svc.MemberStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusGracePeriod, v.DerivedStatus)
	assert.Equal(t, "Active", v.StoredStatus)
	assert.False(t, v.Consistent)

	v, err = svc.MemberStatus(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnknown, v.DerivedStatus)
	assert.True(t, v.Consistent)

	_, err = svc.MemberStatus(ctx, 99)
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestMemberStatus_AgreesWithReconcileOnStatusSpelling(t *testing.T) {
	repo := newMockRepo()
	repo.add(1, daysFrom(testToday, -10), 4)
	repo.members[1].StatusName = "grace_period"

	svc := newTestService(repo)
	ctx := context.Background()

	sum, err := svc.Reconcile(ctx, ReconcileOptions{BatchSize: 10, DryRun: true})
	require.NoError(t, err)
	assert.Zero(t, sum.Mismatched)

	v, err := svc.MemberStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusGracePeriod, v.DerivedStatus)
	assert.Equal(t, "Grace Period", v.StoredStatus)
	assert.True(t, v.Consistent)
}

func TestReconcile_FixesMismatches(t *testing.T) {
	repo := newMockRepo()
	repo.add(1, daysFrom(testToday, 30), 2)   // stored Expired, should be Active
	repo.add(2, daysFrom(testToday, -10), 1)  // stored Active, should be Grace Period
	repo.add(3, daysFrom(testToday, -200), 1) // stored Active, should be Expired
	repo.add(4, daysFrom(testToday, -200), 2) // already Expired
	repo.add(5, nil, 1)                       // no expiry, untouched
	repo.add(6, daysFrom(testToday, 5), 0)    // no status at all

	svc := newTestService(repo)
	sum, err := svc.Reconcile(context.Background(), ReconcileOptions{BatchSize: 2, SampleLimit: 10})
	require.NoError(t, err)

	assert.Equal(t, int64(6), sum.Scanned)
	assert.Equal(t, int64(1), sum.UnknownExpiry)
	assert.Equal(t, int64(4), sum.Mismatched)
	assert.Equal(t, int64(4), sum.Updated)
	assert.Equal(t, 3, sum.Batches)
	assert.Len(t, sum.Samples, 4)
	assert.Equal(t, int64(1), sum.Transitions["Expired -> Active"])
	assert.Equal(t, int64(1), sum.Transitions["Active -> Grace Period"])
	assert.Equal(t, int64(1), sum.Transitions["Active -> Expired"])
	assert.Equal(t, int64(1), sum.Transitions["none -> Active"])
	assert.Equal(t, []string{"Active -> Expired", "Active -> Grace Period", "Expired -> Active", "none -> Active"}, sum.TransitionKeys())

	assert.Equal(t, 1, *repo.members[1].MembershipStatusID)
	assert.Equal(t, 4, *repo.members[2].MembershipStatusID)
	assert.Equal(t, 2, *repo.members[3].MembershipStatusID)
	assert.Equal(t, 1, *repo.members[5].MembershipStatusID)
	assert.Equal(t, 4, repo.runIDs[sum.RunID])
}

func TestReconcile_IdempotentSecondRun(t *testing.T) {
	repo := newMockRepo()
	repo.add(1, daysFrom(testToday, -10), 1)
	repo.add(2, daysFrom(testToday, -300), 1)

	svc := newTestService(repo)
	_, err := svc.Reconcile(context.Background(), ReconcileOptions{})
	require.NoError(t, err)

	second, err := svc.Reconcile(context.Background(), ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.Mismatched)
	assert.Equal(t, int64(0), second.Updated)
}

func TestReconcile_DryRunWritesNothing(t *testing.T) {
	repo := newMockRepo()
	repo.add(1, daysFrom(testToday, -200), 1)

	svc := newTestService(repo)
	sum, err := svc.Reconcile(context.Background(), ReconcileOptions{DryRun: true})
	require.NoError(t, err)

	assert.True(t, sum.DryRun)
	assert.Equal(t, int64(1), sum.Mismatched)
	assert.Equal(t, int64(0), sum.Updated)
	assert.Empty(t, repo.applied)
	assert.Equal(t, 1, *repo.members[1].MembershipStatusID)
}

func TestReconcile_AdminInactiveKept(t *testing.T) {
	repo := newMockRepo()
	repo.add(1, daysFrom(testToday, 200), 3)
	repo.members[1].AdminInactive = true
	repo.add(2, daysFrom(testToday, 200), 3) // stored Inactive without admin mark

	svc := newTestService(repo)
	sum, err := svc.Reconcile(context.Background(), ReconcileOptions{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), sum.Mismatched)
	assert.Equal(t, 3, *repo.members[1].MembershipStatusID)
	assert.Equal(t, 1, *repo.members[2].MembershipStatusID)
}

func TestReconcile_MaxBatches(t *testing.T) {
	repo := newMockRepo()
	for i := int64(1); i <= 10; i++ {
		repo.add(i, daysFrom(testToday, -200), 1)
	}

	svc := newTestService(repo)
	sum, err := svc.Reconcile(context.Background(), ReconcileOptions{BatchSize: 3, MaxBatches: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Batches)
	assert.Equal(t, int64(6), sum.Scanned)
	assert.Equal(t, int64(6), sum.Updated)
}

func TestReconcile_InvalidBatchSize(t *testing.T) {
	svc := newTestService(newMockRepo())
	_, err := svc.Reconcile(context.Background(), ReconcileOptions{BatchSize: -1})
	assert.ErrorIs(t, err, ErrInvalidBatchSize)
}

func TestReconcile_IncompleteLookup(t *testing.T) {
	repo := newMockRepo()
	delete(repo.ids, domain.StatusGracePeriod)

	svc := newTestService(repo)
	_, err := svc.Reconcile(context.Background(), ReconcileOptions{})
	assert.ErrorIs(t, err, ErrStatusLookup)
}

func TestReconcile_ApplyErrorStopsRun(t *testing.T) {
	repo := newMockRepo()
	repo.add(1, daysFrom(testToday, -200), 1)
	repo.applyErr = errors.New("deadlock detected")

	svc := newTestService(repo)
	sum, err := svc.Reconcile(context.Background(), ReconcileOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock detected")
	assert.Equal(t, int64(0), sum.Updated)
}

func TestReconcile_CancelledContext(t *testing.T) {
	repo := newMockRepo()
	repo.add(1, daysFrom(testToday, -200), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestService(repo)
	_, err := svc.Reconcile(ctx, ReconcileOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, repo.scans)
}

func TestStatusBreakdown_PassesWindow(t *testing.T) {
	svc := newTestService(newMockRepo())
	rows, err := svc.StatusBreakdown(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2026-10-17", rows[0].DerivedStatus)
}
