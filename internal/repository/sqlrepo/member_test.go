package sqlrepo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/membership-admin/internal/domain"
	"github.com/ignite/membership-admin/internal/service/membership"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var memberCols = []string{"member_id", "id_number", "ward_code", "expiry_date", "membership_status_id", "status_name", "admin_inactive"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestDialect_Rebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = $1 AND y > $2 LIMIT $10"
	assert.Equal(t, q, Postgres.Rebind(q))
	assert.Equal(t, "SELECT a FROM t WHERE x = ? AND y > ? LIMIT ?", MySQL.Rebind(q))
	assert.Equal(t, MySQL, DialectFor("mysql"))
	assert.Equal(t, Postgres, DialectFor("postgres"))
	assert.Equal(t, Postgres, DialectFor(""))
}

func TestMemberRepo_StatusIDs(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM membership_statuses").
		WillReturnRows(sqlmock.NewRows([]string{"status_id", "status_name"}).
			AddRow(1, "Active").
			AddRow(2, "expired").
			AddRow(3, "Inactive").
			AddRow(4, "grace_period").
			AddRow(5, "Suspended"))

	ids, err := NewMemberRepo(db, Postgres).StatusIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[domain.MembershipStatus]int{
		domain.StatusActive:      1,
		domain.StatusExpired:     2,
		domain.StatusInactive:    3,
		domain.StatusGracePeriod: 4,
	}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepo_GetMember(t *testing.T) {
	db, mock := newMock(t)
	expiry := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("WHERE m.member_id =").
		WithArgs(int64(17)).
		WillReturnRows(sqlmock.NewRows(memberCols).
			AddRow(int64(17), "8001015009087", "79700001", expiry, int64(1), "Active", false))

	m, err := NewMemberRepo(db, Postgres).GetMember(context.Background(), 17)
	require.NoError(t, err)
	assert.Equal(t, int64(17), m.MemberID)
	assert.Equal(t, "79700001", m.WardCode)
	require.NotNil(t, m.ExpiryDate)
	assert.True(t, expiry.Equal(*m.ExpiryDate))
	require.NotNil(t, m.MembershipStatusID)
	assert.Equal(t, 1, *m.MembershipStatusID)
	assert.Equal(t, "Active", m.StatusName)
	assert.False(t, m.AdminInactive)
}

func TestMemberRepo_GetMember_CanonicalStatusName(t *testing.T) {
	db, mock := newMock(t)
	expiry := time.Date(2026, 10, 7, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("WHERE m.member_id =").
		WithArgs(int64(18)).
		WillReturnRows(sqlmock.NewRows(memberCols).
			AddRow(int64(18), "", "79700001", expiry, int64(4), "grace_period", false))

	m, err := NewMemberRepo(db, Postgres).GetMember(context.Background(), 18)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusGracePeriod), m.StatusName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepo_GetMember_NotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("WHERE m.member_id =").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(memberCols))

	_, err := NewMemberRepo(db, Postgres).GetMember(context.Background(), 99)
	assert.ErrorIs(t, err, membership.ErrMemberNotFound)
}

func TestMemberRepo_ScanMembers_NullColumns(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("ORDER BY m.member_id").
		WithArgs(int64(100), 2).
		WillReturnRows(sqlmock.NewRows(memberCols).
			AddRow(int64(101), "", "", nil, nil, "", false).
			AddRow(int64(102), "", "79700001", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), int64(3), "Inactive", true))

	members, err := NewMemberRepo(db, Postgres).ScanMembers(context.Background(), 100, 2)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Nil(t, members[0].ExpiryDate)
	assert.Nil(t, members[0].MembershipStatusID)
	assert.True(t, members[1].AdminInactive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepo_ScanMembers_MySQLPlaceholders(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`WHERE m.member_id > \?\s+ORDER BY m.member_id\s+LIMIT \?`).
		WithArgs(int64(0), 10).
		WillReturnRows(sqlmock.NewRows(memberCols))

	members, err := NewMemberRepo(db, MySQL).ScanMembers(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, members)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepo_ApplyStatusChanges(t *testing.T) {
	db, mock := newMock(t)
	active := 1
	expiry := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	changes := []domain.StatusChange{
		{MemberID: 7, FromID: &active, ToID: 2, ToStatus: domain.StatusExpired, ExpiryDate: &expiry},
		{MemberID: 8, FromID: nil, ToID: 2, ToStatus: domain.StatusExpired},
	}

	mock.ExpectBegin()
	update := mock.ExpectPrepare("UPDATE members")
	audit := mock.ExpectPrepare("INSERT INTO membership_status_audit")
	update.ExpectExec().WithArgs(2, int64(7), int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	audit.ExpectExec().WithArgs("run-1", int64(7), int64(1), 2, "2025-01-10").WillReturnResult(sqlmock.NewResult(1, 1))
	// Member 8 changed since the scan: no row matched, no audit row.
	update.ExpectExec().WithArgs(2, int64(8), nil).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := NewMemberRepo(db, Postgres).ApplyStatusChanges(context.Background(), "run-1", changes)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepo_ApplyStatusChanges_RollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	changes := []domain.StatusChange{{MemberID: 7, ToID: 2}}

	mock.ExpectBegin()
	update := mock.ExpectPrepare("UPDATE members")
	mock.ExpectPrepare("INSERT INTO membership_status_audit")
	update.ExpectExec().WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := NewMemberRepo(db, Postgres).ApplyStatusChanges(context.Background(), "run-1", changes)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepo_ApplyStatusChanges_MySQLNullSafe(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectPrepare(`membership_status_id <=> \?`)
	mock.ExpectPrepare("INSERT INTO membership_status_audit")
	mock.ExpectCommit()

	n, err := NewMemberRepo(db, MySQL).ApplyStatusChanges(context.Background(), "run-1", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepo_StatusBreakdown(t *testing.T) {
	db, mock := newMock(t)
	today := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	w := membership.NewClassifier(90, time.UTC).Window(today)

	mock.ExpectQuery(`GROUP BY 1, 2, 3, 4`).
		WithArgs("2026-10-17", "2026-07-19").
		WillReturnRows(sqlmock.NewRows([]string{"province_code", "province_name", "stored", "derived", "members"}).
			AddRow("GP", "Gauteng", "Active", "Active", int64(1200)).
			AddRow("GP", "Gauteng", "Active", "Expired", int64(35)).
			AddRow("", "Unresolved", "none", "Unknown", int64(4)))

	counts, err := NewMemberRepo(db, Postgres).StatusBreakdown(context.Background(), w)
	require.NoError(t, err)
	require.Len(t, counts, 3)
	assert.Equal(t, domain.StatusCount{
		ProvinceCode: "GP", ProvinceName: "Gauteng", StoredStatus: "Active", DerivedStatus: "Expired", Members: 35,
	}, counts[1])
	assert.Equal(t, "Unresolved", counts[2].ProvinceName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepo_StatusBreakdown_MergesStatusSpellings(t *testing.T) {
	db, mock := newMock(t)
	w := membership.NewClassifier(90, time.UTC).Window(time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC))

	mock.ExpectQuery(`GROUP BY 1, 2, 3, 4`).
		WithArgs("2026-10-17", "2026-07-19").
		WillReturnRows(sqlmock.NewRows([]string{"province_code", "province_name", "stored", "derived", "members"}).
			AddRow("LP", "Limpopo", "Grace Period", "Grace Period", int64(3)).
			AddRow("LP", "Limpopo", "grace_period", "Grace Period", int64(5)).
			AddRow("LP", "Limpopo", "EXPIRED", "Active", int64(2)))

	counts, err := NewMemberRepo(db, Postgres).StatusBreakdown(context.Background(), w)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, domain.StatusCount{
		ProvinceCode: "LP", ProvinceName: "Limpopo", StoredStatus: "Grace Period", DerivedStatus: "Grace Period", Members: 8,
	}, counts[0])
	assert.False(t, counts[0].Mismatched())
	assert.Equal(t, "Expired", counts[1].StoredStatus)
	assert.True(t, counts[1].Mismatched())
	assert.NoError(t, mock.ExpectationsWereMet())
}
