package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/membership-admin/internal/domain"
	"github.com/ignite/membership-admin/internal/service/membership"
)

// MemberRepo implements membership.Repository.
type MemberRepo struct {
	db      *sql.DB
	dialect Dialect
}

// NewMemberRepo creates a SQL-backed membership repository.
func NewMemberRepo(db *sql.DB, dialect Dialect) *MemberRepo {
	return &MemberRepo{db: db, dialect: dialect}
}

const memberColumns = `
		SELECT m.member_id, COALESCE(m.id_number, ''), COALESCE(m.ward_code, ''),
		       m.expiry_date, m.membership_status_id, COALESCE(s.status_name, ''),
		       m.inactive_marked_at IS NOT NULL
		FROM members m
		LEFT JOIN membership_statuses s ON s.status_id = m.membership_status_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (domain.Member, error) {
	var (
		m        domain.Member
		expiry   sql.NullTime
		statusID sql.NullInt64
	)
	if err := row.Scan(&m.MemberID, &m.IDNumber, &m.WardCode, &expiry, &statusID, &m.StatusName, &m.AdminInactive); err != nil {
		return m, err
	}
	m.StatusName = domain.CanonicalStatusName(m.StatusName)
	if expiry.Valid {
		t := expiry.Time
		m.ExpiryDate = &t
	}
	if statusID.Valid {
		id := int(statusID.Int64)
		m.MembershipStatusID = &id
	}
	return m, nil
}

// StatusIDs loads the membership_statuses lookup. Names are matched
// case-insensitively, with underscores treated as spaces.
func (r *MemberRepo) StatusIDs(ctx context.Context) (map[domain.MembershipStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status_id, status_name FROM membership_statuses`)
	if err != nil {
		return nil, fmt.Errorf("load membership statuses: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.MembershipStatus]int)
	for rows.Next() {
		var (
			id   int
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan membership status: %w", err)
		}
		if st, ok := domain.ParseStatus(name); ok {
			out[st] = id
		}
	}
	return out, rows.Err()
}

// GetMember returns one member with its stored status name.
func (r *MemberRepo) GetMember(ctx context.Context, memberID int64) (*domain.Member, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(memberColumns+`
		WHERE m.member_id = $1`), memberID)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, membership.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &m, nil
}

// ScanMembers returns the next keyset page of members.
func (r *MemberRepo) ScanMembers(ctx context.Context, afterID int64, limit int) ([]domain.Member, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(memberColumns+`
		WHERE m.member_id > $1
		ORDER BY m.member_id
		LIMIT $2`), afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("scan members: %w", err)
	}
	defer rows.Close()

	var out []domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ApplyStatusChanges updates each member whose stored status is still the
// one the change was computed from, and records an audit row for it. A member
// changed by someone else since the scan is skipped.
func (r *MemberRepo) ApplyStatusChanges(ctx context.Context, runID string, changes []domain.StatusChange) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	update, err := tx.PrepareContext(ctx, r.dialect.Rebind(`
		UPDATE members
		SET membership_status_id = $1, updated_at = CURRENT_TIMESTAMP
		WHERE member_id = $2 AND membership_status_id `+r.dialect.nullSafeEq()+` $3`))
	if err != nil {
		return 0, fmt.Errorf("prepare update: %w", err)
	}
	defer update.Close()

	audit, err := tx.PrepareContext(ctx, r.dialect.Rebind(`
		INSERT INTO membership_status_audit
			(run_id, member_id, old_status_id, new_status_id, expiry_date, changed_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)`))
	if err != nil {
		return 0, fmt.Errorf("prepare audit: %w", err)
	}
	defer audit.Close()

	var updated int64
	for _, c := range changes {
		from := nullableInt(c.FromID)
		res, err := update.ExecContext(ctx, c.ToID, c.MemberID, from)
		if err != nil {
			return 0, fmt.Errorf("update member %d: %w", c.MemberID, err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			continue
		}
		updated += n

		var expiry any
		if c.ExpiryDate != nil {
			expiry = c.ExpiryDate.Format(dateLayout)
		}
		if _, err := audit.ExecContext(ctx, runID, c.MemberID, from, c.ToID, expiry); err != nil {
			return 0, fmt.Errorf("audit member %d: %w", c.MemberID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

// breakdownQuery mirrors membership.Classifier: explicit Inactive first,
// then the date rule against the window bounds. District resolution follows
// the metro sub-region rule (parent's district_code, never the child's).
const breakdownQuery = `
		SELECT COALESCE(p.province_code, ''), COALESCE(p.province_name, 'Unresolved'),
		       COALESCE(s.status_name, 'none'),
		       CASE
		           WHEN m.inactive_marked_at IS NOT NULL THEN 'Inactive'
		           WHEN m.expiry_date IS NULL THEN 'Unknown'
		           WHEN m.expiry_date >= $1 THEN 'Active'
		           WHEN m.expiry_date >= $2 THEN 'Grace Period'
		           ELSE 'Expired'
		       END,
		       COUNT(*)
		FROM members m
		LEFT JOIN membership_statuses s ON s.status_id = m.membership_status_id
		LEFT JOIN wards w ON w.ward_code = m.ward_code
		LEFT JOIN municipalities mu ON mu.municipality_code = w.municipality_code
		LEFT JOIN municipalities pm ON pm.municipality_id = mu.parent_municipality_id
		LEFT JOIN districts d ON d.district_code =
		    CASE WHEN mu.parent_municipality_id IS NOT NULL THEN pm.district_code ELSE mu.district_code END
		LEFT JOIN provinces p ON p.province_code = d.province_code
		GROUP BY 1, 2, 3, 4
		ORDER BY 1, 3, 4`

// StatusBreakdown counts members per province, stored and derived status.
// Stored names are reported in their standard spelling; rows whose names
// differ only in spelling are merged.
func (r *MemberRepo) StatusBreakdown(ctx context.Context, w membership.StatusWindow) ([]domain.StatusCount, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(breakdownQuery),
		w.Today.Format(dateLayout), w.GraceStart.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("status breakdown: %w", err)
	}
	defer rows.Close()

	type key struct{ province, stored, derived string }
	var out []domain.StatusCount
	index := make(map[key]int)
	for rows.Next() {
		var c domain.StatusCount
		if err := rows.Scan(&c.ProvinceCode, &c.ProvinceName, &c.StoredStatus, &c.DerivedStatus, &c.Members); err != nil {
			return nil, fmt.Errorf("scan breakdown row: %w", err)
		}
		c.StoredStatus = domain.CanonicalStatusName(c.StoredStatus)
		k := key{c.ProvinceCode, c.StoredStatus, c.DerivedStatus}
		if i, ok := index[k]; ok {
			out[i].Members += c.Members
			continue
		}
		index[k] = len(out)
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ membership.Repository = (*MemberRepo)(nil)

