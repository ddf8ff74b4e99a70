package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/membership-admin/internal/domain"
	"github.com/ignite/membership-admin/internal/service/geography"
)

// GeographyRepo implements geography.Repository.
type GeographyRepo struct {
	db      *sql.DB
	dialect Dialect
}

// NewGeographyRepo creates a SQL-backed geography repository.
func NewGeographyRepo(db *sql.DB, dialect Dialect) *GeographyRepo {
	return &GeographyRepo{db: db, dialect: dialect}
}

func (r *GeographyRepo) Ward(ctx context.Context, wardCode string) (*domain.Ward, error) {
	var w domain.Ward
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(`
		SELECT ward_code, COALESCE(ward_name, ''), COALESCE(municipality_code, '')
		FROM wards WHERE ward_code = $1`), wardCode).
		Scan(&w.Code, &w.Name, &w.MunicipalityCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ward %s: %w", wardCode, err)
	}
	return &w, nil
}

const municipalityColumns = `
		SELECT municipality_id, municipality_code, COALESCE(municipality_name, ''),
		       COALESCE(municipality_type, ''), district_code, parent_municipality_id
		FROM municipalities`

func (r *GeographyRepo) municipality(ctx context.Context, where string, arg any) (*domain.Municipality, error) {
	var (
		m        domain.Municipality
		district sql.NullString
		parent   sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(municipalityColumns+" WHERE "+where), arg).
		Scan(&m.ID, &m.Code, &m.Name, &m.Type, &district, &parent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get municipality %v: %w", arg, err)
	}
	if district.Valid {
		m.DistrictCode = &district.String
	}
	if parent.Valid {
		m.ParentMunicipalityID = &parent.Int64
	}
	return &m, nil
}

func (r *GeographyRepo) MunicipalityByCode(ctx context.Context, code string) (*domain.Municipality, error) {
	return r.municipality(ctx, "municipality_code = $1", code)
}

func (r *GeographyRepo) MunicipalityByID(ctx context.Context, id int64) (*domain.Municipality, error) {
	return r.municipality(ctx, "municipality_id = $1", id)
}

func (r *GeographyRepo) District(ctx context.Context, code string) (*domain.District, error) {
	var d domain.District
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(`
		SELECT district_code, COALESCE(district_name, ''), COALESCE(province_code, '')
		FROM districts WHERE district_code = $1`), code).
		Scan(&d.Code, &d.Name, &d.ProvinceCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get district %s: %w", code, err)
	}
	return &d, nil
}

func (r *GeographyRepo) Province(ctx context.Context, code string) (*domain.Province, error) {
	var p domain.Province
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(`
		SELECT province_code, COALESCE(province_name, '')
		FROM provinces WHERE province_code = $1`), code).
		Scan(&p.Code, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get province %s: %w", code, err)
	}
	return &p, nil
}

// defectQuery is the FROM/WHERE body of one audit query and the column
// reported as a sample.
type defectQuery struct {
	sample string
	body   string
}

var defectQueries = map[geography.DefectKind]defectQuery{
	geography.DefectWardWithoutMunicipality: {
		sample: "w.ward_code",
		body: `FROM wards w
			LEFT JOIN municipalities mu ON mu.municipality_code = w.municipality_code
			WHERE mu.municipality_id IS NULL`,
	},
	geography.DefectSubRegionParentMissing: {
		sample: "mu.municipality_code",
		body: `FROM municipalities mu
			LEFT JOIN municipalities pm ON pm.municipality_id = mu.parent_municipality_id
			WHERE mu.parent_municipality_id IS NOT NULL AND pm.municipality_id IS NULL`,
	},
	geography.DefectSubRegionParentNoDistrict: {
		sample: "mu.municipality_code",
		body: `FROM municipalities mu
			JOIN municipalities pm ON pm.municipality_id = mu.parent_municipality_id
			WHERE pm.district_code IS NULL OR pm.district_code = ''`,
	},
	geography.DefectMunicipalityNoDistrict: {
		sample: "mu.municipality_code",
		body: `FROM municipalities mu
			LEFT JOIN districts d ON d.district_code = mu.district_code
			WHERE mu.parent_municipality_id IS NULL AND d.district_code IS NULL`,
	},
	geography.DefectDistrictWithoutProvince: {
		sample: "d.district_code",
		body: `FROM districts d
			LEFT JOIN provinces p ON p.province_code = d.province_code
			WHERE p.province_code IS NULL`,
	},
	geography.DefectMemberWardUnknown: {
		sample: "m.member_id",
		body: `FROM members m
			LEFT JOIN wards w ON w.ward_code = m.ward_code
			WHERE w.ward_code IS NULL`,
	},
}

// Defects counts the offending rows for kind and samples up to sampleLimit
// of them in ascending order.
func (r *GeographyRepo) Defects(ctx context.Context, kind geography.DefectKind, sampleLimit int) (int64, []string, error) {
	q, ok := defectQueries[kind]
	if !ok {
		return 0, nil, fmt.Errorf("unknown defect kind %q", kind)
	}

	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) "+q.body).Scan(&count); err != nil {
		return 0, nil, fmt.Errorf("count %s: %w", kind, err)
	}
	if count == 0 || sampleLimit <= 0 {
		return count, nil, nil
	}

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(
		"SELECT "+q.sample+" "+q.body+" ORDER BY "+q.sample+" LIMIT $1"), sampleLimit)
	if err != nil {
		return count, nil, fmt.Errorf("sample %s: %w", kind, err)
	}
	defer rows.Close()

	samples := make([]string, 0, sampleLimit)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return count, nil, fmt.Errorf("scan %s sample: %w", kind, err)
		}
		samples = append(samples, code)
	}
	return count, samples, rows.Err()
}

var _ geography.Repository = (*GeographyRepo)(nil)
