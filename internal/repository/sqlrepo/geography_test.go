package sqlrepo

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/membership-admin/internal/service/geography"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var municipalityCols = []string{"municipality_id", "municipality_code", "municipality_name", "municipality_type", "district_code", "parent_municipality_id"}

func TestGeographyRepo_Ward(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM wards WHERE ward_code").
		WithArgs("79800001").
		WillReturnRows(sqlmock.NewRows([]string{"ward_code", "ward_name", "municipality_code"}).
			AddRow("79800001", "Ward 1", "JHB-A"))

	w, err := NewGeographyRepo(db, Postgres).Ward(context.Background(), "79800001")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, "JHB-A", w.MunicipalityCode)
}

func TestGeographyRepo_MissingRowsAreNil(t *testing.T) {
	db, mock := newMock(t)
	repo := NewGeographyRepo(db, Postgres)
	ctx := context.Background()

	mock.ExpectQuery("FROM wards").WillReturnRows(sqlmock.NewRows([]string{"ward_code", "ward_name", "municipality_code"}))
	mock.ExpectQuery("FROM municipalities").WillReturnRows(sqlmock.NewRows(municipalityCols))
	mock.ExpectQuery("FROM districts").WillReturnRows(sqlmock.NewRows([]string{"district_code", "district_name", "province_code"}))
	mock.ExpectQuery("FROM provinces").WillReturnRows(sqlmock.NewRows([]string{"province_code", "province_name"}))

	w, err := repo.Ward(ctx, "x")
	assert.NoError(t, err)
	assert.Nil(t, w)
	m, err := repo.MunicipalityByCode(ctx, "x")
	assert.NoError(t, err)
	assert.Nil(t, m)
	d, err := repo.District(ctx, "x")
	assert.NoError(t, err)
	assert.Nil(t, d)
	p, err := repo.Province(ctx, "x")
	assert.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGeographyRepo_MunicipalityByID_SubRegion(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("WHERE municipality_id =").
		WithArgs(int64(43)).
		WillReturnRows(sqlmock.NewRows(municipalityCols).
			AddRow(int64(43), "JHB-A", "Region A", "Metro Sub-Region", nil, int64(42)))

	m, err := NewGeographyRepo(db, Postgres).MunicipalityByID(context.Background(), 43)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Nil(t, m.DistrictCode)
	require.NotNil(t, m.ParentMunicipalityID)
	assert.Equal(t, int64(42), *m.ParentMunicipalityID)
	assert.True(t, m.IsMetroSubRegion())
}

func TestGeographyRepo_MunicipalityByCode_DriverError(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery("WHERE municipality_code =").WillReturnError(boom)

	_, err := NewGeographyRepo(db, Postgres).MunicipalityByCode(context.Background(), "JHB")
	assert.ErrorIs(t, err, boom)
}

func TestGeographyRepo_Defects(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM municipalities mu`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(`SELECT mu.municipality_code FROM municipalities mu`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("JHB-A").AddRow("JHB-B"))

	count, samples, err := NewGeographyRepo(db, Postgres).
		Defects(context.Background(), geography.DefectSubRegionParentNoDistrict, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, []string{"JHB-A", "JHB-B"}, samples)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGeographyRepo_Defects_NoRowsSkipsSample(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM members m`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))

	count, samples, err := NewGeographyRepo(db, MySQL).
		Defects(context.Background(), geography.DefectMemberWardUnknown, 10)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Nil(t, samples)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGeographyRepo_Defects_EveryKindHasAQuery(t *testing.T) {
	for _, kind := range geography.AllDefectKinds {
		_, ok := defectQueries[kind]
		assert.True(t, ok, "no query for %s", kind)
	}
}

func TestGeographyRepo_Defects_UnknownKind(t *testing.T) {
	db, _ := newMock(t)
	_, _, err := NewGeographyRepo(db, Postgres).Defects(context.Background(), "nope", 5)
	assert.Error(t, err)
}
