package geography

import (
	"context"

	"github.com/ignite/membership-admin/internal/domain"
)

// Repository defines the lookups the resolver needs. Every getter returns
// (nil, nil) when the row does not exist; errors are reserved for failures.
type Repository interface {
	Ward(ctx context.Context, wardCode string) (*domain.Ward, error)
	MunicipalityByCode(ctx context.Context, code string) (*domain.Municipality, error)
	MunicipalityByID(ctx context.Context, id int64) (*domain.Municipality, error)
	District(ctx context.Context, code string) (*domain.District, error)
	Province(ctx context.Context, code string) (*domain.Province, error)

	// Defects runs one data-quality query and returns the number of
	// offending rows plus up to sampleLimit of their codes.
	Defects(ctx context.Context, kind DefectKind, sampleLimit int) (int64, []string, error)
}

// DefectKind names one data-quality query over the hierarchy.
type DefectKind string

const (
	DefectWardWithoutMunicipality   DefectKind = "ward_without_municipality"
	DefectSubRegionParentMissing    DefectKind = "subregion_parent_missing"
	DefectSubRegionParentNoDistrict DefectKind = "subregion_parent_without_district"
	DefectMunicipalityNoDistrict    DefectKind = "municipality_without_district"
	DefectDistrictWithoutProvince   DefectKind = "district_without_province"
	DefectMemberWardUnknown         DefectKind = "member_ward_unknown"
)

// AllDefectKinds lists every audit query in report order.
var AllDefectKinds = []DefectKind{
	DefectWardWithoutMunicipality,
	DefectSubRegionParentMissing,
	DefectSubRegionParentNoDistrict,
	DefectMunicipalityNoDistrict,
	DefectDistrictWithoutProvince,
	DefectMemberWardUnknown,
}
