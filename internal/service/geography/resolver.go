package geography

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/membership-admin/internal/domain"
)

// WardResolver is satisfied by Resolver and CachedResolver.
type WardResolver interface {
	Resolve(ctx context.Context, wardCode string) (*domain.GeoResolution, error)
}

// Resolver walks the hierarchy through the repository.
type Resolver struct {
	repo Repository
}

// NewResolver creates a resolver backed by the given repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// DistrictCodeFor returns the district code that governs m. For a metro
// sub-region that is the parent's code; m's own district_code is ignored.
// gap is non-empty when no code can be determined.
func DistrictCodeFor(m domain.Municipality, parent *domain.Municipality) (code string, viaParent bool, gap string) {
	if m.IsMetroSubRegion() {
		if parent == nil {
			return "", true, domain.GapParentMissing
		}
		if parent.DistrictCode == nil || *parent.DistrictCode == "" {
			return "", true, domain.GapDistrictCodeMissing
		}
		return *parent.DistrictCode, true, ""
	}
	if m.DistrictCode == nil || *m.DistrictCode == "" {
		return "", false, domain.GapDistrictCodeMissing
	}
	return *m.DistrictCode, false, ""
}

// Resolve returns the municipality, district and province for a ward.
// Levels that cannot be resolved are left nil and recorded in Gaps; that is
// a data-quality finding, so err is only set when a lookup itself fails.
func (r *Resolver) Resolve(ctx context.Context, wardCode string) (*domain.GeoResolution, error) {
	wardCode = strings.TrimSpace(wardCode)
	if wardCode == "" {
		return nil, ErrEmptyWardCode
	}
	res := &domain.GeoResolution{WardCode: wardCode}

	ward, err := r.repo.Ward(ctx, wardCode)
	if err != nil {
		return nil, fmt.Errorf("lookup ward %s: %w", wardCode, err)
	}
	if ward == nil {
		res.Gaps = append(res.Gaps, domain.GapWardMissing)
		return res, nil
	}
	res.Ward = ward

	muni, err := r.repo.MunicipalityByCode(ctx, ward.MunicipalityCode)
	if err != nil {
		return nil, fmt.Errorf("lookup municipality %s: %w", ward.MunicipalityCode, err)
	}
	if muni == nil {
		res.Gaps = append(res.Gaps, domain.GapMunicipalityMissing)
		return res, nil
	}
	res.Municipality = muni

	var parent *domain.Municipality
	if muni.IsMetroSubRegion() {
		parent, err = r.repo.MunicipalityByID(ctx, *muni.ParentMunicipalityID)
		if err != nil {
			return nil, fmt.Errorf("lookup parent municipality %d: %w", *muni.ParentMunicipalityID, err)
		}
		res.Parent = parent
	}

	code, viaParent, gap := DistrictCodeFor(*muni, parent)
	res.ResolvedViaParent = viaParent
	if gap != "" {
		res.Gaps = append(res.Gaps, gap)
		return res, nil
	}

	district, err := r.repo.District(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lookup district %s: %w", code, err)
	}
	if district == nil {
		res.Gaps = append(res.Gaps, domain.GapDistrictMissing)
		return res, nil
	}
	res.District = district

	province, err := r.repo.Province(ctx, district.ProvinceCode)
	if err != nil {
		return nil, fmt.Errorf("lookup province %s: %w", district.ProvinceCode, err)
	}
	if province == nil {
		res.Gaps = append(res.Gaps, domain.GapProvinceMissing)
		return res, nil
	}
	res.Province = province
	return res, nil
}
