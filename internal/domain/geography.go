package domain

// Province is the top level of the geographic hierarchy.
type Province struct {
	Code string `json:"province_code" db:"province_code"`
	Name string `json:"province_name" db:"province_name"`
}

// District belongs to exactly one province.
type District struct {
	Code         string `json:"district_code" db:"district_code"`
	Name         string `json:"district_name" db:"district_name"`
	ProvinceCode string `json:"province_code" db:"province_code"`
}

// Municipality is either a standalone municipality or a metro sub-region.
// A sub-region points at its metropolitan parent, and the parent carries
// the authoritative district linkage.
type Municipality struct {
	ID                   int64   `json:"municipality_id" db:"municipality_id"`
	Code                 string  `json:"municipality_code" db:"municipality_code"`
	Name                 string  `json:"municipality_name" db:"municipality_name"`
	Type                 string  `json:"municipality_type" db:"municipality_type"`
	DistrictCode         *string `json:"district_code" db:"district_code"`
	ParentMunicipalityID *int64  `json:"parent_municipality_id" db:"parent_municipality_id"`
}

// IsMetroSubRegion reports whether the municipality resolves through a parent.
func (m Municipality) IsMetroSubRegion() bool {
	return m.ParentMunicipalityID != nil
}

// Ward is the leaf geographic unit.
type Ward struct {
	Code             string `json:"ward_code" db:"ward_code"`
	Name             string `json:"ward_name" db:"ward_name"`
	MunicipalityCode string `json:"municipality_code" db:"municipality_code"`
}

// GeoResolution is the outcome of resolving a ward up to its province.
// Any level that could not be resolved is nil and named in Gaps.
type GeoResolution struct {
	WardCode     string        `json:"ward_code"`
	Ward         *Ward         `json:"ward"`
	Municipality *Municipality `json:"municipality"`
	// Parent is the metropolitan parent when Municipality is a sub-region.
	Parent            *Municipality `json:"parent_municipality,omitempty"`
	District          *District     `json:"district"`
	Province          *Province     `json:"province"`
	ResolvedViaParent bool          `json:"resolved_via_parent"`
	Gaps              []string      `json:"gaps,omitempty"`
}

// Complete reports whether every level from ward to province resolved.
func (r GeoResolution) Complete() bool {
	return r.Ward != nil && r.Municipality != nil && r.District != nil && r.Province != nil
}

// Gap codes reported by the resolver and the geography audit.
const (
	GapWardMissing         = "ward_missing"
	GapMunicipalityMissing = "municipality_missing"
	GapParentMissing       = "parent_municipality_missing"
	GapDistrictCodeMissing = "district_code_missing"
	GapDistrictMissing     = "district_missing"
	GapProvinceMissing     = "province_missing"
)
