// Package geography resolves a ward up the hierarchy ward → municipality →
// district → province and audits the hierarchy for data-quality gaps.
//
// Metro sub-regions carry a parent_municipality_id. Their district and
// province always come from the parent's district_code, never from the
// sub-region's own (usually null) value.
package geography
