package domain

import (
	"strings"
	"time"
)

// MembershipStatus enumerates the states a membership can be in.
type MembershipStatus string

const (
	StatusActive      MembershipStatus = "Active"
	StatusGracePeriod MembershipStatus = "Grace Period"
	StatusExpired     MembershipStatus = "Expired"
	StatusInactive    MembershipStatus = "Inactive"
	// StatusUnknown is never stored. It marks a member whose expiry date is
	// missing, so no date rule applies and the stored status is left alone.
	StatusUnknown MembershipStatus = "Unknown"
)

// Stored reports whether the status has a row in the status lookup table.
func (s MembershipStatus) Stored() bool {
	switch s {
	case StatusActive, StatusGracePeriod, StatusExpired, StatusInactive:
		return true
	}
	return false
}

// ParseStatus maps a membership_statuses name to its status. Matching
// ignores case and treats underscores as spaces, so "grace_period" is
// StatusGracePeriod. Unknown names return false.
func ParseStatus(name string) (MembershipStatus, bool) {
	n := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, "_", " ")))
	for _, st := range []MembershipStatus{StatusActive, StatusGracePeriod, StatusExpired, StatusInactive} {
		if n == strings.ToLower(string(st)) {
			return st, true
		}
	}
	return "", false
}

// CanonicalStatusName returns the standard spelling of a stored status name,
// or the name unchanged when it is not a known status.
func CanonicalStatusName(name string) string {
	if st, ok := ParseStatus(name); ok {
		return string(st)
	}
	return name
}

// Member is the subset of a membership record the admin tooling works with.
type Member struct {
	MemberID           int64      `json:"member_id" db:"member_id"`
	IDNumber           string     `json:"id_number" db:"id_number"`
	WardCode           string     `json:"ward_code" db:"ward_code"`
	ExpiryDate         *time.Time `json:"expiry_date" db:"expiry_date"`
	MembershipStatusID *int       `json:"membership_status_id" db:"membership_status_id"`
	StatusName         string     `json:"status_name" db:"status_name"`
	// AdminInactive is set only by an explicit administrative action.
	AdminInactive bool `json:"admin_inactive" db:"admin_inactive"`
}

// StatusChange records one membership_status_id correction.
type StatusChange struct {
	MemberID   int64            `json:"member_id"`
	FromID     *int             `json:"from_status_id"`
	ToID       int              `json:"to_status_id"`
	FromStatus string           `json:"from_status"`
	ToStatus   MembershipStatus `json:"to_status"`
	ExpiryDate *time.Time       `json:"expiry_date"`
}

// StatusCount is one row of a status breakdown report.
type StatusCount struct {
	ProvinceCode  string `json:"province_code"`
	ProvinceName  string `json:"province_name"`
	StoredStatus  string `json:"stored_status"`
	DerivedStatus string `json:"derived_status"`
	Members       int64  `json:"members"`
}

// Mismatched reports whether the stored status disagrees with the derived
// one. Unknown (no expiry date) never counts as a mismatch.
func (c StatusCount) Mismatched() bool {
	if c.DerivedStatus == string(StatusUnknown) {
		return false
	}
	return CanonicalStatusName(c.StoredStatus) != c.DerivedStatus
}
