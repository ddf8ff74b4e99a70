package membership

import (
	"time"

	"github.com/ignite/membership-admin/internal/domain"
)

// DefaultGraceDays is the length of the grace window after expiry.
const DefaultGraceDays = 90

// Classifier maps an expiry date to a membership status. The zero value is
// usable and applies a 90-day grace window in UTC.
type Classifier struct {
	GraceDays int
	Location  *time.Location
}

// NewClassifier returns a classifier for the given grace window and timezone.
func NewClassifier(graceDays int, loc *time.Location) Classifier {
	return Classifier{GraceDays: graceDays, Location: loc}
}

func (c Classifier) graceDays() int {
	if c.GraceDays <= 0 {
		return DefaultGraceDays
	}
	return c.GraceDays
}

func (c Classifier) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// day truncates t to midnight of its calendar date in the classifier's zone.
func (c Classifier) day(t time.Time) time.Time {
	t = t.In(c.loc())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc())
}

// Classify returns the date-derived status for an expiry date. A nil expiry
// yields StatusUnknown.
//
//	expiry >= today                      Active
//	today-grace <= expiry < today        Grace Period
//	expiry < today-grace                 Expired
func (c Classifier) Classify(expiry *time.Time, today time.Time) domain.MembershipStatus {
	if expiry == nil {
		return domain.StatusUnknown
	}
	// Expiry dates are calendar dates; read them in their stored zone.
	e := time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, c.loc())
	w := c.Window(today)

	switch {
	case !e.Before(w.Today):
		return domain.StatusActive
	case !e.Before(w.GraceStart):
		return domain.StatusGracePeriod
	default:
		return domain.StatusExpired
	}
}

// ClassifyMember applies the explicit administrative Inactive mark before the
// date rule.
func (c Classifier) ClassifyMember(m domain.Member, today time.Time) domain.MembershipStatus {
	if m.AdminInactive {
		return domain.StatusInactive
	}
	return c.Classify(m.ExpiryDate, today)
}

// StatusWindow holds the date bounds of the classification rule for one day.
type StatusWindow struct {
	Today      time.Time
	GraceStart time.Time
}

// Window returns the bounds used by Classify for the given day.
func (c Classifier) Window(today time.Time) StatusWindow {
	d := c.day(today)
	return StatusWindow{Today: d, GraceStart: d.AddDate(0, 0, -c.graceDays())}
}
