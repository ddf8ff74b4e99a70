package geography

import "errors"

// Sentinel errors for the geography service layer.
var (
	ErrEmptyWardCode = errors.New("ward code is required")
)
