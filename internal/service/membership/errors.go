package membership

import "errors"

// Sentinel errors for the membership service layer.
var (
	ErrMemberNotFound   = errors.New("member not found")
	ErrInvalidBatchSize = errors.New("batch size must be positive")
	ErrStatusLookup     = errors.New("membership status lookup incomplete")
)
