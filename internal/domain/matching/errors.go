package matching

import "errors"

// Sentinel kinds for matching errors.
var (
	ErrInvalidFilter = errors.New("invalid match filter")
)
