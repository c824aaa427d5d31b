package seeding

import "errors"

// Sentinel kinds for seeding errors.
var (
	ErrInvalidMix   = errors.New("invalid segment mix")
	ErrInvalidPools = errors.New("invalid segment pools")
	ErrInvalidCount = errors.New("invalid ghost count")
)
