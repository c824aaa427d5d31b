package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrInvalidProfile    = errors.New("invalid profile")
	ErrInvalidLimit      = errors.New("invalid query limit")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrUnsupportedDriver = errors.New("unsupported repository driver")
	ErrCorruptProfile    = errors.New("corrupt stored profile")
)
