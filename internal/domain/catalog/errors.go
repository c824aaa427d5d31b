package catalog

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrInvalidItem       = errors.New("invalid catalog item")
	ErrUnsupportedDriver = errors.New("unsupported catalog driver")
	ErrLoad              = errors.New("catalog load failed")
)
