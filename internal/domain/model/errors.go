package model

import "errors"

// Sentinel kinds shared by every layer.
var (
	ErrItemMiss              = errors.New("item not resolvable")
	ErrZeroCoverage          = errors.New("no resolvable listening items")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrDependencyTimeout     = errors.New("dependency timeout")
	ErrNotFound              = errors.New("profile not found")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrInvalidTransition     = errors.New("invalid stage transition")
)
