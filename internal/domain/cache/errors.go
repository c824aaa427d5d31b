package cache

import "errors"

// Sentinel kinds for cache errors.
var (
	ErrInvalidCapacity = errors.New("invalid cache capacity")
)
