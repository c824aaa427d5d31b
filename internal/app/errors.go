package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted    = errors.New("service not started")
	ErrMissingStore  = errors.New("service: vector index not configured")
	ErrMissingSource = errors.New("service: profile provider not configured")
	ErrMissingEngine = errors.New("service: aggregator or gateway not configured")
)
