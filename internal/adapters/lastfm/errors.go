package lastfm

import (
	"errors"
	"fmt"
)

// Sentinel kinds for Last.fm errors.
var (
	ErrMissingAPIKey = errors.New("lastfm: api key not configured")
	ErrTooManyFailed = errors.New("lastfm: too many profile calls failed")
)

// Last.fm API error codes this client distinguishes.
const (
	codeInvalidParameters = 6
	codeOperationFailed   = 8
	codeInvalidAPIKey     = 10
	codeServiceOffline    = 11
	codeTemporaryError    = 16
	codeRateLimited       = 29
)

// APIError is an error payload returned by the Last.fm API.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lastfm: api error %d (http %d): %s", e.Code, e.Status, e.Message)
}

// kind labels the error for dependency metrics.
func (e *APIError) kind() string {
	switch e.Code {
	case codeInvalidAPIKey:
		return "auth"
	case codeRateLimited:
		return "rate_limited"
	case codeServiceOffline, codeTemporaryError, codeOperationFailed:
		return "upstream"
	}
	return "unavailable"
}

// notFound reports whether the API said the user or artist does not exist.
func (e *APIError) notFound() bool {
	return e.Code == codeInvalidParameters
}
