package clientcli

import (
	"errors"
	"fmt"
	"net/http"
)

// Errors for profile operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoProfiles      = errors.New("no profiles configured")
	ErrProfileExists   = errors.New("profile already exists")
)

// Errors for configuration validation.
var (
	ErrConfigRequired  = errors.New("config is required")
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// Errors for input validation.
var (
	ErrNoPaths   = errors.New("no paths provided")
	ErrEmptyPath = errors.New("path is required")
)

// Errors matched by APIError.Is, keyed on the server's status code.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrTooLarge         = errors.New("file too large")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Code       string // machine-readable error kind, e.g. "not_found"
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	if e.Code == "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is lets callers use errors.Is(err, clientcli.ErrNotFound) and friends.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrAlreadyExists:
		return e.StatusCode == http.StatusConflict
	case ErrTooLarge:
		return e.StatusCode == http.StatusRequestEntityTooLarge
	case ErrStoreUnavailable:
		return e.StatusCode == http.StatusServiceUnavailable
	}
	return false
}
