package filegate

import "errors"

var (
	// ErrNotFound is returned when no object exists at a key
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when an upload targets an existing key
	ErrAlreadyExists = errors.New("already exists")
	// ErrSizeLimitExceeded is returned when an upload is larger than the configured maximum
	ErrSizeLimitExceeded = errors.New("size limit exceeded")
	// ErrInvalidInput is returned when a key or request fails validation
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable is returned when the object store cannot be reached or rejects our credentials
	ErrStoreUnavailable = errors.New("store unavailable")
)
