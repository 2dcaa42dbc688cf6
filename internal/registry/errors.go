package registry

import "errors"

var (
	// ErrNotFound is returned both for assets that don't exist and for
	// assets the caller isn't allowed to see
	ErrNotFound = errors.New("asset not found")
	// ErrUnavailable is returned for assets whose bytes can't be served
	ErrUnavailable = errors.New("asset is unavailable")
)
