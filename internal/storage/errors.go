package storage

import (
	"errors"
	"fmt"
)

var (
	ErrStorageWrite     = errors.New("storage write failed")
	ErrStorageNotFound  = errors.New("object not found in storage")
	ErrIntegrityUnknown = errors.New("object presence unknown")
	ErrInvalidLocation  = errors.New("invalid storage location")
)

// StorageWriteError is returned by Upload for any failure while persisting
// bytes: I/O errors, a full disk, missing permissions or a failed request
// to the remote backend.
type StorageWriteError struct {
	Backend string
	Err     error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("%s storage write failed, %v", e.Backend, e.Err)
}

func (e *StorageWriteError) Unwrap() []error {
	return []error{ErrStorageWrite, e.Err}
}

func writeErr(backend string, err error) error {
	return &StorageWriteError{Backend: backend, Err: err}
}

func unknownErr(err error) error {
	return fmt.Errorf("%w, %w", ErrIntegrityUnknown, err)
}
