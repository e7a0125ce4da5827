package catalog

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable marks failures of the underlying store. They abort
	// the current batch; the failing transaction leaves no partial writes.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNormalizationInvariant means the external id uniqueness of live
	// movies is already broken. It aborts the batch.
	ErrNormalizationInvariant = errors.New("normalization invariant violated")

	// ErrDuplicateExternalID is returned by Tx.InsertMovie when a live movie
	// with the same external id exists.
	ErrDuplicateExternalID = errors.New("duplicate external id")

	// ErrLocked means another writer holds the store.
	ErrLocked = errors.New("store is locked by another writer")
)

// BatchError reports that a batch job aborted. Work committed before the
// failing entity remains committed.
type BatchError struct {
	Operation string
	Processed int // entities fully committed before the abort
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s aborted after %d entities: %v", e.Operation, e.Processed, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// storageError wraps err as ErrStorageUnavailable unless it already carries
// a classification.
func storageError(op string, err error) error {
	if errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrNormalizationInvariant) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
