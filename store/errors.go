package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a query for a single entity has no results,
	// or when a merge-exclusive write targets a key that doesn't exist.
	ErrNotFound = errors.New("tablestore: entity not found")

	// ErrAlreadyExists is returned when an insert-exclusive write targets an existing key.
	ErrAlreadyExists = errors.New("tablestore: entity already exists")

	// ErrBusy is the transient "try again later" signal from a table service.
	ErrBusy = errors.New("tablestore: server busy, try operation later")

	// ErrTableNotFound is returned by a table service when the target table doesn't exist.
	ErrTableNotFound = errors.New("tablestore: table specified does not exist")

	// ErrRetryBudgetExceeded is returned when a batch stays busy past the retry budget.
	ErrRetryBudgetExceeded = errors.New("tablestore: gave up after exceeding retry budget")

	// ErrInvalidDescriptor is returned by Define for malformed descriptors.
	ErrInvalidDescriptor = errors.New("tablestore: invalid descriptor")

	// ErrAlreadyDefined is returned by Define when a model for the table is already registered.
	ErrAlreadyDefined = errors.New("tablestore: table already defined")

	// ErrBatchTooLarge is returned by table services for batches over the operation ceiling.
	ErrBatchTooLarge = errors.New("tablestore: batch exceeds operation limit")

	// ErrInvalidKey is returned by table services for empty keys or keys containing NUL.
	ErrInvalidKey = errors.New("tablestore: invalid key")
)

// Messages table services use for transient contention. Matched case-insensitively.
var busyMarkers = []string{
	"try operation later",
	"server busy",
	"serverbusy",
	"provisionedthroughputexceeded",
	"throttlingexception",
	"requestlimitexceeded",
}

// Messages table services use when a table is missing.
var tableNotFoundMarkers = []string{
	"table specified does not exist",
	"tablenotfound",
	"resourcenotfoundexception",
	"cannot do operations on a non-existent table",
}

// IsBusy reports whether err is a transient "busy" condition worth retrying.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBusy) {
		return true
	}
	return containsAny(err.Error(), busyMarkers)
}

// IsTableNotFound reports whether err says the target table doesn't exist.
func IsTableNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTableNotFound) {
		return true
	}
	return containsAny(err.Error(), tableNotFoundMarkers)
}

func containsAny(msg string, markers []string) bool {
	msg = strings.ToLower(msg)
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// BatchError reports a partially failed fan-out: some chunks or partition
// groups failed while others may have been applied. Err is the failure of the
// lowest failed index.
type BatchError struct {
	Failed int
	Total  int
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("tablestore: %d of %d groups failed: %v", e.Failed, e.Total, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// aggregate folds per-group results into a single error, nil when all
// succeeded. A single group's error is returned as is.
func aggregate(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	var first error
	failed := 0
	for _, err := range errs {
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		failed++
	}
	if failed == 0 {
		return nil
	}
	return &BatchError{Failed: failed, Total: len(errs), Err: first}
}
