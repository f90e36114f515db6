// Package store provides an entity mapping layer over a partitioned two-key
// table service.
//
// Entities are plain maps described by a [Descriptor]: the declared fields and
// their types, functions deriving the partition and row keys, and the table
// name. A descriptor is compiled once by [Client.Define] into a [Model] bound to
// a [TableService].
//
// # Writes
//
// Insert, InsertExclusive, Merge and MergeExclusive cut the input into batches
// of at most 100 operations. Inputs above one batch are split into contiguous
// chunks written concurrently:
//
//	chunks = 1                              if n <= 100
//	chunks = min(n/100, MaxParallelism)     otherwise
//
// A batch answered with a busy error is resubmitted after a randomized,
// growing delay, up to [Config.MaxRetries] times. A write that finds its table
// missing creates it and tries again once.
//
// # Reads
//
// [Model.Query] follows continuation tokens and returns every result;
// [Model.QueryPaged] and [Pager] hand results over one page at a time.
//
// # Errors
//
//   - [ErrNotFound] - no entity matched, or a merge-exclusive key is missing
//   - [ErrAlreadyExists] - insert-exclusive key already exists
//   - [ErrRetryBudgetExceeded] - a batch stayed busy past the retry budget
//   - [ErrInvalidDescriptor] - Define rejected a descriptor
//   - [*BatchError] - some chunks or partition groups failed
package store
