// Package rowop applies write operations to stored records for the in-process
// table services.
package rowop

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/tablestore/store"
)

// MaxBatchSize is the atomic batch ceiling enforced by every service.
const MaxBatchSize = 100

// Apply computes the record stored after op. current is nil when no record
// exists for the key; a nil result means the record is removed.
func Apply(current store.Record, op store.Operation, now time.Time) (store.Record, error) {
	switch op.Mode {
	case store.ModeDelete:
		return nil, nil
	case store.ModeInsertExclusive:
		if current != nil {
			return nil, fmt.Errorf("%w: %s/%s", store.ErrAlreadyExists, op.PartitionKey, op.RowKey)
		}
		return stamp(clone(op.Fields), op, now), nil
	case store.ModeInsert:
		return stamp(clone(op.Fields), op, now), nil
	case store.ModeMergeExclusive:
		if current == nil {
			return nil, fmt.Errorf("%w: %s/%s", store.ErrNotFound, op.PartitionKey, op.RowKey)
		}
		return stamp(merge(current, op.Fields), op, now), nil
	case store.ModeMerge:
		return stamp(merge(current, op.Fields), op, now), nil
	}
	return nil, fmt.Errorf("unknown operation mode %d", op.Mode)
}

// Validate checks the batch against the service limits before anything is applied.
func Validate(batch store.Batch) error {
	if batch.Len() > MaxBatchSize {
		return fmt.Errorf("%w: %d operations", store.ErrBatchTooLarge, batch.Len())
	}
	seen := make(map[store.Key]struct{}, batch.Len())
	for _, op := range batch.Operations {
		if op.PartitionKey == "" || op.RowKey == "" {
			return fmt.Errorf("%w: empty key %q/%q", store.ErrInvalidKey, op.PartitionKey, op.RowKey)
		}
		// NUL separates the key parts in tokens and bolt keys.
		if strings.ContainsRune(op.PartitionKey, 0) || strings.ContainsRune(op.RowKey, 0) {
			return fmt.Errorf("%w: NUL byte in key %q/%q", store.ErrInvalidKey, op.PartitionKey, op.RowKey)
		}
		k := op.Key()
		if _, dup := seen[k]; dup {
			return fmt.Errorf("tablestore: batch contains %s/%s more than once", k.PartitionKey, k.RowKey)
		}
		seen[k] = struct{}{}
	}
	return nil
}

func clone(r store.Record) store.Record {
	out := make(store.Record, len(r)+3)
	for k, v := range r {
		out[k] = v
	}
	return out
}

func merge(current, fields store.Record) store.Record {
	out := clone(current)
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func stamp(r store.Record, op store.Operation, now time.Time) store.Record {
	r[store.AttrPartitionKey] = &types.AttributeValueMemberS{Value: op.PartitionKey}
	r[store.AttrRowKey] = &types.AttributeValueMemberS{Value: op.RowKey}
	r[store.AttrTimestamp] = &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)}
	return r
}

// Compare orders keys by partition key, then row key.
func Compare(a, b store.Key) int {
	if c := strings.Compare(a.PartitionKey, b.PartitionKey); c != 0 {
		return c
	}
	return strings.Compare(a.RowKey, b.RowKey)
}

// EncodeToken turns the last key of a page into a continuation token.
func EncodeToken(k store.Key) string {
	return base64.RawURLEncoding.EncodeToString([]byte(k.PartitionKey + "\x00" + k.RowKey))
}

// DecodeToken reverses EncodeToken.
func DecodeToken(token string) (store.Key, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return store.Key{}, fmt.Errorf("invalid continuation token: %w", err)
	}
	pk, rk, ok := strings.Cut(string(raw), "\x00")
	if !ok {
		return store.Key{}, fmt.Errorf("invalid continuation token %q", token)
	}
	return store.Key{PartitionKey: pk, RowKey: rk}, nil
}

// PageSize resolves a page-size hint against a service default.
func PageSize(limit int32, def int) int {
	if limit > 0 && int(limit) < def {
		return int(limit)
	}
	return def
}
