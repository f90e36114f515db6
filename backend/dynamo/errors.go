package dynamo

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/jacentio/tablestore/store"
)

// Error codes DynamoDB uses for transient contention.
var busyCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"RequestLimitExceeded":                   true,
	"ThrottlingException":                    true,
	"TransactionInProgressException":         true,
	"TransactionConflictException":           true,
	"LimitExceededException":                 true,
}

// Cancellation reason codes that are retryable.
var busyReasons = map[string]bool{
	"TransactionConflict":           true,
	"ThrottlingError":               true,
	"ProvisionedThroughputExceeded": true,
}

// mapError translates DynamoDB errors into the store's sentinels. The original
// error stays in the chain.
func mapError(err error, batch store.Batch) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code == nil {
				continue
			}
			switch code := *reason.Code; {
			case code == "ConditionalCheckFailed" && i < batch.Len():
				op := batch.Operations[i]
				switch op.Mode {
				case store.ModeInsertExclusive:
					return fmt.Errorf("%w: %s/%s", store.ErrAlreadyExists, op.PartitionKey, op.RowKey)
				case store.ModeMergeExclusive:
					return fmt.Errorf("%w: %s/%s", store.ErrNotFound, op.PartitionKey, op.RowKey)
				}
			case busyReasons[code]:
				return fmt.Errorf("%w: %w", store.ErrBusy, err)
			}
		}
		return err
	}

	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %w", store.ErrTableNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && busyCodes[apiErr.ErrorCode()] {
		return fmt.Errorf("%w: %w", store.ErrBusy, err)
	}

	return err
}
