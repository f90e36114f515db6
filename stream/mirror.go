// Package stream provides DynamoDB Streams handlers that mirror table changes
// into a store client.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/tablestore/store"
)

// Handler mirrors DynamoDB stream records into the tables defined on a client.
type Handler struct {
	client      *store.Client
	logger      *slog.Logger
	tablePrefix string
}

// Option configures a Handler.
type Option func(*Handler)

// WithTablePrefix strips prefix from source table names before looking up
// their model, matching a dynamo backend created with the same TablePrefix.
func WithTablePrefix(prefix string) Option {
	return func(h *Handler) {
		h.tablePrefix = prefix
	}
}

// NewHandler creates a new stream handler.
func NewHandler(client *store.Client, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		client: client,
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// write is a run of consecutive records of one kind against one table.
// A key appears once per run; later images replace earlier ones.
type write struct {
	model   *store.Model
	remove  bool
	upserts []store.Entity
	keys    []store.Key
	seen    map[store.Key]int
}

// HandleMirror applies the stream records to the client's tables in order.
// INSERT and MODIFY records are written with Insert, REMOVE records are
// deleted by key. Records from tables with no defined model are skipped.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleMirror(ctx context.Context, event events.DynamoDBEvent) error {
	var pending *write
	applied := 0

	for _, record := range event.Records {
		table := h.sourceTable(record.EventSourceArn)
		model, ok := h.client.Registry().Lookup(table)
		if !ok {
			h.logger.Debug("skipping record for undefined table",
				"eventID", record.EventID,
				"table", table,
			)
			continue
		}

		remove := record.EventName == "REMOVE"
		if record.EventName != "INSERT" && record.EventName != "MODIFY" && !remove {
			continue
		}

		if pending != nil && (pending.model != model || pending.remove != remove) {
			if err := h.flush(ctx, pending); err != nil {
				return err
			}
			pending = nil
		}
		if pending == nil {
			pending = &write{model: model, remove: remove, seen: make(map[store.Key]int)}
		}

		if err := h.collect(pending, record); err != nil {
			h.logger.Error("failed to convert record",
				"eventID", record.EventID,
				"table", table,
				"error", err,
			)
			return err
		}
		applied++
	}

	if pending != nil {
		if err := h.flush(ctx, pending); err != nil {
			return err
		}
	}

	h.logger.Info("stream batch mirrored",
		"records", len(event.Records),
		"applied", applied,
	)
	return nil
}

func (h *Handler) collect(w *write, record events.DynamoDBEventRecord) error {
	if w.remove {
		k := ConvertImage(record.Change.Keys).Key()
		if _, ok := w.seen[k]; !ok {
			w.seen[k] = len(w.keys)
			w.keys = append(w.keys, k)
		}
		return nil
	}

	e, err := w.model.Decode(ConvertImage(record.Change.NewImage), nil)
	if err != nil {
		return fmt.Errorf("decode %s: %w", record.EventID, err)
	}
	k := w.model.KeyOf(e)
	if i, ok := w.seen[k]; ok {
		w.upserts[i] = e
		return nil
	}
	w.seen[k] = len(w.upserts)
	w.upserts = append(w.upserts, e)
	return nil
}

func (h *Handler) flush(ctx context.Context, w *write) error {
	var err error
	if w.remove {
		err = w.model.DeleteKeys(ctx, w.keys)
	} else {
		err = w.model.Insert(ctx, w.upserts)
	}
	if err != nil {
		h.logger.Error("failed to mirror records",
			"table", w.model.TableName(),
			"remove", w.remove,
			"error", err,
		)
		return err // Will retry, eventually DLQ
	}
	return nil
}

// sourceTable extracts the table name from a stream ARN such as
// arn:aws:dynamodb:eu-west-1:123456789012:table/Accounts/stream/2024-01-01T00:00:00.000.
func (h *Handler) sourceTable(arn string) string {
	_, rest, ok := strings.Cut(arn, ":table/")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	return strings.TrimPrefix(name, h.tablePrefix)
}

// ConvertImage converts a DynamoDB stream image into a store record.
func ConvertImage(image map[string]events.DynamoDBAttributeValue) store.Record {
	result := make(store.Record, len(image))
	for k, v := range image {
		if av := convertValue(v); av != nil {
			result[k] = av
		}
	}
	return result
}

func convertValue(v events.DynamoDBAttributeValue) types.AttributeValue {
	switch v.DataType() {
	case events.DataTypeString:
		return &types.AttributeValueMemberS{Value: v.String()}
	case events.DataTypeNumber:
		return &types.AttributeValueMemberN{Value: v.Number()}
	case events.DataTypeBinary:
		return &types.AttributeValueMemberB{Value: v.Binary()}
	case events.DataTypeBoolean:
		return &types.AttributeValueMemberBOOL{Value: v.Boolean()}
	case events.DataTypeNull:
		return &types.AttributeValueMemberNULL{Value: true}
	case events.DataTypeStringSet:
		return &types.AttributeValueMemberSS{Value: v.StringSet()}
	case events.DataTypeNumberSet:
		return &types.AttributeValueMemberNS{Value: v.NumberSet()}
	case events.DataTypeBinarySet:
		return &types.AttributeValueMemberBS{Value: v.BinarySet()}
	case events.DataTypeList:
		list := v.List()
		out := make([]types.AttributeValue, 0, len(list))
		for _, item := range list {
			if av := convertValue(item); av != nil {
				out = append(out, av)
			}
		}
		return &types.AttributeValueMemberL{Value: out}
	case events.DataTypeMap:
		return &types.AttributeValueMemberM{Value: ConvertImage(v.Map())}
	}
	return nil
}
