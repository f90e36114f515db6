// Package dynamo implements store.TableService on Amazon DynamoDB.
//
// Every logical table is a DynamoDB table keyed by the string attributes
// PartitionKey (hash) and RowKey (range). A batch is written with a single
// TransactWriteItems call, so it is applied atomically across partitions.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/tablestore/internal/rowop"
	"github.com/jacentio/tablestore/store"
)

// API is the subset of *dynamodb.Client used by Service.
type API interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Options configures a Service.
type Options struct {
	// TablePrefix is prepended to every table name.
	TablePrefix string

	// WaitTimeout bounds waiting for a new table to become active.
	// Default: 2m
	WaitTimeout time.Duration

	// Now stamps the Timestamp attribute. Default: time.Now
	Now func() time.Time

	// Logger receives table creation diagnostics. Default: slog.Default()
	Logger *slog.Logger
}

// Service is a store.TableService backed by DynamoDB.
type Service struct {
	api    API
	opts   Options
	logger *slog.Logger
}

var _ store.TableService = (*Service)(nil)

// New creates a Service on top of a DynamoDB client.
func New(api API, opts Options) *Service {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 2 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{api: api, opts: opts, logger: opts.Logger}
}

func (s *Service) tableName(name string) *string {
	return aws.String(s.opts.TablePrefix + name)
}

// CreateTableIfNotExists creates the table and waits until it is active. A
// table that already exists, or is being created, is not an error.
func (s *Service) CreateTableIfNotExists(ctx context.Context, name string) error {
	_, err := s.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: s.tableName(name),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(store.AttrPartitionKey), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(store.AttrRowKey), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(store.AttrPartitionKey), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(store.AttrRowKey), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return mapError(err, store.Batch{})
		}
	} else {
		s.logger.Info("created table", "table", s.opts.TablePrefix+name)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.api)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: s.tableName(name),
	}, s.opts.WaitTimeout); err != nil {
		return fmt.Errorf("wait for table %s: %w", name, err)
	}
	return nil
}

// ExecuteBatch writes the batch with one TransactWriteItems call.
func (s *Service) ExecuteBatch(ctx context.Context, name string, batch store.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	if err := rowop.Validate(batch); err != nil {
		return err
	}

	now := s.opts.Now().UTC().Format(time.RFC3339Nano)
	items := make([]types.TransactWriteItem, 0, batch.Len())
	for _, op := range batch.Operations {
		item, err := s.writeItem(name, op, now)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	_, err := s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapError(err, batch)
}

func keyOf(op store.Operation) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		store.AttrPartitionKey: &types.AttributeValueMemberS{Value: op.PartitionKey},
		store.AttrRowKey:       &types.AttributeValueMemberS{Value: op.RowKey},
	}
}

func (s *Service) writeItem(name string, op store.Operation, now string) (types.TransactWriteItem, error) {
	switch op.Mode {
	case store.ModeInsert, store.ModeInsertExclusive:
		item := keyOf(op)
		for k, v := range op.Fields {
			if store.IsSystemKey(k) {
				continue
			}
			item[k] = v
		}
		item[store.AttrTimestamp] = &types.AttributeValueMemberS{Value: now}

		put := &types.Put{TableName: s.tableName(name), Item: item}
		if op.Mode == store.ModeInsertExclusive {
			put.ConditionExpression = aws.String("attribute_not_exists(#pk)")
			put.ExpressionAttributeNames = map[string]string{"#pk": store.AttrPartitionKey}
		}
		return types.TransactWriteItem{Put: put}, nil

	case store.ModeMerge, store.ModeMergeExclusive:
		expr, names, values := updateExpression(op.Fields, now)
		update := &types.Update{
			TableName:                 s.tableName(name),
			Key:                       keyOf(op),
			UpdateExpression:          aws.String(expr),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		}
		if op.Mode == store.ModeMergeExclusive {
			update.ConditionExpression = aws.String("attribute_exists(#pk)")
			update.ExpressionAttributeNames["#pk"] = store.AttrPartitionKey
		}
		return types.TransactWriteItem{Update: update}, nil

	case store.ModeDelete:
		return types.TransactWriteItem{Delete: &types.Delete{
			TableName: s.tableName(name),
			Key:       keyOf(op),
		}}, nil
	}
	return types.TransactWriteItem{}, fmt.Errorf("unknown operation mode %d", op.Mode)
}

// updateExpression builds a SET expression over the fields plus the timestamp.
// Attribute names go through placeholders since field names may be reserved words.
func updateExpression(fields store.Record, now string) (string, map[string]string, map[string]types.AttributeValue) {
	names := map[string]string{"#ts": store.AttrTimestamp}
	values := map[string]types.AttributeValue{":ts": &types.AttributeValueMemberS{Value: now}}

	clauses := make([]string, 0, len(fields)+1)
	i := 0
	for k, v := range fields {
		if store.IsSystemKey(k) {
			continue
		}
		nameKey := fmt.Sprintf("#attr%d", i)
		valueKey := fmt.Sprintf(":val%d", i)
		names[nameKey] = k
		values[valueKey] = v
		clauses = append(clauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
		i++
	}
	clauses = append(clauses, "#ts = :ts")

	return "SET " + strings.Join(clauses, ", "), names, values
}
