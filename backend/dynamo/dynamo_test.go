package dynamo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/jacentio/tablestore/store"
)

// fakeAPI records requests and returns canned responses.
type fakeAPI struct {
	createErr   error
	createCalls int
	describes   int

	transactErr    error
	transactInputs []*dynamodb.TransactWriteItemsInput

	queryInputs []*dynamodb.QueryInput
	queryOut    *dynamodb.QueryOutput
	scanInputs  []*dynamodb.ScanInput
	scanOut     *dynamodb.ScanOutput
	readErr     error
}

func (f *fakeAPI) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeAPI) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.describes++
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{
			TableName:   params.TableName,
			TableStatus: types.TableStatusActive,
		},
	}, nil
}

func (f *fakeAPI) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.transactInputs = append(f.transactInputs, params)
	if f.transactErr != nil {
		return nil, f.transactErr
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeAPI) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryInputs = append(f.queryInputs, params)
	if f.readErr != nil {
		return nil, f.readErr
	}
	if f.queryOut == nil {
		return &dynamodb.QueryOutput{}, nil
	}
	return f.queryOut, nil
}

func (f *fakeAPI) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.scanInputs = append(f.scanInputs, params)
	if f.readErr != nil {
		return nil, f.readErr
	}
	if f.scanOut == nil {
		return &dynamodb.ScanOutput{}, nil
	}
	return f.scanOut, nil
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(api *fakeAPI) *Service {
	return New(api, Options{TablePrefix: "test-", Now: func() time.Time { return fixedNow }})
}

func TestCreateTableIfNotExists(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(api)

	if err := svc.CreateTableIfNotExists(context.Background(), "accounts"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.createCalls != 1 {
		t.Errorf("expected 1 CreateTable call, got %d", api.createCalls)
	}
	if api.describes == 0 {
		t.Error("expected the waiter to describe the table")
	}
}

func TestCreateTableIfNotExists_AlreadyExists(t *testing.T) {
	api := &fakeAPI{createErr: &types.ResourceInUseException{Message: aws.String("Table already exists")}}
	svc := newTestService(api)

	if err := svc.CreateTableIfNotExists(context.Background(), "accounts"); err != nil {
		t.Errorf("expected existing table to be success, got %v", err)
	}
}

func TestCreateTableIfNotExists_LimitExceeded(t *testing.T) {
	api := &fakeAPI{createErr: &types.LimitExceededException{Message: aws.String("too many tables being created")}}
	svc := newTestService(api)

	err := svc.CreateTableIfNotExists(context.Background(), "accounts")
	if !store.IsBusy(err) {
		t.Errorf("expected busy error, got %v", err)
	}
}

func TestExecuteBatch_WriteItems(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(api)

	name := &types.AttributeValueMemberS{Value: "Heinz"}
	batch := store.Batch{Operations: []store.Operation{
		{Mode: store.ModeInsert, PartitionKey: "123", RowKey: "a", Fields: store.Record{"Name": name}},
		{Mode: store.ModeInsertExclusive, PartitionKey: "123", RowKey: "b", Fields: store.Record{"Name": name}},
		{Mode: store.ModeMerge, PartitionKey: "123", RowKey: "c", Fields: store.Record{"Name": name}},
		{Mode: store.ModeMergeExclusive, PartitionKey: "123", RowKey: "d", Fields: store.Record{}},
		{Mode: store.ModeDelete, PartitionKey: "123", RowKey: "e"},
	}}

	if err := svc.ExecuteBatch(context.Background(), "accounts", batch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.transactInputs) != 1 {
		t.Fatalf("expected 1 TransactWriteItems call, got %d", len(api.transactInputs))
	}
	items := api.transactInputs[0].TransactItems
	if len(items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(items))
	}

	put := items[0].Put
	if put == nil {
		t.Fatal("expected insert to be a Put")
	}
	if *put.TableName != "test-accounts" {
		t.Errorf("expected table 'test-accounts', got %q", *put.TableName)
	}
	if put.ConditionExpression != nil {
		t.Errorf("expected unconditional Put, got %q", *put.ConditionExpression)
	}
	if v := put.Item[store.AttrPartitionKey].(*types.AttributeValueMemberS).Value; v != "123" {
		t.Errorf("expected PartitionKey '123', got %q", v)
	}
	if v := put.Item[store.AttrTimestamp].(*types.AttributeValueMemberS).Value; v != "2024-03-01T12:00:00Z" {
		t.Errorf("expected Timestamp to be stamped, got %q", v)
	}
	if put.Item["Name"] != name {
		t.Error("expected Name to be written")
	}

	if items[1].Put == nil || aws.ToString(items[1].Put.ConditionExpression) != "attribute_not_exists(#pk)" {
		t.Error("expected exclusive insert to be a conditional Put")
	}

	update := items[2].Update
	if update == nil {
		t.Fatal("expected merge to be an Update")
	}
	expr := aws.ToString(update.UpdateExpression)
	if !strings.HasPrefix(expr, "SET ") || !strings.Contains(expr, "#attr0 = :val0") || !strings.Contains(expr, "#ts = :ts") {
		t.Errorf("unexpected update expression %q", expr)
	}
	if update.ExpressionAttributeNames["#attr0"] != "Name" {
		t.Errorf("expected #attr0 to name 'Name', got %q", update.ExpressionAttributeNames["#attr0"])
	}
	if update.ConditionExpression != nil {
		t.Error("expected merge to be unconditional")
	}

	if items[3].Update == nil || aws.ToString(items[3].Update.ConditionExpression) != "attribute_exists(#pk)" {
		t.Error("expected exclusive merge to be a conditional Update")
	}
	if aws.ToString(items[3].Update.UpdateExpression) != "SET #ts = :ts" {
		t.Errorf("expected empty merge to touch only the timestamp, got %q", aws.ToString(items[3].Update.UpdateExpression))
	}

	if items[4].Delete == nil {
		t.Fatal("expected delete to be a Delete")
	}
	if v := items[4].Delete.Key[store.AttrRowKey].(*types.AttributeValueMemberS).Value; v != "e" {
		t.Errorf("expected RowKey 'e', got %q", v)
	}
}

func TestExecuteBatch_Empty(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(api)

	if err := svc.ExecuteBatch(context.Background(), "accounts", store.Batch{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(api.transactInputs) != 0 {
		t.Errorf("expected no calls for an empty batch, got %d", len(api.transactInputs))
	}
}

func TestMapError(t *testing.T) {
	batch := store.Batch{Operations: []store.Operation{
		{Mode: store.ModeInsert, PartitionKey: "p", RowKey: "a"},
		{Mode: store.ModeInsertExclusive, PartitionKey: "p", RowKey: "b"},
		{Mode: store.ModeMergeExclusive, PartitionKey: "p", RowKey: "c"},
	}}
	none := "None"
	condFailed := "ConditionalCheckFailed"
	conflict := "TransactionConflict"
	generic := errors.New("network unreachable")

	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{
			name:  "nil",
			err:   nil,
			check: func(err error) bool { return err == nil },
		},
		{
			name: "insert exclusive conflict",
			err: &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
				{Code: &none}, {Code: &condFailed}, {Code: &none},
			}},
			check: func(err error) bool { return errors.Is(err, store.ErrAlreadyExists) },
		},
		{
			name: "merge exclusive missing",
			err: &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
				{Code: &none}, {Code: &none}, {Code: &condFailed},
			}},
			check: func(err error) bool { return errors.Is(err, store.ErrNotFound) },
		},
		{
			name: "transaction conflict",
			err: &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
				{Code: &conflict},
			}},
			check: store.IsBusy,
		},
		{
			name:  "throughput exceeded",
			err:   &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")},
			check: store.IsBusy,
		},
		{
			name:  "throttling",
			err:   &smithy.GenericAPIError{Code: "ThrottlingException", Message: "Rate exceeded"},
			check: store.IsBusy,
		},
		{
			name:  "missing table",
			err:   &types.ResourceNotFoundException{Message: aws.String("Requested resource not found")},
			check: store.IsTableNotFound,
		},
		{
			name:  "other",
			err:   generic,
			check: func(err error) bool { return err == generic },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, batch)
			if !tt.check(got) {
				t.Errorf("unexpected mapping for %v: %v", tt.err, got)
			}
		})
	}
}

func TestQueryEntities_Partition(t *testing.T) {
	api := &fakeAPI{queryOut: &dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{
			{store.AttrPartitionKey: &types.AttributeValueMemberS{Value: "123"}, store.AttrRowKey: &types.AttributeValueMemberS{Value: "a"}},
		},
		LastEvaluatedKey: map[string]types.AttributeValue{
			store.AttrPartitionKey: &types.AttributeValueMemberS{Value: "123"},
			store.AttrRowKey:       &types.AttributeValueMemberS{Value: "a"},
		},
	}}
	svc := newTestService(api)

	q := store.PageQuery{Filter: store.Filter{PartitionKey: "123", RowKey: "a"}, Limit: 2}
	page, err := svc.QueryEntities(context.Background(), "accounts", q, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(page.Entries))
	}
	if page.ContinuationToken == "" {
		t.Fatal("expected a continuation token")
	}

	in := api.queryInputs[0]
	if aws.ToString(in.KeyConditionExpression) != "#pk = :pk AND #rk = :rk" {
		t.Errorf("unexpected key condition %q", aws.ToString(in.KeyConditionExpression))
	}
	if aws.ToInt32(in.Limit) != 2 {
		t.Errorf("expected limit 2, got %d", aws.ToInt32(in.Limit))
	}

	// The token resumes after the last evaluated key.
	if _, err := svc.QueryEntities(context.Background(), "accounts", q, page.ContinuationToken); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	start := api.queryInputs[1].ExclusiveStartKey
	if v := start[store.AttrRowKey].(*types.AttributeValueMemberS).Value; v != "a" {
		t.Errorf("expected ExclusiveStartKey RowKey 'a', got %q", v)
	}
}

func TestQueryEntities_ScanByRowKey(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(api)

	page, err := svc.QueryEntities(context.Background(), "accounts", store.PageQuery{Filter: store.Filter{RowKey: "Heinz"}}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.ContinuationToken != "" {
		t.Errorf("expected no continuation token, got %q", page.ContinuationToken)
	}
	if len(api.queryInputs) != 0 || len(api.scanInputs) != 1 {
		t.Fatalf("expected a single Scan, got %d queries and %d scans", len(api.queryInputs), len(api.scanInputs))
	}
	in := api.scanInputs[0]
	if aws.ToString(in.FilterExpression) != "#rk = :rk" {
		t.Errorf("unexpected filter %q", aws.ToString(in.FilterExpression))
	}
	if in.Limit != nil {
		t.Errorf("expected no limit, got %d", *in.Limit)
	}
}

func TestQueryEntities_MissingTable(t *testing.T) {
	api := &fakeAPI{readErr: &types.ResourceNotFoundException{Message: aws.String("Requested resource not found")}}
	svc := newTestService(api)

	_, err := svc.QueryEntities(context.Background(), "accounts", store.PageQuery{}, "")
	if !store.IsTableNotFound(err) {
		t.Errorf("expected table not found, got %v", err)
	}
}

func TestQueryEntities_InvalidToken(t *testing.T) {
	svc := newTestService(&fakeAPI{})

	if _, err := svc.QueryEntities(context.Background(), "accounts", store.PageQuery{}, "%%%"); err == nil {
		t.Error("expected an invalid token to fail")
	}
}
