package bolt

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/go-cmp/cmp"
	"github.com/matryer/is"

	"github.com/jacentio/tablestore/internal/servicetest"
	"github.com/jacentio/tablestore/store"
)

func openTemp(t *testing.T) *Service {
	t.Helper()
	svc, err := Open(filepath.Join(t.TempDir(), "tables.db"), Options{PageSize: 7})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestConformance(t *testing.T) {
	servicetest.Run(t, "bolt", func(t *testing.T) store.TableService {
		return openTemp(t)
	})
}

func TestRecordCodecRoundTrip(t *testing.T) {
	rec := store.Record{
		"S":    &types.AttributeValueMemberS{Value: "hello"},
		"N":    &types.AttributeValueMemberN{Value: "1.5"},
		"BOOL": &types.AttributeValueMemberBOOL{Value: false},
		"NULL": &types.AttributeValueMemberNULL{Value: true},
		"SS":   &types.AttributeValueMemberSS{Value: []string{"a", "b"}},
		"L": &types.AttributeValueMemberL{Value: []types.AttributeValue{
			&types.AttributeValueMemberN{Value: "1"},
			&types.AttributeValueMemberS{Value: "Hello"},
		}},
		"EmptyL": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
		"M": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"inner": &types.AttributeValueMemberBOOL{Value: true},
		}},
	}

	data, err := marshalRecord(rec)
	if err != nil {
		t.Fatalf("marshalRecord failed: %v", err)
	}
	got, err := unmarshalRecord(data)
	if err != nil {
		t.Fatalf("unmarshalRecord failed: %v", err)
	}

	if diff := cmp.Diff(rec, got, cmp.Exporter(func(reflect.Type) bool { return true })); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRowKeyRoundTrip(t *testing.T) {
	tests := []struct {
		key store.Key
	}{
		{store.Key{PartitionKey: "123", RowKey: "Heinz"}},
		{store.Key{PartitionKey: "", RowKey: "r"}},
		{store.Key{PartitionKey: "p", RowKey: ""}},
	}

	for _, tt := range tests {
		if got := splitRowKey(rowKey(tt.key)); got != tt.key {
			t.Errorf("expected %v, got %v", tt.key, got)
		}
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tables.db")

	svc, err := Open(path, Options{})
	is.NoErr(err)
	is.NoErr(svc.CreateTableIfNotExists(ctx, "accounts"))
	is.NoErr(svc.ExecuteBatch(ctx, "accounts", store.Batch{Operations: []store.Operation{{
		Mode:         store.ModeInsert,
		PartitionKey: "123",
		RowKey:       "Heinz",
		Fields:       store.Record{"Name": &types.AttributeValueMemberS{Value: "Heinz"}},
	}}}))
	is.NoErr(svc.Close())

	svc, err = Open(path, Options{})
	is.NoErr(err)
	defer svc.Close()

	page, err := svc.QueryEntities(ctx, "accounts", store.PageQuery{Filter: store.Filter{PartitionKey: "123"}}, "")
	is.NoErr(err)
	is.Equal(len(page.Entries), 1)
	is.Equal(page.Entries[0].Key(), store.Key{PartitionKey: "123", RowKey: "Heinz"})
}
