// Package servicetest is a conformance suite for store.TableService
// implementations.
package servicetest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/go-cmp/cmp"

	"github.com/jacentio/tablestore/store"
)

// Factory returns a fresh, empty service for one subtest.
type Factory func(t *testing.T) store.TableService

// Run runs every conformance test against services built by factory.
func Run(t *testing.T, name string, factory Factory) {
	t.Run(name, func(t *testing.T) {
		t.Run("CreateTableTwice", func(t *testing.T) {
			testCreateTableTwice(t, factory(t))
		})

		t.Run("MissingTable", func(t *testing.T) {
			testMissingTable(t, factory(t))
		})

		t.Run("InsertAndQuery", func(t *testing.T) {
			testInsertAndQuery(t, factory(t))
		})

		t.Run("InsertReplaces", func(t *testing.T) {
			testInsertReplaces(t, factory(t))
		})

		t.Run("MergeKeepsFields", func(t *testing.T) {
			testMergeKeepsFields(t, factory(t))
		})

		t.Run("InsertExclusive", func(t *testing.T) {
			testInsertExclusive(t, factory(t))
		})

		t.Run("MergeExclusive", func(t *testing.T) {
			testMergeExclusive(t, factory(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t))
		})

		t.Run("Filters", func(t *testing.T) {
			testFilters(t, factory(t))
		})

		t.Run("Paging", func(t *testing.T) {
			testPaging(t, factory(t))
		})

		t.Run("BatchTooLarge", func(t *testing.T) {
			testBatchTooLarge(t, factory(t))
		})

		t.Run("NulKeyRejected", func(t *testing.T) {
			testNulKeyRejected(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

const testTable = "conformance"

func str(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

func num(v string) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: v}
}

func op(mode store.Mode, pk, rk string, fields store.Record) store.Operation {
	return store.Operation{Mode: mode, PartitionKey: pk, RowKey: rk, Fields: fields}
}

func execute(t *testing.T, svc store.TableService, ops ...store.Operation) error {
	t.Helper()
	return svc.ExecuteBatch(context.Background(), testTable, store.Batch{Operations: ops})
}

func mustExecute(t *testing.T, svc store.TableService, ops ...store.Operation) {
	t.Helper()
	if err := execute(t, svc, ops...); err != nil {
		t.Fatalf("ExecuteBatch failed: %v", err)
	}
}

func mustCreate(t *testing.T, svc store.TableService) {
	t.Helper()
	if err := svc.CreateTableIfNotExists(context.Background(), testTable); err != nil {
		t.Fatalf("CreateTableIfNotExists failed: %v", err)
	}
}

// queryAll follows continuation tokens and returns every record.
func queryAll(t *testing.T, svc store.TableService, q store.PageQuery) []store.Record {
	t.Helper()
	var out []store.Record
	token := ""
	for i := 0; ; i++ {
		if i > 1000 {
			t.Fatal("query did not terminate")
		}
		page, err := svc.QueryEntities(context.Background(), testTable, q, token)
		if err != nil {
			t.Fatalf("QueryEntities failed: %v", err)
		}
		out = append(out, page.Entries...)
		if page.ContinuationToken == "" {
			return out
		}
		token = page.ContinuationToken
	}
}

func keys(records []store.Record) []store.Key {
	out := make([]store.Key, len(records))
	for i, r := range records {
		out[i] = r.Key()
	}
	return out
}

// stripTimestamp drops the service-stamped attribute for comparisons.
func stripTimestamp(r store.Record) store.Record {
	out := make(store.Record, len(r))
	for k, v := range r {
		if k != store.AttrTimestamp {
			out[k] = v
		}
	}
	return out
}

// attrOpts lets cmp look into the SDK's attribute value structs.
var attrOpts = cmp.Exporter(func(reflect.Type) bool { return true })

func sortKeys(ks []store.Key) {
	sort.Slice(ks, func(i, j int) bool {
		if ks[i].PartitionKey != ks[j].PartitionKey {
			return ks[i].PartitionKey < ks[j].PartitionKey
		}
		return ks[i].RowKey < ks[j].RowKey
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testCreateTableTwice(t *testing.T, svc store.TableService) {
	ctx := context.Background()
	if err := svc.CreateTableIfNotExists(ctx, testTable); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if err := svc.CreateTableIfNotExists(ctx, testTable); err != nil {
		t.Errorf("expected second create to succeed, got %v", err)
	}
}

func testMissingTable(t *testing.T, svc store.TableService) {
	err := execute(t, svc, op(store.ModeInsert, "p", "r", store.Record{"Name": str("x")}))
	if !store.IsTableNotFound(err) {
		t.Errorf("expected table not found, got %v", err)
	}
}

func testInsertAndQuery(t *testing.T, svc store.TableService) {
	mustCreate(t, svc)
	mustExecute(t, svc,
		op(store.ModeInsert, "124", "Egon", store.Record{"Name": str("Egon"), "Age": num("41")}),
		op(store.ModeInsert, "123", "Heinz", store.Record{"Name": str("Heinz"), "Age": num("37")}),
	)

	records := queryAll(t, svc, store.PageQuery{})
	sort.Slice(records, func(i, j int) bool {
		return records[i].Key().PartitionKey < records[j].Key().PartitionKey
	})
	want := []store.Key{{PartitionKey: "123", RowKey: "Heinz"}, {PartitionKey: "124", RowKey: "Egon"}}
	if diff := cmp.Diff(want, keys(records)); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}

	got := stripTimestamp(records[0])
	wantRec := store.Record{
		store.AttrPartitionKey: str("123"),
		store.AttrRowKey:       str("Heinz"),
		"Name":                 str("Heinz"),
		"Age":                  num("37"),
	}
	if diff := cmp.Diff(wantRec, got, attrOpts); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
	if _, ok := records[0][store.AttrTimestamp]; !ok {
		t.Error("expected Timestamp to be stamped")
	}
}

func testInsertReplaces(t *testing.T, svc store.TableService) {
	mustCreate(t, svc)
	mustExecute(t, svc, op(store.ModeInsert, "p", "r", store.Record{"A": str("1"), "B": str("2")}))
	mustExecute(t, svc, op(store.ModeInsert, "p", "r", store.Record{"A": str("3")}))

	records := queryAll(t, svc, store.PageQuery{})
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if _, ok := records[0]["B"]; ok {
		t.Error("expected insert to replace the stored entity and drop B")
	}
	if diff := cmp.Diff(str("3"), records[0]["A"], attrOpts); diff != "" {
		t.Errorf("A mismatch (-want +got):\n%s", diff)
	}
}

func testMergeKeepsFields(t *testing.T, svc store.TableService) {
	mustCreate(t, svc)
	mustExecute(t, svc, op(store.ModeInsert, "p", "r", store.Record{"A": str("1"), "B": str("2")}))
	mustExecute(t, svc,
		op(store.ModeMerge, "p", "r", store.Record{"A": str("3")}),
		op(store.ModeMerge, "p", "new", store.Record{"C": str("4")}),
	)

	records := queryAll(t, svc, store.PageQuery{Filter: store.Filter{PartitionKey: "p"}})
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	byRow := map[string]store.Record{}
	for _, r := range records {
		byRow[r.Key().RowKey] = r
	}
	if diff := cmp.Diff(str("3"), byRow["r"]["A"], attrOpts); diff != "" {
		t.Errorf("A mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(str("2"), byRow["r"]["B"], attrOpts); diff != "" {
		t.Errorf("expected merge to keep B (-want +got):\n%s", diff)
	}
	if _, ok := byRow["new"]; !ok {
		t.Error("expected merge to insert the missing entity")
	}
}

func testInsertExclusive(t *testing.T, svc store.TableService) {
	mustCreate(t, svc)
	mustExecute(t, svc, op(store.ModeInsert, "p", "taken", store.Record{"A": str("1")}))

	err := execute(t, svc,
		op(store.ModeInsertExclusive, "p", "free", store.Record{"A": str("2")}),
		op(store.ModeInsertExclusive, "p", "taken", store.Record{"A": str("3")}),
	)
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	records := queryAll(t, svc, store.PageQuery{})
	if len(records) != 1 {
		t.Errorf("expected the failed batch to apply nothing, got %d records", len(records))
	}
}

func testMergeExclusive(t *testing.T, svc store.TableService) {
	mustCreate(t, svc)

	err := execute(t, svc, op(store.ModeMergeExclusive, "p", "missing", store.Record{"A": str("1")}))
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mustExecute(t, svc, op(store.ModeInsert, "p", "r", store.Record{"A": str("1"), "B": str("2")}))
	mustExecute(t, svc, op(store.ModeMergeExclusive, "p", "r", store.Record{"B": str("5")}))

	records := queryAll(t, svc, store.PageQuery{})
	if diff := cmp.Diff(str("1"), records[0]["A"], attrOpts); diff != "" {
		t.Errorf("A mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(str("5"), records[0]["B"], attrOpts); diff != "" {
		t.Errorf("B mismatch (-want +got):\n%s", diff)
	}
}

func testDelete(t *testing.T, svc store.TableService) {
	mustCreate(t, svc)
	mustExecute(t, svc,
		op(store.ModeInsert, "p", "1", store.Record{"A": str("1")}),
		op(store.ModeInsert, "p", "2", store.Record{"A": str("2")}),
	)
	mustExecute(t, svc, op(store.ModeDelete, "p", "1", nil))

	records := queryAll(t, svc, store.PageQuery{})
	want := []store.Key{{PartitionKey: "p", RowKey: "2"}}
	if diff := cmp.Diff(want, keys(records)); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func testFilters(t *testing.T, svc store.TableService) {
	mustCreate(t, svc)
	var ops []store.Operation
	for _, pk := range []string{"a", "b", "c"} {
		for _, rk := range []string{"x", "y"} {
			ops = append(ops, op(store.ModeInsert, pk, rk, store.Record{"V": str(pk + rk)}))
		}
	}
	mustExecute(t, svc, ops...)

	tests := []struct {
		name   string
		filter store.Filter
		want   []store.Key
	}{
		{
			name:   "partition",
			filter: store.Filter{PartitionKey: "b"},
			want:   []store.Key{{PartitionKey: "b", RowKey: "x"}, {PartitionKey: "b", RowKey: "y"}},
		},
		{
			name:   "partition and row",
			filter: store.Filter{PartitionKey: "c", RowKey: "y"},
			want:   []store.Key{{PartitionKey: "c", RowKey: "y"}},
		},
		{
			name:   "row only",
			filter: store.Filter{RowKey: "x"},
			want: []store.Key{
				{PartitionKey: "a", RowKey: "x"},
				{PartitionKey: "b", RowKey: "x"},
				{PartitionKey: "c", RowKey: "x"},
			},
		},
		{
			name:   "no match",
			filter: store.Filter{PartitionKey: "zzz"},
			want:   []store.Key{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := keys(queryAll(t, svc, store.PageQuery{Filter: tt.filter}))
			sortKeys(got)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("keys mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func testPaging(t *testing.T, svc store.TableService) {
	mustCreate(t, svc)
	var ops []store.Operation
	for i := 0; i < 25; i++ {
		ops = append(ops, op(store.ModeInsert, "p", fmt.Sprintf("%03d", i), store.Record{"I": num(fmt.Sprint(i))}))
	}
	mustExecute(t, svc, ops...)

	q := store.PageQuery{Filter: store.Filter{PartitionKey: "p"}, Limit: 10}
	var total, pages int
	token := ""
	for {
		page, err := svc.QueryEntities(context.Background(), testTable, q, token)
		if err != nil {
			t.Fatalf("QueryEntities failed: %v", err)
		}
		pages++
		if len(page.Entries) > 10 {
			t.Errorf("expected at most 10 entries per page, got %d", len(page.Entries))
		}
		total += len(page.Entries)
		if page.ContinuationToken == "" {
			break
		}
		if pages > 10 {
			t.Fatal("paging did not terminate")
		}
		token = page.ContinuationToken
	}

	if total != 25 {
		t.Errorf("expected 25 records across pages, got %d", total)
	}
	if pages < 3 {
		t.Errorf("expected at least 3 pages, got %d", pages)
	}
}

func testBatchTooLarge(t *testing.T, svc store.TableService) {
	mustCreate(t, svc)
	ops := make([]store.Operation, 101)
	for i := range ops {
		ops[i] = op(store.ModeInsert, "p", fmt.Sprint(i), store.Record{})
	}
	if err := execute(t, svc, ops...); err == nil {
		t.Error("expected a batch of 101 operations to be rejected")
	}
}

func testNulKeyRejected(t *testing.T, svc store.TableService) {
	mustCreate(t, svc)
	mustExecute(t, svc, op(store.ModeInsert, "a", "c", store.Record{"Name": str("plain")}))

	for _, o := range []store.Operation{
		op(store.ModeInsert, "a\x00b", "c", store.Record{}),
		op(store.ModeInsert, "a", "b\x00c", store.Record{}),
	} {
		err := execute(t, svc, o)
		if !errors.Is(err, store.ErrInvalidKey) {
			t.Errorf("expected ErrInvalidKey for %q/%q, got %v", o.PartitionKey, o.RowKey, err)
		}
	}

	got := keys(queryAll(t, svc, store.PageQuery{Filter: store.Filter{PartitionKey: "a"}, Limit: 1}))
	if diff := cmp.Diff([]store.Key{{PartitionKey: "a", RowKey: "c"}}, got); diff != "" {
		t.Errorf("partition a mismatch (-want +got):\n%s", diff)
	}
}
