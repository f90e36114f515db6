package stream

import (
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// --- sourceTable Tests ---

func TestSourceTable(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		arn      string
		expected string
	}{
		{"stream arn", "", "arn:aws:dynamodb:eu-west-1:123456789012:table/Accounts/stream/2024-01-01T00:00:00.000", "Accounts"},
		{"table arn", "", "arn:aws:dynamodb:eu-west-1:123456789012:table/Accounts", "Accounts"},
		{"prefixed", "dev-", "arn:aws:dynamodb:eu-west-1:123456789012:table/dev-Accounts/stream/x", "Accounts"},
		{"prefix not present", "dev-", "arn:aws:dynamodb:eu-west-1:123456789012:table/Accounts/stream/x", "Accounts"},
		{"not a table arn", "", "arn:aws:kinesis:eu-west-1:123456789012:stream/Accounts", ""},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(nil, nil, WithTablePrefix(tt.prefix))
			if got := h.sourceTable(tt.arn); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

// --- convertValue Tests ---

func TestConvertValue_Scalars(t *testing.T) {
	if v, ok := convertValue(events.NewStringAttribute("Heinz")).(*types.AttributeValueMemberS); !ok || v.Value != "Heinz" {
		t.Error("expected string 'Heinz'")
	}
	if v, ok := convertValue(events.NewNumberAttribute("-12.5")).(*types.AttributeValueMemberN); !ok || v.Value != "-12.5" {
		t.Error("expected number '-12.5'")
	}
	if v, ok := convertValue(events.NewBooleanAttribute(true)).(*types.AttributeValueMemberBOOL); !ok || !v.Value {
		t.Error("expected boolean true")
	}
	if _, ok := convertValue(events.NewNullAttribute()).(*types.AttributeValueMemberNULL); !ok {
		t.Error("expected null")
	}
	if v, ok := convertValue(events.NewBinaryAttribute([]byte{1, 2})).(*types.AttributeValueMemberB); !ok || len(v.Value) != 2 {
		t.Error("expected 2 bytes of binary")
	}
}

func TestConvertValue_Sets(t *testing.T) {
	if v, ok := convertValue(events.NewStringSetAttribute([]string{"a", "b"})).(*types.AttributeValueMemberSS); !ok || len(v.Value) != 2 {
		t.Error("expected string set of 2")
	}
	if v, ok := convertValue(events.NewNumberSetAttribute([]string{"1"})).(*types.AttributeValueMemberNS); !ok || v.Value[0] != "1" {
		t.Error("expected number set ['1']")
	}
	if v, ok := convertValue(events.NewBinarySetAttribute([][]byte{{1}})).(*types.AttributeValueMemberBS); !ok || len(v.Value) != 1 {
		t.Error("expected binary set of 1")
	}
}

func TestConvertValue_Nested(t *testing.T) {
	av := convertValue(events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
		"tags": events.NewListAttribute([]events.DynamoDBAttributeValue{
			events.NewStringAttribute("gold"),
			events.NewNumberAttribute("3"),
		}),
	}))

	m, ok := av.(*types.AttributeValueMemberM)
	if !ok {
		t.Fatalf("expected map, got %T", av)
	}
	l, ok := m.Value["tags"].(*types.AttributeValueMemberL)
	if !ok {
		t.Fatalf("expected list, got %T", m.Value["tags"])
	}
	if len(l.Value) != 2 {
		t.Fatalf("expected 2 items, got %d", len(l.Value))
	}
	if v, ok := l.Value[1].(*types.AttributeValueMemberN); !ok || v.Value != "3" {
		t.Error("expected second item to be number '3'")
	}
}

// --- ConvertImage Tests ---

func TestConvertImage_NilImage(t *testing.T) {
	rec := ConvertImage(nil)
	if rec == nil || len(rec) != 0 {
		t.Errorf("expected empty record, got %v", rec)
	}
}

func TestConvertImage_Key(t *testing.T) {
	rec := ConvertImage(map[string]events.DynamoDBAttributeValue{
		"PartitionKey": events.NewStringAttribute("123"),
		"RowKey":       events.NewStringAttribute("Heinz"),
	})

	k := rec.Key()
	if k.PartitionKey != "123" || k.RowKey != "Heinz" {
		t.Errorf("expected key 123/Heinz, got %v", k)
	}
}
