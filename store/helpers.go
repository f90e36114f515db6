package store

import (
	"fmt"
	"sort"

	"github.com/jacentio/tablestore/internal/shard"
)

// DynamicDescriptor builds a descriptor from a sample entity. The partition and
// row keys are read from the named fields; every other non-system field of the
// sample becomes a declared field, typed by typeOf (nil types everything as
// String). Fields are declared in name order.
func DynamicDescriptor(sample Entity, partitionKeyField, rowKeyField, table string, typeOf func(field string) FieldType) Descriptor {
	names := make([]string, 0, len(sample))
	for name := range sample {
		if IsSystemKey(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]Field, 0, len(names))
	for _, name := range names {
		typ := String
		if typeOf != nil {
			typ = typeOf(name)
		}
		fields = append(fields, Field{Name: name, Type: typ})
	}

	return Descriptor{
		Fields:       fields,
		PartitionKey: keyField(partitionKeyField),
		RowKey:       keyField(rowKeyField),
		TableName:    func() string { return table },
	}
}

func keyField(name string) func(Entity) string {
	return func(e Entity) string {
		switch v := e[name].(type) {
		case nil:
			return ""
		case string:
			return v
		default:
			return fmt.Sprint(v)
		}
	}
}

// PartitionGroup is the set of entities sharing one partition key.
type PartitionGroup struct {
	PartitionKey string
	Entities     []Entity
}

// GroupByPartitionKey groups entities by the model's partition key, in order
// of first appearance.
func (m *Model) GroupByPartitionKey(entities []Entity) []PartitionGroup {
	groups := shard.GroupBy(entities, m.schema.partitionKey)
	out := make([]PartitionGroup, len(groups))
	for i, g := range groups {
		out[i] = PartitionGroup{PartitionKey: g.Key, Entities: g.Items}
	}
	return out
}
