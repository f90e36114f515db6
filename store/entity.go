package store

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// System attribute names. They are never materialized as entity fields.
const (
	AttrPartitionKey = "PartitionKey"
	AttrRowKey       = "RowKey"
	AttrTimestamp    = "Timestamp"
	AttrMetadata     = ".metadata"
	AttrQueryMapping = "QueryMapping"
)

// IsSystemKey reports whether name is a reserved system attribute.
func IsSystemKey(name string) bool {
	switch name {
	case AttrPartitionKey, AttrRowKey, AttrTimestamp, AttrMetadata, AttrQueryMapping:
		return true
	}
	return false
}

// FieldType is the declared type of an entity field.
type FieldType int

const (
	// String is the default for fields without a declared type.
	String FieldType = iota
	Number
	Boolean
	DateTime
	Guid
	Array
	Object
)

func (t FieldType) String() string {
	switch t {
	case String:
		return "string"
	case Number:
		return "number"
	case Boolean:
		return "boolean"
	case DateTime:
		return "datetime"
	case Guid:
		return "guid"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return "unknown"
}

// Field declares one entity field.
type Field struct {
	Name string
	Type FieldType
}

// Descriptor describes one logical table. It is consumed once by Define.
type Descriptor struct {
	// Fields lists the entity fields in declaration order.
	Fields []Field

	// PartitionKey derives the partition key from an entity. Must be pure.
	PartitionKey func(Entity) string

	// RowKey derives the row key from an entity. Must be pure.
	RowKey func(Entity) string

	// TableName returns the table name. Must be pure.
	TableName func() string

	// QueryMapping optionally sources logical fields from other wire
	// attributes when reading (e.g. "AccountId" -> "PartitionKey").
	QueryMapping map[string]string
}

// Entity is a bag of field values. A missing key is unset; a present key is
// set, even when it holds a zero value.
type Entity map[string]any

// Has reports whether the field is set.
func (e Entity) Has(name string) bool {
	_, ok := e[name]
	return ok
}

// Unset removes the field so it's skipped on write.
func (e Entity) Unset(name string) {
	delete(e, name)
}

// String returns the field as a string, or "" when unset or not a string.
func (e Entity) String(name string) string {
	s, _ := e[name].(string)
	return s
}

// Float returns the field as a float64, or 0 when unset or not a float64.
func (e Entity) Float(name string) float64 {
	f, _ := e[name].(float64)
	return f
}

// Bool returns the field as a bool, or false when unset or not a bool.
func (e Entity) Bool(name string) bool {
	b, _ := e[name].(bool)
	return b
}

// Clone returns a shallow copy.
func (e Entity) Clone() Entity {
	c := make(Entity, len(e))
	for k, v := range e {
		c[k] = v
	}
	return c
}

// Key is the composite primary key of a stored entity.
type Key struct {
	PartitionKey string
	RowKey       string
}

// Record is a raw wire record as exchanged with a TableService.
type Record map[string]types.AttributeValue

// Key extracts the system key attributes of the record.
func (r Record) Key() Key {
	var k Key
	if v, ok := r[AttrPartitionKey].(*types.AttributeValueMemberS); ok {
		k.PartitionKey = v.Value
	}
	if v, ok := r[AttrRowKey].(*types.AttributeValueMemberS); ok {
		k.RowKey = v.Value
	}
	return k
}

// Mode selects the write operation applied to an entity.
type Mode int

const (
	// ModeInsert inserts the entity or replaces it entirely.
	ModeInsert Mode = iota
	// ModeInsertExclusive inserts the entity and fails if the key exists.
	ModeInsertExclusive
	// ModeMerge merges set fields into the stored entity, inserting if absent.
	ModeMerge
	// ModeMergeExclusive merges set fields and fails if the key is absent.
	ModeMergeExclusive
	// ModeDelete removes the entity.
	ModeDelete
)

func (m Mode) String() string {
	switch m {
	case ModeInsert:
		return "insert"
	case ModeInsertExclusive:
		return "insert-exclusive"
	case ModeMerge:
		return "merge"
	case ModeMergeExclusive:
		return "merge-exclusive"
	case ModeDelete:
		return "delete"
	}
	return "unknown"
}

// Operation is a single write against one entity.
type Operation struct {
	Mode         Mode
	PartitionKey string
	RowKey       string

	// Fields holds encoded non-key fields. Empty for deletes.
	Fields Record
}

// Key returns the operation's composite key.
func (o Operation) Key() Key {
	return Key{PartitionKey: o.PartitionKey, RowKey: o.RowKey}
}

// Batch is an ordered set of at most 100 operations against one table.
type Batch struct {
	Operations []Operation
}

// Len returns the number of operations.
func (b Batch) Len() int {
	return len(b.Operations)
}

// ProgressFunc is called before each batch of a chunk is submitted with the
// entities of that chunk not yet written. It's called from concurrent chunk
// goroutines and must be safe for concurrent use. remaining must not be modified.
type ProgressFunc func(chunk int, remaining []Entity)
