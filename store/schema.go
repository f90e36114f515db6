package store

import (
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// column is a compiled field: name, type and the codec pair bound to it.
type column struct {
	name   string
	typ    FieldType
	encode func(any) (types.AttributeValue, error)
	decode func(types.AttributeValue) (any, error)
}

type mappedField struct {
	field  string
	source string
}

// schema is a Descriptor compiled once at definition time.
type schema struct {
	columns      []column
	byName       map[string]int
	mapping      []mappedField
	partitionKey func(Entity) string
	rowKey       func(Entity) string
	tableName    func() string
}

func compile(d Descriptor) (*schema, error) {
	if d.PartitionKey == nil {
		return nil, fmt.Errorf("%w: missing PartitionKey function", ErrInvalidDescriptor)
	}
	if d.RowKey == nil {
		return nil, fmt.Errorf("%w: missing RowKey function", ErrInvalidDescriptor)
	}
	if d.TableName == nil {
		return nil, fmt.Errorf("%w: missing TableName function", ErrInvalidDescriptor)
	}

	s := &schema{
		byName:       make(map[string]int, len(d.Fields)),
		partitionKey: d.PartitionKey,
		rowKey:       d.RowKey,
		tableName:    d.TableName,
	}

	for _, f := range d.Fields {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: field with empty name", ErrInvalidDescriptor)
		}
		if IsSystemKey(f.Name) {
			return nil, fmt.Errorf("%w: field %q is a reserved attribute", ErrInvalidDescriptor, f.Name)
		}
		if f.Type < String || f.Type > Object {
			return nil, fmt.Errorf("%w: field %q has unknown type %d", ErrInvalidDescriptor, f.Name, f.Type)
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidDescriptor, f.Name)
		}

		typ := f.Type
		s.byName[f.Name] = len(s.columns)
		s.columns = append(s.columns, column{
			name:   f.Name,
			typ:    typ,
			encode: func(v any) (types.AttributeValue, error) { return Encode(typ, v) },
			decode: func(av types.AttributeValue) (any, error) { return Decode(typ, av) },
		})
	}

	for field, source := range d.QueryMapping {
		if _, ok := s.byName[field]; !ok {
			return nil, fmt.Errorf("%w: query mapping for undeclared field %q", ErrInvalidDescriptor, field)
		}
		if source == "" {
			return nil, fmt.Errorf("%w: query mapping for %q has no source", ErrInvalidDescriptor, field)
		}
		s.mapping = append(s.mapping, mappedField{field: field, source: source})
	}
	sort.Slice(s.mapping, func(i, j int) bool { return s.mapping[i].field < s.mapping[j].field })

	return s, nil
}

func (s *schema) column(name string) (column, bool) {
	i, ok := s.byName[name]
	if !ok {
		return column{}, false
	}
	return s.columns[i], true
}

// build copies the declared fields present in defaults into a new entity.
func (s *schema) build(defaults Entity) Entity {
	e := make(Entity, len(s.columns))
	for _, c := range s.columns {
		if v, ok := defaults[c.name]; ok {
			e[c.name] = v
		}
	}
	return e
}

// operation turns an entity into a write operation. The key functions run
// here; a panic inside them is not recovered.
func (s *schema) operation(mode Mode, e Entity) (Operation, error) {
	op := Operation{
		Mode:         mode,
		PartitionKey: s.partitionKey(e),
		RowKey:       s.rowKey(e),
	}
	if mode == ModeDelete {
		return op, nil
	}

	op.Fields = make(Record, len(s.columns))
	for _, c := range s.columns {
		v, ok := e[c.name]
		if !ok {
			continue
		}
		av, err := c.encode(v)
		if err != nil {
			return Operation{}, fmt.Errorf("field %q: %w", c.name, err)
		}
		op.Fields[c.name] = av
	}
	return op, nil
}

// decode materializes a wire record. defaults form the base layer, decoded
// wire fields override them and query mapping is applied last.
func (s *schema) decode(rec Record, defaults Entity) (Entity, error) {
	e := s.build(defaults)

	for name, av := range rec {
		if IsSystemKey(name) {
			continue
		}
		c, ok := s.column(name)
		if !ok {
			continue
		}
		v, err := c.decode(av)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		e[name] = v
	}

	for _, m := range s.mapping {
		av, ok := rec[m.source]
		if !ok {
			continue
		}
		c, _ := s.column(m.field)
		v, err := c.decode(av)
		if err != nil {
			return nil, fmt.Errorf("mapped field %q from %q: %w", m.field, m.source, err)
		}
		e[m.field] = v
	}

	for _, c := range s.columns {
		if c.typ != Array && c.typ != Object {
			continue
		}
		if _, ok := e[c.name]; ok {
			continue
		}
		v, _ := c.decode(nil)
		e[c.name] = v
	}

	return e, nil
}
