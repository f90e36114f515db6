package cli

import (
	"github.com/google/uuid"

	"github.com/jacentio/tablestore/store"
)

// personDescriptor is the entity model tablectl works with. Persons are
// partitioned by their Partition field and keyed by Id within it.
func personDescriptor(table string) store.Descriptor {
	return store.Descriptor{
		Fields: []store.Field{
			{Name: "Id", Type: store.Guid},
			{Name: "FirstName", Type: store.String},
			{Name: "LastName", Type: store.String},
			{Name: "Partition", Type: store.String},
			{Name: "Counter", Type: store.Number},
			{Name: "Created", Type: store.DateTime},
		},
		PartitionKey: func(e store.Entity) string { return e.String("Partition") },
		RowKey: func(e store.Entity) string {
			switch id := e["Id"].(type) {
			case uuid.UUID:
				return id.String()
			case string:
				return id
			}
			return ""
		},
		TableName: func() string { return table },
	}
}
