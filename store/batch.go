package store

// batchBuilder is a forward-only cursor over an entity slice that cuts it
// into batches of at most max operations. The slice itself is never modified.
type batchBuilder struct {
	schema   *schema
	mode     Mode
	entities []Entity
	next     int
	max      int
}

func newBatchBuilder(s *schema, mode Mode, entities []Entity, max int) *batchBuilder {
	if max < 1 || max > 100 {
		max = 100
	}
	return &batchBuilder{
		schema:   s,
		mode:     mode,
		entities: entities,
		max:      max,
	}
}

// Done reports whether every entity has been consumed.
func (b *batchBuilder) Done() bool {
	return b.next >= len(b.entities)
}

// Remaining returns the entities not yet consumed.
func (b *batchBuilder) Remaining() []Entity {
	return b.entities[b.next:]
}

// Next consumes up to max entities and returns their operations.
// On an encoding error the cursor stays at the failing entity.
func (b *batchBuilder) Next() (Batch, error) {
	end := min(b.next+b.max, len(b.entities))
	batch := Batch{Operations: make([]Operation, 0, end-b.next)}
	for b.next < end {
		op, err := b.schema.operation(b.mode, b.entities[b.next])
		if err != nil {
			return Batch{}, err
		}
		batch.Operations = append(batch.Operations, op)
		b.next++
	}
	return batch, nil
}

// plannedBatch is a batch together with the entities still pending when it
// was cut, as reported to progress callbacks.
type plannedBatch struct {
	batch   Batch
	pending []Entity
}

// plan drains the builder into batches.
func (b *batchBuilder) plan() ([]plannedBatch, error) {
	var out []plannedBatch
	for !b.Done() {
		pending := b.Remaining()
		batch, err := b.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, plannedBatch{batch: batch, pending: pending})
	}
	return out, nil
}

// deleteBatches cuts raw keys into delete batches of at most max operations.
func deleteBatches(keys []Key, max int) []Batch {
	if max < 1 || max > 100 {
		max = 100
	}
	var out []Batch
	for start := 0; start < len(keys); start += max {
		end := min(start+max, len(keys))
		batch := Batch{Operations: make([]Operation, 0, end-start)}
		for _, k := range keys[start:end] {
			batch.Operations = append(batch.Operations, Operation{
				Mode:         ModeDelete,
				PartitionKey: k.PartitionKey,
				RowKey:       k.RowKey,
			})
		}
		out = append(out, batch)
	}
	return out
}
