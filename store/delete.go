package store

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jacentio/tablestore/internal/shard"
)

// Delete removes the entities in batches of at most MaxBatchSize operations.
// Batches may span partitions. A missing table is not created; the error is
// returned. Failed batches are reported as a *BatchError.
func (m *Model) Delete(ctx context.Context, entities []Entity) error {
	if len(entities) == 0 {
		return nil
	}
	table := m.TableName()

	batches, err := m.deletePlan(entities)
	if err != nil {
		return err
	}
	return m.client.runDeletes(ctx, table, batches, m.client.config.MaxParallelism)
}

// DeleteMultiplePartitions groups the entities by partition key and deletes
// each group separately, so no batch spans partitions. Groups run
// concurrently; the call returns once every group has settled.
func (m *Model) DeleteMultiplePartitions(ctx context.Context, entities []Entity) error {
	if len(entities) == 0 {
		return nil
	}
	table := m.TableName()

	groups := shard.GroupBy(entities, m.schema.partitionKey)
	plans := make([][]Batch, len(groups))
	for i, g := range groups {
		batches, err := m.deletePlan(g.Items)
		if err != nil {
			return err
		}
		plans[i] = batches
	}

	m.client.logger.Debug("deleting partitions",
		"table", table,
		"entities", len(entities),
		"partitions", len(groups),
	)

	errs := make([]error, len(groups))
	var g errgroup.Group
	g.SetLimit(m.client.config.MaxParallelism)
	for i := range groups {
		g.Go(func() error {
			if err := m.client.runDeletes(ctx, table, plans[i], 1); err != nil {
				errs[i] = fmt.Errorf("partition %q: %w", groups[i].Key, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return aggregate(errs)
}

// DeleteByPartitionKey deletes every entity stored under the partition key.
// An empty partition is a successful no-op. A table that was never created
// is not; services that report it return ErrTableNotFound unchanged.
func (m *Model) DeleteByPartitionKey(ctx context.Context, partitionKey string) error {
	if partitionKey == "" {
		return errors.New("tablestore: delete by partition key requires a partition key")
	}

	records, err := m.queryRecords(ctx, Query{PartitionKey: partitionKey})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	keys := make([]Key, 0, len(records))
	for _, rec := range records {
		keys = append(keys, rec.Key())
	}
	return m.DeleteKeys(ctx, keys)
}

// DeleteKeys deletes entities by their raw composite keys.
func (m *Model) DeleteKeys(ctx context.Context, keys []Key) error {
	if len(keys) == 0 {
		return nil
	}
	table := m.TableName()
	batches := deleteBatches(keys, m.client.config.MaxBatchSize)
	return m.client.runDeletes(ctx, table, batches, m.client.config.MaxParallelism)
}

func (m *Model) deletePlan(entities []Entity) ([]Batch, error) {
	plan, err := newBatchBuilder(m.schema, ModeDelete, entities, m.client.config.MaxBatchSize).plan()
	if err != nil {
		return nil, fmt.Errorf("build delete batch: %w", err)
	}
	batches := make([]Batch, len(plan))
	for i, pb := range plan {
		batches[i] = pb.batch
	}
	return batches, nil
}

// runDeletes submits delete batches on up to parallelism workers, without
// the table creation fallback.
func (c *Client) runDeletes(ctx context.Context, table string, batches []Batch, parallelism int) error {
	errs := make([]error, len(batches))
	var g errgroup.Group
	g.SetLimit(max(parallelism, 1))
	for i, b := range batches {
		g.Go(func() error {
			errs[i] = c.submit(ctx, table, b, false)
			return nil
		})
	}
	_ = g.Wait()

	return aggregate(errs)
}
