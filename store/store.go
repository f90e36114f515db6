package store

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/jacentio/tablestore/internal/shard"
)

// Client binds entity models to a TableService.
type Client struct {
	service  TableService
	config   Config
	registry *Registry
	logger   *slog.Logger

	// randIntN returns a value in [0, n) for backoff jitter.
	randIntN func(n int) int
}

// New creates a new Client instance.
func New(service TableService, config Config) *Client {
	config.validate()
	return &Client{
		service:  service,
		config:   config,
		registry: NewRegistry(),
		logger:   config.Logger,
		randIntN: rand.IntN,
	}
}

// Registry returns the models defined on this client.
func (c *Client) Registry() *Registry {
	return c.registry
}

// Service returns the table service the client talks to.
func (c *Client) Service() TableService {
	return c.service
}

// Define compiles a descriptor and registers the model under its table name.
// The descriptor's TableName function is called once here.
func (c *Client) Define(d Descriptor) (*Model, error) {
	s, err := compile(d)
	if err != nil {
		return nil, err
	}

	table := d.TableName()
	if table == "" {
		return nil, fmt.Errorf("%w: empty table name", ErrInvalidDescriptor)
	}

	m := &Model{client: c, schema: s}
	if err := c.registry.register(table, m); err != nil {
		return nil, err
	}
	return m, nil
}

// MustDefine is like Define but panics on an invalid descriptor.
func (c *Client) MustDefine(d Descriptor) *Model {
	m, err := c.Define(d)
	if err != nil {
		panic(err)
	}
	return m
}

// Model is a defined entity type bound to a client.
type Model struct {
	client *Client
	schema *schema
}

// TableName returns the model's table name.
func (m *Model) TableName() string {
	return m.schema.tableName()
}

// Build returns a new entity holding the declared fields present in defaults.
// Fields not in defaults stay unset.
func (m *Model) Build(defaults Entity) Entity {
	return m.schema.build(defaults)
}

// Decode materializes a raw wire record into an entity of this model.
func (m *Model) Decode(rec Record, defaults Entity) (Entity, error) {
	return m.schema.decode(rec, defaults)
}

// KeyOf returns the composite key the descriptor derives for an entity.
func (m *Model) KeyOf(e Entity) Key {
	return Key{PartitionKey: m.schema.partitionKey(e), RowKey: m.schema.rowKey(e)}
}

// Create creates the model's table if it doesn't exist.
func (m *Model) Create(ctx context.Context) error {
	return m.client.createTable(ctx, m.TableName())
}

// StoreOption configures a store call.
type StoreOption func(*storeOptions)

type storeOptions struct {
	progress ProgressFunc
}

// WithProgress registers a callback invoked before each batch of every chunk.
func WithProgress(fn ProgressFunc) StoreOption {
	return func(o *storeOptions) {
		o.progress = fn
	}
}

// Insert inserts the entities, replacing existing ones with the same key.
func (m *Model) Insert(ctx context.Context, entities []Entity, opts ...StoreOption) error {
	return m.Store(ctx, ModeInsert, entities, opts...)
}

// InsertExclusive inserts the entities and fails a batch if any key exists.
func (m *Model) InsertExclusive(ctx context.Context, entities []Entity, opts ...StoreOption) error {
	return m.Store(ctx, ModeInsertExclusive, entities, opts...)
}

// Merge merges the set fields of each entity into the stored one, inserting
// missing entities. Unset fields keep their stored values.
func (m *Model) Merge(ctx context.Context, entities []Entity, opts ...StoreOption) error {
	return m.Store(ctx, ModeMerge, entities, opts...)
}

// MergeExclusive merges like Merge but fails a batch if any key is missing.
func (m *Model) MergeExclusive(ctx context.Context, entities []Entity, opts ...StoreOption) error {
	return m.Store(ctx, ModeMergeExclusive, entities, opts...)
}

// Store writes the entities with the given mode.
//
// Up to one batch of entities is written by a single chunk. Larger inputs are
// split into min(n/MaxBatchSize, MaxParallelism) contiguous chunks that run
// concurrently; batches within a chunk are submitted one after another.
// The table is created on the first write that finds it missing.
//
// Key functions and field encoding run on the calling goroutine before any
// remote call. When chunks fail, the error is a *BatchError carrying the
// failure of the lowest failed chunk; successful chunks are not rolled back.
func (m *Model) Store(ctx context.Context, mode Mode, entities []Entity, opts ...StoreOption) error {
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}

	if len(entities) == 0 {
		return nil
	}
	table := m.TableName()
	if mode == ModeDelete {
		return m.Delete(ctx, entities)
	}

	cfg := m.client.config
	ranges := shard.Split(len(entities), shard.Count(len(entities), cfg.MaxBatchSize, cfg.MaxParallelism))

	plans := make([][]plannedBatch, len(ranges))
	for i, r := range ranges {
		plan, err := newBatchBuilder(m.schema, mode, entities[r.Start:r.End], cfg.MaxBatchSize).plan()
		if err != nil {
			return fmt.Errorf("build %s batch: %w", mode, err)
		}
		plans[i] = plan
	}

	m.client.logger.Debug("storing entities",
		"table", table,
		"mode", mode.String(),
		"entities", len(entities),
		"chunks", len(plans),
	)

	errs := make([]error, len(plans))
	var wg sync.WaitGroup
	for i, plan := range plans {
		wg.Add(1)
		go func(chunk int, plan []plannedBatch) {
			defer wg.Done()
			errs[chunk] = m.runChunk(ctx, table, chunk, plan, o.progress)
		}(i, plan)
	}
	wg.Wait()

	if err := aggregate(errs); err != nil {
		m.client.logger.Warn("store failed",
			"table", table,
			"mode", mode.String(),
			"error", err,
		)
		return err
	}
	return nil
}

// runChunk submits a chunk's batches strictly in order.
func (m *Model) runChunk(ctx context.Context, table string, chunk int, plan []plannedBatch, progress ProgressFunc) error {
	for _, pb := range plan {
		if progress != nil {
			progress(chunk, pb.pending)
		}
		if err := m.client.submit(ctx, table, pb.batch, true); err != nil {
			return fmt.Errorf("chunk %d: %w", chunk, err)
		}
	}
	return nil
}
