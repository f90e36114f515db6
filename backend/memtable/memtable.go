// Package memtable is an in-memory table service with fault injection, used
// as the test double for the store pipeline and as the CLI's memory backend.
package memtable

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/jacentio/tablestore/internal/rowop"
	"github.com/jacentio/tablestore/store"
)

// Op names a TableService method for fault injection and call counting.
type Op string

const (
	OpCreate  Op = "create"
	OpExecute Op = "execute"
	OpQuery   Op = "query"
)

// Options configures a Service.
type Options struct {
	// PageSize is the largest page returned by QueryEntities.
	// Default: 1000
	PageSize int

	// AutoCreate creates missing tables on the first batch instead of failing
	// with store.ErrTableNotFound. Queries against a missing table return an
	// empty page.
	AutoCreate bool

	// Now stamps the Timestamp attribute. Default: time.Now
	Now func() time.Time
}

// Service is an in-memory store.TableService. Rows of a table are kept
// ordered by partition key, then row key.
type Service struct {
	opts   Options
	tables *xsync.MapOf[string, *table]
	calls  *xsync.MapOf[Op, *xsync.Counter]

	mu        sync.Mutex
	faults    map[Op][]error
	onExecute func(table string, batch store.Batch) error
}

type table struct {
	mu   sync.RWMutex
	rows *treemap.Map
}

var _ store.TableService = (*Service)(nil)

// New creates an empty Service.
func New(opts Options) *Service {
	if opts.PageSize < 1 {
		opts.PageSize = 1000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		opts:   opts,
		tables: xsync.NewMapOf[string, *table](),
		calls:  xsync.NewMapOf[Op, *xsync.Counter](),
		faults: make(map[Op][]error),
	}
}

func newTable() *table {
	return &table{
		rows: treemap.NewWith(func(a, b interface{}) int {
			return rowop.Compare(a.(store.Key), b.(store.Key))
		}),
	}
}

// FailNext makes the next times calls of op fail with err before touching
// any table. Queued failures are consumed in order.
func (s *Service) FailNext(op Op, err error, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < times; i++ {
		s.faults[op] = append(s.faults[op], err)
	}
}

// OnExecute installs a hook called for every batch after queued failures.
// A non-nil error from the hook fails the batch without applying it.
func (s *Service) OnExecute(fn func(table string, batch store.Batch) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExecute = fn
}

// Calls returns how many times op has been invoked, failed calls included.
func (s *Service) Calls(op Op) int {
	c, ok := s.calls.Load(op)
	if !ok {
		return 0
	}
	return int(c.Value())
}

// Reset drops every table, queued failure, hook and call count.
func (s *Service) Reset() {
	s.tables.Clear()
	s.calls.Range(func(_ Op, c *xsync.Counter) bool {
		c.Reset()
		return true
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[Op][]error)
	s.onExecute = nil
}

// HasTable reports whether the table exists.
func (s *Service) HasTable(name string) bool {
	_, ok := s.tables.Load(name)
	return ok
}

// Snapshot returns copies of every row of the table in key order, or nil if
// the table doesn't exist.
func (s *Service) Snapshot(name string) []store.Record {
	t, ok := s.tables.Load(name)
	if !ok {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]store.Record, 0, t.rows.Size())
	it := t.rows.Iterator()
	for it.Next() {
		out = append(out, copyRecord(it.Value().(store.Record)))
	}
	return out
}

// CreateTableIfNotExists creates the table. Existing tables are left untouched.
func (s *Service) CreateTableIfNotExists(ctx context.Context, name string) error {
	if err := s.enter(ctx, OpCreate); err != nil {
		return err
	}
	s.tables.LoadOrCompute(name, newTable)
	return nil
}

// ExecuteBatch applies every operation of the batch or none of them.
func (s *Service) ExecuteBatch(ctx context.Context, name string, batch store.Batch) error {
	if err := s.enter(ctx, OpExecute); err != nil {
		return err
	}

	s.mu.Lock()
	hook := s.onExecute
	s.mu.Unlock()
	if hook != nil {
		if err := hook(name, batch); err != nil {
			return err
		}
	}

	if err := rowop.Validate(batch); err != nil {
		return err
	}

	var t *table
	if s.opts.AutoCreate {
		t, _ = s.tables.LoadOrCompute(name, newTable)
	} else {
		var ok bool
		if t, ok = s.tables.Load(name); !ok {
			return fmt.Errorf("%w: %s", store.ErrTableNotFound, name)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := s.opts.Now()
	staged := make([]store.Record, len(batch.Operations))
	for i, op := range batch.Operations {
		var current store.Record
		if v, ok := t.rows.Get(op.Key()); ok {
			current = v.(store.Record)
		}
		next, err := rowop.Apply(current, op, now)
		if err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
		staged[i] = next
	}

	for i, op := range batch.Operations {
		if staged[i] == nil {
			t.rows.Remove(op.Key())
			continue
		}
		t.rows.Put(op.Key(), staged[i])
	}
	return nil
}

// QueryEntities returns the rows matching the filter in key order, at most
// min(q.Limit, PageSize) per page.
func (s *Service) QueryEntities(ctx context.Context, name string, q store.PageQuery, token string) (store.Page, error) {
	if err := s.enter(ctx, OpQuery); err != nil {
		return store.Page{}, err
	}

	t, ok := s.tables.Load(name)
	if !ok {
		if s.opts.AutoCreate {
			return store.Page{}, nil
		}
		return store.Page{}, fmt.Errorf("%w: %s", store.ErrTableNotFound, name)
	}

	var after *store.Key
	if token != "" {
		k, err := rowop.DecodeToken(token)
		if err != nil {
			return store.Page{}, err
		}
		after = &k
	}

	size := rowop.PageSize(q.Limit, s.opts.PageSize)

	t.mu.RLock()
	defer t.mu.RUnlock()

	var page store.Page
	var last store.Key
	it := t.rows.Iterator()
	for it.Next() {
		k := it.Key().(store.Key)
		if after != nil && rowop.Compare(k, *after) <= 0 {
			continue
		}
		if q.Filter.PartitionKey != "" && k.PartitionKey > q.Filter.PartitionKey {
			break
		}
		if !q.Filter.Matches(k) {
			continue
		}
		if len(page.Entries) == size {
			page.ContinuationToken = rowop.EncodeToken(last)
			break
		}
		page.Entries = append(page.Entries, copyRecord(it.Value().(store.Record)))
		last = k
	}
	return page, nil
}

// enter counts the call and pops a queued failure for op.
func (s *Service) enter(ctx context.Context, op Op) error {
	c, _ := s.calls.LoadOrCompute(op, xsync.NewCounter)
	c.Inc()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if queued := s.faults[op]; len(queued) > 0 {
		s.faults[op] = queued[1:]
		return queued[0]
	}
	return nil
}

func copyRecord(r store.Record) store.Record {
	out := make(store.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
