// Package bolt is a table service stored in a local bbolt file, one bucket
// per table.
package bolt

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jacentio/tablestore/internal/rowop"
	"github.com/jacentio/tablestore/store"
)

// Options configures a Service.
type Options struct {
	// PageSize is the largest page returned by QueryEntities.
	// Default: 1000
	PageSize int

	// Timeout bounds waiting for the file lock on open.
	// Default: 1s
	Timeout time.Duration

	// Now stamps the Timestamp attribute. Default: time.Now
	Now func() time.Time
}

// Service is a store.TableService over a bbolt database.
type Service struct {
	db   *bbolt.DB
	opts Options
}

var _ store.TableService = (*Service)(nil)

// Open opens or creates the database file at path.
func Open(path string, opts Options) (*Service, error) {
	if opts.PageSize < 1 {
		opts.PageSize = 1000
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Service{db: db, opts: opts}, nil
}

// Close closes the database file.
func (s *Service) Close() error {
	return s.db.Close()
}

// rowKey is the bucket key of a row. Byte order matches (partition, row) order.
func rowKey(k store.Key) []byte {
	return []byte(k.PartitionKey + "\x00" + k.RowKey)
}

func splitRowKey(b []byte) store.Key {
	pk, rk, _ := bytes.Cut(b, []byte{0})
	return store.Key{PartitionKey: string(pk), RowKey: string(rk)}
}

func tableNotFound(name string) error {
	return fmt.Errorf("%w: %s", store.ErrTableNotFound, name)
}

// CreateTableIfNotExists creates the table's bucket.
func (s *Service) CreateTableIfNotExists(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
}

// ExecuteBatch applies the batch in a single write transaction.
func (s *Service) ExecuteBatch(ctx context.Context, name string, batch store.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rowop.Validate(batch); err != nil {
		return err
	}

	now := s.opts.Now()
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return tableNotFound(name)
		}

		for i, op := range batch.Operations {
			key := rowKey(op.Key())

			var current store.Record
			if data := b.Get(key); data != nil {
				rec, err := unmarshalRecord(data)
				if err != nil {
					return fmt.Errorf("operation %d: decode stored row: %w", i, err)
				}
				current = rec
			}

			next, err := rowop.Apply(current, op, now)
			if err != nil {
				return fmt.Errorf("operation %d: %w", i, err)
			}

			if next == nil {
				if err := b.Delete(key); err != nil {
					return err
				}
				continue
			}
			data, err := marshalRecord(next)
			if err != nil {
				return fmt.Errorf("operation %d: %w", i, err)
			}
			if err := b.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// QueryEntities walks the table's bucket in key order. A partition filter
// seeks straight to the partition.
func (s *Service) QueryEntities(ctx context.Context, name string, q store.PageQuery, token string) (store.Page, error) {
	if err := ctx.Err(); err != nil {
		return store.Page{}, err
	}

	var start []byte
	var after []byte
	if token != "" {
		k, err := rowop.DecodeToken(token)
		if err != nil {
			return store.Page{}, err
		}
		after = rowKey(k)
		start = after
	}

	var prefix []byte
	if q.Filter.PartitionKey != "" {
		prefix = []byte(q.Filter.PartitionKey + "\x00")
		if bytes.Compare(start, prefix) < 0 {
			start = prefix
		}
	}

	size := rowop.PageSize(q.Limit, s.opts.PageSize)

	var page store.Page
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return tableNotFound(name)
		}

		c := b.Cursor()
		var k, v []byte
		if start == nil {
			k, v = c.First()
		} else {
			k, v = c.Seek(start)
		}

		var last store.Key
		for ; k != nil; k, v = c.Next() {
			if after != nil && bytes.Equal(k, after) {
				continue
			}
			if prefix != nil && !bytes.HasPrefix(k, prefix) {
				break
			}
			key := splitRowKey(k)
			if !q.Filter.Matches(key) {
				continue
			}
			if len(page.Entries) == size {
				page.ContinuationToken = rowop.EncodeToken(last)
				break
			}
			rec, err := unmarshalRecord(v)
			if err != nil {
				return fmt.Errorf("decode row %s/%s: %w", key.PartitionKey, key.RowKey, err)
			}
			page.Entries = append(page.Entries, rec)
			last = key
		}
		return nil
	})
	if err != nil {
		return store.Page{}, err
	}
	return page, nil
}
