package store

import (
	"context"
)

// TableService is the remote table store a Client writes to and reads from.
//
// Implementations report transient contention with an error satisfying
// IsBusy and a missing table with an error satisfying IsTableNotFound.
type TableService interface {
	// CreateTableIfNotExists creates the table. It must not fail when the
	// table already exists.
	CreateTableIfNotExists(ctx context.Context, table string) error

	// ExecuteBatch applies up to 100 operations atomically.
	ExecuteBatch(ctx context.Context, table string, batch Batch) error

	// QueryEntities returns one page of records matching the query, starting
	// at token ("" for the first page).
	QueryEntities(ctx context.Context, table string, q PageQuery, token string) (Page, error)
}

// PageQuery is a single page request.
type PageQuery struct {
	Filter Filter

	// Limit is a page-size hint (0 = service default).
	Limit int32
}

// Page is one page of query results.
type Page struct {
	Entries []Record

	// ContinuationToken is opaque; non-empty means more pages exist.
	ContinuationToken string
}
