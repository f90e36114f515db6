package store

import (
	"context"
	"errors"
	"fmt"
)

// Query selects entities by key. Empty keys are omitted from the filter; with
// both empty the whole table is scanned.
type Query struct {
	PartitionKey string
	RowKey       string

	// Defaults are the base layer of every result; stored fields override them.
	Defaults Entity

	// Top caps the number of results (0 = no cap). Caps up to MaxPageSize are
	// also sent to the table service as the page size.
	Top int
}

// Filter returns the key predicates of the query.
func (q Query) Filter() Filter {
	return Filter{PartitionKey: q.PartitionKey, RowKey: q.RowKey}
}

func (m *Model) pageQuery(q Query) PageQuery {
	pq := PageQuery{Filter: q.Filter()}
	if q.Top > 0 && q.Top <= m.client.config.MaxPageSize {
		pq.Limit = int32(q.Top)
	}
	return pq
}

// Query follows continuation tokens until the results are exhausted or Top is
// reached, then decodes every record. Results keep page arrival order.
func (m *Model) Query(ctx context.Context, q Query) ([]Entity, error) {
	records, err := m.queryRecords(ctx, q)
	if err != nil {
		return nil, err
	}

	entities := make([]Entity, 0, len(records))
	for _, rec := range records {
		e, err := m.schema.decode(rec, q.Defaults)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", m.TableName(), err)
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// QuerySingle returns the first result of the query, or ErrNotFound.
func (m *Model) QuerySingle(ctx context.Context, q Query) (Entity, error) {
	entities, err := m.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, ErrNotFound
	}
	return entities[0], nil
}

// QueryPaged streams decoded pages to fn as they arrive. The next page is
// requested only after fn returns; an error from fn stops the stream and is
// returned.
func (m *Model) QueryPaged(ctx context.Context, q Query, fn func(page []Entity) error) error {
	p := m.NewPager(q)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return err
		}
		if err := fn(page); err != nil {
			return err
		}
	}
	return nil
}

// queryRecords fetches raw records page by page.
func (m *Model) queryRecords(ctx context.Context, q Query) ([]Record, error) {
	table := m.TableName()
	pq := m.pageQuery(q)

	var records []Record
	token := ""
	for {
		page, err := m.client.service.QueryEntities(ctx, table, pq, token)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", table, err)
		}
		queryPagesCounter(table).Inc()

		records = append(records, page.Entries...)
		if q.Top > 0 && len(records) >= q.Top {
			records = records[:q.Top]
			break
		}
		if page.ContinuationToken == "" {
			break
		}
		token = page.ContinuationToken
	}

	m.client.logger.Debug("query completed",
		"table", table,
		"filter", pq.Filter.String(),
		"results", len(records),
	)
	return records, nil
}

// ErrNoMorePages is returned by Pager.NextPage after the last page.
var ErrNoMorePages = errors.New("tablestore: no more pages available")

// Pager iterates over the decoded pages of a query, one request per page.
type Pager struct {
	model *Model
	query Query
	pq    PageQuery
	table string

	token string
	count int
	done  bool
}

// NewPager returns a pager for the query. No request is made until NextPage.
func (m *Model) NewPager(q Query) *Pager {
	return &Pager{
		model: m,
		query: q,
		pq:    m.pageQuery(q),
		table: m.TableName(),
	}
}

// HasMorePages returns true until the last page has been returned.
func (p *Pager) HasMorePages() bool {
	return !p.done
}

// NextPage fetches and decodes the next page. A failed request or decode
// leaves the pager positioned on the same page.
func (p *Pager) NextPage(ctx context.Context) ([]Entity, error) {
	if p.done {
		return nil, ErrNoMorePages
	}

	page, err := p.model.client.service.QueryEntities(ctx, p.table, p.pq, p.token)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", p.table, err)
	}
	queryPagesCounter(p.table).Inc()

	entries := page.Entries
	done := page.ContinuationToken == ""
	if p.query.Top > 0 {
		if remaining := p.query.Top - p.count; len(entries) >= remaining {
			entries = entries[:remaining]
			done = true
		}
	}

	entities := make([]Entity, 0, len(entries))
	for _, rec := range entries {
		e, err := p.model.schema.decode(rec, p.query.Defaults)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", p.table, err)
		}
		entities = append(entities, e)
	}

	p.token = page.ContinuationToken
	p.count += len(entries)
	p.done = done
	return entities, nil
}
