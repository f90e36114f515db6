package store

import (
	"context"
	"fmt"
	"time"
)

// submit executes one batch with busy backoff. With createTable set, a
// missing table is created once and the batch is resubmitted with a fresh
// retry budget.
func (c *Client) submit(ctx context.Context, table string, batch Batch, createTable bool) error {
	err := c.submitWithBackoff(ctx, table, batch)
	if err == nil || !createTable || !IsTableNotFound(err) {
		return err
	}

	c.logger.Info("table not found, creating", "table", table)
	if err := c.createTable(ctx, table); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return c.submitWithBackoff(ctx, table, batch)
}

// submitWithBackoff resubmits a busy batch up to MaxRetries times, waiting
// rand(0..MaxBackoffFactor) * attempt * BackoffUnit before each retry.
func (c *Client) submitWithBackoff(ctx context.Context, table string, batch Batch) error {
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.backoff(attempt)); err != nil {
				return err
			}
		}

		err := c.service.ExecuteBatch(ctx, table, batch)
		if err == nil {
			batchesCounter(table, "ok").Inc()
			for _, op := range batch.Operations {
				operationsCounter(table, op.Mode).Inc()
			}
			return nil
		}

		if !IsBusy(err) {
			batchesCounter(table, "error").Inc()
			return err
		}

		if attempt >= c.config.MaxRetries {
			batchesCounter(table, "gave_up").Inc()
			c.logger.Warn("batch still busy, giving up",
				"table", table,
				"attempts", attempt+1,
				"operations", batch.Len(),
			)
			return fmt.Errorf("%w (%d attempts): %w", ErrRetryBudgetExceeded, attempt+1, err)
		}

		retriesCounter(table).Inc()
		c.logger.Debug("batch busy, retrying",
			"table", table,
			"attempt", attempt+1,
			"error", err,
		)
	}
}

// createTable creates the table, pausing one BackoffUnit between busy responses.
func (c *Client) createTable(ctx context.Context, table string) error {
	for attempt := 0; ; attempt++ {
		err := c.service.CreateTableIfNotExists(ctx, table)
		if err == nil {
			tableCreatesCounter(table).Inc()
			return nil
		}
		if !IsBusy(err) || attempt >= c.config.MaxRetries {
			return err
		}
		c.logger.Debug("create table busy, retrying", "table", table, "attempt", attempt+1)
		if err := sleep(ctx, c.config.BackoffUnit); err != nil {
			return err
		}
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	factor := c.randIntN(c.config.MaxBackoffFactor + 1)
	return time.Duration(factor*attempt) * c.config.BackoffUnit
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
