package store

import (
	"log/slog"
	"time"
)

// Config holds configuration for a Client.
type Config struct {
	// MaxBatchSize is the number of operations per batch.
	// Default: 100
	// Max: 100 (the table service's atomic batch limit)
	MaxBatchSize int

	// MaxParallelism caps how many chunks a single store call writes concurrently.
	// Also bounds concurrent delete batches and partition groups.
	// Default: 4
	// Max: 64
	MaxParallelism int

	// MaxRetries is how many times a busy batch is resubmitted before giving up.
	// A batch is submitted at most MaxRetries+1 times.
	// Default: 10
	MaxRetries int

	// BackoffUnit scales the randomized retry delay.
	// Attempt n waits rand(0..MaxBackoffFactor) * n * BackoffUnit.
	// Default: 1s
	BackoffUnit time.Duration

	// MaxBackoffFactor is the upper bound of the random backoff multiplier.
	// Default: 4
	MaxBackoffFactor int

	// MaxPageSize is the largest page-size hint pushed down to the table service.
	// Query caps above it are enforced client-side only.
	// Default: 1000
	MaxPageSize int

	// Logger receives retry, table creation and fan-out diagnostics.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns the defaults matching the table service limits.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:     100,
		MaxParallelism:   4,
		MaxRetries:       10,
		BackoffUnit:      time.Second,
		MaxBackoffFactor: 4,
		MaxPageSize:      1000,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.MaxBatchSize < 1 || c.MaxBatchSize > 100 {
		c.MaxBatchSize = 100
	}
	if c.MaxParallelism < 1 {
		c.MaxParallelism = 4
	}
	if c.MaxParallelism > 64 {
		c.MaxParallelism = 64
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 10
	}
	if c.BackoffUnit <= 0 {
		c.BackoffUnit = time.Second
	}
	if c.MaxBackoffFactor < 1 {
		c.MaxBackoffFactor = 4
	}
	if c.MaxPageSize < 1 || c.MaxPageSize > 1000 {
		c.MaxPageSize = 1000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
