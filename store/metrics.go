package store

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

// Counters are registered in the default VictoriaMetrics set; expose them with
// metrics.WritePrometheus.

func batchesCounter(table, outcome string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`tablestore_batches_total{table=%q,outcome=%q}`, table, outcome))
}

func retriesCounter(table string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`tablestore_busy_retries_total{table=%q}`, table))
}

func tableCreatesCounter(table string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`tablestore_table_creates_total{table=%q}`, table))
}

func queryPagesCounter(table string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`tablestore_query_pages_total{table=%q}`, table))
}

func operationsCounter(table string, mode Mode) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`tablestore_operations_total{table=%q,mode=%q}`, table, mode))
}
