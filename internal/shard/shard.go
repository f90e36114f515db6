// Package shard splits write workloads into chunks for parallel submission.
package shard

// Count returns how many chunks n items are split into.
// Up to one full batch stays in a single chunk; above that every full batch
// adds a chunk, capped at maxChunks.
func Count(n, batchSize, maxChunks int) int {
	if batchSize < 1 {
		batchSize = 1
	}
	if maxChunks < 1 {
		maxChunks = 1
	}
	if n <= batchSize {
		return 1
	}
	return min(n/batchSize, maxChunks)
}

// Range is a half-open index range [Start, End) into a slice.
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Split divides n items into parts contiguous ranges whose sizes differ by at
// most one. The first n%parts ranges get the extra item.
func Split(n, parts int) []Range {
	if parts < 1 {
		parts = 1
	}
	if n < parts {
		parts = max(n, 1)
	}
	size := n / parts
	extra := n % parts

	ranges := make([]Range, 0, parts)
	start := 0
	for i := 0; i < parts; i++ {
		end := start + size
		if i < extra {
			end++
		}
		ranges = append(ranges, Range{Start: start, End: end})
		start = end
	}
	return ranges
}

// Group is a set of items sharing a key.
type Group[T any] struct {
	Key   string
	Items []T
}

// GroupBy groups items by key. Groups appear in order of their first item;
// items keep their relative order inside a group.
func GroupBy[T any](items []T, key func(T) string) []Group[T] {
	index := make(map[string]int)
	var groups []Group[T]
	for _, item := range items {
		k := key(item)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group[T]{Key: k})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}
