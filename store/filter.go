package store

import (
	"strings"
)

// Filter holds equality predicates over the two key attributes.
// An empty value means the predicate is absent; both absent is a full scan.
type Filter struct {
	PartitionKey string
	RowKey       string
}

// IsScan reports whether the filter has no predicates.
func (f Filter) IsScan() bool {
	return f.PartitionKey == "" && f.RowKey == ""
}

// Matches reports whether a key satisfies every present predicate.
func (f Filter) Matches(k Key) bool {
	if f.PartitionKey != "" && f.PartitionKey != k.PartitionKey {
		return false
	}
	if f.RowKey != "" && f.RowKey != k.RowKey {
		return false
	}
	return true
}

// String renders the filter as an OData-style predicate, e.g.
// "PartitionKey eq '123' and RowKey eq 'abcd'". A scan renders as "".
func (f Filter) String() string {
	var clauses []string
	if f.PartitionKey != "" {
		clauses = append(clauses, AttrPartitionKey+" eq "+quote(f.PartitionKey))
	}
	if f.RowKey != "" {
		clauses = append(clauses, AttrRowKey+" eq "+quote(f.RowKey))
	}
	return strings.Join(clauses, " and ")
}

// quote wraps a literal in single quotes, doubling embedded quotes.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
