package store

import (
	sq "github.com/Masterminds/squirrel"
)

// FilterFunc adapts a function to QueryFilter.
type FilterFunc func(query sq.SelectBuilder) sq.SelectBuilder

// Apply implements QueryFilter.
func (f FilterFunc) Apply(query sq.SelectBuilder) sq.SelectBuilder {
	return f(query)
}

// FromPosition selects events at or after a position, in position order.
// Projections use it to resume from their recorded position.
type FromPosition struct {
	// Position is the first position to read (inclusive).
	Position int64

	// MaxCount caps the number of events read. 0 means no cap.
	MaxCount uint64
}

// Apply implements QueryFilter.
func (f FromPosition) Apply(query sq.SelectBuilder) sq.SelectBuilder {
	query = query.Where(sq.GtOrEq{"no": f.Position}).OrderBy("no ASC")
	if f.MaxCount > 0 {
		query = query.Limit(f.MaxCount)
	}
	return query
}

// Limit implements Limiter.
func (f FromPosition) Limit() uint64 {
	return f.MaxCount
}

// AggregateVersions selects the events of one aggregate within an optional
// version range, ordered by version.
type AggregateVersions struct {
	AggregateID string

	// AggregateType narrows the filter when a category table mixes aggregate types.
	AggregateType string

	// FromVersion is the first version to read (inclusive). Nil reads from the start.
	FromVersion *int64

	// ToVersion is the last version to read (inclusive). Nil reads to the end.
	ToVersion *int64
}

// Apply implements QueryFilter.
func (f AggregateVersions) Apply(query sq.SelectBuilder) sq.SelectBuilder {
	query = query.Where(sq.Eq{"aggregate_id": f.AggregateID})
	if f.AggregateType != "" {
		query = query.Where(sq.Eq{"aggregate_type": f.AggregateType})
	}
	if f.FromVersion != nil {
		query = query.Where(sq.GtOrEq{"aggregate_version": *f.FromVersion})
	}
	if f.ToVersion != nil {
		query = query.Where(sq.LtOrEq{"aggregate_version": *f.ToVersion})
	}
	return query.OrderBy("aggregate_version ASC")
}

// UsesAggregateIndex implements IndexHinter.
// The aggregate index leads with the type, so it only helps when one is set.
func (f AggregateVersions) UsesAggregateIndex() bool {
	return f.AggregateType != ""
}
