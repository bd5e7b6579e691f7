package persistence

import (
	"context"
	"fmt"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/store"
)

// Option configures a strategy.
type Option func(*options)

type options struct {
	serializer Serializer
}

// WithSerializer replaces the default JSON serializer.
func WithSerializer(s Serializer) Option {
	return func(o *options) {
		o.serializer = s
	}
}

func newOptions(opts []Option) options {
	o := options{serializer: JSONSerializer{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SingleStream stores every aggregate of a stream in one table.
// Positions are assigned by the engine and the unique constraint on
// (aggregate_type, aggregate_id, aggregate_version) detects concurrent writers.
type SingleStream struct {
	dialect    Dialect
	serializer Serializer
}

// NewSingleStream creates the single stream strategy for a dialect.
func NewSingleStream(dialect Dialect, opts ...Option) *SingleStream {
	o := newOptions(opts)
	return &SingleStream{dialect: dialect, serializer: o.serializer}
}

// TableName implements Strategy.
func (s *SingleStream) TableName(stream es.StreamName) string {
	return TableName(stream)
}

// Serialize implements Strategy.
func (s *SingleStream) Serialize(event es.Event) (Row, error) {
	return serialize(event, s.serializer, s.dialect)
}

// CreateSchema implements Strategy.
func (s *SingleStream) CreateSchema(ctx context.Context, conn es.DBTX, table string) (PostCreate, error) {
	if err := execAll(ctx, conn, s.dialect.SingleStreamSchema(table)); err != nil {
		return nil, err
	}
	return nil, nil
}

// IsAutoIncremented implements Strategy.
func (s *SingleStream) IsAutoIncremented() bool {
	return true
}

// IndexName implements Strategy.
func (s *SingleStream) IndexName(table string) string {
	return AggregateIndexName(table)
}

// Serializer returns the serializer used for content and headers.
func (s *SingleStream) Serializer() Serializer {
	return s.serializer
}

// PerAggregate stores one aggregate per table, usually with stream names
// such as "balance-<aggregate id>". The position equals the aggregate version.
type PerAggregate struct {
	dialect    Dialect
	serializer Serializer
}

// NewPerAggregate creates the per aggregate strategy for a dialect.
func NewPerAggregate(dialect Dialect, opts ...Option) *PerAggregate {
	o := newOptions(opts)
	return &PerAggregate{dialect: dialect, serializer: o.serializer}
}

// TableName implements Strategy.
func (s *PerAggregate) TableName(stream es.StreamName) string {
	return TableName(stream)
}

// Serialize implements Strategy.
func (s *PerAggregate) Serialize(event es.Event) (Row, error) {
	if event.AggregateVersion < 1 {
		return Row{}, fmt.Errorf("%w: aggregate version must be positive, got %d",
			store.ErrInvalidArgument, event.AggregateVersion)
	}
	row, err := serialize(event, s.serializer, s.dialect)
	if err != nil {
		return Row{}, err
	}
	row.No = event.AggregateVersion
	return row, nil
}

// CreateSchema implements Strategy.
// Engines that add constraints after creation return them as the post step.
func (s *PerAggregate) CreateSchema(ctx context.Context, conn es.DBTX, table string) (PostCreate, error) {
	if err := execAll(ctx, conn, s.dialect.PerAggregateSchema(table)); err != nil {
		return nil, err
	}

	constraints := s.dialect.PerAggregateConstraints(table)
	if len(constraints) == 0 {
		return nil, nil
	}
	return func(ctx context.Context, conn es.DBTX) error {
		return execAll(ctx, conn, constraints)
	}, nil
}

// IsAutoIncremented implements Strategy.
func (s *PerAggregate) IsAutoIncremented() bool {
	return false
}

// IndexName implements Strategy.
// The primary key on the position already orders the single aggregate.
func (s *PerAggregate) IndexName(string) string {
	return ""
}

// Serializer returns the serializer used for content and headers.
func (s *PerAggregate) Serializer() Serializer {
	return s.serializer
}

// SerializerOf returns the serializer of a strategy, or the JSON serializer
// for strategies that do not expose one.
func SerializerOf(s Strategy) Serializer {
	if withSerializer, ok := s.(interface{ Serializer() Serializer }); ok {
		return withSerializer.Serializer()
	}
	return JSONSerializer{}
}

var (
	_ Strategy = (*SingleStream)(nil)
	_ Strategy = (*PerAggregate)(nil)
)
