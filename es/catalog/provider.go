// Package catalog implements the stream catalog: one row per stream holding
// its logical name, its physical table and its category.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	sq "github.com/Masterminds/squirrel"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/store"
)

// DefaultTable is the default catalog table name.
const DefaultTable = "event_streams"

// Catalog column names.
const (
	ColumnRealStreamName = "real_stream_name"
	ColumnStreamName     = "stream_name"
	ColumnCategory       = "category"
)

// Provider is a store.EventStreamProvider backed by a SQL table.
// Engine errors are returned untranslated.
type Provider struct {
	table   string
	builder sq.StatementBuilderType
}

// NewProvider creates a catalog on table using the engine's placeholder format.
// An empty table uses DefaultTable.
func NewProvider(table string, placeholder sq.PlaceholderFormat) *Provider {
	if table == "" {
		table = DefaultTable
	}
	return &Provider{
		table:   table,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

// Table returns the catalog table name.
func (p *Provider) Table() string {
	return p.table
}

// CreateStream implements store.EventStreamProvider.
// An empty category is stored as NULL.
func (p *Provider) CreateStream(ctx context.Context, conn es.DBTX, name es.StreamName, table, category string) error {
	var cat interface{}
	if category != "" {
		cat = category
	}

	query, args, err := p.builder.
		Insert(p.table).
		Columns(ColumnRealStreamName, ColumnStreamName, ColumnCategory).
		Values(name.String(), table, cat).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build catalog insert: %w", err)
	}

	_, err = conn.ExecContext(ctx, query, args...)
	return err
}

// DeleteStream implements store.EventStreamProvider.
func (p *Provider) DeleteStream(ctx context.Context, conn es.DBTX, name es.StreamName) (bool, error) {
	query, args, err := p.builder.
		Delete(p.table).
		Where(sq.Eq{ColumnRealStreamName: name.String()}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build catalog delete: %w", err)
	}

	result, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// HasRealStreamName implements store.EventStreamProvider.
func (p *Provider) HasRealStreamName(ctx context.Context, conn es.DBTX, name es.StreamName) (bool, error) {
	query, args, err := p.builder.
		Select("1").
		From(p.table).
		Where(sq.Eq{ColumnRealStreamName: name.String()}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build catalog query: %w", err)
	}

	var one int
	err = conn.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// StreamTable implements store.EventStreamProvider.
func (p *Provider) StreamTable(ctx context.Context, conn es.DBTX, name es.StreamName) (string, error) {
	query, args, err := p.builder.
		Select(ColumnStreamName).
		From(p.table).
		Where(sq.Eq{ColumnRealStreamName: name.String()}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build catalog query: %w", err)
	}

	var table string
	err = conn.QueryRowContext(ctx, query, args...).Scan(&table)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.NewStreamNotFound(name, nil)
	}
	if err != nil {
		return "", err
	}
	return table, nil
}

// FilterByStreams implements store.EventStreamProvider.
func (p *Provider) FilterByStreams(ctx context.Context, conn es.DBTX, names []es.StreamName) ([]es.StreamName, error) {
	if len(names) == 0 {
		return []es.StreamName{}, nil
	}

	values := make([]string, len(names))
	for i, name := range names {
		values[i] = name.String()
	}
	return p.names(ctx, conn, sq.Eq{ColumnRealStreamName: values})
}

// FilterByCategories implements store.EventStreamProvider.
func (p *Provider) FilterByCategories(ctx context.Context, conn es.DBTX, categories []string) ([]es.StreamName, error) {
	if len(categories) == 0 {
		return []es.StreamName{}, nil
	}
	return p.names(ctx, conn, sq.Eq{ColumnCategory: categories})
}

// AllWithoutInternal implements store.EventStreamProvider.
func (p *Provider) AllWithoutInternal(ctx context.Context, conn es.DBTX) ([]es.StreamName, error) {
	return p.names(ctx, conn, sq.NotLike{ColumnRealStreamName: es.InternalStreamPrefix + "%"})
}

func (p *Provider) names(ctx context.Context, conn es.DBTX, pred sq.Sqlizer) ([]es.StreamName, error) {
	query, args, err := p.builder.
		Select(ColumnRealStreamName).
		From(p.table).
		Where(pred).
		OrderBy(ColumnRealStreamName + " ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog query: %w", err)
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []es.StreamName{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan stream name: %w", err)
		}
		names = append(names, es.StreamName(name))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// collations differ between engines
	slices.Sort(names)
	return names, nil
}

var _ store.EventStreamProvider = (*Provider)(nil)
