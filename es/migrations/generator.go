package migrations

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/catalog"
	"github.com/getpup/pupstore/es/persistence"
)

// Config configures migration generation.
type Config struct {
	// OutputFolder is the directory where the migration file will be written
	OutputFolder string

	// OutputFilename is the name of the migration file
	OutputFilename string

	// CatalogTable is the name of the stream catalog table
	CatalogTable string

	// Streams are created up front: their physical table and catalog row
	// are part of the migration.
	Streams []es.StreamName

	// PerAggregate selects the per aggregate layout for Streams instead of
	// the single stream layout.
	PerAggregate bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	timestamp := time.Now().Format("20060102150405")
	return Config{
		OutputFolder:   "migrations",
		OutputFilename: fmt.Sprintf("%s_init_event_store.sql", timestamp),
		CatalogTable:   catalog.DefaultTable,
	}
}

// Generate writes the migration of config for dialect and returns the
// path of the written file.
func Generate(config *Config, dialect persistence.Dialect) (string, error) {
	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output folder: %w", err)
	}

	sql, err := SQL(config, dialect)
	if err != nil {
		return "", err
	}

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(sql), 0o600); err != nil {
		return "", fmt.Errorf("failed to write migration file: %w", err)
	}
	return outputPath, nil
}

// SQL renders the migration of config for dialect.
func SQL(config *Config, dialect persistence.Dialect) (string, error) {
	if config.CatalogTable == "" {
		return "", fmt.Errorf("catalog table name is required")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "-- Event Store Migration (%s)\n", dialect.Name())
	fmt.Fprintf(&b, "-- Generated: %s\n\n", time.Now().Format(time.RFC3339))

	b.WriteString("-- Stream catalog: one row per logical stream\n")
	writeStatements(&b, dialect.CatalogSchema(config.CatalogTable))

	seen := make(map[es.StreamName]bool, len(config.Streams))
	for _, stream := range config.Streams {
		if stream == "" {
			return "", fmt.Errorf("stream name must not be empty")
		}
		if seen[stream] {
			return "", fmt.Errorf("stream %q listed twice", stream)
		}
		seen[stream] = true

		table := persistence.TableName(stream)
		fmt.Fprintf(&b, "\n-- Stream %s\n", stream)
		if config.PerAggregate {
			writeStatements(&b, dialect.PerAggregateSchema(table))
			writeStatements(&b, dialect.PerAggregateConstraints(table))
		} else {
			writeStatements(&b, dialect.SingleStreamSchema(table))
		}
		fmt.Fprintf(&b, "INSERT INTO %s (%s, %s, %s) VALUES (%s, %s, %s);\n",
			config.CatalogTable,
			catalog.ColumnRealStreamName, catalog.ColumnStreamName, catalog.ColumnCategory,
			quote(string(stream)), quote(table), category(stream))
	}

	return b.String(), nil
}

func writeStatements(b *strings.Builder, statements []string) {
	for _, stmt := range statements {
		b.WriteString(stmt)
		b.WriteString(";\n")
	}
}

func category(stream es.StreamName) string {
	c := stream.Category()
	if c == "" {
		return "NULL"
	}
	return quote(c)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
