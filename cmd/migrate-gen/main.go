// Command migrate-gen generates the SQL migration of the stream catalog.
//
// Usage:
//
//	go run github.com/getpup/pupstore/cmd/migrate-gen --output migrations --filename init.sql
//
// Or with go generate:
//
//	//go:generate go run github.com/getpup/pupstore/cmd/migrate-gen --output migrations
//
// Generate migrations for different drivers, optionally creating streams
// ahead of time:
//
//	go run github.com/getpup/pupstore/cmd/migrate-gen --driver postgres
//	go run github.com/getpup/pupstore/cmd/migrate-gen --driver mysql --stream orders --stream payments
//	go run github.com/getpup/pupstore/cmd/migrate-gen --driver sqlite --per-aggregate --stream order-42
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/adapters/mysql"
	"github.com/getpup/pupstore/es/adapters/postgres"
	"github.com/getpup/pupstore/es/adapters/sqlite"
	"github.com/getpup/pupstore/es/migrations"
	"github.com/getpup/pupstore/es/persistence"
)

type options struct {
	driver       string
	output       string
	filename     string
	catalogTable string
	streams      []string
	perAggregate bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	defaults := migrations.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "migrate-gen",
		Short:         "Generate the SQL migration of the event store catalog",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.driver, "driver", "postgres", "database driver: postgres, mysql or sqlite")
	flags.StringVarP(&opts.output, "output", "o", defaults.OutputFolder, "output folder for the migration file")
	flags.StringVarP(&opts.filename, "filename", "f", "", "output filename (default: timestamp-based)")
	flags.StringVar(&opts.catalogTable, "catalog-table", defaults.CatalogTable, "name of the stream catalog table")
	flags.StringArrayVar(&opts.streams, "stream", nil, "stream to create ahead of time (repeatable)")
	flags.BoolVar(&opts.perAggregate, "per-aggregate", false, "use the per aggregate layout for --stream tables")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	dialect, err := dialectFor(opts.driver)
	if err != nil {
		return err
	}

	config := migrations.DefaultConfig()
	config.OutputFolder = opts.output
	config.CatalogTable = opts.catalogTable
	config.Streams = es.StreamNames(opts.streams...)
	config.PerAggregate = opts.perAggregate
	if opts.filename != "" {
		config.OutputFilename = opts.filename
	}

	path, err := migrations.Generate(&config, dialect)
	if err != nil {
		return fmt.Errorf("generating migration: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Generated %s migration: %s\n", dialect.Name(), path)
	return nil
}

func dialectFor(driver string) (persistence.Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return postgres.Dialect{}, nil
	case "mysql":
		return mysql.Dialect{}, nil
	case "sqlite":
		return sqlite.Dialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q: supported drivers are postgres, mysql, sqlite", driver)
	}
}
