// Package migrations generates SQL migrations for the stream catalog and,
// optionally, for streams created ahead of time.
//
// To generate migrations, use the migrate-gen command:
//
//	go run github.com/getpup/pupstore/cmd/migrate-gen --driver postgres --output migrations
//
// Or add a go generate directive to your code:
//
//	//go:generate go run github.com/getpup/pupstore/cmd/migrate-gen --output ../../migrations
//
// Then run:
//
//	go generate ./...
package migrations
