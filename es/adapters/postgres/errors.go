package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/store"
)

// SQLSTATE codes mapped by Translator.
const (
	CodeUniqueViolation = "23505"
	CodeUndefinedTable  = "42P01"
)

// Translator maps PostgreSQL errors onto the store error taxonomy.
// Both lib/pq and pgx errors are understood.
type Translator struct{}

// Translate implements store.ErrorTranslator.
func (Translator) Translate(err error, phase store.Phase, stream es.StreamName) error {
	return store.Translate(err, phase, stream, Classify)
}

// IsMissingRelation implements store.ErrorTranslator.
func (Translator) IsMissingRelation(err error) bool {
	return err != nil && Classify(err).Violation == store.ViolationMissingRelation
}

// Classify extracts the SQLSTATE of a lib/pq or pgx error.
func Classify(err error) store.Diagnostic {
	var d store.Diagnostic

	var pqErr *pq.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pqErr):
		d.Code = string(pqErr.Code)
		d.Message = pqErr.Message
	case errors.As(err, &pgErr):
		d.Code = pgErr.Code
		d.Message = pgErr.Message
	}

	switch {
	case d.Code == CodeUniqueViolation:
		d.Violation = store.ViolationUnique
	case d.Code == CodeUndefinedTable:
		d.Violation = store.ViolationMissingRelation
	case d.Code == "" && IsUniqueViolation(err):
		d.Violation = store.ViolationUnique
	}
	return d
}

// IsUniqueViolation checks if an error is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == CodeUniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == CodeUniqueViolation
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "duplicate key") || strings.Contains(errMsg, "unique constraint")
}

var _ store.ErrorTranslator = Translator{}
