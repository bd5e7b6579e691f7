package sqlite

import (
	"errors"
	"strconv"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/store"
)

// Translator maps SQLite errors onto the store error taxonomy.
type Translator struct{}

// Translate implements store.ErrorTranslator.
func (Translator) Translate(err error, phase store.Phase, stream es.StreamName) error {
	return store.Translate(err, phase, stream, Classify)
}

// IsMissingRelation implements store.ErrorTranslator.
func (Translator) IsMissingRelation(err error) bool {
	return err != nil && Classify(err).Violation == store.ViolationMissingRelation
}

// Classify extracts the violation from a SQLite error.
// SQLite reports a missing table with the generic error code, so the
// message is inspected too.
func Classify(err error) store.Diagnostic {
	var (
		d    store.Diagnostic
		code = -1
	)

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		code = sqliteErr.Code()
		d.Code = strconv.Itoa(code)
		d.Message = sqliteErr.Error()
	}

	switch {
	case IsUniqueViolation(err) ||
		code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		d.Violation = store.ViolationUnique
	case strings.Contains(err.Error(), "no such table"):
		d.Violation = store.ViolationMissingRelation
	}
	return d
}

// IsUniqueViolation checks if an error is a SQLite unique constraint violation.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "UNIQUE constraint failed") ||
		strings.Contains(errMsg, "PRIMARY KEY constraint failed")
}

var _ store.ErrorTranslator = Translator{}
