package mysql

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/store"
)

// MySQL error numbers mapped by Translator.
const (
	ErrDupEntry     = 1062 // ER_DUP_ENTRY
	ErrNoSuchTable  = 1146 // ER_NO_SUCH_TABLE
	ErrBadTableName = 1051 // ER_BAD_TABLE_ERROR, raised by DROP TABLE
)

// Translator maps MySQL errors onto the store error taxonomy.
type Translator struct{}

// Translate implements store.ErrorTranslator.
func (Translator) Translate(err error, phase store.Phase, stream es.StreamName) error {
	return store.Translate(err, phase, stream, Classify)
}

// IsMissingRelation implements store.ErrorTranslator.
func (Translator) IsMissingRelation(err error) bool {
	return err != nil && Classify(err).Violation == store.ViolationMissingRelation
}

// Classify extracts the error number of a MySQL error.
func Classify(err error) store.Diagnostic {
	var d store.Diagnostic

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		d.Code = strconv.Itoa(int(mysqlErr.Number))
		d.Message = mysqlErr.Message
		switch mysqlErr.Number {
		case ErrDupEntry:
			d.Violation = store.ViolationUnique
		case ErrNoSuchTable, ErrBadTableName:
			d.Violation = store.ViolationMissingRelation
		}
		return d
	}

	if IsUniqueViolation(err) {
		d.Violation = store.ViolationUnique
	}
	return d
}

// IsUniqueViolation checks if an error is a MySQL duplicate entry error.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == ErrDupEntry
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "duplicate key")
}

var _ store.ErrorTranslator = Translator{}
