package store

import (
	"github.com/getpup/pupstore/es"
)

// Phase is the stage of the write or read path a failure happened in.
// It selects how a duplicate-key violation is reported.
type Phase int

const (
	// PhaseRead covers every read query.
	PhaseRead Phase = iota

	// PhaseCreation covers the first commit of a stream: catalog entry
	// and schema creation.
	PhaseCreation

	// PhaseAmend covers appending events.
	PhaseAmend

	// PhaseDelete covers catalog removal and table drop.
	PhaseDelete
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseCreation:
		return "creation"
	case PhaseAmend:
		return "amend"
	case PhaseDelete:
		return "delete"
	default:
		return "read"
	}
}

// Violation is the engine independent class of an engine error.
type Violation int

const (
	// ViolationNone is any error without a dedicated mapping.
	ViolationNone Violation = iota

	// ViolationUnique is a duplicate key.
	ViolationUnique

	// ViolationMissingRelation is a table that does not exist.
	ViolationMissingRelation
)

// Diagnostic is what an engine translator extracts from a driver error.
type Diagnostic struct {
	Violation Violation
	Code      string
	Message   string
}

// ErrorTranslator maps engine errors onto the error taxonomy.
// Implementations exist per storage engine.
type ErrorTranslator interface {
	// Translate returns err mapped onto the taxonomy. Nil stays nil and
	// errors already in the taxonomy are returned unchanged.
	Translate(err error, phase Phase, stream es.StreamName) error

	// IsMissingRelation reports whether err says the table does not exist.
	IsMissingRelation(err error) bool
}

// Classifier extracts a Diagnostic from a driver error.
type Classifier func(err error) Diagnostic

// Translate applies the shared mapping:
//
//	unique violation during creation -> ErrStreamAlreadyExists
//	unique violation during amend    -> ErrConcurrency
//	missing relation                 -> ErrStreamNotFound
//	anything else                    -> ErrQueryFailure
func Translate(err error, phase Phase, stream es.StreamName, classify Classifier) error {
	if err == nil || IsTranslated(err) {
		return err
	}

	d := classify(err)
	if d.Message == "" {
		d.Message = err.Error()
	}

	switch d.Violation {
	case ViolationUnique:
		switch phase {
		case PhaseCreation:
			return NewStreamAlreadyExists(stream, err)
		case PhaseAmend:
			return NewConcurrencyError(stream, d.Code, d.Message, err)
		}
	case ViolationMissingRelation:
		return NewStreamNotFound(stream, err)
	}

	return NewQueryFailure(d.Code, d.Message, err)
}
