package store

import (
	"errors"
	"fmt"

	"github.com/getpup/pupstore/es"
)

var (
	// ErrStreamAlreadyExists indicates a first commit on a stream name already in the catalog.
	ErrStreamAlreadyExists = errors.New("stream already exists")

	// ErrStreamNotFound indicates a missing stream: no catalog entry, no
	// physical table, or nothing read.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrConcurrency indicates a version conflict during amend or a write
	// lock that could not be acquired. Callers may retry with a recomputed version.
	ErrConcurrency = errors.New("concurrency conflict")

	// ErrQueryFailure indicates any other engine failure.
	ErrQueryFailure = errors.New("query failure")

	// ErrTransactionAlreadyStarted indicates a begin on an open transaction.
	ErrTransactionAlreadyStarted = errors.New("transaction already started")

	// ErrTransactionNotStarted indicates a commit or rollback without a transaction.
	ErrTransactionNotStarted = errors.New("transaction not started")

	// ErrInvalidArgument indicates a bad configuration or argument.
	ErrInvalidArgument = errors.New("invalid argument")
)

// StreamError is ErrStreamAlreadyExists or ErrStreamNotFound with the stream
// it concerns and the underlying cause, if any.
type StreamError struct {
	Stream es.StreamName
	Kind   error
	Err    error
}

// NewStreamAlreadyExists returns a StreamError matching ErrStreamAlreadyExists.
func NewStreamAlreadyExists(stream es.StreamName, cause error) error {
	return &StreamError{Stream: stream, Kind: ErrStreamAlreadyExists, Err: cause}
}

// NewStreamNotFound returns a StreamError matching ErrStreamNotFound.
func NewStreamNotFound(stream es.StreamName, cause error) error {
	return &StreamError{Stream: stream, Kind: ErrStreamNotFound, Err: cause}
}

// Error implements error.
func (e *StreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Stream, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Stream)
}

// Is reports whether target is the error kind.
func (e *StreamError) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// ConcurrencyError matches ErrConcurrency.
// Code and Message carry the engine diagnostic when the conflict was
// raised by the database.
type ConcurrencyError struct {
	Stream  es.StreamName
	Code    string
	Message string
	Err     error
}

// NewConcurrencyError returns a ConcurrencyError.
func NewConcurrencyError(stream es.StreamName, code, message string, cause error) error {
	return &ConcurrencyError{Stream: stream, Code: code, Message: message, Err: cause}
}

// Error implements error.
func (e *ConcurrencyError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%v: %s: [%s] %s", ErrConcurrency, e.Stream, e.Code, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("%v: %s: %s", ErrConcurrency, e.Stream, e.Message)
	}
	return fmt.Sprintf("%v: %s", ErrConcurrency, e.Stream)
}

// Is reports whether target is ErrConcurrency.
func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrConcurrency
}

// Unwrap returns the underlying cause.
func (e *ConcurrencyError) Unwrap() error {
	return e.Err
}

// QueryFailure matches ErrQueryFailure and preserves the engine code and message.
type QueryFailure struct {
	Code    string
	Message string
	Err     error
}

// NewQueryFailure returns a QueryFailure.
func NewQueryFailure(code, message string, cause error) error {
	return &QueryFailure{Code: code, Message: message, Err: cause}
}

// Error implements error.
func (e *QueryFailure) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%v: [%s] %s", ErrQueryFailure, e.Code, e.Message)
	}
	return fmt.Sprintf("%v: %s", ErrQueryFailure, e.Message)
}

// Is reports whether target is ErrQueryFailure.
func (e *QueryFailure) Is(target error) bool {
	return target == ErrQueryFailure
}

// Unwrap returns the underlying cause.
func (e *QueryFailure) Unwrap() error {
	return e.Err
}

// IsTranslated reports whether err already belongs to the taxonomy, in which
// case translators pass it through unchanged.
func IsTranslated(err error) bool {
	return errors.Is(err, ErrStreamAlreadyExists) ||
		errors.Is(err, ErrStreamNotFound) ||
		errors.Is(err, ErrConcurrency) ||
		errors.Is(err, ErrQueryFailure) ||
		errors.Is(err, ErrTransactionAlreadyStarted) ||
		errors.Is(err, ErrTransactionNotStarted) ||
		errors.Is(err, ErrInvalidArgument)
}
