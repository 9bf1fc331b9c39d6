package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies every error the library produces. Drivers map
// low-level errors to a kind once, at the boundary where they first become
// meaningful; everything above re-raises unchanged.
type ErrorKind int

const (
	// KindConnectionConnect is a failure to establish a connection.
	KindConnectionConnect ErrorKind = iota
	// KindConnectionRefused is a refused connection attempt.
	KindConnectionRefused
	// KindConnectionDisconnected is a transport that died mid-query.
	KindConnectionDisconnected
	// KindConnectionAuthentication is an authentication failure.
	KindConnectionAuthentication
	// KindConnectionSsl is an SSL/TLS negotiation failure.
	KindConnectionSsl

	// KindQuerySyntax is malformed SQL rejected by server or client.
	KindQuerySyntax
	// KindQueryConstraint is a constraint violation.
	KindQueryConstraint
	// KindQuerySerialization is a serialization failure (retryable).
	KindQuerySerialization
	// KindQueryDeadlock is a deadlock abort (retryable).
	KindQueryDeadlock
	// KindQueryTimeout is a server-side statement timeout.
	KindQueryTimeout
	// KindQueryCancelled is a cancelled statement.
	KindQueryCancelled
	// KindQueryDatabase is any other server-reported query failure.
	KindQueryDatabase

	// KindProtocol means the bytes off the wire do not parse. Never
	// recoverable on the same connection.
	KindProtocol

	// KindPoolClosed is an acquire on a closed pool.
	KindPoolClosed
	// KindPoolExhausted is an acquire that timed out waiting for a slot.
	KindPoolExhausted
	// KindPoolConfig is a pool or shard misconfiguration.
	KindPoolConfig

	// KindValidation is a model validation failure before any SQL.
	KindValidation

	// KindTimeout is a generic timeout that is neither pool nor query.
	KindTimeout
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindConnectionConnect:
		return "connection/connect"
	case KindConnectionRefused:
		return "connection/refused"
	case KindConnectionDisconnected:
		return "connection/disconnected"
	case KindConnectionAuthentication:
		return "connection/authentication"
	case KindConnectionSsl:
		return "connection/ssl"
	case KindQuerySyntax:
		return "query/syntax"
	case KindQueryConstraint:
		return "query/constraint"
	case KindQuerySerialization:
		return "query/serialization"
	case KindQueryDeadlock:
		return "query/deadlock"
	case KindQueryTimeout:
		return "query/timeout"
	case KindQueryCancelled:
		return "query/cancelled"
	case KindQueryDatabase:
		return "query/database"
	case KindProtocol:
		return "protocol"
	case KindPoolClosed:
		return "pool/closed"
	case KindPoolExhausted:
		return "pool/exhausted"
	case KindPoolConfig:
		return "pool/config"
	case KindValidation:
		return "validation"
	case KindTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// IsConnection reports whether the kind is a connection kind.
func (k ErrorKind) IsConnection() bool {
	return k >= KindConnectionConnect && k <= KindConnectionSsl
}

// IsQuery reports whether the kind is a query kind.
func (k ErrorKind) IsQuery() bool {
	return k >= KindQuerySyntax && k <= KindQueryDatabase
}

// IsPool reports whether the kind is a pool kind.
func (k ErrorKind) IsPool() bool {
	return k >= KindPoolClosed && k <= KindPoolConfig
}

// Error is the single error type surfaced by the library. SQLSTATE (or the
// driver-native code), message, detail, hint and position are preserved
// verbatim from the server where available.
type Error struct {
	Kind     ErrorKind
	Code     string // SQLSTATE on Postgres, error number on MySQL/SQLite
	Message  string
	Detail   string
	Hint     string
	Position int           // 1-based character position into the SQL, 0 if absent
	Wait     time.Duration // for pool/exhausted: how long the acquire waited
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same kind, so callers can use errors.Is with a
// bare &Error{Kind: ...} probe.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// Errorf builds an Error of the given kind with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error of the given kind around a cause.
func WrapError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Cancelled wraps a context cancellation. Cancellation is distinct from
// failure: IsCancelled recognises it and retry logic must not treat it as a
// database fault.
func Cancelled(cause error) *Error {
	return &Error{Kind: KindQueryCancelled, Message: "operation cancelled", Cause: cause}
}

// KindOf extracts the kind of an error produced by this library.
// Errors from elsewhere report KindQueryDatabase.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindQueryDatabase
}

// IsCancelled reports whether err is a cancellation, either a classified
// query/cancelled error or a raw context error.
func IsCancelled(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Is(err, context.Canceled)
	}
	var e *Error
	return errors.As(err, &e) && e.Kind == KindQueryCancelled
}

// IsConstraint reports whether err is a constraint violation.
func IsConstraint(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindQueryConstraint
}

// IsRetryable reports whether the statement may be retried from the start
// of the transaction (serialization failure or deadlock).
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindQuerySerialization || e.Kind == KindQueryDeadlock
}

// FieldValidationError describes a single field rejected during validation.
type FieldValidationError struct {
	Field   string
	Message string
}

// ValidationError aggregates per-field validation failures.
type ValidationError struct {
	Model  string
	Fields []FieldValidationError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("validation failed for %s: %s: %s", e.Model, e.Fields[0].Field, e.Fields[0].Message)
	}
	return fmt.Sprintf("validation failed for %s: %d invalid fields", e.Model, len(e.Fields))
}

// AsError converts to the library error type.
func (e *ValidationError) AsError() *Error {
	return &Error{Kind: KindValidation, Message: e.Error(), Cause: e}
}
