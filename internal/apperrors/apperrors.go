package apperrors

import (
	"errors"
	"fmt"
)

// The error surface of the loan core is a closed set of variants. Business
// outcomes (NotFound, Conflict) travel to the caller verbatim; dependency
// failures are translated to ErrServiceUnavailable at the service boundary;
// persistence failures stay opaque.

// ─── Conflict Reasons ─────────────────────────────────────────────────────────

const (
	ReasonNoCopies        = "no_available_copies"
	ReasonAlreadyReturned = "already_returned"
	ReasonNotActive       = "not_active"
	ReasonMaxExtensions   = "max_extensions_reached"
	ReasonInvalidDueDate  = "invalid_due_date"
)

// ─── Variants ─────────────────────────────────────────────────────────────────

// NotFoundError signals an absent entity, local (loan) or remote (user, book).
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func NewNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError signals a business-rule violation on otherwise valid input.
type ConflictError struct {
	Reason  string
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflict(reason, message string) error {
	return &ConflictError{Reason: reason, Message: message}
}

// DependencyKind classifies how a collaborator call failed.
type DependencyKind string

const (
	KindTimeout     DependencyKind = "TIMEOUT"
	KindRemoteError DependencyKind = "REMOTE_ERROR"
	KindCircuitOpen DependencyKind = "CIRCUIT_OPEN"
)

// DependencyError signals an unhealthy collaborator. Dependency names the
// failure isolator that produced it (e.g. "book-service.fetch-book").
type DependencyError struct {
	Dependency string
	Kind       DependencyKind
	Err        error
}

func (e *DependencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dependency %s failed (%s): %v", e.Dependency, e.Kind, e.Err)
	}
	return fmt.Sprintf("dependency %s failed (%s)", e.Dependency, e.Kind)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

func NewDependencyError(dependency string, kind DependencyKind, err error) error {
	return &DependencyError{Dependency: dependency, Kind: kind, Err: err}
}

// PersistenceError signals a loan store failure. Fatal to the operation,
// never swallowed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func NewPersistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// ErrServiceUnavailable replaces CIRCUIT_OPEN and TIMEOUT dependency errors
// before they leave the orchestrator, so callers see a uniform retry-later
// signal without isolator internals.
var ErrServiceUnavailable = errors.New("service temporarily unavailable")

// ─── Inspection Helpers ───────────────────────────────────────────────────────

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// AsDependencyError extracts the DependencyError variant, if any.
func AsDependencyError(err error) (*DependencyError, bool) {
	var de *DependencyError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
