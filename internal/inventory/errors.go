package inventory

import (
	"errors"
	"fmt"
)

type Kind string

const (
	SourceUnavailable  Kind = "source_unavailable"
	MalformedRow       Kind = "malformed_row"
	IdentityConflict   Kind = "identity_conflict"
	PersistenceFailure Kind = "persistence_failure"
)

// Error tags a failure with its Kind. Only PersistenceFailure is fatal to a run.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

var (
	ErrSourceUnavailable = &Error{Kind: SourceUnavailable}
	ErrPersistence       = &Error{Kind: PersistenceFailure}
)

func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrPersistence) works
// regardless of Op and the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first tagged error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
