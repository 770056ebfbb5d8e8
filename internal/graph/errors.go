package graph

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateID     = errors.New("duplicate task id")
	ErrInvalidTask     = errors.New("invalid task")
	ErrInvalidTopology = errors.New("invalid topology")
	ErrCycle           = errors.New("dependency cycle")
	ErrNotBuilt        = errors.New("network not built")
	ErrFrozen          = errors.New("network already built")
)

// NetworkError describes a network construction or validation failure.
type NetworkError struct {
	Kind error
	Msg  string
}

func (e *NetworkError) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *NetworkError) Unwrap() error { return e.Kind }

func newErr(kind error, format string, args ...any) error {
	return &NetworkError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
