package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidGraph = errors.New("invalid graph")
	ErrUnresolvable = errors.New("graph is not complete")
	ErrCycle        = errors.New("cycle detected")
)

// Error wraps a deterministic graph construction failure.
type Error struct {
	Kind error
	Msg  string

	// Path is the cycle witness for ErrCycle, first key repeated at the end.
	Path []string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &Error{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

func unresolvable[K comparable](from, to K) error {
	return &Error{
		Kind: ErrUnresolvable,
		Msg:  fmt.Sprintf("%v depends on unknown %v", from, to),
	}
}

func cycleError[K comparable](path []K) error {
	names := make([]string, len(path))
	for i, k := range path {
		names[i] = fmt.Sprint(k)
	}
	return &Error{
		Kind: ErrCycle,
		Msg:  strings.Join(names, " -> "),
		Path: names,
	}
}
