package common

import (
	"fmt"
)

// ErrPathNotFound is returned when a path step is missing or cannot be
// followed (for example an index into a scalar).
type ErrPathNotFound struct {
	Path   string
	Reason string
}

func (e ErrPathNotFound) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("path not found: %q", e.Path)
	}
	return fmt.Sprintf("path not found: %q: %s", e.Path, e.Reason)
}

// ErrNotAContainer is returned when the addressed node has no "children" array.
type ErrNotAContainer struct {
	Path string
}

func (e ErrNotAContainer) Error() string {
	return fmt.Sprintf("not a container: %q", e.Path)
}

// ErrIndexOutOfRange is returned when a row index falls outside the children array.
type ErrIndexOutOfRange struct {
	Path  string
	Row   int
	Count int
	Len   int
}

func (e ErrIndexOutOfRange) Error() string {
	return fmt.Sprintf("index out of range: rows [%d,%d) of %q with %d children", e.Row, e.Row+e.Count, e.Path, e.Len)
}

// ErrKeyNotFound is returned when a named field is absent from an object.
type ErrKeyNotFound struct {
	Path string
	Key  string
}

func (e ErrKeyNotFound) Error() string {
	return fmt.Sprintf("key not found: %q in %q", e.Key, e.Path)
}

// ErrMalformedEvent is returned when an event lacks fields required by its type.
type ErrMalformedEvent struct {
	Type    string
	Message string
}

func (e ErrMalformedEvent) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("malformed event: %s", e.Message)
	}
	return fmt.Sprintf("malformed %s event: %s", e.Type, e.Message)
}

// ErrDeserialization is returned when a supplied document fails to parse.
type ErrDeserialization struct {
	Cause error
}

func (e ErrDeserialization) Error() string {
	return fmt.Sprintf("deserialization failed: %v", e.Cause)
}

func (e ErrDeserialization) Unwrap() error {
	return e.Cause
}

// ErrInvalidArgument is returned when operation arguments contradict each other.
type ErrInvalidArgument struct {
	Message string
}

func (e ErrInvalidArgument) Error() string {
	return fmt.Sprintf("invalid argument: %s", e.Message)
}
