package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidJSON reports a document that is not syntactically valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON")

	// ErrObjectNotFound is returned by object stores when removing or reading
	// a path that holds no object.
	ErrObjectNotFound = errors.New("object not found")

	// ErrObjectExists is returned by object stores when a non-upsert upload
	// targets a path that is already occupied.
	ErrObjectExists = errors.New("object already exists")

	// ErrRunInProgress is returned when a run is triggered while another one
	// holds the run lock.
	ErrRunInProgress = errors.New("forecast run already in progress")
)

// FetchErrorKind classifies why the upstream feed could not be retrieved.
type FetchErrorKind string

const (
	FetchNetwork FetchErrorKind = "network" // connection, timeout, body read
	FetchStatus  FetchErrorKind = "status"  // non-2xx HTTP response
	FetchDecode  FetchErrorKind = "decode"  // body is not valid JSON
)

// FetchError reports a failure to retrieve the upstream forecast document.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int // set for FetchStatus
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchStatus:
		return fmt.Sprintf("fetch %s: status %d after %d attempt(s): %v", e.URL, e.StatusCode, e.Attempts, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s error after %d attempt(s): %v", e.URL, e.Kind, e.Attempts, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedInputError reports a forecast document that parsed as JSON but does
// not have the expected shape. Path names the offending element, e.g.
// "coordinates" or "coordinates[12]".
type MalformedInputError struct {
	Path   string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed forecast document: %s: %s", e.Path, e.Reason)
}

func malformed(path, format string, args ...any) *MalformedInputError {
	return &MalformedInputError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// PublishError reports an object-store write failure.
type PublishError struct {
	Path string
	Op   string
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
