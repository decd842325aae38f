package linesort

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why an invocation failed. The response status collapses
// several kinds into 500, but the kind itself is kept for logs and metrics.
type Kind int

const (
	KindUnknown Kind = iota
	// KindBadRequest: the payload matched neither input shape.
	KindBadRequest
	// KindMalformedNotification: a Records payload without a usable first record.
	KindMalformedNotification
	// KindInvalidLocation: the source key is outside the source prefix.
	KindInvalidLocation
	// KindFetch: the source object could not be read.
	KindFetch
	// KindDecode: the source object is not valid UTF-8 text.
	KindDecode
	// KindWrite: the sorted object could not be stored.
	KindWrite
)

var kindNames = map[Kind]string{
	KindUnknown:               "Unknown",
	KindBadRequest:            "BadRequest",
	KindMalformedNotification: "MalformedNotification",
	KindInvalidLocation:       "InvalidLocation",
	KindFetch:                 "FetchError",
	KindDecode:                "DecodeError",
	KindWrite:                 "WriteError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// StatusCode maps a kind to the response status. Request-shape problems are
// detected before any source key is known and report 400.
func (k Kind) StatusCode() int {
	switch k {
	case KindBadRequest, KindMalformedNotification:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrObjectNotFound is returned by Store implementations when the requested
// object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Error is a classified invocation failure. Key is the source key being
// processed and is empty for request-shape failures.
type Error struct {
	Kind Kind
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, key string, err error) *Error {
	return &Error{Kind: kind, Key: key, Err: err}
}
