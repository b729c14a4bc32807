package rasa

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a failed call to the Rasa server.
type ErrorKind int

const (
	// KindUnknown is returned by KindOf for errors that did not come from the client.
	KindUnknown ErrorKind = iota
	// KindTimeout means the call did not complete within its deadline.
	KindTimeout
	// KindUnreachable means the server could not be reached.
	KindUnreachable
	// KindStatus means the server answered with a non-200 status.
	KindStatus
	// KindDecode means the server answered 200 with a body that is not valid JSON.
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindUnreachable:
		return "unreachable"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is returned by every failed Client call.
type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindStatus:
		return fmt.Sprintf("rasa: %s: unexpected status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("rasa: %s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("rasa: %s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

// transportError classifies a failure of http.Client.Do.
func transportError(op string, err error) *Error {
	kind := KindUnreachable

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}

	return &Error{Kind: kind, Op: op, Err: err}
}
