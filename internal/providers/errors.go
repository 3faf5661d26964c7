package providers

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// Transport covers dns failures, timeouts, resets and truncated bodies.
	Transport Kind = iota
	// API is a non-success status or a remote-reported failure.
	API
	// Decode is malformed json or an unexpected shape.
	Decode
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case API:
		return "api"
	case Decode:
		return "decode"
	default:
		return "unknown"
	}
}

type Error struct {
	Provider string
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func transportError(provider string, err error) error {
	return &Error{Provider: provider, Kind: Transport, Err: err}
}

func apiError(provider string, format string, args ...any) error {
	return &Error{Provider: provider, Kind: API, Err: fmt.Errorf(format, args...)}
}

func decodeError(provider string, err error) error {
	return &Error{Provider: provider, Kind: Decode, Err: err}
}

// IsTransient reports whether the chain should move on to the next
// provider instead of surfacing err.
func IsTransient(err error) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind == Transport
	}
	return false
}

func KindOf(err error) (Kind, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind, true
	}
	return 0, false
}
