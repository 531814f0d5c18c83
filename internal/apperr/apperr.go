// Package apperr defines the failure kinds surfaced by the Telegram and LinkedIn clients.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch without parsing messages.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindInvalidInput means the caller supplied something unusable (empty code, bad chat ID).
	KindInvalidInput
	// KindNetwork means the provider could not be reached or the transport failed.
	KindNetwork
	// KindProvider means the provider answered with an error.
	KindProvider
	// KindInvalidCode means an OAuth authorization code was rejected.
	KindInvalidCode
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNetwork:
		return "network_error"
	case KindProvider:
		return "provider_error"
	case KindInvalidCode:
		return "invalid_code"
	default:
		return "unknown"
	}
}

// Error is the concrete error carried by failed results.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "telegram.sendMessage".
	Op string
	// Code is the provider status or error code, zero when not applicable.
	Code int
	// Details holds the provider's structured error body when there is one.
	Details any
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindNetwork}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

func InvalidInput(op, msg string) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Msg: msg}
}

func Network(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

func Provider(op string, code int, msg string, details any) *Error {
	return &Error{Kind: KindProvider, Op: op, Code: code, Msg: msg, Details: details}
}

func InvalidCode(op, msg string, details any) *Error {
	return &Error{Kind: KindInvalidCode, Op: op, Msg: msg, Details: details}
}

// KindOf reports the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// DetailsOf returns the provider body attached to err, if any.
func DetailsOf(err error) any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
