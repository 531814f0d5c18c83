package result

import (
	"encoding/json"
	"errors"
)

var errUnknown = errors.New("operation failed")

// Result carries either a value or an error, never both.
type Result[T any] struct {
	ok   bool
	data T
	err  error
}

// Success wraps a value.
func Success[T any](data T) Result[T] {
	return Result[T]{ok: true, data: data}
}

// Fail wraps an error. A nil error is replaced so the failure still carries one.
func Fail[T any](err error) Result[T] {
	if err == nil {
		err = errUnknown
	}
	return Result[T]{err: err}
}

// Cast re-types a failure so it can be returned from a function with a different value type.
// It panics when called on a success.
func Cast[U, T any](r Result[T]) Result[U] {
	if r.ok {
		panic("result: Cast on success")
	}
	return Fail[U](r.Err())
}

func (r Result[T]) IsSuccess() bool { return r.ok }

func (r Result[T]) IsFailure() bool { return !r.ok }

// Data returns the wrapped value, or the zero value for a failure.
func (r Result[T]) Data() T { return r.data }

// Err returns the wrapped error, or nil for a success. The zero Result is a
// failure and reports a generic error.
func (r Result[T]) Err() error {
	if !r.ok && r.err == nil {
		return errUnknown
	}
	return r.err
}

func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.ok {
		return json.Marshal(struct {
			Success bool `json:"success"`
			Data    T    `json:"data"`
		}{true, r.data})
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}{false, r.Err().Error()})
}
