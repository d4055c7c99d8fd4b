package util

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// PanicError carries a recovered panic value and the stack at recovery.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsPanic reports whether err came from a recovered panic.
func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}

// Guard runs fn and turns a panic into a *PanicError so a single bad item
// cannot take down the caller's loop.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

// GuardValue is Guard for functions that also produce a value. On panic the
// zero value is returned.
func GuardValue[R any](fn func() (R, error)) (res R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			res = zero
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
