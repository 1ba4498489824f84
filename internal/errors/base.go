package errors

import (
	"errors"
	"fmt"
)

var (
	_ error = (*wrappedError)(nil)
)

// New, Is, As and Join forward to the standard library so callers only
// import this package.
func New(text string) error {
	return errors.New(text)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Wrap annotates err with text. It returns nil when err is nil.
func Wrap(err error, text string) error {
	if err == nil {
		return nil
	}

	if len(text) == 0 {
		return err
	}

	return &wrappedError{
		err: err,
		msg: text,
	}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return Wrap(err, fmt.Sprintf(format, args...))
}

// Mark attaches kind to err so errors.Is(result, kind) holds while the
// original cause stays reachable.
func Mark(err, kind error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, kind) {
		return err
	}

	return &markedError{err: err, kind: kind}
}

type wrappedError struct {
	err error
	msg string
}

const sep = ", err: "

func (err wrappedError) Error() string {
	if err.err == nil {
		return err.msg
	}

	return err.msg + sep + err.err.Error()
}

func (err wrappedError) Unwrap() error {
	if err.err == nil {
		return errors.New(err.msg)
	}

	return err.err
}

type markedError struct {
	err  error
	kind error
}

func (err markedError) Error() string {
	return err.kind.Error() + sep + err.err.Error()
}

func (err markedError) Unwrap() []error {
	return []error{err.kind, err.err}
}
