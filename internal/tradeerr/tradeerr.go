// Package tradeerr classifies failures so the tick boundary can decide
// whether to retry on the next interval or stop.
package tradeerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindTransientIO   Kind = "transient_io"
	KindConfiguration Kind = "configuration"
	KindInvariant     Kind = "invariant_violation"
)

var (
	ErrTransientIO   = errors.New("transient io failure")
	ErrConfiguration = errors.New("configuration error")
	ErrInvariant     = errors.New("invariant violation")
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransientIO:
		return e.Kind == KindTransientIO
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrInvariant:
		return e.Kind == KindInvariant
	}
	return false
}

func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindTransientIO, Op: op, Err: err}
}

func Configf(format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Op: "config", Err: fmt.Errorf(format, args...)}
}

func Invariantf(op, format string, args ...any) error {
	return &Error{Kind: KindInvariant, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
