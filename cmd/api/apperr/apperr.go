package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation covers missing fields, oversized images and malformed bodies.
	KindValidation
	KindNotFound
	// KindPersistence is a failed write to the post store.
	KindPersistence
	// KindUpstream is a rejection or transport failure from the remote file store.
	KindUpstream
	// KindConfig means the deployment cannot serve the request as configured.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence"
	case KindUpstream:
		return "upstream"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error carries a client-facing Message and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) error { return &Error{Kind: KindValidation, Message: msg} }

func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(msg string) error { return &Error{Kind: KindNotFound, Message: msg} }

func Persistence(msg string, err error) error {
	return &Error{Kind: KindPersistence, Message: msg, Err: err}
}

func Upstream(msg string, err error) error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

func Config(msg string) error { return &Error{Kind: KindConfig, Message: msg} }

// Wrap attaches kind and msg to err. A nil err stays nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the client-facing text for err, or fallback for foreign errors.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

func Is(err error, kind Kind) bool { return KindOf(err) == kind }

// Status maps err to an HTTP status. upstreamStatus is used for Upstream and Config
// errors because post writes report them as 400 while uploads report 500.
func Status(err error, upstreamStatus int) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream, KindConfig:
		return upstreamStatus
	default:
		return http.StatusInternalServerError
	}
}
