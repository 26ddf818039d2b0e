// Package apperr defines the failure taxonomy shared by the session manager,
// the API client and the command layer.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a failure by how the caller is expected to react to it.
type Kind string

const (
	// KindInvalidCredentials: login rejected, user-correctable.
	KindInvalidCredentials Kind = "invalid_credentials"
	// KindSessionExpired: refresh impossible or rejected, re-login required.
	KindSessionExpired Kind = "session_expired"
	// KindNetwork: transport failure. The session is left untouched.
	KindNetwork Kind = "network_error"
	// KindForbidden: the profile lacks a permission required locally.
	KindForbidden Kind = "forbidden"
	// KindValidation: field errors reported by the backend, or a payload the
	// client refuses to build.
	KindValidation Kind = "validation_error"
)

// Sentinels for errors.Is. Any *Error with the same Kind matches.
var (
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrSessionExpired     = &Error{Kind: KindSessionExpired}
	ErrNetwork            = &Error{Kind: KindNetwork}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrValidation         = &Error{Kind: KindValidation}
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string

	// Fields holds per-field messages for validation errors.
	Fields map[string][]string

	// Permission names the missing capability for forbidden errors.
	Permission string

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "; %s: %s", k, strings.Join(e.Fields[k], ", "))
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels compare by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation returns a validation error carrying field messages.
func Validation(message string, fields map[string][]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// Forbidden returns a local authorization failure naming the permission.
func Forbidden(permission string) *Error {
	return &Error{
		Kind:       KindForbidden,
		Message:    fmt.Sprintf("missing permission %q", permission),
		Permission: permission,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
