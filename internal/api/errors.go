package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Prefixes the backend puts on error strings. A user error is safe to show
// verbatim; an internal error is logged and replaced by a generic message.
const (
	UserErrorPrefix     = "UERROR: "
	InternalErrorPrefix = "ERROR: "
)

// Kind classifies a failed call.
type Kind int

const (
	// KindInternal is a backend failure whose text must not reach the user.
	KindInternal Kind = iota
	// KindUser is a backend failure whose message is written for the user.
	KindUser
	// KindNetwork is a transport failure: no usable response was received.
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindNetwork:
		return "network"
	default:
		return "internal"
	}
}

// Error is the single error shape produced at the HTTP boundary.
// Callers switch on Kind instead of inspecting response bodies.
type Error struct {
	Kind    Kind
	Status  int
	Message string // display text, prefix stripped
	Detail  string // raw backend text or transport error
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// errorEnvelope matches the {error} / {detail} fields the backend uses.
type errorEnvelope struct {
	Error  json.RawMessage `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

// backendText extracts the error text from a response body. It prefers
// "error" over "detail"; non-string details (validation lists) are kept as JSON.
func backendText(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return strings.TrimSpace(string(body))
	}
	for _, raw := range []json.RawMessage{env.Error, env.Detail} {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		return string(raw)
	}
	return ""
}

// classify turns backend error text into a typed Error.
func classify(status int, text string) *Error {
	e := &Error{Kind: KindInternal, Status: status, Detail: text}
	switch {
	case strings.HasPrefix(text, UserErrorPrefix):
		e.Kind = KindUser
		e.Message = strings.TrimPrefix(text, UserErrorPrefix)
	case strings.HasPrefix(text, InternalErrorPrefix):
		e.Message = strings.TrimPrefix(text, InternalErrorPrefix)
	default:
		e.Message = text
	}
	if e.Message == "" && status > 0 {
		e.Message = http.StatusText(status)
	}
	return e
}

func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Detail: err.Error(), Message: "network unavailable", Err: err}
}

// KindOf reports the Kind of err. Errors that did not come from the client
// count as internal.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}

// UserMessage returns the message that may be shown to the user verbatim.
// ok is false for anything that is not a user error.
func UserMessage(err error) (msg string, ok bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind == KindUser {
		return apiErr.Message, true
	}
	return "", false
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsConflict reports whether err is an HTTP 409 (e.g. "already saved").
func IsConflict(err error) bool {
	return StatusOf(err) == http.StatusConflict
}
