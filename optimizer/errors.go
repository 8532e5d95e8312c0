package optimizer

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/formflow/formflow/llm"
	"github.com/formflow/formflow/types"
)

// Kind classifies pipeline failures.
type Kind string

const (
	KindValidation          Kind = "ValidationError"
	KindProviderUnavailable Kind = "ProviderUnavailable"
	KindEmptyReply          Kind = "EmptyReply"
	KindMalformedReply      Kind = "MalformedReply"
)

// Side tells which party produced a validation defect.
type Side string

const (
	SideRequest Side = "request"
	SideReply   Side = "reply"
)

// FieldError is one field-level validation problem. Path uses JSON-ish
// notation, e.g. "responses[2].q1".
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	if f.Path == "" {
		return f.Message
	}
	return f.Path + ": " + f.Message
}

// Error is the single error type returned by the pipeline.
type Error struct {
	Kind     Kind
	Side     Side // set for KindValidation only
	Message  string
	Fields   []FieldError
	Provider string
	Cause    error
}

// Sentinels for errors.Is. A validation sentinel matches either side.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrProviderUnavailable = &Error{Kind: KindProviderUnavailable}
	ErrEmptyReply          = &Error{Kind: KindEmptyReply}
	ErrMalformedReply      = &Error{Kind: KindMalformedReply}
)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Side != "" {
		b.WriteString(" (" + string(e.Side) + ")")
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if len(e.Fields) > 0 {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.String()
		}
		b.WriteString(" [" + strings.Join(parts, "; ") + "]")
	}
	if e.Cause != nil {
		b.WriteString(": " + e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches sentinels by kind, and by side when the target names one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Side == "" || t.Side == e.Side
}

// Retryable reports whether a caller may retry. Validation errors are final,
// and so is a provider failure whose llm.Error says it will not recover
// (bad credentials, exhausted quota).
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindValidation:
		return false
	case KindProviderUnavailable:
		if le, ok := llm.AsError(e.Cause); ok {
			return le.Retryable
		}
	}
	return true
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRequestSide reports whether err is a validation error about the caller's input.
func IsRequestSide(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindValidation && e.Side == SideRequest
}

// IsReplySide reports whether err is a validation error about the provider's reply.
func IsReplySide(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindValidation && e.Side == SideReply
}

func requestInvalid(fields []FieldError) *Error {
	return &Error{Kind: KindValidation, Side: SideRequest, Message: "request does not match schema", Fields: fields}
}

func replyInvalid(msg string, fields []FieldError) *Error {
	return &Error{Kind: KindValidation, Side: SideReply, Message: msg, Fields: fields}
}

func providerUnavailable(provider string, cause error) *Error {
	return &Error{Kind: KindProviderUnavailable, Message: "provider call failed", Provider: provider, Cause: cause}
}

func emptyReply(provider string) *Error {
	return &Error{Kind: KindEmptyReply, Message: "provider returned no output", Provider: provider}
}

func malformedReply(provider string, cause error) *Error {
	return &Error{Kind: KindMalformedReply, Message: "provider output is not a JSON object", Provider: provider, Cause: cause}
}

// ToTypesError converts a pipeline error into the service-wide error model used
// by the HTTP layer. Unknown errors become INTERNAL_ERROR.
func ToTypesError(err error) *types.Error {
	if err == nil {
		return nil
	}
	e, ok := AsError(err)
	if !ok {
		if te, ok := types.AsError(err); ok {
			return te
		}
		return types.NewError(types.ErrInternalError, "internal error").
			WithCause(err).
			WithHTTPStatus(http.StatusInternalServerError)
	}

	var out *types.Error
	switch e.Kind {
	case KindValidation:
		if e.Side == SideReply {
			out = types.NewError(types.ErrInvalidReply, e.Message).WithHTTPStatus(http.StatusBadGateway)
		} else {
			out = types.NewError(types.ErrInvalidRequest, e.Message).WithHTTPStatus(http.StatusBadRequest)
		}
		out.WithSide(string(e.Side))
	case KindProviderUnavailable:
		out = types.NewError(types.ErrProviderUnavailable, e.Message).WithHTTPStatus(http.StatusServiceUnavailable)
	case KindEmptyReply:
		out = types.NewError(types.ErrEmptyReply, e.Message).WithHTTPStatus(http.StatusBadGateway)
	case KindMalformedReply:
		out = types.NewError(types.ErrMalformedReply, e.Message).WithHTTPStatus(http.StatusBadGateway)
	default:
		out = types.NewError(types.ErrInternalError, fmt.Sprintf("unknown error kind %q", e.Kind)).
			WithHTTPStatus(http.StatusInternalServerError)
	}
	return out.WithRetryable(e.Retryable()).WithProvider(e.Provider).WithCause(e.Cause)
}

var (
	errNoProvider = errors.New("no provider configured")
	errNullReply  = errors.New("reply is JSON null")
)
