package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a remote procedure failure for user-visible treatment.
type Kind string

const (
	// KindValidation means the payload was rejected before any write happened.
	KindValidation Kind = "validation"

	// KindConflict means a remote-side business rule rejected the write
	// (e.g. budget exceeded).
	KindConflict Kind = "conflict"

	// KindTransient means a network or server failure; the write may or may
	// not have happened and the user must resubmit.
	KindTransient Kind = "transient"
)

// FallbackMessage is shown when the remote provides no usable message.
const FallbackMessage = "The request could not be completed. Please try again."

// Error is a classified remote procedure failure.
type Error struct {
	Kind       Kind
	Resource   string
	Operation  string
	StatusCode int
	Message    string
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote call %s/%s failed (%s, HTTP %d): %s",
			e.Resource, e.Operation, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote call %s/%s failed (%s): %s",
		e.Resource, e.Operation, e.Kind, e.Message)
}

// UserMessage returns the server-provided message, or the generic fallback
// when the server gave none.
func (e *Error) UserMessage() string {
	if e.Message == "" {
		return FallbackMessage
	}
	return e.Message
}

// KindOf returns the failure kind for err, defaulting to transient for
// errors that did not come from the remote layer.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindTransient
}

// UserMessageOf returns the user-visible message for err.
func UserMessageOf(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.UserMessage()
	}
	return FallbackMessage
}

// IsValidation reports whether err is a payload rejection.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsConflict reports whether err is a business-rule rejection.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// IsTransient reports whether err is a network or server failure.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// classifyStatus maps an HTTP status code to a failure kind.
func classifyStatus(code int) Kind {
	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusConflict:
		return KindConflict
	default:
		return KindTransient
	}
}

// classifyEnvelopeKind maps the optional "kind" field of an ok:false envelope
// to a failure kind. Business rejections delivered over HTTP 200 default to
// validation.
func classifyEnvelopeKind(kind string) Kind {
	switch Kind(kind) {
	case KindConflict:
		return KindConflict
	case KindTransient:
		return KindTransient
	default:
		return KindValidation
	}
}
