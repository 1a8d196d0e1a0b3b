package tts

import (
	"errors"
	"fmt"
)

// Provider error codes surfaced in error payloads.
const (
	CodeInvalidVoice   = 2001
	CodeInvalidModel   = 2002
	CodeQuotaExhausted = 3001
	CodeRateLimited    = 4290
)

// Error is a synthesis provider error.
type Error struct {
	// Code is the provider's error code.
	Code int `json:"code"`

	// Msg is the provider's error message.
	Msg string `json:"message"`

	// HTTPStatus is the HTTP status of the response.
	HTTPStatus int `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("tts: %s (code=%d, http=%d)", e.Msg, e.Code, e.HTTPStatus)
}

// IsInvalidVoice reports an unknown or revoked voice id.
func (e *Error) IsInvalidVoice() bool {
	return e.Code == CodeInvalidVoice || e.Code == CodeInvalidModel
}

// IsQuotaExhausted reports an exhausted synthesis quota.
func (e *Error) IsQuotaExhausted() bool {
	return e.Code == CodeQuotaExhausted || e.HTTPStatus == 402
}

// IsRateLimited reports provider-side throttling.
func (e *Error) IsRateLimited() bool {
	return e.Code == CodeRateLimited || e.HTTPStatus == 429
}

// IsServerError reports a provider-side failure.
func (e *Error) IsServerError() bool {
	return e.HTTPStatus >= 500
}

// Retryable reports whether the request may be retried. Invalid voices and
// exhausted quotas are permanent; throttling and server failures are
// transient.
func (e *Error) Retryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// AsError extracts *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Permanent reports whether err is a synthesis failure that retrying cannot
// fix. Network-level errors count as transient.
func Permanent(err error) bool {
	if e, ok := AsError(err); ok {
		return !e.Retryable()
	}
	return false
}
