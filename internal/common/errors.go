package common

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// ErrorKind buckets provider failures for the retry policy and the attempt
// log. Configuration, size-limit, provider-processing and parse errors are
// terminal; transient errors are retried.
type ErrorKind string

const (
	KindConfiguration      ErrorKind = "configuration"
	KindSizeLimit          ErrorKind = "size_limit"
	KindTransient          ErrorKind = "transient"
	KindProviderProcessing ErrorKind = "provider_processing"
	KindParse              ErrorKind = "parse"
)

// ExtractionError is the single error shape used across provider-facing
// code. Panics are reserved for programmer errors only.
type ExtractionError struct {
	Kind     ErrorKind
	Provider string
	Message  string
	Cause    error
}

func (e *ExtractionError) Error() string {
	msg := e.Message
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// NewError builds a classified ExtractionError.
func NewError(kind ErrorKind, provider, message string, cause error) *ExtractionError {
	return &ExtractionError{Kind: kind, Provider: provider, Message: message, Cause: cause}
}

// KindOf returns the classification of err, defaulting to
// provider_processing for unclassified errors, and transient for plain
// network-shaped failures.
func KindOf(err error) ErrorKind {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	if isNetworkTransient(err) {
		return KindTransient
	}
	return KindProviderProcessing
}

// Retryable reports whether the retry policy should attempt err again.
func Retryable(err error) bool {
	return KindOf(err) == KindTransient
}

// FromStatus maps an HTTP status code to a classified error. 429 and 5xx
// are transient; 401/403 are configuration errors; every other 4xx is a
// terminal provider-processing error.
func FromStatus(provider string, status int, body string) error {
	body = strings.TrimSpace(body)
	if len(body) > 512 {
		body = body[:512]
	}
	msg := fmt.Sprintf("status %d: %s", status, body)
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return NewError(KindTransient, provider, msg, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(KindConfiguration, provider, msg, nil)
	default:
		return NewError(KindProviderProcessing, provider, msg, nil)
	}
}

func isNetworkTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED)
}
