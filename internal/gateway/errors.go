// Package gateway orchestrates requests against the upstream: account
// selection, retry classification, protocol fallbacks and streaming.
package gateway

import (
	"net/http"
	"strings"
)

// Kind classifies an upstream failure for the retry loop. Message-substring
// matching happens only in Classify; everything downstream switches on Kind.
type Kind int

const (
	// KindFatal is anything not recoverable by another attempt.
	KindFatal Kind = iota
	// KindTransient covers network errors, 5xx and 408; retry without
	// marking the account.
	KindTransient
	// KindRateLimited covers 429/quota; retry and put the account on the
	// short cooldown.
	KindRateLimited
	// KindForbidden covers 401/403/invalid_grant; retry and put the
	// account on the long cooldown.
	KindForbidden
	// KindBadRequest is malformed client input; never retried.
	KindBadRequest
	// KindEmptyStream flags a stream that ended without content, so the
	// unary/stream fallbacks can trigger.
	KindEmptyStream
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindForbidden:
		return "forbidden"
	case KindBadRequest:
		return "bad_request"
	case KindEmptyStream:
		return "empty_stream"
	default:
		return "fatal"
	}
}

// Error is the gateway's error value. It carries only the classification
// and a message copied out of the upstream failure, never the failure's
// request or socket objects.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// Retryable reports whether another attempt on a different account can
// recover this error.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTransient, KindRateLimited, KindForbidden, KindEmptyStream:
		return true
	default:
		return false
	}
}

// ErrEmptyResponseStream is raised when a stream completes without a single
// content part.
var ErrEmptyResponseStream = &Error{Kind: KindEmptyStream, Message: "empty response stream"}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Classify maps an upstream status code and message onto the taxonomy.
// Upstream messages are the ground truth, so substrings are consulted in
// addition to the status code.
func Classify(status int, message string) *Error {
	msg := strings.ToLower(message)

	switch {
	case status == 401 || status == 403 ||
		containsAny(msg, "unauthorized", "invalid_grant", "permission_denied", "forbidden"):
		return &Error{Kind: KindForbidden, StatusCode: status, Message: message}
	case status == 429 ||
		containsAny(msg, "resource_exhausted", "quota", "rate_limit", "rate limit"):
		return &Error{Kind: KindRateLimited, StatusCode: status, Message: message}
	case status == 408 || status >= 500 ||
		containsAny(msg, "socket hang up", "timeout", "empty response stream", "connection reset"):
		return &Error{Kind: KindTransient, StatusCode: status, Message: message}
	case status == 400:
		return &Error{Kind: KindBadRequest, StatusCode: status, Message: message}
	default:
		return &Error{Kind: KindFatal, StatusCode: status, Message: message}
	}
}

// ClassifyErr classifies a transport-level error (no HTTP response).
func ClassifyErr(err error) *Error {
	if err == nil {
		return nil
	}
	if ge, ok := err.(*Error); ok {
		return ge
	}
	return Classify(0, err.Error())
}

// IsProjectContext reports whether the upstream complained about the
// request's project context (licensing / unknown project). Such errors get
// one inline retry on the same account with an empty project id.
func IsProjectContext(message string) bool {
	msg := strings.ToLower(message)
	if strings.Contains(msg, "#3501") {
		return true
	}
	if strings.Contains(msg, "google cloud project") && strings.Contains(msg, "code assist license") {
		return true
	}
	if strings.Contains(msg, "resource projects/") && strings.Contains(msg, "could not be found") {
		return true
	}
	return strings.Contains(msg, "project") && strings.Contains(msg, "not found")
}

// IsQuotaExhausted reports whether the upstream signaled exhausted quota,
// triggering the Anthropic-surface model downgrade.
func IsQuotaExhausted(message string) bool {
	msg := strings.ToLower(message)
	return containsAny(msg, "resource has been exhausted", "resource_exhausted", "quota")
}

// HTTPStatusForError maps an error message onto the public HTTP status per
// the frontend table. Substring checks are case-insensitive.
func HTTPStatusForError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "all accounts failed", "unhealthy"):
		return http.StatusServiceUnavailable
	case containsAny(msg, "exhausted", "no available accounts"):
		return http.StatusTooManyRequests
	case containsAny(msg, "socket hang up", "econnreset", "eai_again", "secure tls connection", "network socket disconnected"):
		return http.StatusServiceUnavailable
	case containsAny(msg, "401", "unauthorized"):
		return http.StatusUnauthorized
	case containsAny(msg, "403", "forbidden"):
		return http.StatusForbidden
	case containsAny(msg, "429", "rate limit", "quota"):
		return http.StatusTooManyRequests
	case containsAny(msg, "503", "service unavailable"):
		return http.StatusServiceUnavailable
	case containsAny(msg, "502", "bad gateway"):
		return http.StatusBadGateway
	case containsAny(msg, "504", "timeout"):
		return http.StatusGatewayTimeout
	default:
		if ge, ok := err.(*Error); ok && ge.Kind == KindBadRequest {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}
