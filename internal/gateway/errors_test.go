package gateway

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyByStatus(t *testing.T) {
	cases := []struct {
		status int
		want   Kind
	}{
		{401, KindForbidden},
		{403, KindForbidden},
		{429, KindRateLimited},
		{408, KindTransient},
		{500, KindTransient},
		{503, KindTransient},
		{400, KindBadRequest},
		{404, KindFatal},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Classify(tc.status, "").Kind, "status %d", tc.status)
	}
}

func TestClassifyByMessage(t *testing.T) {
	cases := []struct {
		message string
		want    Kind
	}{
		{"invalid_grant: token revoked", KindForbidden},
		{"PERMISSION_DENIED on resource", KindForbidden},
		{"RESOURCE_EXHAUSTED: quota exceeded", KindRateLimited},
		{"rate limit reached", KindRateLimited},
		{"socket hang up", KindTransient},
		{"request timeout after 120s", KindTransient},
		{"empty response stream", KindTransient},
		{"connection reset by peer", KindTransient},
		{"something else entirely", KindFatal},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Classify(0, tc.message).Kind, "message %q", tc.message)
	}
}

func TestClassifyForbiddenWinsOverRateLimit(t *testing.T) {
	// A 429 body mentioning permission issues is still a credential problem.
	got := Classify(429, "permission_denied for consumer")
	require.Equal(t, KindForbidden, got.Kind)
}

func TestRetryable(t *testing.T) {
	require.True(t, (&Error{Kind: KindTransient}).Retryable())
	require.True(t, (&Error{Kind: KindRateLimited}).Retryable())
	require.True(t, (&Error{Kind: KindForbidden}).Retryable())
	require.True(t, ErrEmptyResponseStream.Retryable())
	require.False(t, (&Error{Kind: KindBadRequest}).Retryable())
	require.False(t, (&Error{Kind: KindFatal}).Retryable())
}

func TestIsProjectContext(t *testing.T) {
	require.True(t, IsProjectContext("error #3501: unable to obtain project"))
	require.True(t, IsProjectContext("Your Google Cloud Project is missing a Code Assist license"))
	require.True(t, IsProjectContext("Resource projects/foo-bar could not be found"))
	require.True(t, IsProjectContext("project my-proj not found"))
	require.False(t, IsProjectContext("rate limit exceeded"))
}

func TestIsQuotaExhausted(t *testing.T) {
	require.True(t, IsQuotaExhausted("Resource has been exhausted (e.g. check quota)"))
	require.True(t, IsQuotaExhausted("RESOURCE_EXHAUSTED"))
	require.False(t, IsQuotaExhausted("permission denied"))
}

func TestHTTPStatusForError(t *testing.T) {
	cases := []struct {
		message string
		want    int
	}{
		{"all accounts failed", http.StatusServiceUnavailable},
		{"no available accounts", http.StatusTooManyRequests},
		{"socket hang up", http.StatusServiceUnavailable},
		{"401 unauthorized", http.StatusUnauthorized},
		{"got 403 forbidden from upstream", http.StatusForbidden},
		{"rate limit exceeded", http.StatusTooManyRequests},
		{"502 bad gateway", http.StatusBadGateway},
		{"request timeout", http.StatusGatewayTimeout},
		{"unexpected failure", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, HTTPStatusForError(errors.New(tc.message)), "message %q", tc.message)
	}
	require.Equal(t, http.StatusOK, HTTPStatusForError(nil))
	require.Equal(t, http.StatusBadRequest, HTTPStatusForError(&Error{Kind: KindBadRequest, Message: "bad payload"}))
}
