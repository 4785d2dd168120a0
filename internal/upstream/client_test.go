package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/poemonsense/antigravity-gateway/internal/config"
	"github.com/poemonsense/antigravity-gateway/pkg/gemini"
)

func payload(model string) *gemini.InternalRequest {
	return &gemini.InternalRequest{
		RequestID:   "req-1",
		Model:       model,
		UserAgent:   config.DefaultUserAgent,
		RequestType: "generate-content",
		Request: &gemini.Request{
			Contents: []gemini.Content{{Role: "user", Parts: []gemini.Part{{Text: "hi"}}}},
		},
	}
}

func TestGenerateUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.Equal(t, config.DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Write([]byte(`{"response":{"candidates":[{"content":{"parts":[{"text":"hey"}]}}]}}`))
	}))
	defer srv.Close()

	c := New(Options{Endpoints: []string{srv.URL + "/v1internal"}})
	resp, err := c.Generate(context.Background(), "tok", payload("gemini-3-flash"))
	require.NoError(t, err)
	require.Equal(t, "hey", resp.FirstCandidateParts()[0].Text)
}

func TestGenerateFailsOverOn500(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer good.Close()

	c := New(Options{Endpoints: []string{bad.URL + "/v1internal", good.URL + "/v1internal"}})
	resp, err := c.Generate(context.Background(), "tok", payload("gemini-3-flash"))
	require.NoError(t, err)
	require.Equal(t, "ok", resp.FirstCandidateParts()[0].Text)
}

func TestGenerateNoFailoverOn401(t *testing.T) {
	calls := 0
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":401,"message":"invalid authentication credentials"}}`))
	}))
	defer first.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("second endpoint must not be tried on 401")
	}))
	defer second.Close()

	c := New(Options{Endpoints: []string{first.URL + "/v1internal", second.URL + "/v1internal"}})
	_, err := c.Generate(context.Background(), "tok", payload("gemini-3-flash"))
	require.Error(t, err)
	require.Equal(t, 1, calls)

	statusErr, ok := err.(*StatusError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, statusErr.Status)
	// The upstream's own message wins over the raw body.
	require.Equal(t, "invalid authentication credentials", statusErr.Message)
}

func TestClaudeModelsCarryBetaHeader(t *testing.T) {
	var beta string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		beta = r.Header.Get("anthropic-beta")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(Options{Endpoints: []string{srv.URL + "/v1internal"}})
	_, err := c.Generate(context.Background(), "tok", payload("claude-sonnet-4-5"))
	require.NoError(t, err)
	require.Equal(t, config.AnthropicBetaHeader, beta)

	_, err = c.Generate(context.Background(), "tok", payload("gemini-3-flash"))
	require.NoError(t, err)
	require.Empty(t, beta)
}

func TestStreamGenerateReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, ":streamGenerateContent")
		require.Equal(t, "alt=sse", r.URL.RawQuery)
		w.Write([]byte("data: {}\n\n"))
	}))
	defer srv.Close()

	c := New(Options{Endpoints: []string{srv.URL + "/v1internal"}})
	body, err := c.StreamGenerate(context.Background(), "tok", payload("gemini-3-flash"))
	require.NoError(t, err)
	require.NoError(t, body.Close())
}
