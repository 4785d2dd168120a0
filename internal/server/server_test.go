package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/poemonsense/antigravity-gateway/internal/config"
	"github.com/poemonsense/antigravity-gateway/internal/gateway"
	"github.com/poemonsense/antigravity-gateway/internal/store"
	"github.com/poemonsense/antigravity-gateway/internal/tokenpool"
	"github.com/poemonsense/antigravity-gateway/internal/upstream"
)

type emptyStore struct{}

func (emptyStore) List(ctx context.Context) ([]*store.Account, error) { return nil, nil }
func (emptyStore) Save(ctx context.Context, acc *store.Account) error { return nil }
func (emptyStore) Delete(ctx context.Context, id string) error        { return nil }

type nopRefresher struct{}

func (nopRefresher) Refresh(ctx context.Context, refreshToken string) (*store.Token, error) {
	return nil, nil
}

func testServer(t *testing.T, apiKey string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.APIKey = apiKey
	cfgStore := config.NewStore(cfg)

	pool := tokenpool.New(emptyStore{}, nopRefresher{})
	client := upstream.New(upstream.Options{TimeoutSec: 1})
	orch := gateway.NewOrchestrator(cfgStore, pool, client)
	return New(cfgStore, orch, pool).Routes()
}

func do(r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := testServer(t, "")
	w := do(r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", gjson.Get(w.Body.String(), "status").String())
}

func TestSilentEndpoints(t *testing.T) {
	r := testServer(t, "")
	for _, path := range []string{"/", "/api/event_logging/batch"} {
		w := do(r, http.MethodPost, path, "{}", nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		require.Equal(t, "ok", gjson.Get(w.Body.String(), "status").String())
	}
}

func TestAuthGuardPerProtocolBodies(t *testing.T) {
	r := testServer(t, "secret")

	// OpenAI surface: bad bearer token, OpenAI error envelope.
	w := do(r, http.MethodGet, "/v1/models", "", map[string]string{"Authorization": "Bearer wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.True(t, gjson.Get(w.Body.String(), "error.message").Exists())

	// Anthropic surface: x-api-key, Anthropic error envelope.
	w = do(r, http.MethodPost, "/v1/messages", "{}", map[string]string{"x-api-key": "wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "error", gjson.Get(w.Body.String(), "type").String())
	require.Equal(t, "authentication_error", gjson.Get(w.Body.String(), "error.type").String())

	// Gemini surface: x-goog-api-key, Gemini error envelope.
	w = do(r, http.MethodGet, "/v1beta/models/", "", map[string]string{"x-goog-api-key": "wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "UNAUTHENTICATED", gjson.Get(w.Body.String(), "error.status").String())
}

func TestAuthGuardAcceptsAllHeaderStyles(t *testing.T) {
	r := testServer(t, "secret")
	headerSets := []map[string]string{
		{"Authorization": "Bearer secret"},
		{"x-api-key": "secret"},
		{"x-goog-api-key": "secret"},
	}
	for _, headers := range headerSets {
		w := do(r, http.MethodGet, "/v1/models", "", headers)
		require.Equal(t, http.StatusOK, w.Code)
	}

	// Gemini clients may pass the key as a query parameter.
	w := do(r, http.MethodGet, "/v1beta/models/?key=secret", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestListModels(t *testing.T) {
	r := testServer(t, "")
	w := do(r, http.MethodGet, "/v1/models", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	require.Equal(t, "list", gjson.Get(body, "object").String())
	data := gjson.Get(body, "data").Array()
	require.NotEmpty(t, data)
	for _, m := range data {
		require.Equal(t, "antigravity", m.Get("owned_by").String())
		require.Equal(t, int64(1770652800), m.Get("created").Int())
	}
	require.Contains(t, body, "gemini-3-pro-image-2k-16x9")
}

func TestGeminiModelsListAndGet(t *testing.T) {
	r := testServer(t, "")

	w := do(r, http.MethodGet, "/v1beta/models/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, gjson.Get(w.Body.String(), "models").Array())

	w = do(r, http.MethodGet, "/v1beta/models/gemini-3-flash", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "models/gemini-3-flash", gjson.Get(w.Body.String(), "name").String())
}

func TestGeminiCountTokensStub(t *testing.T) {
	r := testServer(t, "")
	body := `{"contents":[{"parts":[{"text":"hello"}]}]}`

	for _, path := range []string{
		"/v1beta/models/gemini-3-flash:countTokens",
		"/v1beta/models/gemini-3-flash/countTokens",
	} {
		w := do(r, http.MethodPost, path, body, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		var resp map[string]int
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, 0, resp["totalTokens"])
	}
}

func TestCountTokensEstimate(t *testing.T) {
	r := testServer(t, "")
	body := `{"model":"claude-sonnet-4-5","messages":[{"role":"user","content":"` + strings.Repeat("a", 400) + `"}]}`
	w := do(r, http.MethodPost, "/v1/messages/count_tokens", body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, int64(100), gjson.Get(w.Body.String(), "input_tokens").Int())
}

func TestUnknownGeminiAction(t *testing.T) {
	r := testServer(t, "")
	w := do(r, http.MethodPost, "/v1beta/models/gemini-3-flash:embedContent", "{}", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := testServer(t, "secret")
	w := do(r, http.MethodOptions, "/v1/chat/completions", "", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
