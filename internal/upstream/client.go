// Package upstream implements the HTTP client for the internal generation
// API, with ordered endpoint failover.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/poemonsense/antigravity-gateway/internal/config"
	"github.com/poemonsense/antigravity-gateway/pkg/gemini"
)

// StatusError is an upstream HTTP failure. Message prefers the upstream's
// own error.message when the body carried one.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.Status, e.Message)
}

// Options configures a Client.
type Options struct {
	Endpoints  []string
	UserAgent  string
	TimeoutSec int
	// ProxyURL routes upstream calls through an HTTP proxy; supports basic
	// auth in the URL. Invalid values are logged and bypassed.
	ProxyURL string
}

// Client posts generation requests to the internal endpoints.
type Client struct {
	endpoints  []string
	userAgent  string
	httpClient *http.Client
}

// New builds a Client. The timeout floor is one second.
func New(opts Options) *Client {
	endpoints := opts.Endpoints
	if len(endpoints) == 0 {
		endpoints = config.DefaultEndpoints
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	timeout := opts.TimeoutSec
	if timeout < config.MinRequestTimeoutSec {
		timeout = config.DefaultRequestTimeoutSec
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil || proxyURL.Host == "" {
			log.Warnf("invalid upstream proxy url %q, bypassing proxy: %v", opts.ProxyURL, err)
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &Client{
		endpoints: endpoints,
		userAgent: ua,
		httpClient: &http.Client{
			Timeout:   time.Duration(timeout) * time.Second,
			Transport: transport,
		},
	}
}

// Endpoints returns the configured failover order.
func (c *Client) Endpoints() []string {
	return c.endpoints
}

// transientStatus reports whether a status justifies advancing to the next
// endpoint. 401/403 mean a bad token, not a bad endpoint.
func transientStatus(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500
}

func (c *Client) headers(req *http.Request, accessToken, model string) {
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if strings.Contains(strings.ToLower(model), "claude") {
		req.Header.Set("anthropic-beta", config.AnthropicBetaHeader)
	}
}

// errorFromBody extracts the upstream's error.message when present,
// otherwise returns the raw body (trimmed).
func errorFromBody(status int, body []byte) *StatusError {
	msg := strings.TrimSpace(string(body))
	if m := gjson.GetBytes(body, "error.message"); m.Exists() && m.String() != "" {
		msg = m.String()
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &StatusError{Status: status, Message: msg}
}

// Generate posts a unary :generateContent request, unwrapping the
// `{"response": {...}}` envelope when the upstream uses it.
func (c *Client) Generate(ctx context.Context, accessToken string, payload *gemini.InternalRequest) (*gemini.Response, error) {
	body, err := c.do(ctx, accessToken, payload, ":generateContent")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	if inner := gjson.GetBytes(data, "response"); inner.IsObject() {
		data = []byte(inner.Raw)
	}
	var resp gemini.Response
	if err = json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode upstream response: %w", err)
	}
	return &resp, nil
}

// StreamGenerate posts a :streamGenerateContent?alt=sse request and hands
// the raw SSE body to the caller, who owns closing it.
func (c *Client) StreamGenerate(ctx context.Context, accessToken string, payload *gemini.InternalRequest) (io.ReadCloser, error) {
	return c.do(ctx, accessToken, payload, ":streamGenerateContent?alt=sse")
}

// do tries each endpoint in order, advancing only on transport errors and
// transient statuses. The last error is propagated when all endpoints fail.
func (c *Client) do(ctx context.Context, accessToken string, payload *gemini.InternalRequest, path string) (io.ReadCloser, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode upstream request: %w", err)
	}

	var lastErr error
	for _, endpoint := range c.endpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+path, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		c.headers(req, accessToken, payload.Model)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			log.Warnf("upstream %s unreachable, trying next endpoint: %v", endpoint, err)
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp.Body, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		_ = resp.Body.Close()
		statusErr := errorFromBody(resp.StatusCode, body)
		if !transientStatus(resp.StatusCode) {
			return nil, statusErr
		}
		log.Warnf("upstream %s returned %d, trying next endpoint", endpoint, resp.StatusCode)
		lastErr = statusErr
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no upstream endpoints configured")
	}
	return nil, lastErr
}
