// Package store defines the persistent account records the gateway draws
// its upstream credentials from, and the backends that hold them.
package store

import (
	"context"
	"regexp"
	"time"
)

// Token is an OAuth2 credential bundle for one account.
type Token struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type,omitempty"`
	ExpiresIn        int64  `json:"expires_in,omitempty"`
	ExpiryTimestamp  int64  `json:"expiry_timestamp"`
	ProjectID        string `json:"project_id,omitempty"`
	SessionID        string `json:"session_id,omitempty"`
	// UpstreamProxyURL is preserved on the record but not consulted for
	// routing; the outbound proxy comes from the gateway configuration.
	UpstreamProxyURL string `json:"upstream_proxy_url,omitempty"`
}

// ExpiresWithin reports whether the token's authoritative deadline falls
// inside the next window.
func (t *Token) ExpiresWithin(window time.Duration) bool {
	if t.ExpiryTimestamp == 0 {
		return true
	}
	return time.Until(time.Unix(t.ExpiryTimestamp, 0)) < window
}

// Account statuses.
const (
	StatusActive      = "active"
	StatusRateLimited = "rate_limited"
	StatusExpired     = "expired"
)

// Account is one upstream credential record.
type Account struct {
	ID        string `json:"id"`
	Provider  string `json:"provider"`
	Email     string `json:"email"`
	Token     *Token `json:"token"`
	Status    string `json:"status,omitempty"`
	IsActive  bool   `json:"is_active"`
	CreatedAt int64  `json:"created_at,omitempty"`
	LastUsed  int64  `json:"last_used,omitempty"`
}

// syntheticProjectRe matches project ids fabricated by the desktop client.
// They trigger licensing errors upstream and must be elided.
var syntheticProjectRe = regexp.MustCompile(`(?i)^cloud-code-\d+$`)

// SanitizeProjectID clears synthetic project ids on the token, returning
// whether a change was made.
func (a *Account) SanitizeProjectID() bool {
	if a.Token == nil || a.Token.ProjectID == "" {
		return false
	}
	if syntheticProjectRe.MatchString(a.Token.ProjectID) {
		a.Token.ProjectID = ""
		return true
	}
	return false
}

// AccountStore is the persistence boundary. Implementations must return
// only enabled accounts from List; the pool never re-checks is_active.
type AccountStore interface {
	List(ctx context.Context) ([]*Account, error)
	Save(ctx context.Context, acc *Account) error
	Delete(ctx context.Context, id string) error
}
