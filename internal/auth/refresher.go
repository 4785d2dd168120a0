// Package auth implements the refresh-token exchange used to keep pool
// credentials fresh. Consent flows live outside the gateway; only the
// refresh grant is performed here.
package auth

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/poemonsense/antigravity-gateway/internal/store"
)

// OAuth client registration of the desktop app the accounts were minted by.
const (
	oauthClientID     = "681255809395-oo8ft2oprdrnp9e3aqf6av3hmdib135j.apps.googleusercontent.com"
	oauthClientSecret = "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"
	oauthTokenURL     = "https://oauth2.googleapis.com/token"
)

// TokenRefresher exchanges a refresh token for a fresh access token.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*store.Token, error)
}

// OAuthRefresher performs the exchange against the Google token endpoint.
type OAuthRefresher struct {
	conf *oauth2.Config
}

// NewOAuthRefresher builds a refresher with the default client registration.
func NewOAuthRefresher() *OAuthRefresher {
	return &OAuthRefresher{
		conf: &oauth2.Config{
			ClientID:     oauthClientID,
			ClientSecret: oauthClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: oauthTokenURL},
		},
	}
}

// Refresh performs a refresh-token grant. The returned token keeps the
// original refresh token when the server omits a rotated one.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*store.Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh: no refresh token on account")
	}
	src := r.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	out := &store.Token{
		AccessToken:     tok.AccessToken,
		RefreshToken:    tok.RefreshToken,
		TokenType:       tok.TokenType,
		ExpiryTimestamp: tok.Expiry.Unix(),
	}
	if out.TokenType == "" {
		out.TokenType = "Bearer"
	}
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	if !tok.Expiry.IsZero() {
		out.ExpiresIn = int64(time.Until(tok.Expiry).Seconds())
	}
	log.Debugf("access token refreshed, valid for %ds", out.ExpiresIn)
	return out, nil
}
