// Package tokenpool maintains the in-memory index of upstream accounts and
// picks one for each request, honoring cooldowns, explicit exclusions and
// sticky session bindings.
package tokenpool

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/poemonsense/antigravity-gateway/internal/auth"
	"github.com/poemonsense/antigravity-gateway/internal/config"
	"github.com/poemonsense/antigravity-gateway/internal/store"
)

// SelectOptions narrows a SelectNext call.
type SelectOptions struct {
	// SessionKey pins the selection to a previously bound account while the
	// binding is alive. Empty means pure round-robin.
	SessionKey string
	// ExcludeAccountIDs removes accounts already attempted in this request.
	ExcludeAccountIDs []string
}

type sessionBinding struct {
	accountID string
	expiresAt int64 // unix ms
}

// Pool is the process-wide account index. All selection state lives behind
// one mutex; the critical section never spans network I/O.
type Pool struct {
	store     store.AccountStore
	refresher auth.TokenRefresher
	now       func() int64 // unix ms, swappable in tests

	mu           sync.Mutex
	accounts     []*store.Account // load order, drives round-robin
	byID         map[string]*store.Account
	cooldowns    map[string]int64 // account id -> until unix ms
	sessions     map[string]sessionBinding
	currentIndex int
}

// New creates an empty pool; accounts load lazily on first selection or via
// Reload.
func New(accountStore store.AccountStore, refresher auth.TokenRefresher) *Pool {
	return &Pool{
		store:     accountStore,
		refresher: refresher,
		now:       func() int64 { return time.Now().UnixMilli() },
		byID:      make(map[string]*store.Account),
		cooldowns: make(map[string]int64),
		sessions:  make(map[string]sessionBinding),
	}
}

// Reload re-reads the account store, replacing the in-memory index.
// Cooldowns and session bindings survive a reload.
func (p *Pool) Reload(ctx context.Context) error {
	accounts, err := p.store.List(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.accounts = accounts
	p.byID = make(map[string]*store.Account, len(accounts))
	for _, acc := range accounts {
		p.byID[acc.ID] = acc
	}
	p.mu.Unlock()
	log.Infof("account pool loaded: %d account(s)", len(accounts))
	return nil
}

// GetAccountCount returns the number of accounts currently indexed.
func (p *Pool) GetAccountCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.accounts)
}

// MarkRateLimited puts the account on the rate-limit cooldown (5 min).
func (p *Pool) MarkRateLimited(idOrEmail string) {
	p.mark(idOrEmail, config.RateLimitCooldownMs, "rate-limited")
}

// MarkForbidden puts the account on the auth-failure cooldown (30 min).
func (p *Pool) MarkForbidden(idOrEmail string) {
	p.mark(idOrEmail, config.ForbiddenCooldownMs, "forbidden")
}

func (p *Pool) mark(idOrEmail string, cooldownMs int64, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acc := p.lookupLocked(idOrEmail)
	if acc == nil {
		log.Warnf("cannot mark unknown account %q as %s", idOrEmail, reason)
		return
	}
	until := p.now() + cooldownMs
	p.cooldowns[acc.ID] = until
	log.Warnf("account %s marked %s until %s", acc.Email, reason,
		time.UnixMilli(until).Format(time.RFC3339))
}

func (p *Pool) lookupLocked(idOrEmail string) *store.Account {
	if acc, ok := p.byID[idOrEmail]; ok {
		return acc
	}
	for _, acc := range p.accounts {
		if acc.Email == idOrEmail {
			return acc
		}
	}
	return nil
}

// SelectNext picks an account for a request. Returns nil only when the pool
// is empty after a reload attempt.
func (p *Pool) SelectNext(ctx context.Context, opts SelectOptions) *store.Account {
	if p.GetAccountCount() == 0 {
		if err := p.Reload(ctx); err != nil {
			log.Warnf("account pool reload failed: %v", err)
		}
	}

	selected := p.selectLocked(opts)
	if selected == nil {
		return nil
	}
	return p.finalize(ctx, selected, opts.SessionKey)
}

// selectLocked runs the deterministic selection algorithm under the pool
// mutex: exclusions, session expiry, cooldown filter, sticky binding, then
// round-robin.
func (p *Pool) selectLocked(opts SelectOptions) *store.Account {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.accounts) == 0 {
		return nil
	}
	now := p.now()

	excluded := make(map[string]bool, len(opts.ExcludeAccountIDs))
	for _, id := range opts.ExcludeAccountIDs {
		excluded[id] = true
	}
	base := make([]*store.Account, 0, len(p.accounts))
	for _, acc := range p.accounts {
		if !excluded[acc.ID] {
			base = append(base, acc)
		}
	}
	if len(base) == 0 {
		if len(excluded) > 0 {
			log.Warnf("all %d account(s) excluded this request, falling back to full pool", len(p.accounts))
		}
		base = p.accounts
	}

	// Lazy session-binding expiry.
	for key, binding := range p.sessions {
		if binding.expiresAt <= now {
			delete(p.sessions, key)
		}
	}

	candidates := make([]*store.Account, 0, len(base))
	for _, acc := range base {
		if p.cooldowns[acc.ID] > now {
			continue
		}
		candidates = append(candidates, acc)
	}
	if len(candidates) == 0 {
		log.Warn("all candidates cooling down, bypassing cooldown to keep service available")
		candidates = base
	}

	if opts.SessionKey != "" {
		if binding, ok := p.sessions[opts.SessionKey]; ok {
			for _, acc := range candidates {
				if acc.ID == binding.accountID {
					return acc
				}
			}
		}
	}

	acc := candidates[p.currentIndex%len(candidates)]
	p.currentIndex++
	return acc
}

// finalize refreshes the token when close to expiry, sanitizes the project
// id and records the session binding. The refresher runs outside the lock.
func (p *Pool) finalize(ctx context.Context, acc *store.Account, sessionKey string) *store.Account {
	var refreshed *store.Token
	if acc.Token != nil && acc.Token.ExpiresWithin(config.TokenRefreshWindowSec*time.Second) {
		tok, err := p.refresher.Refresh(ctx, acc.Token.RefreshToken)
		if err != nil {
			// Proceed with the stale token; the upstream will reject it and
			// the orchestrator retries on another account.
			log.Warnf("token refresh failed for %s: %v", acc.Email, err)
		} else {
			refreshed = tok
		}
	}

	p.mu.Lock()
	if refreshed != nil && acc.Token != nil {
		refreshed.ProjectID = acc.Token.ProjectID
		refreshed.SessionID = acc.Token.SessionID
		refreshed.UpstreamProxyURL = acc.Token.UpstreamProxyURL
		acc.Token = refreshed
	}
	if acc.SanitizeProjectID() {
		log.Warnf("discarded synthetic project id on account %s", acc.Email)
	}
	acc.LastUsed = p.now()
	if sessionKey != "" {
		p.sessions[sessionKey] = sessionBinding{
			accountID: acc.ID,
			expiresAt: p.now() + config.SessionBindingTTLMs,
		}
	}
	p.mu.Unlock()

	if refreshed != nil {
		if err := p.store.Save(ctx, acc); err != nil {
			log.Warnf("failed to persist refreshed token for %s: %v", acc.Email, err)
		}
	}
	return acc
}
