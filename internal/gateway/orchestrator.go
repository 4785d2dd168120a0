package gateway

import (
	"context"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/poemonsense/antigravity-gateway/internal/config"
	"github.com/poemonsense/antigravity-gateway/internal/store"
	"github.com/poemonsense/antigravity-gateway/internal/tokenpool"
	"github.com/poemonsense/antigravity-gateway/internal/translate"
	"github.com/poemonsense/antigravity-gateway/internal/upstream"
	"github.com/poemonsense/antigravity-gateway/pkg/gemini"
)

// downgradeModel absorbs quota exhaustion on the Anthropic surface. The
// client keeps seeing the model it asked for.
const downgradeModel = "gemini-2.5-flash"

// backoff between attempts: 500ms, 1s, 2s plus up to 250ms jitter.
const (
	backoffBaseMs   = 500
	backoffJitterMs = 250
)

// Orchestrator drives a request through account selection, upstream calls
// and the retry loop.
type Orchestrator struct {
	cfg    *config.Store
	pool   *tokenpool.Pool
	client *upstream.Client
}

// NewOrchestrator wires the orchestrator to its collaborators.
func NewOrchestrator(cfg *config.Store, pool *tokenpool.Pool, client *upstream.Client) *Orchestrator {
	return &Orchestrator{cfg: cfg, pool: pool, client: client}
}

// SessionKey derives the sticky-session key for a surface from request
// metadata. Returns "" when the request carries no session identity.
func SessionKey(prefix string, metadata map[string]any) string {
	for _, k := range []string{"session_id", "sessionId", "user_id", "userId"} {
		if v, ok := metadata[k].(string); ok && v != "" {
			return prefix + ":" + v
		}
	}
	return ""
}

// resolveModel applies the configured model routing for a client model id.
func (o *Orchestrator) resolveModel(clientModel string) string {
	cfg := o.cfg.Current()
	return translate.ResolveModelRoute(clientModel, cfg.CustomMapping, cfg.CustomMapping, cfg.AnthropicMapping)
}

// request is the per-call state threaded through the attempt loop. model may
// be rewritten by the quota downgrade; body never changes between attempts.
type request struct {
	sessionKey     string
	model          string
	body           *gemini.Request
	allowDowngrade bool
}

// attemptFn performs one upstream call with a selected account. The envelope
// carries the resolved project id; implementations must not retry on their
// own.
type attemptFn func(ctx context.Context, env *gemini.InternalRequest, acc *store.Account) error

func backoffDelay(attempt int) time.Duration {
	ms := backoffBaseMs<<attempt + rand.Intn(backoffJitterMs)
	return time.Duration(ms) * time.Millisecond
}

// execute runs the attempt loop: up to MaxAttempts accounts, excluding ones
// already tried, marking cooldowns per error kind and backing off between
// attempts.
func (o *Orchestrator) execute(ctx context.Context, req *request, do attemptFn) error {
	var attempted []string
	var lastErr *Error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoffDelay(attempt - 1)):
			case <-ctx.Done():
				return ClassifyErr(ctx.Err())
			}
		}

		acc := o.pool.SelectNext(ctx, tokenpool.SelectOptions{
			SessionKey:        req.sessionKey,
			ExcludeAccountIDs: attempted,
		})
		if acc == nil {
			return &Error{Kind: KindFatal, StatusCode: 503, Message: "no available accounts"}
		}
		attempted = append(attempted, acc.ID)

		err := o.tryAccount(ctx, req, acc, do)
		if err == nil {
			return nil
		}
		gerr := ClassifyErr(err)
		lastErr = gerr
		log.Warnf("attempt %d/%d on %s failed (%s): %s",
			attempt+1, config.MaxAttempts, acc.Email, gerr.Kind, gerr.Message)

		switch gerr.Kind {
		case KindRateLimited:
			o.pool.MarkRateLimited(acc.ID)
		case KindForbidden:
			o.pool.MarkForbidden(acc.ID)
		}
		if !gerr.Retryable() {
			return gerr
		}
	}
	return lastErr
}

// tryAccount performs one attempt, including the inline retries that stay
// on the same account: a project-context rejection repeats the call once
// with an empty project, and quota exhaustion (when the surface allows it)
// repeats it with the downgraded model. Neither consumes an outer attempt
// or marks the account.
func (o *Orchestrator) tryAccount(ctx context.Context, req *request, acc *store.Account, do attemptFn) error {
	ua := o.cfg.Current().UserAgent
	project := ""
	if acc.Token != nil {
		project = acc.Token.ProjectID
	}

	err := do(ctx, translate.NewInternalRequest(project, req.model, ua, req.body), acc)
	if err != nil && project != "" && IsProjectContext(err.Error()) {
		log.Warnf("project context rejected for %s, retrying without project id", acc.Email)
		project = ""
		err = do(ctx, translate.NewInternalRequest(project, req.model, ua, req.body), acc)
	}
	if err != nil && req.allowDowngrade && req.model != downgradeModel && IsQuotaExhausted(err.Error()) {
		log.Warnf("quota exhausted on %s, downgrading upstream model to %s", req.model, downgradeModel)
		req.model = downgradeModel
		err = do(ctx, translate.NewInternalRequest(project, req.model, ua, req.body), acc)
	}
	return err
}

func accessToken(acc *store.Account) string {
	if acc.Token == nil {
		return ""
	}
	return acc.Token.AccessToken
}
