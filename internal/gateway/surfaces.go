package gateway

import (
	"context"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/poemonsense/antigravity-gateway/internal/store"
	"github.com/poemonsense/antigravity-gateway/internal/stream"
	"github.com/poemonsense/antigravity-gateway/internal/translate"
	"github.com/poemonsense/antigravity-gateway/pkg/anthropic"
	"github.com/poemonsense/antigravity-gateway/pkg/gemini"
	"github.com/poemonsense/antigravity-gateway/pkg/openai"
)

// generateWithFallback performs a unary upstream call, falling back to the
// streaming endpoint when the unary reply comes back empty. Empty results
// from both paths surface as ErrEmptyResponseStream so the attempt loop
// moves to the next account.
func (o *Orchestrator) generateWithFallback(ctx context.Context, env *gemini.InternalRequest, acc *store.Account, out **gemini.Response) error {
	resp, err := o.client.Generate(ctx, accessToken(acc), env)
	if err != nil {
		return err
	}
	if len(resp.FirstCandidateParts()) == 0 {
		log.Warn("empty unary response, retrying via streaming endpoint")
		body, err := o.client.StreamGenerate(ctx, accessToken(acc), env)
		if err != nil {
			return err
		}
		defer body.Close()
		resp, err = stream.Collect(stream.NewFrameScanner(body))
		if err != nil {
			return err
		}
		if len(resp.FirstCandidateParts()) == 0 {
			return ErrEmptyResponseStream
		}
	}
	*out = resp
	return nil
}

// AnthropicMessage handles a unary Messages request.
func (o *Orchestrator) AnthropicMessage(ctx context.Context, req *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error) {
	body, err := translate.ClaudeToGeminiRequest(req)
	if err != nil {
		return nil, &Error{Kind: KindBadRequest, StatusCode: 400, Message: err.Error()}
	}
	r := &request{
		sessionKey:     SessionKey("anthropic", req.Metadata),
		model:          o.resolveModel(req.Model),
		body:           body,
		allowDowngrade: true,
	}

	var out *gemini.Response
	err = o.execute(ctx, r, func(ctx context.Context, env *gemini.InternalRequest, acc *store.Account) error {
		return o.generateWithFallback(ctx, env, acc, &out)
	})
	if err != nil {
		return nil, err
	}
	return translate.GeminiToClaudeResponse(out, req.Model), nil
}

// relayHandler adapts the per-protocol relays to the streaming attempt loop.
type relayHandler interface {
	Handle(frame *stream.Frame) error
	Finish() error
	SentContent() bool
}

// streamAttempt opens the upstream stream and peeks the first frame before
// emitting anything to the client, so connection failures and empty streams
// stay retryable. Once a frame arrived the stream is committed: later
// failures abort instead of retrying into a half-written response.
func (o *Orchestrator) streamAttempt(ctx context.Context, env *gemini.InternalRequest, acc *store.Account, relay relayHandler, committed *bool) error {
	body, err := o.client.StreamGenerate(ctx, accessToken(acc), env)
	if err != nil {
		return err
	}
	defer body.Close()

	sc := stream.NewFrameScanner(body)
	first, err := sc.Next()
	if err == io.EOF {
		return ErrEmptyResponseStream
	}
	if err != nil {
		return err
	}

	*committed = true
	if err := relay.Handle(first); err != nil {
		return &Error{Kind: KindFatal, Message: err.Error()}
	}
	for {
		frame, err := sc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &Error{Kind: KindFatal, Message: err.Error()}
		}
		if err := relay.Handle(frame); err != nil {
			return &Error{Kind: KindFatal, Message: err.Error()}
		}
	}
	return relay.Finish()
}

// AnthropicMessageStream handles a streaming Messages request. When every
// streaming attempt fails before any client write, the request falls back
// to a unary call replayed as a synthetic stream.
func (o *Orchestrator) AnthropicMessageStream(ctx context.Context, req *anthropic.MessagesRequest, w stream.Writer) error {
	body, err := translate.ClaudeToGeminiRequest(req)
	if err != nil {
		return &Error{Kind: KindBadRequest, StatusCode: 400, Message: err.Error()}
	}
	r := &request{
		sessionKey:     SessionKey("anthropic", req.Metadata),
		model:          o.resolveModel(req.Model),
		body:           body,
		allowDowngrade: true,
	}

	committed := false
	err = o.execute(ctx, r, func(ctx context.Context, env *gemini.InternalRequest, acc *store.Account) error {
		relay := stream.NewClaudeRelay(w, req.Model)
		return o.streamAttempt(ctx, env, acc, relay, &committed)
	})
	if err == nil || committed {
		return err
	}

	log.Warnf("streaming attempts exhausted (%v), falling back to unary", err)
	resp, uerr := o.AnthropicMessage(ctx, req)
	if uerr != nil {
		return err
	}
	return stream.ReplayClaudeResponse(w, resp)
}

// ChatCompletion handles a unary chat completion request.
func (o *Orchestrator) ChatCompletion(ctx context.Context, req *openai.ChatRequest) (*openai.ChatResponse, error) {
	claudeReq := translate.OpenAIToClaude(req)
	body, err := translate.ClaudeToGeminiRequest(claudeReq)
	if err != nil {
		return nil, &Error{Kind: KindBadRequest, StatusCode: 400, Message: err.Error()}
	}
	r := &request{
		sessionKey: SessionKey("openai", claudeReq.Metadata),
		model:      o.resolveModel(req.Model),
		body:       body,
	}

	var out *gemini.Response
	err = o.execute(ctx, r, func(ctx context.Context, env *gemini.InternalRequest, acc *store.Account) error {
		return o.generateWithFallback(ctx, env, acc, &out)
	})
	if err != nil {
		return nil, err
	}
	return translate.ClaudeToOpenAIResponse(translate.GeminiToClaudeResponse(out, req.Model), req.Model), nil
}

// ChatCompletionStream handles a streaming chat completion request.
func (o *Orchestrator) ChatCompletionStream(ctx context.Context, req *openai.ChatRequest, w stream.Writer) error {
	claudeReq := translate.OpenAIToClaude(req)
	body, err := translate.ClaudeToGeminiRequest(claudeReq)
	if err != nil {
		return &Error{Kind: KindBadRequest, StatusCode: 400, Message: err.Error()}
	}
	r := &request{
		sessionKey: SessionKey("openai", claudeReq.Metadata),
		model:      o.resolveModel(req.Model),
		body:       body,
	}

	committed := false
	err = o.execute(ctx, r, func(ctx context.Context, env *gemini.InternalRequest, acc *store.Account) error {
		relay := stream.NewOpenAIRelay(w, req.Model)
		return o.streamAttempt(ctx, env, acc, relay, &committed)
	})
	if err == nil || committed {
		return err
	}

	log.Warnf("streaming attempts exhausted (%v), falling back to unary", err)
	resp, uerr := o.ChatCompletion(ctx, req)
	if uerr != nil {
		return err
	}
	return stream.ReplayOpenAIResponse(w, resp)
}

// GeminiGenerate handles a unary generateContent request on the public
// Gemini surface.
func (o *Orchestrator) GeminiGenerate(ctx context.Context, model string, req *gemini.Request) (*gemini.Response, error) {
	r := &request{
		model: o.resolveModel(model),
		body:  translate.GeminiPublicToInternal(req),
	}
	var out *gemini.Response
	err := o.execute(ctx, r, func(ctx context.Context, env *gemini.InternalRequest, acc *store.Account) error {
		return o.generateWithFallback(ctx, env, acc, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GeminiGenerateStream handles a streaming generateContent request, passing
// upstream frames through unchanged.
func (o *Orchestrator) GeminiGenerateStream(ctx context.Context, model string, req *gemini.Request, w stream.Writer) error {
	r := &request{
		model: o.resolveModel(model),
		body:  translate.GeminiPublicToInternal(req),
	}
	committed := false
	return o.execute(ctx, r, func(ctx context.Context, env *gemini.InternalRequest, acc *store.Account) error {
		relay := stream.NewGeminiRelay(w)
		return o.streamAttempt(ctx, env, acc, relay, &committed)
	})
}
