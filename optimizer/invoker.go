package optimizer

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/formflow/formflow/internal/ctxkeys"
	"github.com/formflow/formflow/llm"
	"github.com/formflow/formflow/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RawReply is the provider's structured reply, guaranteed to be a JSON object
// but not yet validated against the result schema.
type RawReply = json.RawMessage

// ModelInvoker sends a prompt plus output shape to a provider.
type ModelInvoker interface {
	Invoke(ctx context.Context, prompt PromptText, shape *types.JSONSchema) (RawReply, error)
}

// InvokerConfig selects the provider, model and call limits.
type InvokerConfig struct {
	Provider    string
	Model       string
	Timeout     time.Duration // zero means no per-call limit beyond ctx
	Temperature float32
	MaxTokens   int
}

// DefaultInvokerConfig returns the settings used when nothing is configured.
func DefaultInvokerConfig() InvokerConfig {
	return InvokerConfig{
		Provider: "gemini",
		Model:    "gemini-2.0-flash",
		Timeout:  30 * time.Second,
	}
}

// Invoker is the llm.Provider-backed ModelInvoker.
type Invoker struct {
	provider llm.Provider
	cfg      InvokerConfig
	logger   *zap.Logger
}

// NewInvoker creates an Invoker. An empty cfg.Provider is filled from the provider's name.
func NewInvoker(provider llm.Provider, cfg InvokerConfig, logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Provider == "" && provider != nil {
		cfg.Provider = provider.Name()
	}
	return &Invoker{
		provider: provider,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "invoker"), zap.String("provider", cfg.Provider)),
	}
}

// Config returns the invoker's configuration.
func (i *Invoker) Config() InvokerConfig { return i.cfg }

// Invoke asks the provider for a JSON object conforming to shape.
//
// Provider errors, rate limits and an expired or cancelled context map to
// ProviderUnavailable. A reply with no content maps to EmptyReply, and content
// that is not a JSON object (after removing one markdown code fence) maps to
// MalformedReply.
func (i *Invoker) Invoke(ctx context.Context, prompt PromptText, shape *types.JSONSchema) (RawReply, error) {
	if i.provider == nil {
		return nil, providerUnavailable(i.cfg.Provider, errNoProvider)
	}
	if i.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.cfg.Timeout)
		defer cancel()
	}

	traceID, ok := ctxkeys.TraceID(ctx)
	if !ok {
		traceID = uuid.NewString()
	}
	req := &llm.ChatRequest{
		TraceID:     traceID,
		Model:       i.cfg.Model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: string(prompt)}},
		MaxTokens:   i.cfg.MaxTokens,
		Temperature: i.cfg.Temperature,
	}
	if shape != nil {
		name := shape.Title
		if name == "" {
			name = "OptimizationResult"
		}
		req.ResponseFormat = &llm.ResponseFormat{Name: name, Schema: shape, Strict: true}
	}

	start := time.Now()
	resp, err := i.provider.Completion(ctx, req)
	latency := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			i.logger.Warn("provider call aborted",
				zap.String("trace_id", req.TraceID),
				zap.Duration("latency", latency),
				zap.Error(ctxErr),
			)
		} else {
			i.logger.Warn("provider call failed",
				zap.String("trace_id", req.TraceID),
				zap.Duration("latency", latency),
				zap.Error(err),
			)
		}
		return nil, providerUnavailable(i.cfg.Provider, err)
	}

	content := strings.TrimSpace(stripCodeFence(resp.FirstContent()))
	if content == "" {
		return nil, emptyReply(i.cfg.Provider)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &obj); err != nil {
		return nil, malformedReply(i.cfg.Provider, err)
	}
	if obj == nil {
		return nil, malformedReply(i.cfg.Provider, errNullReply)
	}

	formID, _ := ctxkeys.FormID(ctx)
	i.logger.Debug("provider call ok",
		zap.String("trace_id", req.TraceID),
		zap.String("form_id", formID),
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("latency", latency),
	)
	return RawReply(content), nil
}

// stripCodeFence removes a single surrounding ``` fence, with or without a
// language tag. Anything else is returned unchanged.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return s
	}
	body := strings.TrimSuffix(t, "```")
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return s
	}
	return body[nl+1:]
}
