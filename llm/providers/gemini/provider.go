package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/formflow/formflow/internal/tlsutil"
	"github.com/formflow/formflow/llm"
	"github.com/formflow/formflow/llm/providers"
	"github.com/formflow/formflow/types"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	providerName = "gemini"
	defaultModel = "gemini-2.0-flash"
)

// GeminiProvider 实现 Google Gemini 的 LLM Provider
type GeminiProvider struct {
	cfg    providers.GeminiConfig
	client *genai.Client
	logger *zap.Logger
}

// NewGeminiProvider 创建 Gemini Provider
func NewGeminiProvider(cfg providers.GeminiConfig, logger *zap.Logger) (*GeminiProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: tlsutil.SecureHTTPClient(timeout),
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiProvider{
		cfg:    cfg,
		client: client,
		logger: logger.With(zap.String("provider", providerName)),
	}, nil
}

func (p *GeminiProvider) Name() string { return providerName }

func (p *GeminiProvider) model(req *llm.ChatRequest) string {
	return providers.ChooseModel(req, p.cfg.Model, defaultModel)
}

func (p *GeminiProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	_, err := p.client.Models.Get(ctx, p.model(nil), nil)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, p.mapError(err)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// Completion 调用 generateContent。system 消息合并为 SystemInstruction，
// assistant 消息映射为 model 角色。
func (p *GeminiProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, &llm.Error{
			Code:       llm.ErrInvalidRequest,
			Message:    "messages must not be empty",
			HTTPStatus: http.StatusBadRequest,
			Provider:   providerName,
		}
	}

	model := p.model(req)
	contents, system := convertMessages(req.Messages)

	gc := &genai.GenerateContentConfig{}
	if system != "" {
		gc.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Temperature > 0 {
		gc.Temperature = genai.Ptr(req.Temperature)
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.ResponseFormat != nil {
		gc.ResponseMIMEType = "application/json"
		gc.ResponseSchema = ConvertSchema(req.ResponseFormat.Schema)
	}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, model, contents, gc)
	if err != nil {
		p.logger.Warn("generateContent failed",
			zap.String("model", model),
			zap.String("trace_id", req.TraceID),
			zap.Error(err),
		)
		return nil, p.mapError(err)
	}

	out := toChatResponse(resp, model)
	p.logger.Debug("generateContent ok",
		zap.String("model", out.Model),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)),
	)
	return out, nil
}

// mapError 将 genai.APIError 映射为 llm.Error；其余错误视为网络层失败。
func (p *GeminiProvider) mapError(err error) *llm.Error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return providers.MapHTTPError(apiErr.Code, apiErr.Message, providerName)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return providers.MapHTTPError(apiErrPtr.Code, apiErrPtr.Message, providerName)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.Error{
			Code:       llm.ErrUpstreamTimeout,
			Message:    err.Error(),
			HTTPStatus: http.StatusGatewayTimeout,
			Retryable:  true,
			Provider:   providerName,
		}
	}
	return providers.TransportError(err, providerName)
}

func convertMessages(msgs []llm.Message) ([]*genai.Content, string) {
	var system []string
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents, strings.Join(system, "\n\n")
}

func toChatResponse(resp *genai.GenerateContentResponse, model string) *llm.ChatResponse {
	out := &llm.ChatResponse{
		ID:       resp.ResponseID,
		Provider: providerName,
		Model:    model,
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if len(resp.Candidates) > 0 {
		c := resp.Candidates[0]
		out.Choices = append(out.Choices, llm.ChatChoice{
			Index:        0,
			FinishReason: string(c.FinishReason),
			Message:      llm.Message{Role: llm.RoleAssistant, Content: resp.Text()},
		})
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.ChatUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	out.CreatedAt = time.Now()
	return out
}

// ConvertSchema 将 types.JSONSchema 转换为 Gemini 的 OpenAPI 子集 Schema。
// null 分支折叠为 Nullable；只剩一个分支时直接返回该分支。
func ConvertSchema(s *types.JSONSchema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Title:       s.Title,
		Description: s.Description,
		Type:        convertType(s.Type),
		Required:    s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = ConvertSchema(prop)
		}
		out.PropertyOrdering = s.PropertyOrder
	}
	if s.Items != nil {
		out.Items = ConvertSchema(s.Items)
	}
	if s.MinItems != nil {
		out.MinItems = genai.Ptr(int64(*s.MinItems))
	}
	if s.MinLength != nil {
		out.MinLength = genai.Ptr(int64(*s.MinLength))
	}
	if len(s.AnyOf) > 0 {
		nullable := false
		alts := make([]*genai.Schema, 0, len(s.AnyOf))
		for _, alt := range s.AnyOf {
			if alt != nil && alt.Type == types.SchemaTypeNull {
				nullable = true
				continue
			}
			alts = append(alts, ConvertSchema(alt))
		}
		if len(alts) == 1 && out.Type == "" {
			out = alts[0]
		} else {
			out.AnyOf = alts
		}
		if nullable {
			out.Nullable = genai.Ptr(true)
		}
	}
	return out
}

func convertType(t types.SchemaType) genai.Type {
	switch t {
	case types.SchemaTypeString:
		return genai.TypeString
	case types.SchemaTypeNumber:
		return genai.TypeNumber
	case types.SchemaTypeInteger:
		return genai.TypeInteger
	case types.SchemaTypeBoolean:
		return genai.TypeBoolean
	case types.SchemaTypeObject:
		return genai.TypeObject
	case types.SchemaTypeArray:
		return genai.TypeArray
	default:
		return ""
	}
}
