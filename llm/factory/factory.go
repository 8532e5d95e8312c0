// Package factory provides a centralized factory for creating LLM Provider
// instances by name. It imports the provider sub-packages and maps string
// names to their constructors, breaking the import cycle that would occur
// if this logic lived in the llm package directly.
package factory

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/formflow/formflow/llm"
	"github.com/formflow/formflow/llm/providers"
	"github.com/formflow/formflow/llm/providers/gemini"
	"github.com/formflow/formflow/llm/providers/openaicompat"
	"go.uber.org/zap"
)

// ProviderConfig is the generic configuration accepted by the factory function.
// It uses a flat structure with an Extra map for provider-specific fields.
type ProviderConfig struct {
	APIKey  string         `json:"api_key" yaml:"api_key"`
	BaseURL string         `json:"base_url" yaml:"base_url"`
	Model   string         `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Extra   map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// openAICompatPreset 描述一个 OpenAI 兼容服务的默认接入参数。
type openAICompatPreset struct {
	baseURL       string
	endpointPath  string
	fallbackModel string
}

var openAICompatPresets = map[string]openAICompatPreset{
	"openai":   {baseURL: "https://api.openai.com", fallbackModel: "gpt-4o-mini"},
	"deepseek": {baseURL: "https://api.deepseek.com", fallbackModel: "deepseek-chat"},
	"qwen":     {baseURL: "https://dashscope.aliyuncs.com/compatible-mode", fallbackModel: "qwen-plus"},
	"ollama":   {baseURL: "http://localhost:11434", fallbackModel: "llama3.1"},
	// openai-compat 需要显式 base_url
	"openai-compat": {},
}

// SupportedProviders returns the provider names accepted by NewProviderFromConfig.
func SupportedProviders() []string {
	names := []string{"gemini"}
	for name := range openAICompatPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewProviderFromConfig creates a Provider instance based on the provider name
// and a generic ProviderConfig. It maps the name to the appropriate constructor.
//
// Supported names: gemini, openai, deepseek, qwen, ollama, openai-compat.
func NewProviderFromConfig(name string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	name = strings.ToLower(strings.TrimSpace(name))

	if name == "gemini" {
		gc := providers.GeminiConfig{BaseProviderConfig: providers.BaseProviderConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}}
		return gemini.NewGeminiProvider(gc, logger)
	}

	preset, ok := openAICompatPresets[name]
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %q (supported: %s)", name, strings.Join(SupportedProviders(), ", "))
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = preset.baseURL
	}
	if baseURL == "" {
		return nil, fmt.Errorf("provider %q requires base_url", name)
	}

	oc := openaicompat.Config{
		ProviderName:  name,
		APIKey:        cfg.APIKey,
		BaseURL:       baseURL,
		DefaultModel:  cfg.Model,
		FallbackModel: preset.fallbackModel,
		Timeout:       cfg.Timeout,
		EndpointPath:  preset.endpointPath,
	}
	if cfg.Extra != nil {
		if v, ok := cfg.Extra["json_object_only"].(bool); ok {
			oc.JSONObjectOnly = v
		}
		if v, ok := cfg.Extra["endpoint_path"].(string); ok && v != "" {
			oc.EndpointPath = v
		}
		if org, ok := cfg.Extra["organization"].(string); ok && org != "" {
			oc.BuildHeaders = func(r *http.Request, apiKey string) {
				providers.BearerTokenHeaders(r, apiKey)
				r.Header.Set("OpenAI-Organization", org)
			}
		}
	}
	return openaicompat.New(oc, logger), nil
}
