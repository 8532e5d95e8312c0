// Package openaicompat implements llm.Provider for any service speaking the
// OpenAI Chat Completions protocol (OpenAI, DeepSeek, Qwen, a local vLLM or
// Ollama gateway).
//
// Structured output is requested through response_format. When the request
// carries an llm.ResponseFormat with a schema, the body gets
//
//	"response_format": {"type": "json_schema", "json_schema": {"name": ..., "strict": ..., "schema": {...}}}
//
// Services that reject json_schema can be configured with JSONObjectOnly,
// which downgrades the constraint to {"type": "json_object"}.
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName:  "openai",
//	    APIKey:        cfg.APIKey,
//	    BaseURL:       "https://api.openai.com",
//	    DefaultModel:  cfg.Model,
//	    FallbackModel: "gpt-4o-mini",
//	}, logger)
package openaicompat
