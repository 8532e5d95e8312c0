package config

import (
	"github.com/formflow/formflow/llm/circuitbreaker"
	"github.com/formflow/formflow/llm/factory"
	"github.com/formflow/formflow/llm/retry"
	"github.com/formflow/formflow/optimizer"
)

// InvokerConfig builds the explicit invoker configuration.
func (c *Config) InvokerConfig() optimizer.InvokerConfig {
	return optimizer.InvokerConfig{
		Provider:    c.LLM.Provider,
		Model:       c.LLM.Model,
		Timeout:     c.Optimizer.Timeout,
		Temperature: c.Optimizer.Temperature,
		MaxTokens:   c.Optimizer.MaxTokens,
	}
}

// ProviderConfig builds the factory input for the configured provider.
func (c *Config) ProviderConfig() factory.ProviderConfig {
	pc := factory.ProviderConfig{
		APIKey:  c.LLM.APIKey,
		BaseURL: c.LLM.BaseURL,
		Model:   c.LLM.Model,
		Timeout: c.LLM.Timeout,
	}
	if c.LLM.JSONObjectOnly {
		pc.Extra = map[string]any{"json_object_only": true}
	}
	return pc
}

// RetryPolicy returns nil when retries are disabled.
func (c *Config) RetryPolicy() *retry.RetryPolicy {
	if c.Optimizer.MaxRetries <= 0 {
		return nil
	}
	return &retry.RetryPolicy{
		MaxRetries:   c.Optimizer.MaxRetries,
		InitialDelay: c.Optimizer.RetryInitialDelay,
		MaxDelay:     c.Optimizer.RetryMaxDelay,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// BreakerConfig returns nil when circuit breaking is disabled. The breaker's
// per-call timeout leaves headroom over the invoker timeout so the invoker
// reports the deadline first.
func (c *Config) BreakerConfig() *circuitbreaker.Config {
	if c.Optimizer.BreakerThreshold <= 0 {
		return nil
	}
	return &circuitbreaker.Config{
		Threshold:        c.Optimizer.BreakerThreshold,
		Timeout:          c.Optimizer.Timeout * 2,
		ResetTimeout:     c.Optimizer.BreakerResetTimeout,
		HalfOpenMaxCalls: 1,
	}
}
