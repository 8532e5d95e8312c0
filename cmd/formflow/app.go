package main

import (
	"fmt"

	"github.com/formflow/formflow/config"
	"github.com/formflow/formflow/internal/metrics"
	"github.com/formflow/formflow/internal/telemetry"
	"github.com/formflow/formflow/llm"
	"github.com/formflow/formflow/llm/circuitbreaker"
	llmfactory "github.com/formflow/formflow/llm/factory"
	"github.com/formflow/formflow/llm/retry"
	"github.com/formflow/formflow/llm/tokenizer"
	"github.com/formflow/formflow/optimizer"
	"go.uber.org/zap"
)

// metricsNamespace 为所有 Prometheus 指标的前缀
const metricsNamespace = "formflow"

// loadConfig 按 defaults → YAML → FORMFLOW_* 环境变量加载配置
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// pipeline 是装配好的优化流水线及其依赖
type pipeline struct {
	optimizer optimizer.Optimizer
	provider  llm.Provider
}

// buildPipeline 组装 provider → 指标包装 → invoker → flow → 可选重试/熔断。
// collector 为 nil 时不记录指标（CLI 模式）。
func buildPipeline(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (*pipeline, error) {
	provider, err := llmfactory.NewProviderFromConfig(cfg.LLM.Provider, cfg.ProviderConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("create provider %q: %w", cfg.LLM.Provider, err)
	}
	return assemblePipeline(cfg, provider, collector, logger), nil
}

// assemblePipeline 在已有 provider 上装配流水线，测试中直接传入 mock provider
func assemblePipeline(cfg *config.Config, provider llm.Provider, collector *metrics.Collector, logger *zap.Logger) *pipeline {
	flowOpts := []optimizer.FlowOption{
		optimizer.WithLogger(logger),
		optimizer.WithTokenCounter(tokenizer.ForModel(cfg.LLM.Model)),
		optimizer.WithStrictSequence(cfg.Optimizer.StrictSequence),
	}
	var recorders []optimizer.Recorder
	if collector != nil {
		provider = metrics.InstrumentProvider(provider, collector)
		recorders = append(recorders, collector)
	}
	// OTel 指标依赖 telemetry.Init 设置的全局 MeterProvider，未启用时为 noop
	if instruments, err := telemetry.NewOptimizerInstruments(nil); err != nil {
		logger.Warn("otel optimizer instruments unavailable", zap.Error(err))
	} else {
		recorders = append(recorders, instruments)
	}
	if r := optimizer.Recorders(recorders...); r != nil {
		flowOpts = append(flowOpts, optimizer.WithMetrics(r))
	}

	invoker := optimizer.NewInvoker(provider, cfg.InvokerConfig(), logger)
	var opt optimizer.Optimizer = optimizer.NewFlow(invoker, flowOpts...)

	policy := cfg.RetryPolicy()
	var breaker *circuitbreaker.CircuitBreaker
	if bc := cfg.BreakerConfig(); bc != nil {
		breaker = circuitbreaker.NewCircuitBreaker(bc, logger)
	}
	if policy != nil || breaker != nil {
		if policy == nil {
			// 仅熔断：显式关闭重试，避免落到默认策略
			policy = &retry.RetryPolicy{}
		}
		opt = optimizer.NewResilientOptimizer(opt, policy, breaker, logger)
	}

	logger.Info("optimizer pipeline ready",
		zap.String("provider", provider.Name()),
		zap.String("model", cfg.LLM.Model),
		zap.Bool("strict_sequence", cfg.Optimizer.StrictSequence),
		zap.Int("max_retries", cfg.Optimizer.MaxRetries),
		zap.Bool("circuit_breaker", breaker != nil),
	)
	return &pipeline{optimizer: opt, provider: provider}
}
