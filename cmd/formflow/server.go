package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/formflow/formflow/api/handlers"
	"github.com/formflow/formflow/config"
	"github.com/formflow/formflow/internal/metrics"
	"github.com/formflow/formflow/internal/server"
	"github.com/formflow/formflow/llm"
	"github.com/formflow/formflow/optimizer"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 FormFlow 的主服务器：API 与 metrics 分端口运行
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	optimizer optimizer.Optimizer
	provider  llm.Provider
	collector *metrics.Collector

	healthHandler   *handlers.HealthHandler
	optimizeHandler *handlers.OptimizeHandler

	httpManager    *server.Manager
	metricsManager *server.Manager

	// rate limiter 清理协程生命周期
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, p *pipeline, collector *metrics.Collector, logger *zap.Logger) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		optimizer: p.optimizer,
		provider:  p.provider,
		collector: collector,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Handler 构建带中间件链的 API handler
func (s *Server) Handler() http.Handler {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewProviderHealthCheck(s.provider))
	s.optimizeHandler = handlers.NewOptimizeHandler(s.optimizer, s.cfg.Server.MaxBodyBytes, s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))
	mux.HandleFunc("/api/v1/forms/optimize", s.optimizeHandler.HandleOptimize)

	rateCtx, cancel := context.WithCancel(context.Background())
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	s.rateLimiterCancel = cancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		SecurityHeaders(),
		RequestLogger(s.logger),
	}
	if s.collector != nil {
		middlewares = append(middlewares, MetricsMiddleware(s.collector))
	}
	middlewares = append(middlewares,
		RateLimiter(rateCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger))

	return Chain(mux, middlewares...)
}

// Start 启动 API 与 metrics 服务器（非阻塞）
func (s *Server) Start() error {
	s.httpManager = server.NewManager("api", s.Handler(),
		server.FromServerConfig(s.cfg.Server, s.cfg.Server.HTTPPort), s.logger)
	if err := s.httpManager.Start(); err != nil {
		return fmt.Errorf("start api server: %w", err)
	}

	if s.cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.metricsManager = server.NewManager("metrics", mux,
			server.FromServerConfig(s.cfg.Server, s.cfg.Server.MetricsPort), s.logger)
		if err := s.metricsManager.Start(); err != nil {
			_ = s.httpManager.Shutdown(context.Background())
			return fmt.Errorf("start metrics server: %w", err)
		}
	}

	s.logger.Info("all servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// Wait 阻塞到 ctx 结束或 API 服务异常，然后优雅关闭全部服务
func (s *Server) Wait(ctx context.Context) error {
	err := s.httpManager.Wait(ctx)
	return errors.Join(err, s.shutdown(context.WithoutCancel(ctx)))
}

func (s *Server) shutdown(ctx context.Context) error {
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	var err error
	if s.metricsManager != nil {
		if e := s.metricsManager.Shutdown(ctx); e != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(e))
			err = e
		}
	}
	s.logger.Info("graceful shutdown completed")
	return err
}
