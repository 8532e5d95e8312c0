package optimizer

import (
	"context"
	"errors"

	"github.com/formflow/formflow/llm/circuitbreaker"
	"github.com/formflow/formflow/llm/retry"
	"go.uber.org/zap"
)

// ResilientOptimizer wraps an Optimizer with retry and an optional circuit
// breaker. Only retryable errors (ProviderUnavailable, EmptyReply,
// MalformedReply) are retried and counted by the breaker; validation errors
// return immediately.
type ResilientOptimizer struct {
	next    Optimizer
	retryer *retry.Retryer
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewResilientOptimizer wraps next. A nil policy uses retry.DefaultRetryPolicy;
// a nil breaker disables circuit breaking.
func NewResilientOptimizer(next Optimizer, policy *retry.RetryPolicy, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *ResilientOptimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "resilient_optimizer"))
	return &ResilientOptimizer{
		next:    next,
		retryer: retry.NewBackoffRetryer(policy, logger),
		breaker: breaker,
		logger:  logger,
	}
}

func (r *ResilientOptimizer) OptimizeForm(ctx context.Context, raw []byte) (*OptimizationResult, error) {
	// Invalid input goes straight through so it is logged and counted once.
	req, err := ValidateRequest(raw)
	if err != nil {
		return r.next.OptimizeForm(ctx, raw)
	}
	return r.Optimize(ctx, req)
}

func (r *ResilientOptimizer) Optimize(ctx context.Context, req *OptimizationRequest) (*OptimizationResult, error) {
	res, err := retry.DoWithResult(ctx, r.retryer, func(ctx context.Context) (*OptimizationResult, error) {
		if r.breaker == nil {
			return r.next.Optimize(ctx, req)
		}
		res, err := circuitbreaker.CallWithResult(ctx, r.breaker, func(ctx context.Context) (*OptimizationResult, error) {
			return r.next.Optimize(ctx, req)
		})
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyCallsInHalfOpen) {
			return nil, providerUnavailable("", err)
		}
		return res, err
	})

	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		r.logger.Warn("optimization retries exhausted", zap.Int("attempts", exhausted.Attempts))
		err = exhausted.Err
	}
	return res, err
}
