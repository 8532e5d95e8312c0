package optimizer

import (
	"context"
	"time"

	"github.com/formflow/formflow/internal/ctxkeys"
	"github.com/formflow/formflow/llm/tokenizer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/formflow/formflow/optimizer"

// Outcome labels reported to Recorder.
const (
	OutcomeSuccess             = "success"
	OutcomeRequestInvalid      = "request_invalid"
	OutcomeReplyInvalid        = "reply_invalid"
	OutcomeProviderUnavailable = "provider_unavailable"
	OutcomeEmptyReply          = "empty_reply"
	OutcomeMalformedReply      = "malformed_reply"
	OutcomeInternal            = "internal"
)

// Optimizer is what HTTP handlers and the CLI depend on.
type Optimizer interface {
	OptimizeForm(ctx context.Context, raw []byte) (*OptimizationResult, error)
	Optimize(ctx context.Context, req *OptimizationRequest) (*OptimizationResult, error)
}

// Recorder receives per-call measurements.
type Recorder interface {
	RecordOptimization(outcome string, duration time.Duration)
	RecordPromptTokens(tokens int)
}

// Recorders fans measurements out to every non-nil r.
func Recorders(rs ...Recorder) Recorder {
	var out multiRecorder
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

type multiRecorder []Recorder

func (m multiRecorder) RecordOptimization(outcome string, duration time.Duration) {
	for _, r := range m {
		r.RecordOptimization(outcome, duration)
	}
}

func (m multiRecorder) RecordPromptTokens(tokens int) {
	for _, r := range m {
		r.RecordPromptTokens(tokens)
	}
}

// Flow is the optimization orchestrator. It holds only immutable
// configuration, so one Flow serves concurrent calls.
type Flow struct {
	invoker ModelInvoker
	logger  *zap.Logger
	metrics Recorder
	tracer  trace.Tracer
	counter tokenizer.Counter
	strict  bool
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) FlowOption {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithMetrics sets the measurement sink.
func WithMetrics(r Recorder) FlowOption {
	return func(f *Flow) { f.metrics = r }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) FlowOption {
	return func(f *Flow) {
		if t != nil {
			f.tracer = t
		}
	}
}

// WithTokenCounter sets how prompt tokens are counted for metrics.
func WithTokenCounter(c tokenizer.Counter) FlowOption {
	return func(f *Flow) {
		if c != nil {
			f.counter = c
		}
	}
}

// WithStrictSequence makes the flow reject replies whose sequence is not a
// permutation of the request's question IDs.
func WithStrictSequence(strict bool) FlowOption {
	return func(f *Flow) { f.strict = strict }
}

// NewFlow creates a Flow around invoker.
func NewFlow(invoker ModelInvoker, opts ...FlowOption) *Flow {
	f := &Flow{
		invoker: invoker,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
		counter: tokenizer.NewEstimator(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(zap.String("component", "optimizer"))
	return f
}

// OptimizeForm validates raw JSON and runs the pipeline.
func (f *Flow) OptimizeForm(ctx context.Context, raw []byte) (*OptimizationResult, error) {
	return f.run(ctx, func() (*OptimizationRequest, error) { return ValidateRequest(raw) })
}

// Optimize runs the pipeline on an already-decoded request, re-validating it first.
func (f *Flow) Optimize(ctx context.Context, req *OptimizationRequest) (*OptimizationResult, error) {
	return f.run(ctx, func() (*OptimizationRequest, error) {
		if err := req.Validate(); err != nil {
			return nil, err
		}
		return req, nil
	})
}

func (f *Flow) run(ctx context.Context, validate func() (*OptimizationRequest, error)) (res *OptimizationResult, err error) {
	start := time.Now()
	ctx, span := f.tracer.Start(ctx, "optimizer.OptimizeForm")
	defer span.End()

	var req *OptimizationRequest
	defer func() {
		outcome := Outcome(err)
		elapsed := time.Since(start)
		if f.metrics != nil {
			f.metrics.RecordOptimization(outcome, elapsed)
		}
		span.SetAttributes(attribute.String("optimizer.outcome", outcome))

		fields := []zap.Field{
			zap.String("outcome", outcome),
			zap.Duration("latency", elapsed),
		}
		if req != nil {
			fields = append(fields, zap.String("form_id", req.FormID), zap.Int("responses", len(req.Responses)))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			f.logger.Warn("optimization failed", append(fields, zap.Error(err))...)
			return
		}
		span.SetStatus(codes.Ok, "")
		f.logger.Info("optimization completed", append(fields, zap.Int("sequence_length", len(res.OptimizedSequence)))...)
	}()

	// 1. request
	req, err = validate()
	if err != nil {
		req = nil
		return nil, err
	}
	ctx = ctxkeys.WithFormID(ctx, req.FormID)
	span.SetAttributes(
		attribute.String("form.id", req.FormID),
		attribute.Int("form.responses", len(req.Responses)),
	)

	// 2. prompt
	prompt := Compile(req)
	if f.metrics != nil {
		f.metrics.RecordPromptTokens(tokenizer.Count(f.counter, string(prompt), f.logger))
	}

	// 3. provider; errors surface unchanged
	raw, err := f.invoker.Invoke(ctx, prompt, ResultSchema())
	if err != nil {
		return nil, err
	}

	// 4. reply
	result, err := ValidateResponse(raw)
	if err != nil {
		return nil, err
	}
	if f.strict {
		if err := ValidateSequenceCoverage(req, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Outcome maps an error returned by the pipeline to its metrics label.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	e, ok := AsError(err)
	if !ok {
		return OutcomeInternal
	}
	switch e.Kind {
	case KindValidation:
		if e.Side == SideReply {
			return OutcomeReplyInvalid
		}
		return OutcomeRequestInvalid
	case KindProviderUnavailable:
		return OutcomeProviderUnavailable
	case KindEmptyReply:
		return OutcomeEmptyReply
	case KindMalformedReply:
		return OutcomeMalformedReply
	default:
		return OutcomeInternal
	}
}
