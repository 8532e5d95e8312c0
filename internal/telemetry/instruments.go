package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/formflow/formflow/optimizer"

// OptimizerInstruments 通过 OTel Meter 上报优化流程指标，
// 与 Prometheus Collector 并行，走 OTLP 导出。
type OptimizerInstruments struct {
	optimizations metric.Int64Counter
	duration      metric.Float64Histogram
	promptTokens  metric.Int64Histogram
}

// NewOptimizerInstruments 在 mp 上注册指标，mp 为 nil 时使用全局 MeterProvider。
// 遥测关闭时全局 provider 为 noop，记录调用不产生开销。
func NewOptimizerInstruments(mp metric.MeterProvider) (*OptimizerInstruments, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	var (
		in  OptimizerInstruments
		err error
	)

	in.optimizations, err = meter.Int64Counter("formflow.optimization.total",
		metric.WithDescription("Total number of form optimizations"),
		metric.WithUnit("{optimization}"))
	if err != nil {
		return nil, fmt.Errorf("create optimization counter: %w", err)
	}

	in.duration, err = meter.Float64Histogram("formflow.optimization.duration",
		metric.WithDescription("Form optimization duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60))
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	in.promptTokens, err = meter.Int64Histogram("formflow.prompt.tokens",
		metric.WithDescription("Estimated prompt size"),
		metric.WithUnit("{token}"),
		metric.WithExplicitBucketBoundaries(64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384))
	if err != nil {
		return nil, fmt.Errorf("create prompt token histogram: %w", err)
	}

	return &in, nil
}

// RecordOptimization 记录一次优化调用
func (in *OptimizerInstruments) RecordOptimization(outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	ctx := context.Background()
	in.optimizations.Add(ctx, 1, attrs)
	in.duration.Record(ctx, duration.Seconds(), attrs)
}

// RecordPromptTokens 记录 prompt 的 Token 估算值
func (in *OptimizerInstruments) RecordPromptTokens(tokens int) {
	in.promptTokens.Record(context.Background(), int64(tokens))
}
