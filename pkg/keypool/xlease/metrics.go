package xlease

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// metricNameRunTotal 租约运行次数计数器
	metricNameRunTotal = "xlease.run.total"
	// metricNameRejectedTotal key 被拒绝次数计数器
	metricNameRejectedTotal = "xlease.rejected.total"
	// metricNameWaitDuration 等待可用 key 的耗时直方图
	metricNameWaitDuration = "xlease.wait.duration"
)

// waitBuckets 等待耗时直方图的桶边界（秒）
var waitBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300}

// Metrics 租约指标收集器
type Metrics struct {
	runTotal      metric.Int64Counter
	rejectedTotal metric.Int64Counter
	waitDuration  metric.Float64Histogram
}

// NewMetrics 创建指标收集器
// 如果 meterProvider 为 nil，返回 nil（不收集指标）
func NewMetrics(meterProvider metric.MeterProvider) (*Metrics, error) {
	if meterProvider == nil {
		return nil, nil
	}

	meter := meterProvider.Meter("xlease", metric.WithInstrumentationVersion(instrumentationVersion))
	m := &Metrics{}

	var err error
	if m.runTotal, err = meter.Int64Counter(metricNameRunTotal,
		metric.WithDescription("租约运行次数"), metric.WithUnit("{run}")); err != nil {
		return nil, err
	}
	if m.rejectedTotal, err = meter.Int64Counter(metricNameRejectedTotal,
		metric.WithDescription("key 被外部服务拒绝次数"), metric.WithUnit("{rejection}")); err != nil {
		return nil, err
	}
	if m.waitDuration, err = meter.Float64Histogram(metricNameWaitDuration,
		metric.WithDescription("等待可用 key 的耗时"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(waitBuckets...)); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRun 记录一次运行的结果
func (m *Metrics) RecordRun(ctx context.Context, pool string, err error) {
	if m == nil {
		return
	}
	m.runTotal.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String(attrPool, pool),
		attribute.String(attrResult, classifyResult(err)),
	))
}

// RecordRejected 记录一次拒绝
func (m *Metrics) RecordRejected(ctx context.Context, pool string) {
	if m == nil {
		return
	}
	m.rejectedTotal.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String(attrPool, pool),
	))
}

// RecordWait 记录一次等待的耗时
func (m *Metrics) RecordWait(ctx context.Context, pool string, d time.Duration) {
	if m == nil {
		return
	}
	m.waitDuration.Record(context.WithoutCancel(ctx), d.Seconds(), metric.WithAttributes(
		attribute.String(attrPool, pool),
	))
}
