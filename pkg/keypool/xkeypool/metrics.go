package xkeypool

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// metricNameAcquireTotal 获取 key 次数计数器
	metricNameAcquireTotal = "xkeypool.acquire.total"
	// metricNameReleaseTotal 归还 key 次数计数器
	metricNameReleaseTotal = "xkeypool.release.total"
	// metricNameAddTotal 添加 key 次数计数器
	metricNameAddTotal = "xkeypool.add.total"
	// metricNameKeys 按状态分类的 key 数量
	metricNameKeys = "xkeypool.keys"
)

// 指标属性键
const (
	attrPool     = "xkeypool.pool"
	attrAcquired = "xkeypool.acquired"
	attrCold     = "xkeypool.cold"
	attrFound    = "xkeypool.found"
	attrAdded    = "xkeypool.added"
	attrState    = "xkeypool.state"
	attrError    = "xkeypool.error"
)

// key 状态标签值
const (
	StateLocked      = "locked"
	StateEligible    = "eligible"
	StateCoolingDown = "cooling_down"
)

// Metrics key 池指标收集器
type Metrics struct {
	meter        metric.Meter
	acquireTotal metric.Int64Counter
	releaseTotal metric.Int64Counter
	addTotal     metric.Int64Counter
	keys         metric.Int64ObservableGauge
}

// NewMetrics 创建指标收集器
// 如果 meterProvider 为 nil，返回 nil（不收集指标）。
// pool 非 nil 时注册按状态分类的 key 数量观测指标。
func NewMetrics(meterProvider metric.MeterProvider, pool *Pool) (*Metrics, error) {
	if meterProvider == nil {
		return nil, nil
	}

	m := &Metrics{
		meter: meterProvider.Meter("xkeypool",
			metric.WithInstrumentationVersion(instrumentationVersion),
		),
	}

	var err error
	if m.acquireTotal, err = m.meter.Int64Counter(metricNameAcquireTotal,
		metric.WithDescription("key 获取次数"), metric.WithUnit("{acquire}")); err != nil {
		return nil, err
	}
	if m.releaseTotal, err = m.meter.Int64Counter(metricNameReleaseTotal,
		metric.WithDescription("key 归还次数"), metric.WithUnit("{release}")); err != nil {
		return nil, err
	}
	if m.addTotal, err = m.meter.Int64Counter(metricNameAddTotal,
		metric.WithDescription("key 添加次数"), metric.WithUnit("{add}")); err != nil {
		return nil, err
	}

	if pool != nil {
		if m.keys, err = m.meter.Int64ObservableGauge(metricNameKeys,
			metric.WithDescription("按状态分类的 key 数量"), metric.WithUnit("{key}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				observeStats(o, pool.Name(), pool.Stats(pool.opts.clock()))
				return nil
			})); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func observeStats(o metric.Int64Observer, pool string, s Stats) {
	for _, v := range []struct {
		state string
		n     int
	}{
		{StateLocked, s.Locked},
		{StateEligible, s.Eligible},
		{StateCoolingDown, s.CoolingDown},
	} {
		o.Observe(int64(v.n), metric.WithAttributes(
			attribute.String(attrPool, pool),
			attribute.String(attrState, v.state),
		))
	}
}

// RecordAcquire 记录获取结果
// err 为 nil 表示获取成功，否则附加 ClassifyError 给出的错误分类。
func (m *Metrics) RecordAcquire(ctx context.Context, pool string, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(attrPool, pool),
		attribute.Bool(attrAcquired, err == nil),
	}
	m.acquireTotal.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(withErrorClass(attrs, err)...))
}

// RecordRelease 记录归还结果
func (m *Metrics) RecordRelease(ctx context.Context, pool string, cold bool, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(attrPool, pool),
		attribute.Bool(attrCold, cold),
		attribute.Bool(attrFound, !IsKeyNotFound(err)),
	}
	m.releaseTotal.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(withErrorClass(attrs, err)...))
}

// RecordAdd 记录添加结果
func (m *Metrics) RecordAdd(ctx context.Context, pool string, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(attrPool, pool),
		attribute.Bool(attrAdded, err == nil),
	}
	m.addTotal.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(withErrorClass(attrs, err)...))
}

func withErrorClass(attrs []attribute.KeyValue, err error) []attribute.KeyValue {
	if err == nil {
		return attrs
	}
	return append(attrs, attribute.String(attrError, ClassifyError(err)))
}
