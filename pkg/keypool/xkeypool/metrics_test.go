package xkeypool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMeterProvider 创建用于测试的 MeterProvider
func newTestMeterProvider(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

// collect 收集指标并按名称索引
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

// sumWhere 对满足属性条件的数据点求和
func sumWhere(t *testing.T, m metricdata.Metrics, key string, value attribute.Value) int64 {
	t.Helper()
	var total int64
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		for _, dp := range data.DataPoints {
			if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v == value {
				total += dp.Value
			}
		}
	case metricdata.Gauge[int64]:
		for _, dp := range data.DataPoints {
			if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v == value {
				total += dp.Value
			}
		}
	default:
		t.Fatalf("unexpected data type %T", m.Data)
	}
	return total
}

func TestNewMetrics(t *testing.T) {
	t.Run("with noop provider", func(t *testing.T) {
		metrics, err := NewMetrics(noop.NewMeterProvider(), nil)
		require.NoError(t, err)
		assert.NotNil(t, metrics)
	})

	t.Run("nil provider returns nil", func(t *testing.T) {
		metrics, err := NewMetrics(nil, nil)
		assert.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("nil receiver is safe", func(t *testing.T) {
		var m *Metrics
		ctx := context.Background()
		m.RecordAcquire(ctx, "p", nil)
		m.RecordRelease(ctx, "p", true, ErrKeyNotFound)
		m.RecordAdd(ctx, "p", ErrDuplicateKey)
	})
}

func TestMetrics_PoolOperations(t *testing.T) {
	mp, reader := newTestMeterProvider(t)
	p := newTestPool(t, WithName("metrics"), WithMeterProvider(mp))
	ctx := context.Background()

	addKeys(t, p, "a", "b")
	assert.Error(t, p.Add(ctx, "a"))
	assert.ErrorIs(t, p.Add(ctx, "  "), ErrInvalidKey)
	require.NoError(t, p.Add(ctx, "c", WithEligibleAt(t0.Add(time.Hour))))

	_, err := p.Acquire(ctx, t0)
	require.NoError(t, err)
	_, err = p.Acquire(ctx, t0)
	require.NoError(t, err)
	_, err = p.Acquire(ctx, t0, SoftError(true))
	require.NoError(t, err)

	require.NoError(t, p.Release(ctx, "a", t0, true))
	require.NoError(t, p.Release(ctx, "missing", t0, false, SoftError(true)))
	assert.ErrorIs(t, p.Release(ctx, "b", t0, true, WithCooldown(-time.Second)), ErrInvalidCooldown)

	got := collect(t, reader)

	acquire := got[metricNameAcquireTotal]
	assert.Equal(t, int64(2), sumWhere(t, acquire, attrAcquired, attribute.BoolValue(true)))
	assert.Equal(t, int64(1), sumWhere(t, acquire, attrAcquired, attribute.BoolValue(false)))
	assert.Equal(t, int64(1), sumWhere(t, acquire, attrError, attribute.StringValue(ErrClassNoneAvailable)))

	release := got[metricNameReleaseTotal]
	assert.Equal(t, int64(1), sumWhere(t, release, attrFound, attribute.BoolValue(true)))
	assert.Equal(t, int64(1), sumWhere(t, release, attrFound, attribute.BoolValue(false)))
	assert.Equal(t, int64(1), sumWhere(t, release, attrError, attribute.StringValue(ErrClassKeyNotFound)))
	assert.Equal(t, int64(1), sumWhere(t, release, attrError, attribute.StringValue(ErrClassInvalid)))

	add := got[metricNameAddTotal]
	assert.Equal(t, int64(3), sumWhere(t, add, attrAdded, attribute.BoolValue(true)))
	assert.Equal(t, int64(2), sumWhere(t, add, attrAdded, attribute.BoolValue(false)))
	assert.Equal(t, int64(1), sumWhere(t, add, attrError, attribute.StringValue(ErrClassDuplicateKey)))
	assert.Equal(t, int64(1), sumWhere(t, add, attrError, attribute.StringValue(ErrClassInvalid)))

	// t0 时刻：b 被租出，a 冷却中，c 尚未到可用时间
	keys := got[metricNameKeys]
	assert.Equal(t, int64(1), sumWhere(t, keys, attrState, attribute.StringValue(StateLocked)))
	assert.Equal(t, int64(0), sumWhere(t, keys, attrState, attribute.StringValue(StateEligible)))
	assert.Equal(t, int64(2), sumWhere(t, keys, attrState, attribute.StringValue(StateCoolingDown)))
	assert.Equal(t, int64(3), sumWhere(t, keys, attrPool, attribute.StringValue("metrics")))
}
