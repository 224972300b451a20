package xlease

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xkeyring/pkg/observability/xlog"
)

const (
	// DefaultSafetyMargin 等待即将可用的 key 时额外等待的时长，吸收时钟误差
	DefaultSafetyMargin = time.Second

	// DefaultLockedWait 所有 key 都被其他会话持有时，等待归还的最长时长
	DefaultLockedWait = 30 * time.Second

	// instrumentationVersion 追踪和指标的 instrumentation 版本
	instrumentationVersion = "0.1.0"
)

// options Leaser 内部配置
type options struct {
	safetyMargin   time.Duration
	lockedWait     time.Duration
	maxWait        time.Duration
	maxRejections  int
	now            func() time.Time
	logger         xlog.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option Leaser 配置选项函数
type Option func(*options)

func defaultOptions() *options {
	return &options{
		safetyMargin: DefaultSafetyMargin,
		lockedWait:   DefaultLockedWait,
		now:          time.Now,
		logger:       xlog.Discard(),
	}
}

// WithSafetyMargin 设置等待即将可用 key 时的额外等待时长
func WithSafetyMargin(d time.Duration) Option {
	return func(o *options) {
		o.safetyMargin = d
	}
}

// WithLockedWait 设置所有 key 都被持有时等待归还的最长时长
//
// 0 表示不等待，直接返回 ErrNoAvailableKeys。
func WithLockedWait(d time.Duration) Option {
	return func(o *options) {
		o.lockedWait = d
	}
}

// WithMaxWait 设置单次运行的累计等待上限，超过后返回 ErrWaitExceeded
//
// 0 表示不限制（默认），此时以 ctx 的 deadline 作为上限。
func WithMaxWait(d time.Duration) Option {
	return func(o *options) {
		o.maxWait = d
	}
}

// WithMaxRejections 设置单次运行允许的最大拒绝次数，达到后返回 ErrRejectionsExhausted
//
// 0 表示不限制（默认）。
func WithMaxRejections(n int) Option {
	return func(o *options) {
		o.maxRejections = n
	}
}

// WithNow 设置时间来源，用于向池传递 now
// nil 会被忽略。
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger 设置日志记录器
// nil 会被忽略。
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracerProvider 设置 OpenTelemetry TracerProvider
// 不设置时使用全局 TracerProvider。
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithMeterProvider 设置 OpenTelemetry MeterProvider
// 不设置时不收集指标。
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

func (o *options) validate() error {
	if o.safetyMargin < 0 {
		return fmt.Errorf("%w: safety margin must not be negative", ErrInvalidOption)
	}
	if o.lockedWait < 0 {
		return fmt.Errorf("%w: locked wait must not be negative", ErrInvalidOption)
	}
	if o.maxWait < 0 {
		return fmt.Errorf("%w: max wait must not be negative", ErrInvalidOption)
	}
	if o.maxRejections < 0 {
		return fmt.Errorf("%w: max rejections must not be negative", ErrInvalidOption)
	}
	return nil
}
