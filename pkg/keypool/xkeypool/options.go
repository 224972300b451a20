package xkeypool

import (
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// =============================================================================
// 默认值
// =============================================================================

const (
	// DefaultName 默认池名称
	DefaultName = "default"

	// DefaultBaseCooldown 默认冷却时长（冷归还时使用）
	DefaultBaseCooldown = 60 * time.Second

	// btreeDegree 有序索引的 B 树阶数
	btreeDegree = 16

	// instrumentationVersion 指标的 instrumentation 版本
	instrumentationVersion = "0.1.0"
)

// =============================================================================
// 池配置选项
// =============================================================================

// options 池内部配置
type options struct {
	name          string
	baseCooldown  time.Duration
	softError     bool
	clock         func() time.Time
	meterProvider metric.MeterProvider
}

// Option 池配置选项函数
type Option func(*options)

// defaultOptions 返回默认池配置
func defaultOptions() *options {
	return &options{
		name:         DefaultName,
		baseCooldown: DefaultBaseCooldown,
		clock:        time.Now,
	}
}

// WithName 设置池名称，用于指标和日志。
// 空值表示保持默认名称。
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithBaseCooldown 设置池级冷却时长。
// 冷归还且调用方未通过 WithCooldown 指定时长时使用。
// 负值会在 New() 的 validate() 中返回错误。
func WithBaseCooldown(d time.Duration) Option {
	return func(o *options) {
		o.baseCooldown = d
	}
}

// WithSoftError 设置池级软错误策略。
//
// 启用时，查找/选择类失败（ErrNoneAvailable、ErrKeyNotFound、ErrDuplicateKey）
// 以零值返回而不是错误，适合轮询式调用。单次调用可通过 SoftError 覆盖。
// 默认关闭（快速失败）。
func WithSoftError(soft bool) Option {
	return func(o *options) {
		o.softError = soft
	}
}

// WithClock 设置时间来源，用于 Add 的默认可用时间。
// 主要用于测试。nil 会被忽略。
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithMeterProvider 设置 OpenTelemetry MeterProvider。
// 不设置时不收集指标。
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// validate 验证池配置
func (o *options) validate() error {
	if strings.TrimSpace(o.name) != o.name {
		return fmt.Errorf("%w: name cannot have leading or trailing whitespace", ErrInvalidName)
	}
	if o.baseCooldown < 0 {
		return fmt.Errorf("%w: base cooldown must not be negative, got %s", ErrInvalidCooldown, o.baseCooldown)
	}
	return nil
}

// =============================================================================
// 单次调用选项
// =============================================================================

// callOptions 单次调用的内部配置
type callOptions struct {
	softError     bool
	cooldown      time.Duration
	cooldownSet   bool
	eligibleAt    time.Time
	eligibleAtSet bool
}

// CallOption 单次调用的配置选项函数
type CallOption func(*callOptions)

// SoftError 覆盖本次调用的软错误策略。
//
//	key, err := pool.Acquire(ctx, time.Now(), xkeypool.SoftError(true))
//	if err != nil {
//	    return err // 结构性错误
//	}
//	if key == "" {
//	    // 暂无可用 key
//	}
func SoftError(soft bool) CallOption {
	return func(o *callOptions) {
		o.softError = soft
	}
}

// WithCooldown 覆盖本次冷归还的冷却时长，仅对 Release(cold=true) 生效。
func WithCooldown(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.cooldown = d
		o.cooldownSet = true
	}
}

// WithEligibleAt 设置 Add 时 key 的首次可用时间，默认为池时钟的当前时间。
func WithEligibleAt(t time.Time) CallOption {
	return func(o *callOptions) {
		o.eligibleAt = t
		o.eligibleAtSet = true
	}
}
