package xkeysource

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/xkeyring/pkg/observability/xlog"
)

// DefaultDebounce 文件变更的默认防抖时长
const DefaultDebounce = 100 * time.Millisecond

// LoadCallback 每次自动加载完成后调用，added 为新加入的 key 数量
type LoadCallback func(added int, err error)

// options Watcher 和 Syncer 的共用配置
type options struct {
	debounce time.Duration
	logger   xlog.Logger
	onLoad   LoadCallback
	location *time.Location
	parser   cron.Parser
}

// Option Watcher 和 Syncer 的配置选项
type Option func(*options)

func defaultOptions() *options {
	return &options{
		debounce: DefaultDebounce,
		logger:   xlog.Discard(),
		location: time.Local,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// WithDebounce 设置文件变更的防抖时长（仅 Watcher）
// 在该时长内的多次变更只触发一次加载，非正值保持默认。
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithLogger 设置日志记录器，nil 会被忽略
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOnLoad 设置每次自动加载完成后的回调
func WithOnLoad(fn LoadCallback) Option {
	return func(o *options) {
		o.onLoad = fn
	}
}

// WithLocation 设置同步计划的时区（仅 Syncer），nil 会被忽略
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithSeconds 启用秒级同步计划表达式（仅 Syncer）
//
//	syncer, _ := xkeysource.NewSyncer("*/30 * * * * *", pool, sources, xkeysource.WithSeconds())
func WithSeconds() Option {
	return func(o *options) {
		o.parser = cron.NewParser(
			cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		)
	}
}
