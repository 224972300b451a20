package bootstrap

import (
	"io"
	"os"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type options struct {
	logOutput      io.Writer
	autoReload     bool
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// Option 配置 App 的构建
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logOutput:  os.Stderr,
		autoReload: true,
	}
}

// WithLogOutput 设置未配置日志文件时的日志输出，nil 会被忽略
func WithLogOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.logOutput = w
		}
	}
}

// WithoutAutoReload 不启动 key 文件监视和定期同步，只做一次初始加载
func WithoutAutoReload() Option {
	return func(o *options) {
		o.autoReload = false
	}
}

// WithMeterProvider 为所有池和 Leaser 启用指标
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithTracerProvider 设置 Leaser 使用的 TracerProvider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}
