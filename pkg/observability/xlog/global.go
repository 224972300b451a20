package xlog

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
)

// =============================================================================
// 全局 Logger
//
// 定位：命令行工具等简单场景。库代码推荐通过选项显式注入 Logger。
// =============================================================================

var globalLogger atomic.Pointer[LoggerWithLevel]

// Default 返回全局默认 Logger
//
// 未设置时惰性创建（stderr，Info 级别，text 格式）。
func Default() LoggerWithLevel {
	if l := globalLogger.Load(); l != nil {
		return *l
	}
	levelVar := new(slog.LevelVar)
	var l LoggerWithLevel = &xlogger{
		handler:  newTraceHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})),
		levelVar: levelVar,
	}
	if globalLogger.CompareAndSwap(nil, &l) {
		return l
	}
	return *globalLogger.Load()
}

// SetDefault 替换全局默认 Logger，nil 会被忽略
func SetDefault(l LoggerWithLevel) {
	if l == nil {
		return
	}
	globalLogger.Store(&l)
}

// ResetDefault 重置全局 Logger 为未初始化状态（仅用于测试）
func ResetDefault() {
	globalLogger.Store(nil)
}

// Debug 使用全局 Logger 记录 Debug 级别日志
func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().Debug(ctx, msg, attrs...)
}

// Info 使用全局 Logger 记录 Info 级别日志
func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().Info(ctx, msg, attrs...)
}

// Warn 使用全局 Logger 记录 Warn 级别日志
func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().Warn(ctx, msg, attrs...)
}

// Error 使用全局 Logger 记录 Error 级别日志
func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().Error(ctx, msg, attrs...)
}
