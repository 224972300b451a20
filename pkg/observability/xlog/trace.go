package xlog

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// 追踪字段的标准 key
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"
)

// traceHandler 从 context 中的 OpenTelemetry span 提取 trace_id/span_id 并注入日志
//
// context 中没有有效 span 时不注入任何字段。
type traceHandler struct {
	base slog.Handler
}

func newTraceHandler(base slog.Handler) *traceHandler {
	return &traceHandler{base: base}
}

// Enabled 委托给底层 handler
func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle 注入追踪字段后交给底层 handler
//
// 根据 slog 契约，修改前先 Clone record。
func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r = r.Clone()
		r.AddAttrs(
			slog.String(KeyTraceID, sc.TraceID().String()),
			slog.String(KeySpanID, sc.SpanID().String()),
		)
	}
	return h.base.Handle(ctx, r)
}

// WithAttrs 返回带额外属性的新 handler
func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{base: h.base.WithAttrs(attrs)}
}

// WithGroup 返回带分组的新 handler
func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{base: h.base.WithGroup(name)}
}
