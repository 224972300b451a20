package xlease

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName  = "xlease"
	spanNameRun = "xlease.Run"
)

// Span 属性名称（Metrics 也复用这些常量）
const (
	attrPool       = "xlease.pool"
	attrRunID      = "xlease.run_id"
	attrAttempts   = "xlease.attempts"
	attrRejections = "xlease.rejections"
	attrWaits      = "xlease.waits"
	attrResult     = "xlease.result"
)

// getTracer 获取 tracer 实例
// 如果配置了 TracerProvider 则使用它，否则使用全局默认
func getTracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName, trace.WithInstrumentationVersion(instrumentationVersion))
}

func startRunSpan(ctx context.Context, tracer trace.Tracer, pool, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, spanNameRun, trace.WithAttributes(
		attribute.String(attrPool, pool),
		attribute.String(attrRunID, runID),
	))
}

// endRunSpan 写入运行统计并结束 span
func endRunSpan(span trace.Span, st *runState, err error) {
	span.SetAttributes(
		attribute.Int(attrAttempts, st.attempts),
		attribute.Int(attrRejections, st.rejections),
		attribute.Int(attrWaits, st.waits),
		attribute.String(attrResult, classifyResult(err)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
