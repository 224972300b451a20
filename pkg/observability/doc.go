// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持按大小轮转
//
// 指标和链路追踪直接使用 OpenTelemetry API，由各包通过
// WithMeterProvider / WithTracerProvider 选项接入。
package observability
