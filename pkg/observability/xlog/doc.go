// Package xlog 基于 log/slog 的结构化日志库。
//
// # 核心功能
//
//   - Builder 模式配置（输出目标、级别、格式、轮转）
//   - 自动从 context 注入 OpenTelemetry trace_id、span_id
//   - 动态级别调整（运行时热更新）
//   - 全局 Logger 便利函数
//
// # 创建 Logger
//
//	logger, cleanup, err := xlog.New().
//	    SetLevelString("debug").
//	    SetFormat("json").
//	    SetRotation("/var/log/xkeyring.log").
//	    Build()
//	if err != nil {
//	    return err
//	}
//	defer cleanup()
//
// 遇到第一个配置错误后，Build 返回该错误。
// 文件轮转由 gopkg.in/natefinch/lumberjack.v2 完成。
//
// # 便捷属性
//
// [Err]、[Duration]、[Component]、[Operation]、[Count]、[Pool]、[RunID]。
// 凭证类数据不要直接写入日志，使用 xkeypool.AttrKey 输出脱敏后的 key。
//
// # 库代码中的 Logger
//
// 库通过选项接收 Logger，未注入时使用 [Discard]，不向宿主进程输出任何内容。
package xlog
