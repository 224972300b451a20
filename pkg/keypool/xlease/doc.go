// Package xlease 实现基于 xkeypool 的"获取-使用-归还"租约协议。
//
// # 协议
//
// RunWithLeasedKey 循环执行：
//
//  1. 从池中获取最早可用的 key
//  2. 获取成功：以该 key 执行操作，按结果归还
//     - 成功：正常归还，返回结果
//     - 被拒绝（errors.Is(err, ErrKeyRejected)）：冷归还，回到第 1 步
//     - 其他错误：正常归还，原样返回错误
//  3. 获取失败：查看最早即将可用的 key，等到其可用时间加安全余量后回到第 1 步；
//     等待期间若池中有 key 被添加或归还，立即重试
//
// 池为空时返回 ErrNoAvailableKeys。所有 key 都被其他会话持有时，
// 最多等待 WithLockedWait 指定的时长。
//
// 操作 panic 时 key 同样会被归还，panic 继续向上传播。
//
// # 拒绝
//
// 操作通过 Reject / RejectFor 表示 key 被外部服务拒绝：
//
//	resp, err := client.Do(req.WithContext(ctx))
//	if err != nil {
//	    return nil, err
//	}
//	if resp.StatusCode == http.StatusTooManyRequests {
//	    return nil, xlease.RejectFor(errors.New(resp.Status), retryAfter(resp))
//	}
//
// # 上限
//
// 默认不限制等待时长和拒绝次数，由 ctx 的 deadline 控制整体耗时。
// 需要时可通过 WithMaxWait、WithMaxRejections 设置上限。
//
// # 可观测性
//
//   - 追踪：每次运行一个 span（xlease.Run），记录尝试、拒绝、等待次数
//   - 指标：xlease.run.total、xlease.rejected.total、xlease.wait.duration
//   - 日志：通过 WithLogger 注入 xlog.Logger，key 以脱敏形式输出
package xlease
