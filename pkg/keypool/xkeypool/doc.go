// Package xkeypool 提供进程内的限流凭证（key）池。
//
// # 设计理念
//
// 一组可互换的凭证各自受外部服务的频率限制。调用方从池中借出一个 key，
// 用它完成外部调用后归还；若外部服务明确拒绝了该 key（限流、配额耗尽），
// 则"冷归还"，让它在冷却时长之后才能再次被借出。
//
// 每个 key 只有两项状态：
//   - eligibleAt: 最早可被借出的时间
//   - locked: 是否已被借出
//
// # 选择规则
//
// Acquire 在所有未锁定且 eligibleAt <= now 的 key 中选择 (eligibleAt, key) 最小者，
// 并在同一把锁内将其锁定，同一时刻一个 key 最多只有一个持有者。
// 未锁定的记录维护在有序索引（google/btree）中，选择为 O(log n)。
//
// # 错误策略
//
// 查找/选择类失败（ErrNoneAvailable、ErrKeyNotFound、ErrDuplicateKey）支持两种报告方式：
//   - 硬错误（默认）：返回哨兵错误
//   - 软错误：返回零值和 nil，适合轮询
//
// 池级默认值由 WithSoftError 设置，单次调用可用 SoftError 覆盖。
// 参数校验失败（空 key、负冷却时长、nil context）总是返回错误。
//
// # 快速开始
//
//	pool, err := xkeypool.New(xkeypool.WithBaseCooldown(time.Minute))
//	if err != nil {
//	    return err
//	}
//	_ = pool.Add(ctx, "sk-...")
//
//	key, err := pool.Acquire(ctx, time.Now())
//	if err != nil {
//	    return err // xkeypool.ErrNoneAvailable
//	}
//	rejected := callAPI(key)
//	_ = pool.Release(ctx, key, time.Now(), rejected)
//
// 需要"等到有 key 可用为止"的阻塞语义时，使用 xlease 包。
//
// # 变更通知
//
// Changed 返回的 channel 在下一次 Add/Release/Remove 时关闭，
// 等待方据此在 key 归还时立即重试，而不必轮询。
//
// # 可观测性
//
// 通过 WithMeterProvider 启用 OpenTelemetry 指标：
//   - xkeypool.acquire.total / xkeypool.release.total / xkeypool.add.total
//   - xkeypool.keys（按 locked / eligible / cooling_down 分类的观测值）
//
// 日志中应使用 Mask 或 AttrKey 输出 key，避免泄露凭证。
package xkeypool
