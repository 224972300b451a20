// Package xkeysource 从外部来源加载 key 到 xkeypool。
//
// 支持的来源：
//   - Static: 固定列表
//   - File: 文本文件，每行一个 key，# 开头为注释
//   - Redis: Redis 集合（SMEMBERS），失败时指数退避重试
//   - Union: 合并多个来源
//
// Load 并发读取来源并只加入池中尚不存在的 key，已有 key 的租约状态不受影响。
// 加载从不移除 key。
//
// 自动加载：
//   - Watcher: 监视 key 文件，变更后（防抖）重新加载
//   - Syncer: 按 cron 计划定期加载
//
//	src, _ := xkeysource.File("/etc/xkeyring/openai.keys")
//	if _, err := xkeysource.Load(ctx, pool, src); err != nil {
//	    return err
//	}
//	w, err := xkeysource.Watch(src, pool)
//	if err != nil {
//	    return err
//	}
//	w.Start()
//	defer w.Stop()
package xkeysource
