// Package keypool 提供限流凭证（key）的租用管理。
//
// 子包列表：
//   - xkeypool: 进程内 key 池，按最早可用时间选择 key
//   - xlease: "获取-使用-归还"租约协议，含等待与拒绝重试
//   - xkeysource: 从文件、Redis 等来源加载 key，支持监视与定期同步
//   - xregistry: 按名称管理多个池
package keypool
