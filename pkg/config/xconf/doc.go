// Package xconf 加载 xkeyring 配置，基于 koanf 实现。
//
// # 支持的格式
//
//   - YAML（推荐）：.yaml, .yml
//   - JSON：.json
//
// # 默认值与校验
//
// 解析前以 Default() 填充结构体，配置中未出现的字段保持默认值；
// 池的 base_cooldown 为 0 时使用 xkeypool.DefaultBaseCooldown。
// Load 和 Parse 返回前执行 Validate，一次报告所有问题。
//
// 时长字段使用 Go 时长格式（"30s"、"5m"）。
// Unmarshal 使用 mapstructure 的弱类型转换（例如字符串 "3" 可转为 int 3）。
//
// # 用法
//
//	cfg, err := xconf.Load("/etc/xkeyring/config.yaml")
//	if err != nil {
//	    return err // errors.Is(err, xconf.ErrInvalidConfig) 等
//	}
//	pool, ok := cfg.Pool("") // 默认池
package xconf
