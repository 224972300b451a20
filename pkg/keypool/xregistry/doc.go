// Package xregistry 按名称管理多个 xkeypool 池。
//
// 每个外部服务一个池，调用方按名称取用；空名称表示默认池。
//
//	reg := xregistry.New()
//	_ = reg.Register("openai", openaiPool, xregistry.AsDefault())
//	_ = reg.Register("search", searchPool)
//
//	pool, err := reg.Get("") // openai
//
// 包级函数 Register/Get 操作进程内的默认注册表。
package xregistry
