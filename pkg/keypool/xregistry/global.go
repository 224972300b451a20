package xregistry

import (
	"sync/atomic"

	"github.com/omeyang/xkeyring/pkg/keypool/xkeypool"
)

// 包级默认注册表
var defaultRegistry atomic.Pointer[Registry]

func init() {
	defaultRegistry.Store(New())
}

// Global 返回包级默认注册表
func Global() *Registry {
	return defaultRegistry.Load()
}

// SetGlobal 替换包级默认注册表，nil 会被忽略
//
// 返回被替换的注册表，便于测试中恢复。
func SetGlobal(r *Registry) *Registry {
	if r == nil {
		return defaultRegistry.Load()
	}
	return defaultRegistry.Swap(r)
}

// Register 在默认注册表中注册池
func Register(name string, pool *xkeypool.Pool, opts ...RegisterOption) error {
	return Global().Register(name, pool, opts...)
}

// Get 从默认注册表获取池
func Get(name string) (*xkeypool.Pool, error) {
	return Global().Get(name)
}
