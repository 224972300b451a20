package xregistry

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/omeyang/xkeyring/pkg/keypool/xkeypool"
)

// Registry 按名称管理多个 key 池
//
// 不同外部服务的凭证放在不同的池中，调用方按名称取用。
// 所有方法可安全地并发调用。
type Registry struct {
	mu       sync.RWMutex
	pools    map[string]*xkeypool.Pool
	order    []string
	fallback string // 显式指定的默认池，为空时使用第一个注册的池
}

// RegisterOption 注册选项
type RegisterOption func(*registerOptions)

type registerOptions struct {
	asDefault bool
}

// AsDefault 将池设为默认池，Get("") 返回该池
func AsDefault() RegisterOption {
	return func(o *registerOptions) {
		o.asDefault = true
	}
}

// New 创建空注册表
func New() *Registry {
	return &Registry{pools: make(map[string]*xkeypool.Pool)}
}

// Register 以 name 注册池
//
// 同名池已存在时返回 ErrDuplicatePool，不会覆盖。
// 多次使用 AsDefault 时以最后一次为准。
func (r *Registry) Register(name string, pool *xkeypool.Pool, opts ...RegisterOption) error {
	if name == "" || strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidPoolName, name)
	}
	if pool == nil {
		return ErrNilPool
	}

	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePool, name)
	}
	r.pools[name] = pool
	r.order = append(r.order, name)
	if o.asDefault {
		r.fallback = name
	}
	return nil
}

// Get 按名称获取池
//
// name 为空时返回默认池：AsDefault 指定的池，否则为第一个注册的池。
func (r *Registry) Get(name string) (*xkeypool.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultNameLocked()
		if name == "" {
			return nil, fmt.Errorf("%w: registry is empty", ErrPoolNotFound)
		}
	}
	pool, ok := r.pools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, name)
	}
	return pool, nil
}

// Default 返回默认池的名称，注册表为空时返回空字符串
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultNameLocked()
}

func (r *Registry) defaultNameLocked() string {
	if r.fallback != "" {
		return r.fallback
	}
	if len(r.order) > 0 {
		return r.order[0]
	}
	return ""
}

// Names 返回所有已注册的池名（按字母排序）
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := slices.Clone(r.order)
	slices.Sort(names)
	return names
}

// Len 返回已注册池的数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

// Each 按注册顺序遍历所有池，fn 返回 false 时停止
//
// 遍历期间持有读锁，fn 中不能调用 Register。
func (r *Registry) Each(fn func(name string, pool *xkeypool.Pool) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		if !fn(name, r.pools[name]) {
			return
		}
	}
}
