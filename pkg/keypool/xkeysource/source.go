package xkeysource

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/omeyang/xkeyring/pkg/keypool/xkeypool"
)

//go:generate mockgen -source=source.go -destination=mock_source_test.go -package=xkeysource Source

// Source key 来源
//
// Keys 返回的 key 已去除首尾空白、去重，保持首次出现的顺序。
type Source interface {
	// Name 返回来源名称，用于日志和错误信息
	Name() string

	// Keys 读取当前的全部 key
	Keys(ctx context.Context) ([]string, error)
}

// Pool 加载 key 的目标池，*xkeypool.Pool 实现了该接口
type Pool interface {
	Add(ctx context.Context, key string, opts ...xkeypool.CallOption) error
}

// 编译时接口检查
var (
	_ Pool   = (*xkeypool.Pool)(nil)
	_ Source = (*staticSource)(nil)
	_ Source = (*unionSource)(nil)
)

// Dedupe 去除空白 key 和重复 key，保持首次出现的顺序
func Dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// =============================================================================
// Static
// =============================================================================

type staticSource struct {
	keys []string
}

// Static 返回固定 key 列表的来源
func Static(keys ...string) Source {
	return &staticSource{keys: Dedupe(keys)}
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) Keys(context.Context) ([]string, error) {
	return append([]string(nil), s.keys...), nil
}

// =============================================================================
// Union
// =============================================================================

type unionSource struct {
	sources []Source
}

// Union 按顺序合并多个来源，结果去重
//
// 任一来源失败时返回所有失败来源的错误。
func Union(sources ...Source) Source {
	return &unionSource{sources: sources}
}

func (u *unionSource) Name() string {
	names := make([]string, 0, len(u.sources))
	for _, s := range u.sources {
		if s != nil {
			names = append(names, s.Name())
		}
	}
	return "union(" + strings.Join(names, ",") + ")"
}

func (u *unionSource) Keys(ctx context.Context) ([]string, error) {
	var (
		all  []string
		errs []error
	)
	for _, s := range u.sources {
		if s == nil {
			errs = append(errs, ErrNilSource)
			continue
		}
		keys, err := s.Keys(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		all = append(all, keys...)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, errors.Join(errs...))
	}
	return Dedupe(all), nil
}
