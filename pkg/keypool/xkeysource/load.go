package xkeysource

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xkeyring/pkg/keypool/xkeypool"
)

// Load 并发读取所有来源，将池中尚不存在的 key 加入池中
//
// 返回新加入的 key 数量。任一来源读取失败时不修改池。
// 已存在的 key 保持原有状态（锁定状态和可用时间不变）。
func Load(ctx context.Context, pool Pool, sources ...Source) (int, error) {
	if ctx == nil {
		return 0, ErrNilContext
	}
	if pool == nil {
		return 0, ErrNilPool
	}
	if slices.Contains(sources, nil) {
		return 0, ErrNilSource
	}

	results := make([][]string, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			keys, err := src.Keys(gctx)
			if err != nil {
				if !errors.Is(err, ErrLoadFailed) {
					err = fmt.Errorf("%w: %w", ErrLoadFailed, err)
				}
				return fmt.Errorf("%s: %w", src.Name(), err)
			}
			results[i] = keys
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	added := 0
	for _, key := range Dedupe(slices.Concat(results...)) {
		err := pool.Add(ctx, key, xkeypool.SoftError(false))
		switch {
		case err == nil:
			added++
		case xkeypool.IsDuplicateKey(err):
		default:
			return added, err
		}
	}
	return added, nil
}
