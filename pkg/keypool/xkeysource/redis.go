package xkeysource

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/redis/go-redis/v9"
)

// Redis 来源的默认重试参数
const (
	DefaultRedisAttempts = 3
	DefaultRedisDelay    = 100 * time.Millisecond
)

var _ Source = (*RedisSource)(nil)

// RedisSource 从 Redis 集合读取 key（SMEMBERS）
//
// Redis 只作为 key 列表的存放位置，不保存租约状态。
type RedisSource struct {
	client   redis.UniversalClient
	setKey   string
	attempts uint
	delay    time.Duration
}

// RedisOption Redis 来源配置选项
type RedisOption func(*RedisSource)

// WithRedisAttempts 设置读取失败时的最大尝试次数（包含首次），0 保持默认
func WithRedisAttempts(n uint) RedisOption {
	return func(r *RedisSource) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithRedisDelay 设置重试的初始退避时长，非正值保持默认
func WithRedisDelay(d time.Duration) RedisOption {
	return func(r *RedisSource) {
		if d > 0 {
			r.delay = d
		}
	}
}

// Redis 创建 Redis 集合来源
func Redis(client redis.UniversalClient, setKey string, opts ...RedisOption) (*RedisSource, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if strings.TrimSpace(setKey) == "" {
		return nil, ErrEmptySetKey
	}
	r := &RedisSource{
		client:   client,
		setKey:   setKey,
		attempts: DefaultRedisAttempts,
		delay:    DefaultRedisDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Name 返回来源名称
func (r *RedisSource) Name() string { return "redis:" + r.setKey }

// Keys 读取集合中的全部 key，结果按字典序排列
//
// 网络错误按指数退避重试，ctx 取消时立即返回。
func (r *RedisSource) Keys(ctx context.Context) ([]string, error) {
	members, err := retry.NewWithData[[]string](
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
	).Do(func() ([]string, error) {
		return r.client.SMembers(ctx, r.setKey).Result()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, r.Name(), err)
	}

	keys := Dedupe(members)
	slices.Sort(keys)
	return keys, nil
}
