package xkeysource

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedis 创建测试用的 miniredis 和客户端
func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr:         mr.Addr(),
		DialTimeout:  100 * time.Millisecond,
		ReadTimeout:  100 * time.Millisecond,
		WriteTimeout: 100 * time.Millisecond,
		PoolSize:     2,
		MaxRetries:   -1,
	})

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedis_Validation(t *testing.T) {
	_, client := newTestRedis(t)

	_, err := Redis(nil, "keys")
	assert.ErrorIs(t, err, ErrNilClient)

	_, err = Redis(client, " ")
	assert.ErrorIs(t, err, ErrEmptySetKey)
}

func TestRedis_Keys(t *testing.T) {
	mr, client := newTestRedis(t)
	_, err := mr.SAdd("xkeyring:openai", "sk-c", "sk-a", " sk-b ", "sk-b")
	require.NoError(t, err)

	src, err := Redis(client, "xkeyring:openai")
	require.NoError(t, err)
	assert.Equal(t, "redis:xkeyring:openai", src.Name())

	keys, err := src.Keys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sk-a", "sk-b", "sk-c"}, keys)
}

func TestRedis_EmptySet(t *testing.T) {
	_, client := newTestRedis(t)

	src, err := Redis(client, "absent")
	require.NoError(t, err)

	keys, err := src.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRedis_RetryExhausted(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.SetError("LOADING server is loading")

	src, err := Redis(client, "keys", WithRedisAttempts(2), WithRedisDelay(time.Millisecond))
	require.NoError(t, err)

	_, err = src.Keys(context.Background())
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.Contains(t, err.Error(), "LOADING")
}

func TestRedis_RecoversAfterRetry(t *testing.T) {
	mr, client := newTestRedis(t)
	_, err := mr.SAdd("keys", "sk-a")
	require.NoError(t, err)
	mr.SetError("LOADING server is loading")

	src, err := Redis(client, "keys", WithRedisAttempts(5), WithRedisDelay(20*time.Millisecond))
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		mr.SetError("")
	}()

	keys, err := src.Keys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sk-a"}, keys)
}

func TestRedis_CanceledContext(t *testing.T) {
	_, client := newTestRedis(t)

	src, err := Redis(client, "keys")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Keys(ctx)
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.ErrorIs(t, err, context.Canceled)
}
