package xlease_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/omeyang/xkeyring/pkg/keypool/xkeypool"
	"github.com/omeyang/xkeyring/pkg/keypool/xlease"
)

// errRateLimited 模拟外部服务返回的限流错误
var errRateLimited = errors.New("429 too many requests")

// Example 演示 key 被拒绝后自动换 key 重试。
func Example() {
	ctx := context.Background()

	pool, err := xkeypool.New(xkeypool.WithBaseCooldown(time.Minute))
	if err != nil {
		log.Fatal(err)
	}
	for _, key := range []string{"key-a", "key-b"} {
		if err := pool.Add(ctx, key); err != nil {
			log.Fatal(err)
		}
	}

	leaser, err := xlease.New(xlease.WithMaxRejections(3))
	if err != nil {
		log.Fatal(err)
	}

	result, err := xlease.RunWithLeasedKey(ctx, leaser, pool, func(ctx context.Context, key string) (string, error) {
		if key == "key-a" {
			return "", xlease.Reject(errRateLimited)
		}
		return "answered with " + key, nil
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(result)

	// Output:
	// answered with key-b
}
