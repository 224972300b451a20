package xlease

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xkeyring/pkg/keypool/xkeypool"
	"github.com/omeyang/xkeyring/pkg/observability/xlog"
)

// Pool 租约所需的 key 池能力，*xkeypool.Pool 实现了该接口
type Pool interface {
	Name() string
	Acquire(ctx context.Context, now time.Time, opts ...xkeypool.CallOption) (string, error)
	PeekEarliestUpcoming(ctx context.Context, now time.Time, opts ...xkeypool.CallOption) (*xkeypool.Upcoming, error)
	Release(ctx context.Context, key string, now time.Time, cold bool, opts ...xkeypool.CallOption) error
	Changed() <-chan struct{}
	Len() int
}

// 编译时接口检查
var _ Pool = (*xkeypool.Pool)(nil)

// Operation 在租约期间使用 key 执行的操作
//
// 返回值决定 key 的归还方式：
//   - nil: 正常归还，key 立即可再次使用
//   - 满足 errors.Is(err, ErrKeyRejected): 冷归还，换一个 key 重试
//   - 其他错误: 正常归还，错误原样返回
type Operation[T any] func(ctx context.Context, key string) (T, error)

// Leaser 执行"获取-使用-归还"协议
//
// Leaser 本身无状态，可被多个 goroutine 共享。
type Leaser struct {
	opts    *options
	tracer  trace.Tracer
	metrics *Metrics
}

// New 创建 Leaser
func New(opts ...Option) (*Leaser, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(o.meterProvider)
	if err != nil {
		return nil, err
	}

	return &Leaser{
		opts:    o,
		tracer:  getTracer(o.tracerProvider),
		metrics: metrics,
	}, nil
}

// Do 使用租约 key 执行 fn
//
// 等价于不关心返回值的 RunWithLeasedKey。
func (l *Leaser) Do(ctx context.Context, pool Pool, fn func(ctx context.Context, key string) error) error {
	if fn == nil {
		return ErrNilOperation
	}
	_, err := RunWithLeasedKey(ctx, l, pool, func(ctx context.Context, key string) (struct{}, error) {
		return struct{}{}, fn(ctx, key)
	})
	return err
}

// runState 单次运行的统计
type runState struct {
	runID      string
	attempts   int
	rejections int
	waits      int
	waited     time.Duration
}

// RunWithLeasedKey 从 pool 租用一个 key 执行 op，并按 op 的结果归还
//
// 没有可用 key 时等待：有即将可用的 key 则等到其可用时间加安全余量，
// 期间若有 key 被归还则提前唤醒；池为空时返回 ErrNoAvailableKeys。
// op 拒绝 key 时冷归还并换 key 重试。
// op 在任何路径上退出（包括 panic）后 key 都会被归还，ctx 取消时返回 ctx.Err()。
//
// l 为 nil 时使用默认配置。
func RunWithLeasedKey[T any](ctx context.Context, l *Leaser, pool Pool, op Operation[T]) (T, error) {
	var zero T
	if ctx == nil {
		return zero, ErrNilContext
	}
	if pool == nil {
		return zero, ErrNilPool
	}
	if op == nil {
		return zero, ErrNilOperation
	}
	if l == nil {
		l = &Leaser{opts: defaultOptions(), tracer: getTracer(nil)}
	}

	st := &runState{runID: uuid.NewString()}
	ctx, span := startRunSpan(ctx, l.tracer, pool.Name(), st.runID)
	logger := l.opts.logger.With(xlog.Pool(pool.Name()), xlog.RunID(st.runID))

	result, err := runLoop(ctx, l, logger, pool, op, st)

	endRunSpan(span, st, err)
	l.metrics.RecordRun(ctx, pool.Name(), err)
	if err != nil {
		logger.Debug(ctx, "lease run finished with error", xlog.Err(err),
			slog.Int("attempts", st.attempts), slog.Int("rejections", st.rejections))
	}
	return result, err
}

func runLoop[T any](ctx context.Context, l *Leaser, logger xlog.Logger, pool Pool, op Operation[T], st *runState) (T, error) {
	var zero T
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		// 先取变更通知再查询，避免错过查询与等待之间的归还
		changed := pool.Changed()
		now := l.opts.now()

		key, err := pool.Acquire(ctx, now, xkeypool.SoftError(true))
		if err != nil {
			return zero, err
		}
		if key == "" {
			if err := l.waitForKey(ctx, logger, pool, now, changed, st); err != nil {
				return zero, err
			}
			continue
		}

		st.attempts++
		logger.Debug(ctx, "key acquired", xkeypool.AttrKey(key), slog.Int("attempt", st.attempts))

		result, opErr := invoke(ctx, l, logger, pool, key, op)
		if opErr == nil {
			return result, nil
		}
		if !IsRejected(opErr) {
			return zero, opErr
		}

		st.rejections++
		l.metrics.RecordRejected(ctx, pool.Name())
		logger.Warn(ctx, "key rejected, cooling down", xkeypool.AttrKey(key), xlog.Err(opErr))

		if l.opts.maxRejections > 0 && st.rejections >= l.opts.maxRejections {
			return zero, fmt.Errorf("%w: %w", ErrRejectionsExhausted, opErr)
		}
	}
}

// invoke 执行 op 并归还 key
//
// op panic 或调用 runtime.Goexit 时同样正常归还，panic 继续向上传播。
func invoke[T any](ctx context.Context, l *Leaser, logger xlog.Logger, pool Pool, key string, op Operation[T]) (T, error) {
	finished := false
	defer func() {
		if !finished {
			l.release(ctx, logger, pool, key, false, 0)
		}
	}()

	result, err := op(ctx, key)
	finished = true

	if IsRejected(err) {
		l.release(ctx, logger, pool, key, true, rejectionCooldown(err))
	} else {
		l.release(ctx, logger, pool, key, false, 0)
	}
	return result, err
}

// release 归还 key，归还失败只记录日志
func (l *Leaser) release(ctx context.Context, logger xlog.Logger, pool Pool, key string, cold bool, cooldown time.Duration) {
	opts := []xkeypool.CallOption{xkeypool.SoftError(true)}
	if cold && cooldown > 0 {
		opts = append(opts, xkeypool.WithCooldown(cooldown))
	}
	if err := pool.Release(context.WithoutCancel(ctx), key, l.opts.now(), cold, opts...); err != nil {
		logger.Error(ctx, "release key failed", xkeypool.AttrKey(key), xlog.Err(err))
		return
	}
	logger.Debug(ctx, "key released", xkeypool.AttrKey(key), slog.Bool("cold", cold))
}

// waitForKey 在没有可用 key 时等待
//
// 返回 nil 表示应重新尝试获取。
func (l *Leaser) waitForKey(ctx context.Context, logger xlog.Logger, pool Pool, now time.Time, changed <-chan struct{}, st *runState) error {
	up, err := pool.PeekEarliestUpcoming(ctx, now, xkeypool.SoftError(true))
	if err != nil {
		return err
	}

	var (
		delay      time.Duration
		lockedOnly bool
	)
	switch {
	case up != nil:
		delay = up.EligibleAt.Sub(now) + l.opts.safetyMargin
	case pool.Len() == 0:
		return ErrNoAvailableKeys
	case l.opts.lockedWait == 0:
		return ErrNoAvailableKeys
	default:
		delay = l.opts.lockedWait
		lockedOnly = true
	}

	capped := false
	if l.opts.maxWait > 0 {
		remaining := l.opts.maxWait - st.waited
		if remaining <= 0 {
			return ErrWaitExceeded
		}
		if delay >= remaining {
			delay = remaining
			capped = true
		}
	}

	if up != nil {
		logger.Info(ctx, "no key available, waiting", xkeypool.AttrKey(up.Key), xlog.Duration(delay))
	} else {
		logger.Info(ctx, "all keys leased, waiting for release", xlog.Duration(delay))
	}

	start := time.Now()
	woken, err := waitForChange(ctx, delay, changed)
	elapsed := time.Since(start)
	st.waits++
	st.waited += elapsed
	l.metrics.RecordWait(ctx, pool.Name(), elapsed)
	if err != nil {
		return err
	}

	switch {
	case woken:
		return nil
	case capped:
		return ErrWaitExceeded
	case lockedOnly:
		return ErrNoAvailableKeys
	default:
		return nil
	}
}

// waitForChange 等待 delay、池状态变更或 ctx 取消
// 返回值 woken 表示是否因池状态变更而提前返回。
func waitForChange(ctx context.Context, delay time.Duration, changed <-chan struct{}) (woken bool, err error) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-changed:
		return true, nil
	case <-timer.C:
		return false, nil
	}
}
