package xlease

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// 预定义错误
// =============================================================================

var (
	// ErrNoAvailableKeys 没有可用的 key，且不会有 key 变为可用。
	// 池为空，或所有 key 都被其他会话持有且在 WithLockedWait 时长内没有归还。
	ErrNoAvailableKeys = errors.New("xlease: no available keys")

	// ErrKeyRejected 外部服务拒绝了当前 key（限流、配额耗尽等）。
	// 操作返回的错误满足 errors.Is(err, ErrKeyRejected) 时，key 被冷归还并重试。
	ErrKeyRejected = errors.New("xlease: key rejected")

	// ErrWaitExceeded 累计等待时长超过 WithMaxWait。
	ErrWaitExceeded = errors.New("xlease: wait budget exceeded")

	// ErrRejectionsExhausted 拒绝次数达到 WithMaxRejections。
	// 返回的错误同时包装了最后一次拒绝。
	ErrRejectionsExhausted = errors.New("xlease: rejections exhausted")

	// ErrNilPool pool 参数为空。
	ErrNilPool = errors.New("xlease: pool must not be nil")

	// ErrNilOperation operation 参数为空。
	ErrNilOperation = errors.New("xlease: operation must not be nil")

	// ErrNilContext context 参数为空。
	ErrNilContext = errors.New("xlease: context must not be nil")

	// ErrInvalidOption 配置选项无效。
	ErrInvalidOption = errors.New("xlease: invalid option")
)

// =============================================================================
// 拒绝错误
// =============================================================================

// RejectedError 表示外部服务拒绝了 key
//
// 满足 errors.Is(err, ErrKeyRejected)，并可通过 errors.Unwrap 取得原始错误。
// Cooldown > 0 时覆盖池的默认冷却时长（例如使用服务端返回的 Retry-After）。
type RejectedError struct {
	Err      error
	Cooldown time.Duration
}

// Error 实现 error 接口
func (e *RejectedError) Error() string {
	if e.Err == nil {
		return ErrKeyRejected.Error()
	}
	return ErrKeyRejected.Error() + ": " + e.Err.Error()
}

// Unwrap 返回原始错误
func (e *RejectedError) Unwrap() error {
	return e.Err
}

// Is 使 errors.Is(err, ErrKeyRejected) 成立
func (e *RejectedError) Is(target error) bool {
	return target == ErrKeyRejected
}

// Reject 将 err 标记为 key 被拒绝，使用池的默认冷却时长
//
//	if resp.StatusCode == http.StatusTooManyRequests {
//	    return nil, xlease.Reject(fmt.Errorf("status %d", resp.StatusCode))
//	}
func Reject(err error) error {
	return &RejectedError{Err: err}
}

// RejectFor 将 err 标记为 key 被拒绝，并指定冷却时长
// cooldown <= 0 时使用池的默认冷却时长。
func RejectFor(err error, cooldown time.Duration) error {
	return &RejectedError{Err: err, Cooldown: cooldown}
}

// IsRejected 检查错误是否表示 key 被拒绝
func IsRejected(err error) bool {
	return errors.Is(err, ErrKeyRejected)
}

// rejectionCooldown 提取拒绝错误中指定的冷却时长，未指定时返回 0
func rejectionCooldown(err error) time.Duration {
	var re *RejectedError
	if errors.As(err, &re) && re.Cooldown > 0 {
		return re.Cooldown
	}
	return 0
}

// =============================================================================
// 错误分类（用于低基数指标）
// =============================================================================

// 运行结果分类
const (
	ResultSuccess            = "success"
	ResultError              = "error"
	ResultNoAvailableKeys    = "no_available_keys"
	ResultWaitExceeded       = "wait_exceeded"
	ResultRejectionExhausted = "rejections_exhausted"
	ResultCanceled           = "canceled"
	ResultTimeout            = "timeout"
)

// classifyResult 将运行结果分类为低基数字符串
func classifyResult(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, ErrNoAvailableKeys):
		return ResultNoAvailableKeys
	case errors.Is(err, ErrWaitExceeded):
		return ResultWaitExceeded
	case errors.Is(err, ErrRejectionsExhausted):
		return ResultRejectionExhausted
	case errors.Is(err, context.DeadlineExceeded):
		return ResultTimeout
	case errors.Is(err, context.Canceled):
		return ResultCanceled
	default:
		return ResultError
	}
}
