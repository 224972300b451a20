package xkeypool

import (
	"context"
	"errors"
)

// =============================================================================
// 预定义错误
// =============================================================================

// 预定义错误，使用 errors.Is 进行比较
var (
	// ErrDuplicateKey Key 已存在。
	// Add 遇到已存在的 key 时返回此错误，已有记录的锁状态和可用时间保持不变。
	ErrDuplicateKey = errors.New("xkeypool: key already exists")

	// ErrKeyNotFound Key 不存在。
	// Release/Remove 引用了池中不存在的 key 时返回此错误。
	ErrKeyNotFound = errors.New("xkeypool: key not found")

	// ErrNoneAvailable 没有符合条件的 key。
	// Acquire 找不到可用 key、PeekEarliestUpcoming 找不到即将可用的 key 时返回。
	// 这是可恢复的状态，租约循环会等待后重试。
	ErrNoneAvailable = errors.New("xkeypool: no key available")

	// ErrInvalidKey 无效的 key。
	// key 为空或只包含空白字符时返回此错误，不受软错误策略影响。
	ErrInvalidKey = errors.New("xkeypool: invalid key")

	// ErrInvalidCooldown 无效的冷却时长。
	// 冷却时长为负数时返回此错误。
	ErrInvalidCooldown = errors.New("xkeypool: invalid cooldown")

	// ErrInvalidName 无效的池名称。
	ErrInvalidName = errors.New("xkeypool: invalid pool name")

	// ErrNilContext context 参数为空。
	ErrNilContext = errors.New("xkeypool: context must not be nil")
)

// IsDuplicateKey 检查是否是 key 重复错误
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// IsKeyNotFound 检查是否是 key 不存在错误
func IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// IsNoneAvailable 检查是否是无可用 key 错误
func IsNoneAvailable(err error) bool {
	return errors.Is(err, ErrNoneAvailable)
}

// =============================================================================
// 错误分类（用于低基数指标）
// =============================================================================

// 错误分类常量
const (
	ErrClassDuplicateKey  = "duplicate_key"
	ErrClassKeyNotFound   = "key_not_found"
	ErrClassNoneAvailable = "none_available"
	ErrClassInvalid       = "invalid_argument"
	ErrClassCanceled      = "canceled"
	ErrClassTimeout       = "timeout"
	ErrClassInternal      = "internal_error"
)

// ClassifyError 将错误分类为低基数字符串
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case IsDuplicateKey(err):
		return ErrClassDuplicateKey
	case IsKeyNotFound(err):
		return ErrClassKeyNotFound
	case IsNoneAvailable(err):
		return ErrClassNoneAvailable
	case errors.Is(err, ErrInvalidKey), errors.Is(err, ErrInvalidCooldown),
		errors.Is(err, ErrInvalidName), errors.Is(err, ErrNilContext):
		return ErrClassInvalid
	case errors.Is(err, context.DeadlineExceeded):
		return ErrClassTimeout
	case errors.Is(err, context.Canceled):
		return ErrClassCanceled
	default:
		return ErrClassInternal
	}
}
