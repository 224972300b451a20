package xkeysource

import "errors"

// 预定义错误
var (
	// ErrEmptyPath 文件路径为空
	ErrEmptyPath = errors.New("xkeysource: path is empty")

	// ErrNilClient Redis 客户端为空
	ErrNilClient = errors.New("xkeysource: redis client is nil")

	// ErrEmptySetKey Redis 集合名为空
	ErrEmptySetKey = errors.New("xkeysource: redis set key is empty")

	// ErrLoadFailed 从来源读取 key 失败
	ErrLoadFailed = errors.New("xkeysource: load keys failed")

	// ErrNilPool 目标池为空
	ErrNilPool = errors.New("xkeysource: pool is nil")

	// ErrNilSource 来源为空
	ErrNilSource = errors.New("xkeysource: source is nil")

	// ErrNilContext context 参数为空
	ErrNilContext = errors.New("xkeysource: context must not be nil")

	// ErrInvalidSchedule 同步计划表达式无效
	ErrInvalidSchedule = errors.New("xkeysource: invalid sync schedule")
)
