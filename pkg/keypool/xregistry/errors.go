package xregistry

import "errors"

// 预定义错误
var (
	// ErrPoolNotFound 池不存在
	ErrPoolNotFound = errors.New("xregistry: pool not found")

	// ErrDuplicatePool 池名已注册
	ErrDuplicatePool = errors.New("xregistry: pool already registered")

	// ErrInvalidPoolName 池名为空或包含首尾空白
	ErrInvalidPoolName = errors.New("xregistry: invalid pool name")

	// ErrNilPool 池为空
	ErrNilPool = errors.New("xregistry: pool is nil")
)
