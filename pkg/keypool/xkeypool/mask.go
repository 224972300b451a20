package xkeypool

import (
	"log/slog"
	"strings"
)

// maskVisible 脱敏时首尾各保留的字符数
const maskVisible = 4

// Mask 对 key 做脱敏，用于日志和命令行输出。
//
//	Mask("sk-1234567890abcdef") // "sk-1...cdef"
//	Mask("short")               // "*****"
func Mask(key string) string {
	if len(key) <= maskVisible*2 {
		return strings.Repeat("*", len(key))
	}
	return key[:maskVisible] + "..." + key[len(key)-maskVisible:]
}

// AttrKey 返回脱敏后的 key 日志属性
func AttrKey(key string) slog.Attr {
	return slog.String("key", Mask(key))
}
