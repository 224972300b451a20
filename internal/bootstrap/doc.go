// Package bootstrap 按 xconf 配置组装 xkeyring 的运行时组件。
package bootstrap
