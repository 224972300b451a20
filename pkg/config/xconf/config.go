package xconf

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/omeyang/xkeyring/pkg/keypool/xkeypool"
	"github.com/omeyang/xkeyring/pkg/keypool/xlease"
	"github.com/omeyang/xkeyring/pkg/observability/xlog"
)

// Config xkeyring 的完整配置。
//
//	log:
//	  level: info
//	  format: json
//	lease:
//	  safety_margin: 1s
//	  locked_wait: 30s
//	pools:
//	  - name: openai
//	    default: true
//	    base_cooldown: 60s
//	    key_files: [/etc/xkeyring/openai.keys]
//	    watch: true
type Config struct {
	Log   LogConfig    `koanf:"log"`
	Lease LeaseConfig  `koanf:"lease"`
	Pools []PoolConfig `koanf:"pools"`
}

// LogConfig 日志配置。
type LogConfig struct {
	// Level 日志级别：debug/info/warn/error，默认 info。
	Level string `koanf:"level"`
	// Format 输出格式：text/json，默认 text。
	Format string `koanf:"format"`
	// File 日志文件路径，为空时输出到 stderr。
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// LeaseConfig 租约配置，字段含义见 xlease 的同名选项。
type LeaseConfig struct {
	SafetyMargin  time.Duration `koanf:"safety_margin"`
	LockedWait    time.Duration `koanf:"locked_wait"`
	MaxWait       time.Duration `koanf:"max_wait"`
	MaxRejections int           `koanf:"max_rejections"`
}

// PoolConfig 单个 key 池的配置。
type PoolConfig struct {
	Name string `koanf:"name"`
	// Default 是否为默认池，最多一个池可设置。
	Default bool `koanf:"default"`
	// BaseCooldown 冷归还的冷却时长，0 表示使用默认值 60s。
	BaseCooldown time.Duration `koanf:"base_cooldown"`
	SoftError    bool          `koanf:"soft_error"`

	// Keys 直接写在配置中的 key。
	Keys []string `koanf:"keys"`
	// KeyFiles key 文件，每行一个 key。
	KeyFiles []string `koanf:"key_files"`
	// Watch 是否监视 key 文件，变更后自动加载新 key。
	Watch bool `koanf:"watch"`
	// Redis 从 Redis 集合读取 key。
	Redis *RedisConfig `koanf:"redis"`
	// Sync 定期重新加载 key 的 cron 表达式，如 "@every 5m"。
	Sync string `koanf:"sync"`
}

// RedisConfig Redis 集合来源配置。
type RedisConfig struct {
	Addr string `koanf:"addr"`
	// Password 支持 ${VAR} 形式引用环境变量。
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Set      string `koanf:"set"`
}

// Default 返回默认配置（不包含任何池）。
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  xlog.DefaultMaxSizeMB,
			MaxBackups: xlog.DefaultMaxBackups,
			MaxAgeDays: xlog.DefaultMaxAgeDays,
			Compress:   true,
		},
		Lease: LeaseConfig{
			SafetyMargin: xlease.DefaultSafetyMargin,
			LockedWait:   xlease.DefaultLockedWait,
		},
	}
}

// applyPoolDefaults 填充池级默认值并展开环境变量。
func (c *Config) applyPoolDefaults() {
	for i := range c.Pools {
		p := &c.Pools[i]
		if p.BaseCooldown == 0 {
			p.BaseCooldown = xkeypool.DefaultBaseCooldown
		}
		if p.Redis != nil {
			p.Redis.Password = os.ExpandEnv(p.Redis.Password)
		}
	}
}

// Validate 校验配置，返回所有问题（errors.Join）。
// 返回的错误满足 errors.Is(err, ErrInvalidConfig)。
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, err := xlog.ParseLevel(c.Log.Level); err != nil {
		add("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		add("log.format: unknown format %q", c.Log.Format)
	}

	if c.Lease.SafetyMargin < 0 {
		add("lease.safety_margin must not be negative")
	}
	if c.Lease.LockedWait < 0 {
		add("lease.locked_wait must not be negative")
	}
	if c.Lease.MaxWait < 0 {
		add("lease.max_wait must not be negative")
	}
	if c.Lease.MaxRejections < 0 {
		add("lease.max_rejections must not be negative")
	}

	if len(c.Pools) == 0 {
		add("pools: at least one pool is required")
	}
	seen := make(map[string]bool, len(c.Pools))
	defaults := 0
	for i, p := range c.Pools {
		field := fmt.Sprintf("pools[%d]", i)
		if p.Name == "" || strings.TrimSpace(p.Name) != p.Name {
			add("%s.name: invalid pool name %q", field, p.Name)
		} else if seen[p.Name] {
			add("%s.name: duplicate pool name %q", field, p.Name)
		}
		seen[p.Name] = true

		if p.Default {
			defaults++
		}
		if p.BaseCooldown < 0 {
			add("%s.base_cooldown must not be negative", field)
		}
		if p.Watch && len(p.KeyFiles) == 0 {
			add("%s.watch requires key_files", field)
		}
		if p.Sync != "" && len(p.KeyFiles) == 0 && p.Redis == nil {
			add("%s.sync requires key_files or redis", field)
		}
		if p.Redis != nil {
			if p.Redis.Addr == "" {
				add("%s.redis.addr is required", field)
			}
			if p.Redis.Set == "" {
				add("%s.redis.set is required", field)
			}
		}
	}
	if defaults > 1 {
		add("pools: at most one pool can be default, got %d", defaults)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Pool 按名称查找池配置，name 为空时返回默认池。
func (c *Config) Pool(name string) (PoolConfig, bool) {
	if name == "" {
		for _, p := range c.Pools {
			if p.Default {
				return p, true
			}
		}
		if len(c.Pools) > 0 {
			return c.Pools[0], true
		}
		return PoolConfig{}, false
	}
	for _, p := range c.Pools {
		if p.Name == name {
			return p, true
		}
	}
	return PoolConfig{}, false
}
