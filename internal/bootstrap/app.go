package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xkeyring/pkg/config/xconf"
	"github.com/omeyang/xkeyring/pkg/keypool/xkeypool"
	"github.com/omeyang/xkeyring/pkg/keypool/xkeysource"
	"github.com/omeyang/xkeyring/pkg/keypool/xlease"
	"github.com/omeyang/xkeyring/pkg/keypool/xregistry"
	"github.com/omeyang/xkeyring/pkg/observability/xlog"
)

// ErrNilConfig 配置为空
var ErrNilConfig = errors.New("bootstrap: config is nil")

// App 按配置组装好的运行时组件
type App struct {
	Config   *xconf.Config
	Logger   xlog.LoggerWithLevel
	Registry *xregistry.Registry
	Leaser   *xlease.Leaser

	closers   []func() error
	closeOnce sync.Once
	closeErr  error
}

// New 按配置构建 App
//
// 依次构建日志、Leaser 和每个池：加载池的全部 key 来源并注册，
// 按配置启动 key 文件监视和定期同步。任一步骤失败时释放已创建的资源。
func New(ctx context.Context, cfg *xconf.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	app := &App{
		Config:   cfg,
		Registry: xregistry.New(),
	}

	logger, cleanup, err := buildLogger(cfg.Log, o)
	if err != nil {
		return nil, err
	}
	app.Logger = logger
	app.closers = append(app.closers, cleanup)

	app.Leaser, err = xlease.New(
		xlease.WithSafetyMargin(cfg.Lease.SafetyMargin),
		xlease.WithLockedWait(cfg.Lease.LockedWait),
		xlease.WithMaxWait(cfg.Lease.MaxWait),
		xlease.WithMaxRejections(cfg.Lease.MaxRejections),
		xlease.WithLogger(logger.With(xlog.Component("xlease"))),
		xlease.WithTracerProvider(o.tracerProvider),
		xlease.WithMeterProvider(o.meterProvider),
	)
	if err != nil {
		return nil, errors.Join(err, app.Close())
	}

	for _, pc := range cfg.Pools {
		if err := app.setupPool(ctx, pc, o); err != nil {
			return nil, errors.Join(fmt.Errorf("pool %s: %w", pc.Name, err), app.Close())
		}
	}
	return app, nil
}

// Pool 按名称获取池，name 为空时返回默认池
func (a *App) Pool(name string) (*xkeypool.Pool, error) {
	return a.Registry.Get(name)
}

// Close 停止监视和同步，关闭 Redis 连接和日志文件
//
// 按创建的逆序关闭，可重复调用。
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		for _, c := range slices.Backward(a.closers) {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

func buildLogger(cfg xconf.LogConfig, o *options) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetLevelString(cfg.Level).
		SetFormat(cfg.Format)
	if cfg.File != "" {
		b.SetRotation(cfg.File,
			xlog.WithMaxSize(cfg.MaxSizeMB),
			xlog.WithMaxBackups(cfg.MaxBackups),
			xlog.WithMaxAge(cfg.MaxAgeDays),
			xlog.WithCompress(cfg.Compress),
		)
	} else {
		b.SetOutput(o.logOutput)
	}
	return b.Build()
}

func (a *App) setupPool(ctx context.Context, pc xconf.PoolConfig, o *options) error {
	pool, err := xkeypool.New(
		xkeypool.WithName(pc.Name),
		xkeypool.WithBaseCooldown(pc.BaseCooldown),
		xkeypool.WithSoftError(pc.SoftError),
		xkeypool.WithMeterProvider(o.meterProvider),
	)
	if err != nil {
		return err
	}
	logger := a.Logger.With(xlog.Pool(pc.Name))

	// 可重新读取的来源，用于定期同步
	var (
		files   []*xkeysource.FileSource
		dynamic []xkeysource.Source
	)
	for _, path := range pc.KeyFiles {
		src, err := xkeysource.File(path)
		if err != nil {
			return err
		}
		files = append(files, src)
		dynamic = append(dynamic, src)
	}
	if pc.Redis != nil {
		client := redis.NewClient(&redis.Options{
			Addr:     pc.Redis.Addr,
			Password: pc.Redis.Password,
			DB:       pc.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)

		src, err := xkeysource.Redis(client, pc.Redis.Set)
		if err != nil {
			return err
		}
		dynamic = append(dynamic, src)
	}

	sources := dynamic
	if len(pc.Keys) > 0 {
		sources = append([]xkeysource.Source{xkeysource.Static(pc.Keys...)}, dynamic...)
	}
	added, err := xkeysource.Load(ctx, pool, sources...)
	if err != nil {
		return err
	}
	logger.Info(ctx, "pool loaded", xlog.Count(int64(added)))

	var regOpts []xregistry.RegisterOption
	if pc.Default {
		regOpts = append(regOpts, xregistry.AsDefault())
	}
	if err := a.Registry.Register(pc.Name, pool, regOpts...); err != nil {
		return err
	}

	if !o.autoReload {
		return nil
	}
	if pc.Watch {
		for _, src := range files {
			w, err := xkeysource.Watch(src, pool, xkeysource.WithLogger(logger))
			if err != nil {
				return err
			}
			w.Start()
			a.closers = append(a.closers, w.Stop)
		}
	}
	if pc.Sync != "" {
		s, err := xkeysource.NewSyncer(pc.Sync, pool, dynamic, xkeysource.WithLogger(logger))
		if err != nil {
			return err
		}
		s.Start()
		a.closers = append(a.closers, func() error {
			<-s.Stop().Done()
			return nil
		})
	}
	return nil
}
