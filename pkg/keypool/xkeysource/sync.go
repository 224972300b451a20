package xkeysource

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/xkeyring/pkg/observability/xlog"
)

// Syncer 按计划定期从来源同步 key
//
// 每次同步都会调用 Load：只加入新出现的 key，不移除已有 key。
// 同一时刻最多只有一次同步在执行，计划触发时若上一次尚未完成则跳过。
type Syncer struct {
	spec    string
	pool    Pool
	sources []Source
	cron    *cron.Cron
	logger  xlog.Logger
	onLoad  LoadCallback
	ctx     context.Context
	cancel  context.CancelFunc
	syncMu  sync.Mutex
	mu      sync.Mutex
	started bool
}

// NewSyncer 创建定期同步器
//
// spec 使用标准 cron 表达式（分 时 日 月 周），也支持 "@every 5m" 等描述符。
//
//	syncer, err := xkeysource.NewSyncer("@every 5m", pool, []xkeysource.Source{redisSrc})
//	if err != nil {
//	    return err
//	}
//	syncer.Start()
//	defer syncer.Stop()
func NewSyncer(spec string, pool Pool, sources []Source, opts ...Option) (*Syncer, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	if len(sources) == 0 || slices.Contains(sources, nil) {
		return nil, ErrNilSource
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	c := cron.New(cron.WithLocation(o.location), cron.WithParser(o.parser))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Syncer{
		spec:    spec,
		pool:    pool,
		sources: slices.Clone(sources),
		cron:    c,
		logger:  o.logger.With(xlog.Component("xkeysource.syncer")),
		onLoad:  o.onLoad,
		ctx:     ctx,
		cancel:  cancel,
	}

	if _, err := c.AddFunc(spec, s.scheduled); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, spec, err)
	}
	return s, nil
}

// Spec 返回同步计划表达式
func (s *Syncer) Spec() string {
	return s.spec
}

// Start 启动计划调度，重复调用无副作用
func (s *Syncer) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.ctx.Err() != nil {
		return
	}
	s.started = true
	s.cron.Start()
}

// Stop 停止调度并取消正在执行的同步
//
// 返回的 context 在正在执行的同步结束后关闭。
func (s *Syncer) Stop() context.Context {
	s.cancel()
	return s.cron.Stop()
}

// SyncNow 立即执行一次同步，返回新加入的 key 数量
//
// 与计划触发的同步互斥执行。
func (s *Syncer) SyncNow(ctx context.Context) (int, error) {
	if ctx == nil {
		return 0, ErrNilContext
	}
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	return s.sync(ctx)
}

// scheduled 计划触发的同步
func (s *Syncer) scheduled() {
	if !s.syncMu.TryLock() {
		s.logger.Warn(s.ctx, "previous sync still running, skipped")
		return
	}
	defer s.syncMu.Unlock()
	_, _ = s.sync(s.ctx)
}

func (s *Syncer) sync(ctx context.Context) (int, error) {
	added, err := Load(ctx, s.pool, s.sources...)
	if err != nil {
		s.logger.Error(ctx, "sync keys failed", xlog.Err(err))
	} else if added > 0 {
		s.logger.Info(ctx, "keys synced", xlog.Count(int64(added)))
	}
	if s.onLoad != nil {
		s.onLoad(added, err)
	}
	return added, err
}
