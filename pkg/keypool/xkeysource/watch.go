package xkeysource

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/omeyang/xkeyring/pkg/observability/xlog"
)

// Watcher key 文件监视器
//
// 文件变更后重新读取，将新增的 key 加入池中。
// 从文件中删除的 key 不会从池中移除。
type Watcher struct {
	source   *FileSource
	pool     Pool
	watcher  *fsnotify.Watcher
	logger   xlog.Logger
	onLoad   LoadCallback
	debounce time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	running  bool
	timer    *time.Timer // 防抖定时器，Stop() 时需要取消
	wg       sync.WaitGroup
}

// Watch 创建 key 文件监视器
//
// 返回的 Watcher 需要调用 Start() 开始监视，Stop() 停止监视。
//
//	src, _ := xkeysource.File("/etc/xkeyring/openai.keys")
//	w, err := xkeysource.Watch(src, pool, xkeysource.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	w.Start()
//	defer w.Stop()
func Watch(source *FileSource, pool Pool, opts ...Option) (*Watcher, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if pool == nil {
		return nil, ErrNilPool
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xkeysource: failed to create watcher: %w", err)
	}

	// 监视所在目录而非文件本身：编辑器保存时可能先删除再创建
	dir := filepath.Dir(source.Path())
	if err := fsWatcher.Add(dir); err != nil {
		closeErr := fsWatcher.Close()
		return nil, errors.Join(
			fmt.Errorf("xkeysource: failed to watch directory %s: %w", dir, err),
			closeErr,
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		source:   source,
		pool:     pool,
		watcher:  fsWatcher,
		logger:   o.logger.With(xlog.Component("xkeysource.watcher")),
		onLoad:   o.onLoad,
		debounce: o.debounce,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start 在后台 goroutine 中启动监视，立即返回
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.ctx.Err() != nil {
		return
	}
	w.running = true

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run()
	}()
}

// Stop 停止监视并等待后台 goroutine 退出
func (w *Watcher) Stop() error {
	w.mu.Lock()
	w.stopTimerLocked()
	alreadyStopped := w.ctx.Err() != nil
	w.cancel()
	w.running = false
	w.mu.Unlock()

	w.wg.Wait()
	if alreadyStopped {
		return nil
	}
	return w.watcher.Close()
}

func (w *Watcher) run() {
	filename := filepath.Base(w.source.Path())
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event, filename)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn(w.ctx, "watch error", xlog.Err(err))
		}
	}
}

// handleEvent 处理文件系统事件
func (w *Watcher) handleEvent(event fsnotify.Event, filename string) {
	if filepath.Base(event.Name) != filename {
		return
	}
	// Write: 直接修改；Create/Rename: 原子写入（写临时文件后 rename）
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx.Err() != nil {
		return
	}
	w.stopTimerLocked()

	w.wg.Add(1)
	w.timer = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.reload()
	})
}

// stopTimerLocked 取消尚未触发的防抖定时器，调用方需持有 w.mu
func (w *Watcher) stopTimerLocked() {
	if w.timer == nil {
		return
	}
	// 定时器未触发时回调不会执行，由这里抵消 wg 计数
	if w.timer.Stop() {
		w.wg.Done()
	}
	w.timer = nil
}

func (w *Watcher) reload() {
	if w.ctx.Err() != nil {
		return
	}
	added, err := Load(w.ctx, w.pool, w.source)
	if err != nil {
		w.logger.Error(w.ctx, "reload key file failed", xlog.Err(err))
	} else if added > 0 {
		w.logger.Info(w.ctx, "key file reloaded", xlog.Count(int64(added)))
	}
	if w.onLoad != nil {
		w.onLoad(added, err)
	}
}
