package xkeypool

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/btree"
)

// =============================================================================
// 内部记录与有序索引
// =============================================================================

// record 单个 key 的可用性状态
type record struct {
	key        string
	eligibleAt time.Time
	locked     bool
}

// lessRecord 按 (eligibleAt, key) 排序，与选择顺序一致
func lessRecord(a, b *record) bool {
	if !a.eligibleAt.Equal(b.eligibleAt) {
		return a.eligibleAt.Before(b.eligibleAt)
	}
	return a.key < b.key
}

// =============================================================================
// 公开类型
// =============================================================================

// Upcoming 即将可用的 key 信息（PeekEarliestUpcoming 的返回值）
type Upcoming struct {
	Key        string
	EligibleAt time.Time
}

// KeyState key 状态快照
type KeyState struct {
	Key        string
	EligibleAt time.Time
	Locked     bool
}

// Stats 池内 key 的分类计数
type Stats struct {
	// Total key 总数
	Total int
	// Locked 已被租出的 key 数
	Locked int
	// Eligible 当前可获取的 key 数
	Eligible int
	// CoolingDown 未锁定但尚未到可用时间的 key 数
	CoolingDown int
}

// =============================================================================
// Pool 实现
// =============================================================================

// Pool 进程内 key 池
//
// 所有状态变更在同一把互斥锁下完成，Acquire 的"选择并锁定"是原子的。
// 未锁定的记录维护在按 (eligibleAt, key) 排序的 B 树中，
// Acquire 和 PeekEarliestUpcoming 均为 O(log n)。
type Pool struct {
	opts    *options
	metrics *Metrics

	mu      sync.Mutex
	records map[string]*record
	idle    *btree.BTreeG[*record] // 仅包含未锁定的记录
	changed chan struct{}
}

// New 创建 key 池
func New(opts ...Option) (*Pool, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		opts:    o,
		records: make(map[string]*record),
		idle:    btree.NewG(btreeDegree, lessRecord),
		changed: make(chan struct{}),
	}

	metrics, err := NewMetrics(o.meterProvider, p)
	if err != nil {
		return nil, err
	}
	p.metrics = metrics

	return p, nil
}

// Name 返回池名称
func (p *Pool) Name() string {
	return p.opts.name
}

// Add 添加 key
//
// 可用时间默认为池时钟的当前时间，可通过 WithEligibleAt 指定。
// key 已存在时返回 ErrDuplicateKey（软错误模式下返回 nil），已有记录不受影响。
func (p *Pool) Add(ctx context.Context, key string, opts ...CallOption) error {
	if ctx == nil {
		return ErrNilContext
	}
	if strings.TrimSpace(key) == "" {
		p.metrics.RecordAdd(ctx, p.opts.name, ErrInvalidKey)
		return ErrInvalidKey
	}
	co := p.callOptions(opts)

	eligibleAt := co.eligibleAt
	if !co.eligibleAtSet {
		eligibleAt = p.opts.clock()
	}

	p.mu.Lock()
	if _, exists := p.records[key]; exists {
		p.mu.Unlock()
		p.metrics.RecordAdd(ctx, p.opts.name, ErrDuplicateKey)
		return softenError(co, ErrDuplicateKey)
	}
	rec := &record{key: key, eligibleAt: eligibleAt}
	p.records[key] = rec
	p.idle.ReplaceOrInsert(rec)
	p.notifyLocked()
	p.mu.Unlock()

	p.metrics.RecordAdd(ctx, p.opts.name, nil)
	return nil
}

// Acquire 获取并锁定最早可用的 key
//
// 在所有未锁定且 eligibleAt <= now 的记录中选择 (eligibleAt, key) 最小的一条。
// 没有可用 key 时返回 ErrNoneAvailable（软错误模式下返回 ("", nil)）。
func (p *Pool) Acquire(ctx context.Context, now time.Time, opts ...CallOption) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	co := p.callOptions(opts)

	p.mu.Lock()
	rec, ok := p.idle.Min()
	if !ok || rec.eligibleAt.After(now) {
		p.mu.Unlock()
		p.metrics.RecordAcquire(ctx, p.opts.name, ErrNoneAvailable)
		return "", softenError(co, ErrNoneAvailable)
	}
	p.idle.Delete(rec)
	rec.locked = true
	key := rec.key
	p.mu.Unlock()

	p.metrics.RecordAcquire(ctx, p.opts.name, nil)
	return key, nil
}

// PeekEarliestUpcoming 查看最早即将可用的 key（不锁定）
//
// 返回未锁定且 eligibleAt > now 的记录中 (eligibleAt, key) 最小的一条。
// 没有时返回 ErrNoneAvailable（软错误模式下返回 (nil, nil)）。
// 结果仅供参考，不保证稍后一定能获取到该 key。
func (p *Pool) PeekEarliestUpcoming(ctx context.Context, now time.Time, opts ...CallOption) (*Upcoming, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	co := p.callOptions(opts)

	var found *record
	p.mu.Lock()
	p.idle.AscendGreaterOrEqual(&record{eligibleAt: now}, func(rec *record) bool {
		if rec.eligibleAt.After(now) {
			found = rec
			return false
		}
		return true
	})
	var up *Upcoming
	if found != nil {
		up = &Upcoming{Key: found.key, EligibleAt: found.eligibleAt}
	}
	p.mu.Unlock()

	if up == nil {
		return nil, softenError(co, ErrNoneAvailable)
	}
	return up, nil
}

// Release 归还 key
//
// cold=false 时 key 在 now 立即可用；cold=true 时在 now+冷却时长 后可用，
// 冷却时长取 WithCooldown 的值，未指定时使用池级 WithBaseCooldown。
// 可用时间被直接覆盖，即使早于原有可用时间。
// key 不存在时返回 ErrKeyNotFound（软错误模式下返回 nil）。
// 归还未锁定的 key 是允许的，效果等同于重新设置其可用时间。
func (p *Pool) Release(ctx context.Context, key string, now time.Time, cold bool, opts ...CallOption) error {
	if ctx == nil {
		return ErrNilContext
	}
	co := p.callOptions(opts)

	cooldown := p.opts.baseCooldown
	if co.cooldownSet {
		cooldown = co.cooldown
	}
	if cold && cooldown < 0 {
		p.metrics.RecordRelease(ctx, p.opts.name, cold, ErrInvalidCooldown)
		return ErrInvalidCooldown
	}

	p.mu.Lock()
	rec, ok := p.records[key]
	if !ok {
		p.mu.Unlock()
		p.metrics.RecordRelease(ctx, p.opts.name, cold, ErrKeyNotFound)
		return softenError(co, ErrKeyNotFound)
	}
	if !rec.locked {
		p.idle.Delete(rec)
	}

	next := now
	if cold {
		next = now.Add(cooldown)
	}
	rec.eligibleAt = next
	rec.locked = false
	p.idle.ReplaceOrInsert(rec)
	p.notifyLocked()
	p.mu.Unlock()

	p.metrics.RecordRelease(ctx, p.opts.name, cold, nil)
	return nil
}

// =============================================================================
// 管理操作
// =============================================================================

// Remove 删除 key
//
// 已被租出的 key 同样会被删除，持有者后续的 Release 将得到 ErrKeyNotFound。
func (p *Pool) Remove(ctx context.Context, key string, opts ...CallOption) error {
	if ctx == nil {
		return ErrNilContext
	}
	co := p.callOptions(opts)

	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[key]
	if !ok {
		return softenError(co, ErrKeyNotFound)
	}
	if !rec.locked {
		p.idle.Delete(rec)
	}
	delete(p.records, key)
	p.notifyLocked()
	return nil
}

// Contains 检查 key 是否存在
func (p *Pool) Contains(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.records[key]
	return ok
}

// Len 返回 key 总数
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

// Snapshot 返回所有 key 的状态快照，按 (EligibleAt, Key) 排序
func (p *Pool) Snapshot() []KeyState {
	p.mu.Lock()
	states := make([]KeyState, 0, len(p.records))
	for _, rec := range p.records {
		states = append(states, KeyState{Key: rec.key, EligibleAt: rec.eligibleAt, Locked: rec.locked})
	}
	p.mu.Unlock()

	slices.SortFunc(states, func(a, b KeyState) int {
		if c := a.EligibleAt.Compare(b.EligibleAt); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	return states
}

// Stats 返回 now 时刻的分类计数
func (p *Pool) Stats(now time.Time) Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{Total: len(p.records), Locked: len(p.records) - p.idle.Len()}
	p.idle.Ascend(func(rec *record) bool {
		if rec.eligibleAt.After(now) {
			return false
		}
		s.Eligible++
		return true
	})
	s.CoolingDown = p.idle.Len() - s.Eligible
	return s
}

// Changed 返回一个在下一次状态变更（Add/Release/Remove）时关闭的 channel。
//
// 每次变更后都会换上新的 channel，等待方应在每轮检查前重新获取：
//
//	ch := pool.Changed()
//	if key, _ := pool.Acquire(ctx, time.Now(), xkeypool.SoftError(true)); key == "" {
//	    <-ch
//	}
func (p *Pool) Changed() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.changed
}

// =============================================================================
// 内部辅助
// =============================================================================

// notifyLocked 唤醒等待方，调用方必须持有 p.mu
func (p *Pool) notifyLocked() {
	close(p.changed)
	p.changed = make(chan struct{})
}

func (p *Pool) callOptions(opts []CallOption) *callOptions {
	co := &callOptions{softError: p.opts.softError}
	for _, opt := range opts {
		opt(co)
	}
	return co
}

// softenError 按错误策略返回错误
func softenError(co *callOptions, err error) error {
	if co.softError {
		return nil
	}
	return err
}
