package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/domain"
)

// Store 为外部数据存储的抽象
// 引擎只依赖这三个窄接口，不关心存储的具体实现
type Store interface {
	// FetchEntries 拉取某个小组在 [start, end] 范围内的所有条目
	// 失败和空结果是两回事，空结果返回空快照而不是错误
	FetchEntries(ctx context.Context, teamID int64, start time.Time, end time.Time) (domain.ScheduleSnapshot, error)
	// WriteEntry 持久化一个条目，value 为空字符串时表示清除
	// 对引擎来说写入是幂等的，重复写同一个值是安全的
	WriteEntry(ctx context.Context, teamID int64, memberID int64, day time.Time, value domain.StatusCode, reason string) error
}

// Subscriber 为粗粒度的变更通知订阅
// 通知至少送达一次，且不携带任何负载，收到通知只说明"范围内有东西变了"，
// 协调器必须整体重新拉取，不能假设部分更新
type Subscriber interface {
	Subscribe(teamID int64, start time.Time, end time.Time, onChange func()) (func(), error)
}

type State string

const (
	StateClosed  State = "closed"
	StateLoading State = "loading"
	StateReady   State = "ready"
)

var ErrSessionClosed = errors.New("会话已关闭")

// writeRequest 为 Loading 期间排队的乐观写入
type writeRequest struct {
	memberID int64
	day      time.Time
	value    domain.StatusCode
	reason   string
}

// Coordinator 持有某个 (小组, 日期范围) 会话的规范内存快照
//
// 乐观写入先改内存再异步落库，界面立刻能读到新值；落库失败不回滚，
// 由下一次整体重载来纠正真正的分歧。收到远端变更通知时整个快照会被
// wholesale 替换。重载期间到达的写入会排队，加载完成后按提交顺序重放，
// 不会被静默丢掉
type Coordinator struct {
	store  Store
	teamID int64

	mu             sync.Mutex
	state          State
	start, end     time.Time
	snapshot       domain.ScheduleSnapshot
	pendingWrites  []writeRequest
	loadGeneration int  // 每次换范围或关闭时递增，过期加载的结果直接丢弃
	reloadPending  bool // 重载期间又来了通知，合并成最多一次追加重载
	reloading      bool
	loadErr        error // 最近一次重载的错误，成功后清空，旧快照保持可见
	unsubscribe    func()
	onWriteError   func(teamID int64, memberID int64, day time.Time, err error)

	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Coordinator)

// WithWriteErrorHandler 设置写入失败的回调，默认只打日志
func WithWriteErrorHandler(handler func(teamID int64, memberID int64, day time.Time, err error)) Option {
	return func(c *Coordinator) {
		c.onWriteError = handler
	}
}

// Open 为某个 (小组, 日期范围) 打开一个会话：建立订阅并加载初始快照
// 任何失败路径上订阅都会被释放
func Open(ctx context.Context, store Store, subscriber Subscriber, teamID int64, start time.Time, end time.Time, opts ...Option) (*Coordinator, error) {
	sessionCtx, cancel := context.WithCancel(context.Background())

	c := &Coordinator{
		store:  store,
		teamID: teamID,
		state:  StateLoading,
		start:  domain.DateOnly(start),
		end:    domain.DateOnly(end),
		ctx:    sessionCtx,
		cancel: cancel,
	}
	c.onWriteError = func(teamID int64, memberID int64, day time.Time, err error) {
		slog.Error("条目写入失败，等待下一次重载纠正", "team_id", teamID, "member_id", memberID, "date", domain.DateKey(day), "error", err)
	}
	for _, opt := range opts {
		opt(c)
	}

	unsubscribe, err := subscriber.Subscribe(teamID, c.start, c.end, c.handleRemoteChange)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("建立订阅失败: %w", err)
	}
	c.unsubscribe = unsubscribe

	snapshot, err := store.FetchEntries(ctx, teamID, c.start, c.end)
	if err != nil {
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		unsubscribe()
		cancel()
		return nil, fmt.Errorf("加载快照失败: %w", err)
	}

	c.mu.Lock()
	c.snapshot = snapshot
	c.state = StateReady
	c.replayPendingWritesLocked()
	// 初始加载期间到达的通知在这里补上一次重载
	if c.reloadPending {
		c.reloadPending = false
		c.reloading = true
		c.state = StateLoading
		go c.reload(c.loadGeneration)
	}
	c.mu.Unlock()

	return c, nil
}

// State 返回会话当前的状态
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Range 返回会话当前的日期范围
func (c *Coordinator) Range() (time.Time, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start, c.end
}

// LoadError 返回最近一次重载的错误，没有错误时返回 nil
// 重载失败时旧快照依然可读，调用方靠这个接口展示错误标记
func (c *Coordinator) LoadError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// Snapshot 返回当前快照的只读副本
// 返回的是深拷贝，聚合和展示层随便怎么用都不会影响会话内部状态
func (c *Coordinator) Snapshot() domain.ScheduleSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return make(domain.ScheduleSnapshot)
	}
	return c.snapshot.Clone()
}

// ApplyLocalWrite 应用一个乐观写入
// 内存修改是同步的，返回之后立刻可读；落库在后台进行，不等确认。
// Loading 期间的写入排队，等待加载完成后按顺序重放
func (c *Coordinator) ApplyLocalWrite(memberID int64, day time.Time, value domain.StatusCode, reason string) error {
	day = domain.DateOnly(day)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return ErrSessionClosed
	case StateLoading:
		c.pendingWrites = append(c.pendingWrites, writeRequest{memberID: memberID, day: day, value: value, reason: reason})
		return nil
	}

	c.applyWriteLocked(writeRequest{memberID: memberID, day: day, value: value, reason: reason})
	return nil
}

// applyWriteLocked 修改内存快照并发起后台落库，调用前必须持有锁
func (c *Coordinator) applyWriteLocked(req writeRequest) {
	if req.value == "" {
		c.snapshot.Delete(req.memberID, req.day)
	} else {
		c.snapshot.Set(domain.ScheduleEntry{
			MemberID: req.memberID,
			Date:     req.day,
			Value:    req.value,
			Reason:   req.reason,
		})
	}

	go func() {
		if err := c.store.WriteEntry(c.ctx, c.teamID, req.memberID, req.day, req.value, req.reason); err != nil {
			c.onWriteError(c.teamID, req.memberID, req.day, err)
		}
	}()
}

// replayPendingWritesLocked 把排队的写入按提交顺序重放到新快照上
func (c *Coordinator) replayPendingWritesLocked() {
	for _, req := range c.pendingWrites {
		c.applyWriteLocked(req)
	}
	c.pendingWrites = nil
}

// handleRemoteChange 处理订阅推来的变更通知
// 重载已经在途时只做个标记，多个通知合并成一次追加重载
func (c *Coordinator) handleRemoteChange() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return
	}
	if c.reloading || c.state == StateLoading {
		// 已有加载在途，合并通知
		c.reloadPending = true
		return
	}

	c.reloading = true
	c.state = StateLoading
	go c.reload(c.loadGeneration)
}

// reload 整体重新拉取当前范围并替换快照
// 加载期间范围变了或者会话关闭了（generation 不匹配）时结果直接丢弃，
// 防止一个慢响应覆盖掉更新的范围
func (c *Coordinator) reload(generation int) {
	c.mu.Lock()
	start, end := c.start, c.end
	c.mu.Unlock()

	snapshot, err := c.store.FetchEntries(c.ctx, c.teamID, start, end)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed || generation != c.loadGeneration {
		return
	}

	c.reloading = false

	if err != nil {
		// 旧快照保持可见，只记录错误
		c.loadErr = fmt.Errorf("重载快照失败: %w", err)
		slog.Error("重载快照失败", "team_id", c.teamID, "error", err)
	} else {
		c.loadErr = nil
		c.snapshot = snapshot
	}

	c.state = StateReady
	c.replayPendingWritesLocked()

	if c.reloadPending {
		c.reloadPending = false
		c.reloading = true
		c.state = StateLoading
		go c.reload(c.loadGeneration)
	}
}

// Close 释放订阅并丢弃快照，之后的写入都会返回 ErrSessionClosed
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.loadGeneration++
	c.snapshot = nil
	c.pendingWrites = nil
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.cancel()
}
