package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/domain"
)

func date(value string) time.Time {
	t, err := time.Parse(domain.DateKeyLayout, value)
	if err != nil {
		panic(err)
	}
	return t
}

func snapshotWith(entries ...domain.ScheduleEntry) domain.ScheduleSnapshot {
	snapshot := make(domain.ScheduleSnapshot)
	for _, entry := range entries {
		snapshot.Set(entry)
	}
	return snapshot
}

type writeRecord struct {
	memberID int64
	day      time.Time
	value    domain.StatusCode
	reason   string
}

// fakeStore 按拉取次数返回预置的快照序列，并记录所有写入
// gate 非空时每次拉取都会阻塞在上面，用来模拟慢响应
type fakeStore struct {
	mu         sync.Mutex
	snapshots  []domain.ScheduleSnapshot
	fetchErrs  []error
	fetchCount int
	writes     []writeRecord
	writeErr   error
	gate       chan struct{}
}

func (s *fakeStore) FetchEntries(ctx context.Context, teamID int64, start time.Time, end time.Time) (domain.ScheduleSnapshot, error) {
	s.mu.Lock()
	index := s.fetchCount
	s.fetchCount++
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if index < len(s.fetchErrs) && s.fetchErrs[index] != nil {
		return nil, s.fetchErrs[index]
	}
	if index < len(s.snapshots) {
		return s.snapshots[index].Clone(), nil
	}
	if len(s.snapshots) > 0 {
		return s.snapshots[len(s.snapshots)-1].Clone(), nil
	}
	return make(domain.ScheduleSnapshot), nil
}

func (s *fakeStore) WriteEntry(ctx context.Context, teamID int64, memberID int64, day time.Time, value domain.StatusCode, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, writeRecord{memberID: memberID, day: day, value: value, reason: reason})
	return s.writeErr
}

func (s *fakeStore) fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCount
}

func (s *fakeStore) recordedWrites() []writeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]writeRecord(nil), s.writes...)
}

type fakeSubscriber struct {
	mu           sync.Mutex
	onChange     func()
	subscribeErr error
	released     bool
}

func (s *fakeSubscriber) Subscribe(teamID int64, start time.Time, end time.Time, onChange func()) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}
	s.onChange = onChange
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.released = true
	}, nil
}

func (s *fakeSubscriber) notify() {
	s.mu.Lock()
	onChange := s.onChange
	s.mu.Unlock()
	if onChange != nil {
		onChange()
	}
}

func (s *fakeSubscriber) isReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// eventually 轮询条件直到成立或者超时
func eventually(t *testing.T, condition func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(message)
}

func TestOpen_LoadsInitialSnapshot(t *testing.T) {
	store := &fakeStore{
		snapshots: []domain.ScheduleSnapshot{
			snapshotWith(domain.ScheduleEntry{MemberID: 1, Date: date("2025-08-03"), Value: domain.StatusFullDay}),
		},
	}
	sub := &fakeSubscriber{}

	c, err := Open(context.Background(), store, sub, 10, date("2025-08-03"), date("2025-08-07"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	if c.State() != StateReady {
		t.Errorf("Expected state ready, got %s", c.State())
	}

	entry, ok := c.Snapshot().Get(1, date("2025-08-03"))
	if !ok {
		t.Fatal("Expected entry for member 1 on 2025-08-03")
	}
	if entry.Value != domain.StatusFullDay {
		t.Errorf("Expected value %s, got %s", domain.StatusFullDay, entry.Value)
	}
}

func TestOpen_FetchFailureReleasesSubscription(t *testing.T) {
	store := &fakeStore{fetchErrs: []error{errors.New("数据库连不上")}}
	sub := &fakeSubscriber{}

	if _, err := Open(context.Background(), store, sub, 10, date("2025-08-03"), date("2025-08-07")); err == nil {
		t.Fatal("Expected Open to fail when the initial fetch fails")
	}
	if !sub.isReleased() {
		t.Error("Expected subscription to be released on the failure path")
	}
}

func TestOpen_SubscribeFailure(t *testing.T) {
	store := &fakeStore{}
	sub := &fakeSubscriber{subscribeErr: errors.New("订阅通道不可用")}

	if _, err := Open(context.Background(), store, sub, 10, date("2025-08-03"), date("2025-08-07")); err == nil {
		t.Fatal("Expected Open to fail when subscribing fails")
	}
}

func TestApplyLocalWrite_VisibleBeforeConfirmation(t *testing.T) {
	store := &fakeStore{}
	sub := &fakeSubscriber{}

	c, err := Open(context.Background(), store, sub, 10, date("2025-08-03"), date("2025-08-07"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	if err := c.ApplyLocalWrite(1, date("2025-08-04"), domain.StatusHalfDay, "病假"); err != nil {
		t.Fatalf("ApplyLocalWrite failed: %v", err)
	}

	// 内存修改是同步的，不等落库确认就要能读到
	entry, ok := c.Snapshot().Get(1, date("2025-08-04"))
	if !ok {
		t.Fatal("Expected the optimistic write to be readable immediately")
	}
	if entry.Value != domain.StatusHalfDay || entry.Reason != "病假" {
		t.Errorf("Unexpected entry %+v", entry)
	}

	eventually(t, func() bool { return len(store.recordedWrites()) == 1 }, "store never received the write")
}

func TestApplyLocalWrite_LastWriteWins(t *testing.T) {
	store := &fakeStore{}
	sub := &fakeSubscriber{}

	c, err := Open(context.Background(), store, sub, 10, date("2025-08-03"), date("2025-08-07"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	if err := c.ApplyLocalWrite(1, date("2025-08-04"), domain.StatusFullDay, ""); err != nil {
		t.Fatalf("ApplyLocalWrite failed: %v", err)
	}
	if err := c.ApplyLocalWrite(1, date("2025-08-04"), domain.StatusAbsent, "年假"); err != nil {
		t.Fatalf("ApplyLocalWrite failed: %v", err)
	}

	entry, ok := c.Snapshot().Get(1, date("2025-08-04"))
	if !ok {
		t.Fatal("Expected an entry for member 1 on 2025-08-04")
	}
	if entry.Value != domain.StatusAbsent {
		t.Errorf("Expected the later write to win, got value %s", entry.Value)
	}
}

func TestApplyLocalWrite_EmptyValueClearsEntry(t *testing.T) {
	store := &fakeStore{
		snapshots: []domain.ScheduleSnapshot{
			snapshotWith(domain.ScheduleEntry{MemberID: 1, Date: date("2025-08-03"), Value: domain.StatusFullDay}),
		},
	}
	sub := &fakeSubscriber{}

	c, err := Open(context.Background(), store, sub, 10, date("2025-08-03"), date("2025-08-07"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	if err := c.ApplyLocalWrite(1, date("2025-08-03"), "", ""); err != nil {
		t.Fatalf("ApplyLocalWrite failed: %v", err)
	}

	if _, ok := c.Snapshot().Get(1, date("2025-08-03")); ok {
		t.Error("Expected the entry to be cleared")
	}
}

func TestApplyLocalWrite_FailedWriteNotRolledBack(t *testing.T) {
	store := &fakeStore{writeErr: errors.New("唯一约束冲突")}
	sub := &fakeSubscriber{}

	var callbackMu sync.Mutex
	var callbackErr error
	c, err := Open(context.Background(), store, sub, 10, date("2025-08-03"), date("2025-08-07"),
		WithWriteErrorHandler(func(teamID int64, memberID int64, day time.Time, err error) {
			callbackMu.Lock()
			defer callbackMu.Unlock()
			callbackErr = err
		}))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	if err := c.ApplyLocalWrite(1, date("2025-08-04"), domain.StatusFullDay, ""); err != nil {
		t.Fatalf("ApplyLocalWrite failed: %v", err)
	}

	eventually(t, func() bool {
		callbackMu.Lock()
		defer callbackMu.Unlock()
		return callbackErr != nil
	}, "write error callback never fired")

	// 失败不回滚，乐观值保持可见，等下一次重载纠正
	if _, ok := c.Snapshot().Get(1, date("2025-08-04")); !ok {
		t.Error("Expected the optimistic value to remain visible after a failed write")
	}
}

func TestApplyLocalWrite_AfterCloseReturnsError(t *testing.T) {
	store := &fakeStore{}
	sub := &fakeSubscriber{}

	c, err := Open(context.Background(), store, sub, 10, date("2025-08-03"), date("2025-08-07"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	c.Close()

	if err := c.ApplyLocalWrite(1, date("2025-08-04"), domain.StatusFullDay, ""); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Expected ErrSessionClosed, got %v", err)
	}
}

func TestRemoteChange_ReplacesSnapshotWholesale(t *testing.T) {
	store := &fakeStore{
		snapshots: []domain.ScheduleSnapshot{
			snapshotWith(domain.ScheduleEntry{MemberID: 1, Date: date("2025-08-03"), Value: domain.StatusFullDay}),
			snapshotWith(domain.ScheduleEntry{MemberID: 2, Date: date("2025-08-04"), Value: domain.StatusHalfDay, Reason: "调休"}),
		},
	}
	sub := &fakeSubscriber{}

	c, err := Open(context.Background(), store, sub, 10, date("2025-08-03"), date("2025-08-07"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	sub.notify()

	eventually(t, func() bool {
		_, ok := c.Snapshot().Get(2, date("2025-08-04"))
		return ok && c.State() == StateReady
	}, "snapshot was never replaced after the remote change")

	// 整体替换，第一份快照里的条目不能残留
	if _, ok := c.Snapshot().Get(1, date("2025-08-03")); ok {
		t.Error("Expected the old snapshot to be fully replaced")
	}
}

func TestRemoteChange_CoalescesNotificationsDuringReload(t *testing.T) {
	gate := make(chan struct{})
	store := &fakeStore{gate: gate}
	sub := &fakeSubscriber{}

	// 第一次拉取（初始加载）放行
	go func() { gate <- struct{}{} }()

	c, err := Open(context.Background(), store, sub, 10, date("2025-08-03"), date("2025-08-07"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	// 第一个通知触发重载并阻塞在 gate 上，后面几个只能做合并标记
	sub.notify()
	eventually(t, func() bool { return c.State() == StateLoading }, "reload never started")
	sub.notify()
	sub.notify()
	sub.notify()

	// 放行在途的重载和合并出来的那次追加重载
	gate <- struct{}{}
	gate <- struct{}{}

	eventually(t, func() bool { return c.State() == StateReady }, "session never became ready again")

	// 初始加载 1 次 + 在途重载 1 次 + 合并后的追加重载 1 次
	if got := store.fetches(); got != 3 {
		t.Errorf("Expected 3 fetches, got %d", got)
	}
}

func TestWritesDuringReloadAreQueuedAndReplayed(t *testing.T) {
	gate := make(chan struct{})
	store := &fakeStore{
		snapshots: []domain.ScheduleSnapshot{
			{},
			snapshotWith(domain.ScheduleEntry{MemberID: 2, Date: date("2025-08-05"), Value: domain.StatusFullDay}),
		},
		gate: gate,
	}
	sub := &fakeSubscriber{}

	go func() { gate <- struct{}{} }()

	c, err := Open(context.Background(), store, sub, 10, date("2025-08-03"), date("2025-08-07"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	sub.notify()
	eventually(t, func() bool { return c.State() == StateLoading }, "reload never started")

	// Loading 期间的写入排队，不会立刻出现在快照里
	if err := c.ApplyLocalWrite(1, date("2025-08-04"), domain.StatusFullDay, ""); err != nil {
		t.Fatalf("ApplyLocalWrite failed: %v", err)
	}
	if err := c.ApplyLocalWrite(1, date("2025-08-04"), domain.StatusHalfDay, "外出培训"); err != nil {
		t.Fatalf("ApplyLocalWrite failed: %v", err)
	}

	gate <- struct{}{}
	eventually(t, func() bool { return c.State() == StateReady }, "reload never finished")

	// 排队的写入按提交顺序重放，最后一个写入生效
	entry, ok := c.Snapshot().Get(1, date("2025-08-04"))
	if !ok {
		t.Fatal("Expected the queued write to be replayed onto the new snapshot")
	}
	if entry.Value != domain.StatusHalfDay {
		t.Errorf("Expected replay in submission order, got value %s", entry.Value)
	}

	// 重载拉回来的条目和重放的写入共存
	if _, ok := c.Snapshot().Get(2, date("2025-08-05")); !ok {
		t.Error("Expected the reloaded entry to be present")
	}

	eventually(t, func() bool { return len(store.recordedWrites()) == 2 }, "queued writes never reached the store")
}

func TestReloadFailure_KeepsPreviousSnapshot(t *testing.T) {
	store := &fakeStore{
		snapshots: []domain.ScheduleSnapshot{
			snapshotWith(domain.ScheduleEntry{MemberID: 1, Date: date("2025-08-03"), Value: domain.StatusFullDay}),
		},
		fetchErrs: []error{nil, errors.New("连接被重置")},
	}
	sub := &fakeSubscriber{}

	c, err := Open(context.Background(), store, sub, 10, date("2025-08-03"), date("2025-08-07"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	sub.notify()

	eventually(t, func() bool { return c.LoadError() != nil }, "load error was never recorded")

	if c.State() != StateReady {
		t.Errorf("Expected state ready after a failed reload, got %s", c.State())
	}
	// 失败的重载不能把旧快照弄丢
	if _, ok := c.Snapshot().Get(1, date("2025-08-03")); !ok {
		t.Error("Expected the previous snapshot to remain visible")
	}
}

func TestClose_ReleasesSubscription(t *testing.T) {
	store := &fakeStore{}
	sub := &fakeSubscriber{}

	c, err := Open(context.Background(), store, sub, 10, date("2025-08-03"), date("2025-08-07"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	c.Close()

	if !sub.isReleased() {
		t.Error("Expected the subscription to be released on close")
	}
	if c.State() != StateClosed {
		t.Errorf("Expected state closed, got %s", c.State())
	}
	// 重复关闭是安全的
	c.Close()
}

func TestManager_ReusesSessionForSameRange(t *testing.T) {
	store := &fakeStore{}
	sub := &fakeSubscriber{}
	manager := NewManager(store, sub)
	defer manager.CloseAll()

	first, err := manager.Acquire(context.Background(), 10, date("2025-08-03"), date("2025-08-07"))
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	second, err := manager.Acquire(context.Background(), 10, date("2025-08-03"), date("2025-08-07"))
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if first != second {
		t.Error("Expected the same session for an unchanged range")
	}
}

func TestManager_ReplacesSessionWhenRangeChanges(t *testing.T) {
	store := &fakeStore{}
	sub := &fakeSubscriber{}
	manager := NewManager(store, sub)
	defer manager.CloseAll()

	first, err := manager.Acquire(context.Background(), 10, date("2025-08-03"), date("2025-08-07"))
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	second, err := manager.Acquire(context.Background(), 10, date("2025-08-10"), date("2025-08-14"))
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if first == second {
		t.Error("Expected a new session for a different range")
	}
	if first.State() != StateClosed {
		t.Errorf("Expected the old session to be closed, got %s", first.State())
	}
}
