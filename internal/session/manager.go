package session

import (
	"context"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/domain"
)

// Manager 管理各个小组的活跃会话
// 每个小组同一时间只有一个活跃的 (小组, 日期范围) 会话，
// 范围变化时旧会话整个关闭再开新的，在途的旧加载随之作废
type Manager struct {
	store      Store
	subscriber Subscriber
	opts       []Option

	mu       sync.Mutex
	sessions map[int64]*Coordinator
}

func NewManager(store Store, subscriber Subscriber, opts ...Option) *Manager {
	return &Manager{
		store:      store,
		subscriber: subscriber,
		opts:       opts,
		sessions:   make(map[int64]*Coordinator),
	}
}

// Acquire 返回小组在指定范围上的会话，范围没变时复用，变了就换新
func (m *Manager) Acquire(ctx context.Context, teamID int64, start time.Time, end time.Time) (*Coordinator, error) {
	start = domain.DateOnly(start)
	end = domain.DateOnly(end)

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[teamID]; ok {
		currentStart, currentEnd := existing.Range()
		if existing.State() != StateClosed && currentStart.Equal(start) && currentEnd.Equal(end) {
			return existing, nil
		}
		existing.Close()
		delete(m.sessions, teamID)
	}

	coordinator, err := Open(ctx, m.store, m.subscriber, teamID, start, end, m.opts...)
	if err != nil {
		return nil, err
	}
	m.sessions[teamID] = coordinator

	return coordinator, nil
}

// CloseAll 关闭所有会话，服务器退出时调用
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for teamID, coordinator := range m.sessions {
		coordinator.Close()
		delete(m.sessions, teamID)
	}
}
