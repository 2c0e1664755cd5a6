package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// MemoryCallsRepository 911呼叫的内存实现
type MemoryCallsRepository struct {
	mu     sync.Mutex
	calls  map[string]*domain.Call
	events []*domain.CallEvent
}

// NewMemoryCallsRepository 创建内存呼叫Repository
func NewMemoryCallsRepository() *MemoryCallsRepository {
	return &MemoryCallsRepository{calls: make(map[string]*domain.Call)}
}

// Put 写入呼叫（种子数据）
func (r *MemoryCallsRepository) Put(call *domain.Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *call
	r.calls[call.CallID] = &c
}

func (r *MemoryCallsRepository) GetCall(ctx context.Context, callID string) (*domain.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call, ok := r.calls[callID]
	if !ok {
		return nil, nil
	}
	c := *call
	return &c, nil
}

func (r *MemoryCallsRepository) ListActiveCalls(ctx context.Context) ([]*domain.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Call
	for _, call := range r.calls {
		if call.IsActive {
			c := *call
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryCallsRepository) CreateCallEvent(ctx context.Context, event *domain.CallEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := *event
	r.events = append(r.events, &e)
	return nil
}

// ListCallEvents 查询某呼叫的时间线事件（测试辅助）
func (r *MemoryCallsRepository) ListCallEvents(callID string) []*domain.CallEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.CallEvent
	for _, event := range r.events {
		if event.CallID == callID {
			e := *event
			out = append(out, &e)
		}
	}
	return out
}
