package repository

import (
	"context"
	"sync"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// MemoryStatusCodesRepository 状态码目录的内存实现（DB 禁用模式与测试用）
type MemoryStatusCodesRepository struct {
	mu    sync.Mutex
	codes map[string]*domain.StatusCode
}

// NewMemoryStatusCodesRepository 创建内存状态码Repository
func NewMemoryStatusCodesRepository() *MemoryStatusCodesRepository {
	return &MemoryStatusCodesRepository{codes: make(map[string]*domain.StatusCode)}
}

// Put 写入状态码（种子数据）
func (r *MemoryStatusCodesRepository) Put(code *domain.StatusCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *code
	r.codes[code.StatusID] = &c
}

func (r *MemoryStatusCodesRepository) GetStatusCode(ctx context.Context, statusID string) (*domain.StatusCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.codes[statusID]
	if !ok {
		return nil, nil
	}
	c := *code
	return &c, nil
}

func (r *MemoryStatusCodesRepository) GetDefaultOnDutyCode(ctx context.Context, category domain.Category) (*domain.StatusCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, code := range r.codes {
		if code.ShouldDo == domain.ShouldDoSetOnDuty && code.AppliesTo(category) {
			c := *code
			return &c, nil
		}
	}
	return nil, nil
}

func (r *MemoryStatusCodesRepository) GetPanicCode(ctx context.Context) (*domain.StatusCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, code := range r.codes {
		if code.ShouldDo == domain.ShouldDoPanicButton {
			c := *code
			return &c, nil
		}
	}
	return nil, nil
}
