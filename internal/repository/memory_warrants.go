package repository

import (
	"context"
	"sync"
	"time"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// MemoryWarrantsRepository 通缉令的内存实现
type MemoryWarrantsRepository struct {
	mu       sync.Mutex
	warrants map[string]*domain.Warrant
}

// NewMemoryWarrantsRepository 创建内存通缉令Repository
func NewMemoryWarrantsRepository() *MemoryWarrantsRepository {
	return &MemoryWarrantsRepository{warrants: make(map[string]*domain.Warrant)}
}

// Put 写入通缉令（种子数据）
func (r *MemoryWarrantsRepository) Put(warrant *domain.Warrant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *warrant
	r.warrants[warrant.WarrantID] = &c
}

func (r *MemoryWarrantsRepository) ExpireInactiveWarrants(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, warrant := range r.warrants {
		if warrant.Status == domain.WarrantStatusActive && warrant.UpdatedAt.Before(cutoff) {
			warrant.Status = domain.WarrantStatusInactive
			warrant.UpdatedAt = time.Now()
			count++
		}
	}
	return count, nil
}
