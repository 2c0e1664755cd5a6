package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// MemoryDutyLogsRepository 执勤日志的内存实现
type MemoryDutyLogsRepository struct {
	mu   sync.Mutex
	logs []*domain.DutyLog
}

// NewMemoryDutyLogsRepository 创建内存执勤日志Repository
func NewMemoryDutyLogsRepository() *MemoryDutyLogsRepository {
	return &MemoryDutyLogsRepository{}
}

func (r *MemoryDutyLogsRepository) OpenLog(ctx context.Context, log *domain.DutyLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.logs {
		if existing.UnitID == log.UnitID && !existing.EndedAt.Valid {
			return nil
		}
	}
	c := *log
	r.logs = append(r.logs, &c)
	return nil
}

func (r *MemoryDutyLogsRepository) CloseOpenLog(ctx context.Context, unitID string, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, log := range r.logs {
		if log.UnitID == unitID && !log.EndedAt.Valid {
			log.EndedAt.Time = endedAt
			log.EndedAt.Valid = true
		}
	}
	return nil
}

func (r *MemoryDutyLogsRepository) ListLogs(ctx context.Context, filters DutyLogFilters) ([]*domain.DutyLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.DutyLog
	for _, log := range r.logs {
		if filters.UnitID != "" && log.UnitID != filters.UnitID {
			continue
		}
		if !filters.Since.IsZero() && log.StartedAt.Before(filters.Since) {
			continue
		}
		c := *log
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}
