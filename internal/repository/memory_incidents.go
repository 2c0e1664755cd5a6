package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// MemoryIncidentsRepository 事件的内存实现
type MemoryIncidentsRepository struct {
	mu        sync.Mutex
	incidents map[string]*domain.Incident
	units     *MemoryUnitsRepository
}

// NewMemoryIncidentsRepository 创建内存事件Repository
func NewMemoryIncidentsRepository(units *MemoryUnitsRepository) *MemoryIncidentsRepository {
	return &MemoryIncidentsRepository{incidents: make(map[string]*domain.Incident), units: units}
}

// Put 写入事件（种子数据）
func (r *MemoryIncidentsRepository) Put(incident *domain.Incident) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *incident
	r.incidents[incident.IncidentID] = &c
}

func (r *MemoryIncidentsRepository) GetIncident(ctx context.Context, incidentID string) (*domain.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	incident, ok := r.incidents[incidentID]
	if !ok {
		return nil, nil
	}
	c := *incident
	return &c, nil
}

func (r *MemoryIncidentsRepository) ListActiveIncidents(ctx context.Context) ([]*domain.Incident, error) {
	return r.listWhere(func(in *domain.Incident) bool { return in.IsActive })
}

func (r *MemoryIncidentsRepository) ListStaleActiveIncidents(ctx context.Context, cutoff time.Time) ([]*domain.Incident, error) {
	return r.listWhere(func(in *domain.Incident) bool {
		return in.IsActive && in.UpdatedAt.Before(cutoff)
	})
}

func (r *MemoryIncidentsRepository) listWhere(keep func(*domain.Incident) bool) ([]*domain.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Incident
	for _, incident := range r.incidents {
		if keep(incident) {
			c := *incident
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryIncidentsRepository) DeactivateIncident(ctx context.Context, incidentID string) error {
	r.mu.Lock()
	incident, ok := r.incidents[incidentID]
	if !ok {
		r.mu.Unlock()
		return domain.ErrNotFound
	}
	incident.IsActive = false
	incident.UpdatedAt = time.Now()
	r.mu.Unlock()

	if r.units != nil {
		r.units.clearIncidentRefs(incidentID)
	}
	return nil
}
