package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// MemoryUnitsRepository 单位Repository的内存实现
// 状态码快照通过 codes 解析；解散合并单位时通过 assignments 重分配指派记录
type MemoryUnitsRepository struct {
	mu          sync.Mutex
	units       map[string]*domain.Unit
	seqs        map[string]int64
	codes       *MemoryStatusCodesRepository
	assignments *MemoryAssignmentsRepository
}

// NewMemoryUnitsRepository 创建内存单位Repository
func NewMemoryUnitsRepository(codes *MemoryStatusCodesRepository, assignments *MemoryAssignmentsRepository) *MemoryUnitsRepository {
	return &MemoryUnitsRepository{
		units:       make(map[string]*domain.Unit),
		seqs:        make(map[string]int64),
		codes:       codes,
		assignments: assignments,
	}
}

// Put 写入单位（种子数据）
func (r *MemoryUnitsRepository) Put(unit *domain.Unit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[unit.UnitID] = cloneUnit(unit)
}

func cloneUnit(u *domain.Unit) *domain.Unit {
	c := *u
	c.DivisionIDs = append([]string(nil), u.DivisionIDs...)
	c.MemberIDs = append([]string(nil), u.MemberIDs...)
	if u.Status != nil {
		s := *u.Status
		c.Status = &s
	}
	return &c
}

func (r *MemoryUnitsRepository) resolveStatus(ctx context.Context, unit *domain.Unit) {
	unit.Status = nil
	if !unit.StatusID.Valid || r.codes == nil {
		return
	}
	code, _ := r.codes.GetStatusCode(ctx, unit.StatusID.String)
	unit.Status = code
}

func (r *MemoryUnitsRepository) GetUnit(ctx context.Context, unitID string) (*domain.Unit, error) {
	r.mu.Lock()
	unit, ok := r.units[unitID]
	if !ok {
		r.mu.Unlock()
		return nil, nil
	}
	c := cloneUnit(unit)
	r.mu.Unlock()
	r.resolveStatus(ctx, c)
	return c, nil
}

func (r *MemoryUnitsRepository) ListUserUnits(ctx context.Context, userID string) ([]*domain.Unit, error) {
	return r.listWhere(ctx, func(u *domain.Unit) bool {
		return u.OwnedBy(userID)
	})
}

func (r *MemoryUnitsRepository) ListOnDutyUnits(ctx context.Context) ([]*domain.Unit, error) {
	return r.listWhere(ctx, func(u *domain.Unit) bool {
		return u.StatusID.Valid
	})
}

func (r *MemoryUnitsRepository) ListInactiveOnDutyUnits(ctx context.Context, cutoff time.Time) ([]*domain.Unit, error) {
	return r.listWhere(ctx, func(u *domain.Unit) bool {
		return u.StatusID.Valid && u.LastStatusChange.Before(cutoff)
	})
}

func (r *MemoryUnitsRepository) listWhere(ctx context.Context, keep func(*domain.Unit) bool) ([]*domain.Unit, error) {
	r.mu.Lock()
	var out []*domain.Unit
	for _, unit := range r.units {
		if keep(unit) {
			out = append(out, cloneUnit(unit))
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Callsign < out[j].Callsign })
	for _, unit := range out {
		r.resolveStatus(ctx, unit)
	}
	return out, nil
}

func (r *MemoryUnitsRepository) UpdateStatus(ctx context.Context, unitID string, statusID sql.NullString, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	unit, ok := r.units[unitID]
	if !ok {
		return domain.ErrNotFound
	}
	unit.StatusID = statusID
	unit.Status = nil
	unit.LastStatusChange = ts
	unit.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryUnitsRepository) ClearEngagement(ctx context.Context, unitID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	unit, ok := r.units[unitID]
	if !ok {
		return nil
	}
	unit.StatusID = sql.NullString{}
	unit.Status = nil
	unit.ActiveCallID = sql.NullString{}
	unit.ActiveIncidentID = sql.NullString{}
	unit.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryUnitsRepository) SetActiveCall(ctx context.Context, unitID string, callID sql.NullString) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if unit, ok := r.units[unitID]; ok {
		unit.ActiveCallID = callID
		unit.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryUnitsRepository) SetActiveIncident(ctx context.Context, unitID string, incidentID sql.NullString) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if unit, ok := r.units[unitID]; ok {
		unit.ActiveIncidentID = incidentID
		unit.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryUnitsRepository) NextIncremental(ctx context.Context, departmentID string, kind domain.UnitKind) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := departmentID + "|" + string(kind)
	value := r.seqs[key] + 1
	r.seqs[key] = value
	return value, nil
}

func (r *MemoryUnitsRepository) SetIncremental(ctx context.Context, unitID string, value int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if unit, ok := r.units[unitID]; ok {
		unit.Incremental = sql.NullInt64{Int64: value, Valid: true}
		unit.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryUnitsRepository) FindCombinedByCallsign(ctx context.Context, kind domain.UnitKind, callsign string) (*domain.Unit, error) {
	r.mu.Lock()
	for _, unit := range r.units {
		if unit.Kind == kind && unit.UserDefinedCallsign.Valid &&
			strings.EqualFold(unit.UserDefinedCallsign.String, callsign) {
			c := cloneUnit(unit)
			r.mu.Unlock()
			r.resolveStatus(ctx, c)
			return c, nil
		}
	}
	r.mu.Unlock()
	return nil, nil
}

func (r *MemoryUnitsRepository) CreateCombinedUnit(ctx context.Context, unit *domain.Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[unit.UnitID] = cloneUnit(unit)
	for _, memberID := range unit.MemberIDs {
		member, ok := r.units[memberID]
		if !ok {
			continue
		}
		member.CombinedUnitID = sql.NullString{String: unit.UnitID, Valid: true}
		member.StatusID = sql.NullString{}
		member.Status = nil
		member.ActiveCallID = sql.NullString{}
		member.ActiveIncidentID = sql.NullString{}
		member.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryUnitsRepository) DissolveCombinedUnit(ctx context.Context, combinedID string, restores []MemberRestore) error {
	if r.assignments != nil {
		r.assignments.redistributeCombined(combinedID, restores)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, restore := range restores {
		member, ok := r.units[restore.UnitID]
		if !ok {
			continue
		}
		member.CombinedUnitID = sql.NullString{}
		member.StatusID = restore.StatusID
		member.Status = nil
		member.ActiveCallID = restore.ActiveCallID
		member.ActiveIncidentID = restore.ActiveIncidentID
		member.LastStatusChange = time.Now()
		member.UpdatedAt = time.Now()
	}
	delete(r.units, combinedID)
	return nil
}

// clearIncidentRefs 清空引用某事件的所有单位的 active_incident_id（事件停用时调用）
func (r *MemoryUnitsRepository) clearIncidentRefs(incidentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, unit := range r.units {
		if unit.ActiveIncidentID.Valid && unit.ActiveIncidentID.String == incidentID {
			unit.ActiveIncidentID = sql.NullString{}
			unit.UpdatedAt = time.Now()
		}
	}
}
