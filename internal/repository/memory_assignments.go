package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// MemoryAssignmentsRepository 指派记录的内存实现
type MemoryAssignmentsRepository struct {
	mu      sync.Mutex
	records map[string]*domain.AssignmentRecord
}

// NewMemoryAssignmentsRepository 创建内存指派Repository
func NewMemoryAssignmentsRepository() *MemoryAssignmentsRepository {
	return &MemoryAssignmentsRepository{records: make(map[string]*domain.AssignmentRecord)}
}

func matchesTarget(rec *domain.AssignmentRecord, kind domain.TargetKind, targetID string) bool {
	if kind == domain.TargetCall {
		return rec.CallID.Valid && (targetID == "" || rec.CallID.String == targetID)
	}
	return rec.IncidentID.Valid && (targetID == "" || rec.IncidentID.String == targetID)
}

func (r *MemoryAssignmentsRepository) GetAssignment(ctx context.Context, kind domain.TargetKind, targetID, unitID string) (*domain.AssignmentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if matchesTarget(rec, kind, targetID) && rec.UnitID() == unitID {
			c := *rec
			return &c, nil
		}
	}
	return nil, nil
}

func (r *MemoryAssignmentsRepository) ListTargetAssignments(ctx context.Context, kind domain.TargetKind, targetID string) ([]*domain.AssignmentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AssignmentRecord
	for _, rec := range r.records {
		if matchesTarget(rec, kind, targetID) {
			c := *rec
			out = append(out, &c)
		}
	}
	sortAssignmentsByCreatedAt(out)
	return out, nil
}

func (r *MemoryAssignmentsRepository) CountUnitAssignments(ctx context.Context, kind domain.TargetKind, unitID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, rec := range r.records {
		if matchesTarget(rec, kind, "") && rec.UnitID() == unitID {
			count++
		}
	}
	return count, nil
}

func (r *MemoryAssignmentsRepository) LatestUnitAssignment(ctx context.Context, kind domain.TargetKind, unitID string) (*domain.AssignmentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.AssignmentRecord
	for _, rec := range r.records {
		if !matchesTarget(rec, kind, "") || rec.UnitID() != unitID {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, nil
	}
	c := *latest
	return &c, nil
}

func (r *MemoryAssignmentsRepository) CreateAssignment(ctx context.Context, record *domain.AssignmentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *record
	r.records[record.AssignmentID] = &c
	return nil
}

func (r *MemoryAssignmentsRepository) DeleteAssignment(ctx context.Context, assignmentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[assignmentID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.records, assignmentID)
	return nil
}

// redistributeCombined 把合并单位的指派记录复制给每个成员并删除原记录（解散用）
func (r *MemoryAssignmentsRepository) redistributeCombined(combinedID string, restores []MemberRestore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range r.records {
		if !rec.CombinedLeoID.Valid && !rec.CombinedEmsFdID.Valid {
			continue
		}
		if rec.UnitID() != combinedID {
			continue
		}
		for _, restore := range restores {
			copyRec := &domain.AssignmentRecord{
				AssignmentID: uuid.NewString(),
				CallID:       rec.CallID,
				IncidentID:   rec.IncidentID,
				IsPrimary:    rec.IsPrimary,
				CreatedAt:    time.Now(),
			}
			copyRec.SetUnitRef(restore.UnitID, restore.Kind)
			r.records[copyRec.AssignmentID] = copyRec
		}
		delete(r.records, id)
	}
}

func sortAssignmentsByCreatedAt(records []*domain.AssignmentRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}
