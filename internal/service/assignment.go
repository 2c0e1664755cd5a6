package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/broadcast"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/config"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// TargetRef 指派目标引用
type TargetRef struct {
	Kind domain.TargetKind
	ID   string
}

func targetUpdatedEvent(kind domain.TargetKind) string {
	if kind == domain.TargetIncident {
		return broadcast.EventIncidentUpdated
	}
	return broadcast.EventCallUpdated
}

func maxAssignments(kind domain.TargetKind, settings config.CADSettings) int {
	if kind == domain.TargetIncident {
		return settings.MaxAssignmentsToIncidents
	}
	return settings.MaxAssignmentsToCalls
}

// Assign 把单位指派到呼叫或事件
// force=true 跳过容量上限（调度员强制插入）
func (s *DispatchService) Assign(ctx context.Context, caller domain.CallerContext, unitID string, target TargetRef, force bool, settings config.CADSettings) error {
	unlock := s.locks.Lock(unitID)
	defer unlock()

	unit, err := s.Resolve(ctx, caller, unitID, ResolveOptions{})
	if err != nil {
		return err
	}
	if unit.Suspended {
		return domain.Conflict(domain.ReasonUnitSuspended)
	}
	if unit.IsOffDuty() {
		return domain.Conflict(domain.ReasonUnitOffDuty)
	}
	if unit.CombinedUnitID.Valid {
		return domain.Conflict(domain.ReasonPartOfCombinedUnit)
	}

	if err := s.requireActiveTarget(ctx, target); err != nil {
		return err
	}

	existing, err := s.assignments.GetAssignment(ctx, target.Kind, target.ID, unitID)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.Conflict(domain.ReasonUnitAlreadyAssigned)
	}

	if max := maxAssignments(target.Kind, settings); max > 0 && !force {
		count, err := s.assignments.CountUnitAssignments(ctx, target.Kind, unitID)
		if err != nil {
			return err
		}
		if count >= max {
			return domain.Conflict(domain.ReasonMaxAssignments)
		}
	}

	now := time.Now()
	record := &domain.AssignmentRecord{
		AssignmentID: uuid.NewString(),
		CreatedAt:    now,
	}
	record.SetUnitRef(unitID, unit.Kind)
	if target.Kind == domain.TargetIncident {
		record.IncidentID = sql.NullString{String: target.ID, Valid: true}
	} else {
		record.CallID = sql.NullString{String: target.ID, Valid: true}
	}
	if err := s.assignments.CreateAssignment(ctx, record); err != nil {
		return err
	}

	if err := s.setActiveTarget(ctx, unitID, target, sql.NullString{String: target.ID, Valid: true}); err != nil {
		return err
	}

	if target.Kind == domain.TargetCall {
		s.appendCallEvent(ctx, target.ID, fmt.Sprintf("%s assigned to call", unit.Callsign), now)
	}

	s.gateway.Publish(ctx, targetUpdatedEvent(target.Kind), map[string]string{"id": target.ID})
	s.gateway.Publish(ctx, categoryRefreshEvent(unit.Kind.Category()), nil)
	s.notify(targetUpdatedEvent(target.Kind), map[string]string{"id": target.ID, "unitId": unitID})

	s.logger.Info("unit assigned",
		zap.String("unit_id", unitID),
		zap.String("target_kind", string(target.Kind)),
		zap.String("target_id", target.ID),
		zap.Bool("force", force))
	return nil
}

// Unassign 把单位从呼叫或事件上解除
// 解除后该单位的活动引用回退到其最近创建的同类指派（若有）
func (s *DispatchService) Unassign(ctx context.Context, caller domain.CallerContext, unitID string, target TargetRef) error {
	unlock := s.locks.Lock(unitID)
	defer unlock()

	unit, err := s.Resolve(ctx, caller, unitID, ResolveOptions{})
	if err != nil {
		return err
	}

	existing, err := s.assignments.GetAssignment(ctx, target.Kind, target.ID, unitID)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.Conflict(domain.ReasonUnitNotAssigned)
	}
	if err := s.assignments.DeleteAssignment(ctx, existing.AssignmentID); err != nil {
		return err
	}

	next := sql.NullString{}
	latest, err := s.assignments.LatestUnitAssignment(ctx, target.Kind, unitID)
	if err != nil {
		return err
	}
	if latest != nil {
		next = sql.NullString{String: latest.TargetID(), Valid: true}
	}
	if err := s.setActiveTarget(ctx, unitID, target, next); err != nil {
		return err
	}

	if target.Kind == domain.TargetCall {
		s.appendCallEvent(ctx, target.ID, fmt.Sprintf("%s unassigned from call", unit.Callsign), time.Now())
	}

	s.gateway.Publish(ctx, targetUpdatedEvent(target.Kind), map[string]string{"id": target.ID})
	s.gateway.Publish(ctx, categoryRefreshEvent(unit.Kind.Category()), nil)

	s.logger.Info("unit unassigned",
		zap.String("unit_id", unitID),
		zap.String("target_kind", string(target.Kind)),
		zap.String("target_id", target.ID))
	return nil
}

// BulkAssign 批量指派：逐个处理，冲突的单位跳过，返回成功的单位ID
func (s *DispatchService) BulkAssign(ctx context.Context, caller domain.CallerContext, unitIDs []string, target TargetRef, force bool, settings config.CADSettings) ([]string, error) {
	var succeeded []string
	for _, unitID := range unitIDs {
		err := s.Assign(ctx, caller, unitID, target, force, settings)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn("bulk assign skipped unit",
					zap.String("unit_id", unitID), zap.Error(err))
				continue
			}
			return succeeded, err
		}
		succeeded = append(succeeded, unitID)
	}
	return succeeded, nil
}

func (s *DispatchService) requireActiveTarget(ctx context.Context, target TargetRef) error {
	if target.Kind == domain.TargetIncident {
		incident, err := s.incidents.GetIncident(ctx, target.ID)
		if err != nil {
			return err
		}
		if incident == nil || !incident.IsActive {
			return domain.ErrNotFound
		}
		return nil
	}
	call, err := s.calls.GetCall(ctx, target.ID)
	if err != nil {
		return err
	}
	if call == nil || !call.IsActive {
		return domain.ErrNotFound
	}
	return nil
}

func (s *DispatchService) setActiveTarget(ctx context.Context, unitID string, target TargetRef, value sql.NullString) error {
	if target.Kind == domain.TargetIncident {
		return s.units.SetActiveIncident(ctx, unitID, value)
	}
	return s.units.SetActiveCall(ctx, unitID, value)
}

func (s *DispatchService) appendCallEvent(ctx context.Context, callID, description string, ts time.Time) {
	event := &domain.CallEvent{
		EventID:     uuid.NewString(),
		CallID:      callID,
		Description: description,
		CreatedAt:   ts,
	}
	if err := s.calls.CreateCallEvent(ctx, event); err != nil {
		s.logger.Warn("failed to append call event",
			zap.String("call_id", callID), zap.Error(err))
	}
}
