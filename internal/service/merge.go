package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/config"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/repository"
)

// Merge 把多个同类单人单位合并为一个合并单位
// entryUnitID 必须在成员列表中；合并单位继承入口单位的呼号与部门
func (s *DispatchService) Merge(ctx context.Context, caller domain.CallerContext, entryUnitID string, memberIDs []string, userDefinedCallsign string, settings config.CADSettings) (*domain.Unit, error) {
	if len(memberIDs) < 2 {
		return nil, domain.Conflict(domain.ReasonNotEnoughMembers)
	}
	entryInMembers := false
	for _, id := range memberIDs {
		if id == entryUnitID {
			entryInMembers = true
			break
		}
	}
	if !entryInMembers {
		return nil, domain.Conflict(domain.ReasonEntryNotInMembers)
	}

	unlock := s.locks.Lock(memberIDs...)
	defer unlock()

	entry, err := s.Resolve(ctx, caller, entryUnitID, ResolveOptions{})
	if err != nil {
		return nil, err
	}
	category := entry.Kind.Category()
	combinedKind := entry.Kind.CombinedKind()

	for _, memberID := range memberIDs {
		member, err := s.units.GetUnit(ctx, memberID)
		if err != nil {
			return nil, err
		}
		if member == nil {
			return nil, domain.ErrNotFound
		}
		if member.Kind.IsCombined() || member.Kind.Category() != category {
			return nil, domain.Conflict(domain.ReasonWrongUnitKind)
		}
		if member.CombinedUnitID.Valid {
			return nil, domain.Conflict(domain.ReasonPartOfCombinedUnit)
		}
		if member.Suspended {
			return nil, domain.Conflict(domain.ReasonUnitSuspended)
		}
		if member.IsOffDuty() {
			return nil, domain.Conflict(domain.ReasonUnitOffDuty)
		}
	}

	callsign := sql.NullString{}
	if userDefinedCallsign != "" && settings.AllowUserDefinedCallsigns {
		taken, err := s.units.FindCombinedByCallsign(ctx, combinedKind, userDefinedCallsign)
		if err != nil {
			return nil, err
		}
		if taken != nil {
			return nil, domain.Conflict(domain.ReasonCallsignTaken)
		}
		callsign = sql.NullString{String: userDefinedCallsign, Valid: true}
	}

	defaultCode, err := s.statusCodes.GetDefaultOnDutyCode(ctx, category)
	if err != nil {
		return nil, err
	}
	if defaultCode == nil {
		return nil, domain.ErrNotFound
	}

	// 合并单位的序号独立于部门作用域，同类合并单位共用一个计数器
	incremental, err := s.units.NextIncremental(ctx, "", combinedKind)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	combined := &domain.Unit{
		UnitID:              uuid.NewString(),
		Kind:                combinedKind,
		Callsign:            entry.Callsign,
		Callsign2:           entry.Callsign2,
		UserDefinedCallsign: callsign,
		DepartmentID:        entry.DepartmentID,
		ActiveVehicleID:     entry.ActiveVehicleID,
		StatusID:            sql.NullString{String: defaultCode.StatusID, Valid: true},
		Incremental:         sql.NullInt64{Int64: incremental, Valid: true},
		LastStatusChange:    now,
		MemberIDs:           memberIDs,
	}
	if err := s.units.CreateCombinedUnit(ctx, combined); err != nil {
		return nil, err
	}

	if err := s.dutyLogs.OpenLog(ctx, &domain.DutyLog{
		LogID:     uuid.NewString(),
		UnitID:    combined.UnitID,
		StartedAt: now,
	}); err != nil {
		return nil, err
	}

	s.gateway.Publish(ctx, categoryRefreshEvent(category), nil)
	s.notify("units-merged", map[string]interface{}{
		"combinedUnitId": combined.UnitID,
		"memberIds":      memberIDs,
	})

	s.logger.Info("units merged",
		zap.String("combined_unit_id", combined.UnitID),
		zap.String("kind", string(combinedKind)),
		zap.Int("members", len(memberIDs)))

	return s.units.GetUnit(ctx, combined.UnitID)
}

// Unmerge 解散合并单位，成员恢复为在岗的单人单位
func (s *DispatchService) Unmerge(ctx context.Context, caller domain.CallerContext, combinedID string) ([]*domain.Unit, error) {
	unlock := s.locks.Lock(combinedID)
	defer unlock()

	unit, err := s.Resolve(ctx, caller, combinedID, ResolveOptions{})
	if err != nil {
		return nil, err
	}
	if !unit.Kind.IsCombined() {
		return nil, domain.Conflict(domain.ReasonWrongUnitKind)
	}
	return s.dissolve(ctx, unit)
}

// dissolve 解散合并单位：成员恢复默认上岗状态并继承合并单位的活动引用，
// 合并单位的指派记录重分配给每个成员
func (s *DispatchService) dissolve(ctx context.Context, unit *domain.Unit) ([]*domain.Unit, error) {
	defaultStatus := sql.NullString{}
	defaultCode, err := s.statusCodes.GetDefaultOnDutyCode(ctx, unit.Kind.Category())
	if err != nil {
		return nil, err
	}
	if defaultCode != nil {
		defaultStatus = sql.NullString{String: defaultCode.StatusID, Valid: true}
	}

	var restores []repository.MemberRestore
	for _, memberID := range unit.MemberIDs {
		member, err := s.units.GetUnit(ctx, memberID)
		if err != nil {
			return nil, err
		}
		if member == nil {
			continue
		}
		restores = append(restores, repository.MemberRestore{
			UnitID:           member.UnitID,
			Kind:             member.Kind,
			StatusID:         defaultStatus,
			ActiveCallID:     unit.ActiveCallID,
			ActiveIncidentID: unit.ActiveIncidentID,
		})
	}

	now := time.Now()
	if err := s.dutyLogs.CloseOpenLog(ctx, unit.UnitID, now); err != nil {
		return nil, err
	}
	if err := s.units.DissolveCombinedUnit(ctx, unit.UnitID, restores); err != nil {
		return nil, err
	}
	if unit.IsPanicking() {
		s.publishPanicOff(ctx, unit)
	}

	s.gateway.Publish(ctx, categoryRefreshEvent(unit.Kind.Category()), nil)
	s.notify("units-unmerged", map[string]interface{}{"combinedUnitId": unit.UnitID})

	s.logger.Info("combined unit dissolved",
		zap.String("combined_unit_id", unit.UnitID),
		zap.Int("members", len(restores)))

	var members []*domain.Unit
	for _, restore := range restores {
		member, err := s.units.GetUnit(ctx, restore.UnitID)
		if err != nil {
			return nil, err
		}
		if member != nil {
			members = append(members, member)
		}
	}
	return members, nil
}
