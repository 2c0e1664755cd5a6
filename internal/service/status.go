package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/broadcast"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/config"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

type unitEventPayload struct {
	UnitID   string `json:"unitId"`
	Callsign string `json:"callsign"`
	StatusID string `json:"statusId,omitempty"`
}

func categoryRefreshEvent(category domain.Category) string {
	if category == domain.CategoryEMSFD {
		return broadcast.EventRefreshEMSFD
	}
	return broadcast.EventRefreshLEO
}

// SetStatus 设置单位状态（核心管线）
// 按状态码的 ShouldDo 语义执行副作用：上岗、离岗、报警委派、普通状态变更
func (s *DispatchService) SetStatus(ctx context.Context, caller domain.CallerContext, unitID, statusID string, settings config.CADSettings) (*domain.Unit, error) {
	unlock := s.locks.Lock(unitID)
	defer unlock()

	unit, err := s.Resolve(ctx, caller, unitID, ResolveOptions{})
	if err != nil {
		return nil, err
	}
	if unit.Suspended {
		return nil, domain.Conflict(domain.ReasonUnitSuspended)
	}
	// 合并单位成员不能单独变更状态；调度员可以强制
	if unit.CombinedUnitID.Valid && !caller.Privileged() {
		return nil, domain.Conflict(domain.ReasonPartOfCombinedUnit)
	}

	code, err := s.statusCodes.GetStatusCode(ctx, statusID)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, domain.ErrNotFound
	}

	// 报警码先做开关委派，得到实际要写入的状态码后继续走同一条管线
	direction := panicNone
	if code.ShouldDo == domain.ShouldDoPanicButton {
		code, direction, err = s.handlePanic(ctx, unit, code)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()

	if code.ShouldDo == domain.ShouldDoSetOffDuty {
		if err := s.setOffDuty(ctx, unit, now, caller.Privileged()); err != nil {
			return nil, err
		}
	} else {
		if unit.IsOffDuty() {
			if err := s.bringOnDuty(ctx, unit, code, now, caller.Privileged()); err != nil {
				return nil, err
			}
		}
		if err := s.units.UpdateStatus(ctx, unit.UnitID, sql.NullString{String: code.StatusID, Valid: true}, now); err != nil {
			return nil, err
		}
	}

	// 报警扇出在状态写入成功后执行，写入失败不得触发告警
	switch direction {
	case panicOn:
		s.publishPanicOn(ctx, unit, code)
	case panicOff:
		s.publishPanicOff(ctx, unit)
	}

	// 单位在某呼叫上时把状态变更追加到呼叫时间线
	if unit.ActiveCallID.Valid {
		event := &domain.CallEvent{
			EventID:     uuid.NewString(),
			CallID:      unit.ActiveCallID.String,
			Description: fmt.Sprintf("%s status changed to %s", unit.Callsign, code.Value),
			CreatedAt:   now,
		}
		if err := s.calls.CreateCallEvent(ctx, event); err != nil {
			s.logger.Warn("failed to append call event",
				zap.String("call_id", unit.ActiveCallID.String), zap.Error(err))
		}
	}

	payload := unitEventPayload{UnitID: unit.UnitID, Callsign: unit.Callsign}
	if code.ShouldDo != domain.ShouldDoSetOffDuty {
		payload.StatusID = code.StatusID
	}
	s.gateway.Publish(ctx, broadcast.EventUnitStatusChanged, payload)
	s.gateway.Publish(ctx, categoryRefreshEvent(unit.Kind.Category()), nil)
	s.notify(broadcast.EventUnitStatusChanged, payload)

	s.logger.Info("unit status changed",
		zap.String("unit_id", unit.UnitID),
		zap.String("status_id", code.StatusID),
		zap.String("should_do", string(code.ShouldDo)))

	return s.units.GetUnit(ctx, unitID)
}

// setOffDuty 离岗：状态置空并关闭执勤日志
// 指派记录与活动呼叫/事件引用保留，撤下呼叫要走单独的 unassign
// 合并单位离岗等价于解散
func (s *DispatchService) setOffDuty(ctx context.Context, unit *domain.Unit, now time.Time, force bool) error {
	if unit.CombinedUnitID.Valid && !force {
		return domain.Conflict(domain.ReasonPartOfCombinedUnit)
	}
	if unit.Kind.IsCombined() {
		_, err := s.dissolve(ctx, unit)
		return err
	}

	if err := s.units.UpdateStatus(ctx, unit.UnitID, sql.NullString{}, now); err != nil {
		return err
	}
	if err := s.dutyLogs.CloseOpenLog(ctx, unit.UnitID, now); err != nil {
		return err
	}
	if unit.IsPanicking() {
		s.publishPanicOff(ctx, unit)
	}
	return nil
}

// bringOnDuty 离岗转在岗：非调度调用时停用该用户其他单位（一人同时只有一个在岗单位）；
// 只有 SET_ON_DUTY 码分配序号并打开执勤日志
func (s *DispatchService) bringOnDuty(ctx context.Context, unit *domain.Unit, code *domain.StatusCode, now time.Time, privileged bool) error {
	if !privileged && unit.UserID.Valid {
		others, err := s.units.ListUserUnits(ctx, unit.UserID.String)
		if err != nil {
			return err
		}
		for _, other := range others {
			if other.UnitID == unit.UnitID || other.IsOffDuty() {
				continue
			}
			if err := s.units.ClearEngagement(ctx, other.UnitID); err != nil {
				return err
			}
			if err := s.dutyLogs.CloseOpenLog(ctx, other.UnitID, now); err != nil {
				return err
			}
		}
	}

	if code.ShouldDo != domain.ShouldDoSetOnDuty {
		return nil
	}

	if !unit.Incremental.Valid {
		value, err := s.units.NextIncremental(ctx, unit.DepartmentID, unit.Kind)
		if err != nil {
			return err
		}
		if err := s.units.SetIncremental(ctx, unit.UnitID, value); err != nil {
			return err
		}
	}

	return s.dutyLogs.OpenLog(ctx, &domain.DutyLog{
		LogID:     uuid.NewString(),
		UnitID:    unit.UnitID,
		UserID:    unit.UserID,
		StartedAt: now,
	})
}
