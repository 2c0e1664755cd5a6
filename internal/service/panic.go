package service

import (
	"context"
	"time"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/alerts"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/broadcast"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/config"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// TogglePanic 报警按钮：未报警则进入报警，已报警则复位为默认上岗状态
func (s *DispatchService) TogglePanic(ctx context.Context, caller domain.CallerContext, unitID string, settings config.CADSettings) (*domain.Unit, error) {
	code, err := s.statusCodes.GetPanicCode(ctx)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, domain.ErrNotFound
	}
	return s.SetStatus(ctx, caller, unitID, code.StatusID, settings)
}

// 报警开关方向，扇出推迟到状态写入成功之后
type panicDirection int

const (
	panicNone panicDirection = iota
	panicOn
	panicOff
)

// handlePanic 报警开关委派：返回管线实际要写入的状态码与开关方向
// 已报警 -> 复位为该类别的默认上岗码；未报警 -> 报警码生效
func (s *DispatchService) handlePanic(ctx context.Context, unit *domain.Unit, panicCode *domain.StatusCode) (*domain.StatusCode, panicDirection, error) {
	if unit.IsPanicking() {
		defaultCode, err := s.statusCodes.GetDefaultOnDutyCode(ctx, unit.Kind.Category())
		if err != nil {
			return nil, panicNone, err
		}
		if defaultCode == nil {
			return nil, panicNone, domain.ErrNotFound
		}
		return defaultCode, panicOff, nil
	}
	return panicCode, panicOn, nil
}

func (s *DispatchService) publishPanicOn(ctx context.Context, unit *domain.Unit, code *domain.StatusCode) {
	s.gateway.Publish(ctx, broadcast.EventPanicOn, unitEventPayload{
		UnitID:   unit.UnitID,
		Callsign: unit.Callsign,
		StatusID: code.StatusID,
	})
	s.notify(broadcast.EventPanicOn, unitEventPayload{UnitID: unit.UnitID, Callsign: unit.Callsign})
	if s.alerter != nil {
		s.alerter.PublishPanic(alerts.PanicAlert{
			UnitID:    unit.UnitID,
			Callsign:  unit.Callsign,
			Active:    true,
			Timestamp: time.Now().UTC(),
		})
	}
}

func (s *DispatchService) publishPanicOff(ctx context.Context, unit *domain.Unit) {
	s.gateway.Publish(ctx, broadcast.EventPanicOff, unitEventPayload{
		UnitID:   unit.UnitID,
		Callsign: unit.Callsign,
	})
	s.notify(broadcast.EventPanicOff, unitEventPayload{UnitID: unit.UnitID, Callsign: unit.Callsign})
	if s.alerter != nil {
		s.alerter.PublishPanic(alerts.PanicAlert{
			UnitID:    unit.UnitID,
			Callsign:  unit.Callsign,
			Active:    false,
			Timestamp: time.Now().UTC(),
		})
	}
}
