package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/broadcast"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/config"
)

// SweepReport 一轮不活跃清理的结果
type SweepReport struct {
	UnitsSetOffDuty      int `json:"unitsSetOffDuty"`
	IncidentsDeactivated int `json:"incidentsDeactivated"`
	WarrantsExpired      int `json:"warrantsExpired"`
}

// Sweep 不活跃清理：超时的在岗单位强制离岗、过期事件停用、过期通缉令失效
// 各阈值为 0 时对应清理禁用；单个条目失败只记日志不中断
func (s *DispatchService) Sweep(ctx context.Context, settings config.CADSettings) (SweepReport, error) {
	var report SweepReport
	now := time.Now()

	if settings.UnitInactivityTimeout > 0 {
		cutoff := now.Add(-time.Duration(settings.UnitInactivityTimeout) * time.Minute)
		units, err := s.units.ListInactiveOnDutyUnits(ctx, cutoff)
		if err != nil {
			return report, err
		}
		for _, unit := range units {
			unlock := s.locks.Lock(unit.UnitID)
			err := s.setOffDuty(ctx, unit, now, true)
			unlock()
			if err != nil {
				s.logger.Warn("sweep failed to set unit off duty",
					zap.String("unit_id", unit.UnitID), zap.Error(err))
				continue
			}
			s.gateway.Publish(ctx, broadcast.EventUnitStatusChanged, unitEventPayload{
				UnitID:   unit.UnitID,
				Callsign: unit.Callsign,
			})
			s.gateway.Publish(ctx, categoryRefreshEvent(unit.Kind.Category()), nil)
			report.UnitsSetOffDuty++
		}
	}

	if settings.IncidentInactivityTimeout > 0 {
		cutoff := now.Add(-time.Duration(settings.IncidentInactivityTimeout) * time.Minute)
		incidents, err := s.incidents.ListStaleActiveIncidents(ctx, cutoff)
		if err != nil {
			return report, err
		}
		for _, incident := range incidents {
			if err := s.incidents.DeactivateIncident(ctx, incident.IncidentID); err != nil {
				s.logger.Warn("sweep failed to deactivate incident",
					zap.String("incident_id", incident.IncidentID), zap.Error(err))
				continue
			}
			s.gateway.Publish(ctx, broadcast.EventIncidentUpdated, map[string]string{"id": incident.IncidentID})
			report.IncidentsDeactivated++
		}
	}

	if settings.ActiveWarrantsInactivityTimeout > 0 {
		cutoff := now.Add(-time.Duration(settings.ActiveWarrantsInactivityTimeout) * time.Minute)
		expired, err := s.warrants.ExpireInactiveWarrants(ctx, cutoff)
		if err != nil {
			return report, err
		}
		report.WarrantsExpired = expired
	}

	if report.UnitsSetOffDuty > 0 || report.IncidentsDeactivated > 0 || report.WarrantsExpired > 0 {
		s.logger.Info("inactivity sweep completed",
			zap.Int("units_off_duty", report.UnitsSetOffDuty),
			zap.Int("incidents_deactivated", report.IncidentsDeactivated),
			zap.Int("warrants_expired", report.WarrantsExpired))
	}
	return report, nil
}

// Sweeper 周期性清理循环
type Sweeper struct {
	service  *DispatchService
	interval time.Duration
	settings config.CADSettings
	logger   *zap.Logger
}

// NewSweeper 创建清理循环
func NewSweeper(service *DispatchService, interval time.Duration, settings config.CADSettings, logger *zap.Logger) *Sweeper {
	return &Sweeper{service: service, interval: interval, settings: settings, logger: logger}
}

// Run 启动清理循环，阻塞直到 ctx 取消
func (w *Sweeper) Run(ctx context.Context) {
	w.logger.Info("inactivity sweeper started", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inactivity sweeper stopped")
			return
		case <-ticker.C:
			if _, err := w.service.Sweep(ctx, w.settings); err != nil {
				w.logger.Error("inactivity sweep failed", zap.Error(err))
			}
		}
	}
}
