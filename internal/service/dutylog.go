package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/repository"
)

// ListDutyLogs 查询执勤日志
// 普通用户只能看自己名下单位的日志：未过滤单位时强制按调用者过滤
func (s *DispatchService) ListDutyLogs(ctx context.Context, caller domain.CallerContext, filters repository.DutyLogFilters) ([]*domain.DutyLog, error) {
	if !caller.Privileged() && filters.UnitID != "" {
		unit, err := s.units.GetUnit(ctx, filters.UnitID)
		if err != nil {
			return nil, err
		}
		if unit == nil {
			return nil, domain.ErrNotFound
		}
		if !unit.OwnedBy(caller.UserID) {
			return nil, domain.ErrForbidden
		}
	}
	if !caller.Privileged() && filters.UnitID == "" {
		return s.listOwnDutyLogs(ctx, caller, filters)
	}
	return s.dutyLogs.ListLogs(ctx, filters)
}

func (s *DispatchService) listOwnDutyLogs(ctx context.Context, caller domain.CallerContext, filters repository.DutyLogFilters) ([]*domain.DutyLog, error) {
	units, err := s.units.ListUserUnits(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	var out []*domain.DutyLog
	for _, unit := range units {
		filters.UnitID = unit.UnitID
		logs, err := s.dutyLogs.ListLogs(ctx, filters)
		if err != nil {
			return nil, err
		}
		out = append(out, logs...)
	}
	return out, nil
}

// ExportDutyLogs 导出执勤日志为xlsx（调度/管理员）
func (s *DispatchService) ExportDutyLogs(ctx context.Context, caller domain.CallerContext, filters repository.DutyLogFilters) ([]byte, error) {
	if !caller.Privileged() {
		return nil, domain.ErrForbidden
	}

	logs, err := s.dutyLogs.ListLogs(ctx, filters)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Duty Logs"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Log ID", "Unit ID", "User ID", "Started At", "Ended At", "Duration"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	now := time.Now()
	for row, log := range logs {
		endedAt := ""
		if log.EndedAt.Valid {
			endedAt = log.EndedAt.Time.Format(time.RFC3339)
		}
		userID := ""
		if log.UserID.Valid {
			userID = log.UserID.String
		}
		values := []interface{}{
			log.LogID,
			log.UnitID,
			userID,
			log.StartedAt.Format(time.RFC3339),
			endedAt,
			log.Duration(now).Round(time.Second).String(),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	f.SetColWidth(sheet, "A", "C", 38)
	f.SetColWidth(sheet, "D", "F", 24)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}

	s.logger.Info("duty logs exported", zap.Int("rows", len(logs)))
	return buf.Bytes(), nil
}
