package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/config"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// Board 调度面板快照
type Board struct {
	Units     []*domain.Unit     `json:"units"`
	Calls     []*domain.Call     `json:"calls"`
	Incidents []*domain.Incident `json:"incidents"`
}

// GetBoard 读取调度面板：在岗单位、活跃呼叫（含指派）、活跃事件（含指派）
// 读取前先做一轮惰性清理，保证面板不包含已超时的条目
func (s *DispatchService) GetBoard(ctx context.Context, settings config.CADSettings) (*Board, error) {
	if _, err := s.Sweep(ctx, settings); err != nil {
		s.logger.Warn("lazy sweep failed on board read", zap.Error(err))
	}

	units, err := s.units.ListOnDutyUnits(ctx)
	if err != nil {
		return nil, err
	}

	calls, err := s.calls.ListActiveCalls(ctx)
	if err != nil {
		return nil, err
	}
	for _, call := range calls {
		records, err := s.assignments.ListTargetAssignments(ctx, domain.TargetCall, call.CallID)
		if err != nil {
			return nil, err
		}
		call.AssignedUnits = records
	}

	incidents, err := s.incidents.ListActiveIncidents(ctx)
	if err != nil {
		return nil, err
	}
	for _, incident := range incidents {
		records, err := s.assignments.ListTargetAssignments(ctx, domain.TargetIncident, incident.IncidentID)
		if err != nil {
			return nil, err
		}
		incident.UnitsInvolved = records
	}

	return &Board{Units: units, Calls: calls, Incidents: incidents}, nil
}
