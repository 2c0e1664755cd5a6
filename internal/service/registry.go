package service

import (
	"context"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// ResolveOptions 单位解析选项
type ResolveOptions struct {
	// RequireOnDuty 要求单位在岗
	RequireOnDuty bool
}

// Resolve 统一的单位解析入口：四种单位类型走同一条路径
// 鉴权：调度/管理员可操作任意单位；普通用户只能操作自己名下的单位，
// 合并单位的所有权通过成员继承（任一成员属于调用者即可）
func (s *DispatchService) Resolve(ctx context.Context, caller domain.CallerContext, unitID string, opts ResolveOptions) (*domain.Unit, error) {
	unit, err := s.units.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, domain.ErrNotFound
	}

	if !caller.Privileged() {
		owned, err := s.ownedByCaller(ctx, caller, unit)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, domain.ErrForbidden
		}
	}

	if opts.RequireOnDuty && unit.IsOffDuty() {
		return nil, domain.Conflict(domain.ReasonUnitOffDuty)
	}
	return unit, nil
}

func (s *DispatchService) ownedByCaller(ctx context.Context, caller domain.CallerContext, unit *domain.Unit) (bool, error) {
	if !unit.Kind.IsCombined() {
		return unit.OwnedBy(caller.UserID), nil
	}
	for _, memberID := range unit.MemberIDs {
		member, err := s.units.GetUnit(ctx, memberID)
		if err != nil {
			return false, err
		}
		if member != nil && member.OwnedBy(caller.UserID) {
			return true, nil
		}
	}
	return false, nil
}
