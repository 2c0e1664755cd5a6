package domain

import (
	"errors"
	"fmt"
)

// 错误分类：HTTP 层映射为 404 / 409 / 403
var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrForbidden = errors.New("forbidden")
)

// Conflict 冲突错误携带机器可读的 reason key（前端据此展示本地化文案）
func Conflict(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrConflict)
}

// Conflict reason keys
const (
	ReasonUnitSuspended       = "unitSuspended"
	ReasonUnitOffDuty         = "unitOffDuty"
	ReasonUnitAlreadyAssigned = "unitAlreadyAssigned"
	ReasonUnitNotAssigned     = "unitNotAssigned"
	ReasonMaxAssignments      = "maxAssignmentsReached"
	ReasonPartOfCombinedUnit  = "unitIsPartOfCombinedUnit"
	ReasonCallsignTaken       = "userDefinedCallsignTaken"
	ReasonNotEnoughMembers    = "notEnoughMergeMembers"
	ReasonEntryNotInMembers   = "entryUnitNotInMembers"
	ReasonWrongUnitKind       = "wrongUnitKind"
)

// CallerContext 授权协作方提供的调用者上下文（本引擎不做认证，只消费已验证的上下文）
type CallerContext struct {
	UserID     string
	IsDispatch bool
	IsAdmin    bool
}

// Privileged 是否拥有调度权限（可操作任意单位）
func (c CallerContext) Privileged() bool {
	return c.IsDispatch || c.IsAdmin
}
