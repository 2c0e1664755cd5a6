package domain

import (
	"database/sql"
	"time"
)

// UnitKind 单位类型判别器（显式 tagged union，取代原系统的 "citizen" in unit 鸭子类型判断）
type UnitKind string

const (
	UnitKindLEO           UnitKind = "leo"
	UnitKindEMSFD         UnitKind = "ems-fd"
	UnitKindCombinedLEO   UnitKind = "combined-leo"
	UnitKindCombinedEMSFD UnitKind = "combined-ems-fd"
)

// IsCombined 是否为合并单位
func (k UnitKind) IsCombined() bool {
	return k == UnitKindCombinedLEO || k == UnitKindCombinedEMSFD
}

// Category 单位所属页面类别（LEO 或 EMS_FD），用于 category-refresh 广播和默认状态码查询
func (k UnitKind) Category() Category {
	switch k {
	case UnitKindLEO, UnitKindCombinedLEO:
		return CategoryLEO
	case UnitKindEMSFD, UnitKindCombinedEMSFD:
		return CategoryEMSFD
	}
	return CategoryLEO
}

// CombinedKind 对应的合并单位类型
func (k UnitKind) CombinedKind() UnitKind {
	if k.Category() == CategoryLEO {
		return UnitKindCombinedLEO
	}
	return UnitKindCombinedEMSFD
}

// Category 调度页面类别
type Category string

const (
	CategoryLEO   Category = "leo"
	CategoryEMSFD Category = "ems-fd"
)

// Unit 执勤单位（四种类型共用一个结构，由 Kind 判别）
// - 合并单位没有直接所有者（UserID 为空），所有权通过成员继承
// - MemberIDs 仅合并单位使用，有序且 >= 2
// - CombinedUnitID 仅单人单位使用：当前所属合并单位的外键
type Unit struct {
	UnitID              string
	Kind                UnitKind
	UserID              sql.NullString
	Callsign            string
	Callsign2           string
	UserDefinedCallsign sql.NullString
	DepartmentID        string
	DivisionIDs         []string       // solo LEO only
	DivisionID          sql.NullString // solo EMS/FD only
	StatusID            sql.NullString
	Status              *StatusCode // 非规范化快照（按 StatusID 联查）
	Incremental         sql.NullInt64
	ActiveCallID        sql.NullString
	ActiveIncidentID    sql.NullString
	ActiveVehicleID     sql.NullString
	LastStatusChange    time.Time
	Suspended           bool
	CombinedUnitID      sql.NullString
	MemberIDs           []string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsOffDuty 判断是否离岗（StatusID 为 NULL 即离岗）
func (u *Unit) IsOffDuty() bool {
	return !u.StatusID.Valid
}

// IsPanicking 当前是否处于报警状态
func (u *Unit) IsPanicking() bool {
	return u.Status != nil && u.Status.ShouldDo == ShouldDoPanicButton
}

// OwnedBy 单位是否归属于指定用户（合并单位按成员所有权判断时由上层处理）
func (u *Unit) OwnedBy(userID string) bool {
	return u.UserID.Valid && u.UserID.String == userID
}
