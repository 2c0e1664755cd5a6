package domain

import (
	"database/sql"
	"time"
)

// TargetKind 指派目标类型（911 call 或 incident）
type TargetKind string

const (
	TargetCall     TargetKind = "call"
	TargetIncident TargetKind = "incident"
)

// Call 911 呼叫
type Call struct {
	CallID        string
	Title         string
	IsActive      bool
	AssignedUnits []*AssignmentRecord
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Incident 事件
type Incident struct {
	IncidentID    string
	Title         string
	IsActive      bool
	UnitsInvolved []*AssignmentRecord
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AssignmentRecord 指派记录
// 单位引用是判别式的：OfficerID / EmsFdDeputyID / CombinedLeoID / CombinedEmsFdID
// 四个字段恰好一个有值；归属方 CallID / IncidentID 也恰好一个有值
type AssignmentRecord struct {
	AssignmentID    string
	CallID          sql.NullString
	IncidentID      sql.NullString
	OfficerID       sql.NullString
	EmsFdDeputyID   sql.NullString
	CombinedLeoID   sql.NullString
	CombinedEmsFdID sql.NullString
	IsPrimary       bool // calls only
	CreatedAt       time.Time
}

// SetUnitRef 按单位类型设置判别式引用
func (r *AssignmentRecord) SetUnitRef(unitID string, kind UnitKind) {
	switch kind {
	case UnitKindLEO:
		r.OfficerID = sql.NullString{String: unitID, Valid: true}
	case UnitKindEMSFD:
		r.EmsFdDeputyID = sql.NullString{String: unitID, Valid: true}
	case UnitKindCombinedLEO:
		r.CombinedLeoID = sql.NullString{String: unitID, Valid: true}
	case UnitKindCombinedEMSFD:
		r.CombinedEmsFdID = sql.NullString{String: unitID, Valid: true}
	}
}

// UnitID 返回被引用的单位 id
func (r *AssignmentRecord) UnitID() string {
	switch {
	case r.OfficerID.Valid:
		return r.OfficerID.String
	case r.EmsFdDeputyID.Valid:
		return r.EmsFdDeputyID.String
	case r.CombinedLeoID.Valid:
		return r.CombinedLeoID.String
	case r.CombinedEmsFdID.Valid:
		return r.CombinedEmsFdID.String
	}
	return ""
}

// UnitKind 返回被引用单位的类型
func (r *AssignmentRecord) UnitKind() UnitKind {
	switch {
	case r.OfficerID.Valid:
		return UnitKindLEO
	case r.EmsFdDeputyID.Valid:
		return UnitKindEMSFD
	case r.CombinedLeoID.Valid:
		return UnitKindCombinedLEO
	case r.CombinedEmsFdID.Valid:
		return UnitKindCombinedEMSFD
	}
	return ""
}

// TargetID 返回归属方 id
func (r *AssignmentRecord) TargetID() string {
	if r.CallID.Valid {
		return r.CallID.String
	}
	return r.IncidentID.String
}

// TargetKind 返回归属方类型
func (r *AssignmentRecord) TargetKind() TargetKind {
	if r.CallID.Valid {
		return TargetCall
	}
	return TargetIncident
}

// CallEvent 呼叫时间线事件（记录状态变更等）
type CallEvent struct {
	EventID     string
	CallID      string
	Description string
	CreatedAt   time.Time
}

// Warrant 通缉令（仅参与不活跃清理）
type Warrant struct {
	WarrantID string
	Status    string // ACTIVE / INACTIVE
	UpdatedAt time.Time
}

const (
	WarrantStatusActive   = "ACTIVE"
	WarrantStatusInactive = "INACTIVE"
)
