package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// UnitsRepository 单位Repository接口
// 使用强类型领域模型；未找到时返回 (nil, nil)，由 service 层翻译为 domain.ErrNotFound
type UnitsRepository interface {
	GetUnit(ctx context.Context, unitID string) (*domain.Unit, error)
	ListUserUnits(ctx context.Context, userID string) ([]*domain.Unit, error)
	ListOnDutyUnits(ctx context.Context) ([]*domain.Unit, error)
	// ListInactiveOnDutyUnits 查询最后状态变更早于 cutoff 且仍在岗的单位（不活跃清理用）
	ListInactiveOnDutyUnits(ctx context.Context, cutoff time.Time) ([]*domain.Unit, error)

	// UpdateStatus 写入 status_id 并刷新 last_status_change
	UpdateStatus(ctx context.Context, unitID string, statusID sql.NullString, ts time.Time) error
	// ClearEngagement 重置为无呼叫、无状态（同一用户只允许一个"活跃"单位）
	ClearEngagement(ctx context.Context, unitID string) error
	SetActiveCall(ctx context.Context, unitID string, callID sql.NullString) error
	SetActiveIncident(ctx context.Context, unitID string, incidentID sql.NullString) error

	// NextIncremental 取下一个序号，按 (department, kind) 作用域串行化（并发上岗不得重号）
	NextIncremental(ctx context.Context, departmentID string, kind domain.UnitKind) (int64, error)
	SetIncremental(ctx context.Context, unitID string, value int64) error

	// FindCombinedByCallsign 按自定义呼号查找同类合并单位（大小写不敏感，用于冲突检查）
	FindCombinedByCallsign(ctx context.Context, kind domain.UnitKind, callsign string) (*domain.Unit, error)
	// CreateCombinedUnit 事务：插入合并单位行、写入成员链、清空各成员自身状态
	CreateCombinedUnit(ctx context.Context, unit *domain.Unit) error
	// DissolveCombinedUnit 事务：恢复各成员、把合并单位的指派记录重分配给成员、删除合并单位行
	DissolveCombinedUnit(ctx context.Context, combinedID string, restores []MemberRestore) error
}

// MemberRestore 解散合并单位时每个成员要恢复的字段
type MemberRestore struct {
	UnitID           string
	Kind             domain.UnitKind
	StatusID         sql.NullString
	ActiveCallID     sql.NullString
	ActiveIncidentID sql.NullString
}

// StatusCodesRepository 状态码目录
type StatusCodesRepository interface {
	GetStatusCode(ctx context.Context, statusID string) (*domain.StatusCode, error)
	// GetDefaultOnDutyCode 目录中该页面类别的默认上岗码（合并单位、panic 复位使用）
	GetDefaultOnDutyCode(ctx context.Context, category domain.Category) (*domain.StatusCode, error)
	GetPanicCode(ctx context.Context) (*domain.StatusCode, error)
}

// CallsRepository 911 呼叫
type CallsRepository interface {
	GetCall(ctx context.Context, callID string) (*domain.Call, error)
	ListActiveCalls(ctx context.Context) ([]*domain.Call, error)
	CreateCallEvent(ctx context.Context, event *domain.CallEvent) error
}

// IncidentsRepository 事件
type IncidentsRepository interface {
	GetIncident(ctx context.Context, incidentID string) (*domain.Incident, error)
	ListActiveIncidents(ctx context.Context) ([]*domain.Incident, error)
	ListStaleActiveIncidents(ctx context.Context, cutoff time.Time) ([]*domain.Incident, error)
	// DeactivateIncident 事务：is_active=false 并清空相关单位的 active_incident_id
	DeactivateIncident(ctx context.Context, incidentID string) error
}

// AssignmentsRepository 指派记录
type AssignmentsRepository interface {
	GetAssignment(ctx context.Context, kind domain.TargetKind, targetID, unitID string) (*domain.AssignmentRecord, error)
	ListTargetAssignments(ctx context.Context, kind domain.TargetKind, targetID string) ([]*domain.AssignmentRecord, error)
	CountUnitAssignments(ctx context.Context, kind domain.TargetKind, unitID string) (int, error)
	// LatestUnitAssignment 该单位同类目标中最近创建的指派记录（解除指派后回退到"上一个"呼叫/事件）
	LatestUnitAssignment(ctx context.Context, kind domain.TargetKind, unitID string) (*domain.AssignmentRecord, error)
	CreateAssignment(ctx context.Context, record *domain.AssignmentRecord) error
	DeleteAssignment(ctx context.Context, assignmentID string) error
}

// DutyLogsRepository 执勤日志
type DutyLogsRepository interface {
	// OpenLog 打开新日志；该单位已有未关闭记录时为 no-op（每单位至多一条 open）
	OpenLog(ctx context.Context, log *domain.DutyLog) error
	CloseOpenLog(ctx context.Context, unitID string, endedAt time.Time) error
	ListLogs(ctx context.Context, filters DutyLogFilters) ([]*domain.DutyLog, error)
}

// DutyLogFilters 执勤日志查询过滤器
type DutyLogFilters struct {
	UnitID string
	Since  time.Time // zero = 不限制
}

// WarrantsRepository 通缉令（仅参与不活跃清理）
type WarrantsRepository interface {
	ExpireInactiveWarrants(ctx context.Context, cutoff time.Time) (int, error)
}
