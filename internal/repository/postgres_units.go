package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// PostgresUnitsRepository 单位Repository的PostgreSQL实现
type PostgresUnitsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresUnitsRepository 创建单位Repository
func NewPostgresUnitsRepository(db *sql.DB, logger *zap.Logger) *PostgresUnitsRepository {
	return &PostgresUnitsRepository{db: db, logger: logger}
}

// unitColumns 单位查询列（联查状态码目录做非规范化快照）
const unitColumns = `
	u.unit_id::text, u.kind, u.user_id::text,
	u.callsign, u.callsign2, u.user_defined_callsign,
	u.department_id::text, u.division_ids, u.division_id::text,
	u.status_id::text, u.incremental,
	u.active_call_id::text, u.active_incident_id::text, u.active_vehicle_id::text,
	u.last_status_change, u.suspended, u.combined_unit_id::text,
	u.created_at, u.updated_at,
	s.value, s.should_do, s.department_id::text`

const unitFrom = ` FROM units u LEFT JOIN status_codes s ON s.status_id = u.status_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUnit(row rowScanner) (*domain.Unit, error) {
	var u domain.Unit
	var statusValue, statusShouldDo, statusDept sql.NullString
	err := row.Scan(
		&u.UnitID, &u.Kind, &u.UserID,
		&u.Callsign, &u.Callsign2, &u.UserDefinedCallsign,
		&u.DepartmentID, pq.Array(&u.DivisionIDs), &u.DivisionID,
		&u.StatusID, &u.Incremental,
		&u.ActiveCallID, &u.ActiveIncidentID, &u.ActiveVehicleID,
		&u.LastStatusChange, &u.Suspended, &u.CombinedUnitID,
		&u.CreatedAt, &u.UpdatedAt,
		&statusValue, &statusShouldDo, &statusDept,
	)
	if err != nil {
		return nil, err
	}
	if u.StatusID.Valid && statusValue.Valid {
		u.Status = &domain.StatusCode{
			StatusID:     u.StatusID.String,
			Value:        statusValue.String,
			ShouldDo:     domain.ShouldDo(statusShouldDo.String),
			DepartmentID: statusDept,
		}
	}
	return &u, nil
}

// GetUnit 按ID查询单位；未找到返回 (nil, nil)
func (r *PostgresUnitsRepository) GetUnit(ctx context.Context, unitID string) (*domain.Unit, error) {
	query := `SELECT` + unitColumns + unitFrom + ` WHERE u.unit_id = $1`

	unit, err := scanUnit(r.db.QueryRowContext(ctx, query, unitID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get unit: %w", err)
	}
	if err := r.loadMembers(ctx, unit); err != nil {
		return nil, err
	}
	return unit, nil
}

// ListUserUnits 查询用户名下全部单位
func (r *PostgresUnitsRepository) ListUserUnits(ctx context.Context, userID string) ([]*domain.Unit, error) {
	query := `SELECT` + unitColumns + unitFrom + ` WHERE u.user_id = $1 ORDER BY u.created_at`
	return r.queryUnits(ctx, query, userID)
}

// ListOnDutyUnits 查询所有在岗单位（调度面板）
func (r *PostgresUnitsRepository) ListOnDutyUnits(ctx context.Context) ([]*domain.Unit, error) {
	query := `SELECT` + unitColumns + unitFrom + ` WHERE u.status_id IS NOT NULL ORDER BY u.callsign`
	return r.queryUnits(ctx, query)
}

// ListInactiveOnDutyUnits 查询超过不活跃阈值的在岗单位
func (r *PostgresUnitsRepository) ListInactiveOnDutyUnits(ctx context.Context, cutoff time.Time) ([]*domain.Unit, error) {
	query := `SELECT` + unitColumns + unitFrom + `
		WHERE u.status_id IS NOT NULL AND u.last_status_change < $1`
	return r.queryUnits(ctx, query, cutoff)
}

func (r *PostgresUnitsRepository) queryUnits(ctx context.Context, query string, args ...interface{}) ([]*domain.Unit, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	var units []*domain.Unit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, unit := range units {
		if err := r.loadMembers(ctx, unit); err != nil {
			return nil, err
		}
	}
	return units, nil
}

func (r *PostgresUnitsRepository) loadMembers(ctx context.Context, unit *domain.Unit) error {
	if !unit.Kind.IsCombined() {
		return nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT unit_id::text FROM unit_members WHERE combined_unit_id = $1 ORDER BY position`,
		unit.UnitID)
	if err != nil {
		return fmt.Errorf("failed to query unit members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var memberID string
		if err := rows.Scan(&memberID); err != nil {
			return err
		}
		unit.MemberIDs = append(unit.MemberIDs, memberID)
	}
	return rows.Err()
}

// UpdateStatus 写入状态并刷新最后状态变更时间
func (r *PostgresUnitsRepository) UpdateStatus(ctx context.Context, unitID string, statusID sql.NullString, ts time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE units SET status_id = $2, last_status_change = $3, updated_at = NOW() WHERE unit_id = $1`,
		unitID, statusID, ts)
	if err != nil {
		return fmt.Errorf("failed to update unit status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ClearEngagement 清空状态与活动引用（用户切换活跃单位时重置其余单位）
func (r *PostgresUnitsRepository) ClearEngagement(ctx context.Context, unitID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE units
		 SET status_id = NULL, active_call_id = NULL, active_incident_id = NULL, updated_at = NOW()
		 WHERE unit_id = $1`,
		unitID)
	if err != nil {
		return fmt.Errorf("failed to clear unit engagement: %w", err)
	}
	return nil
}

// SetActiveCall 设置当前呼叫引用
func (r *PostgresUnitsRepository) SetActiveCall(ctx context.Context, unitID string, callID sql.NullString) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE units SET active_call_id = $2, updated_at = NOW() WHERE unit_id = $1`,
		unitID, callID)
	if err != nil {
		return fmt.Errorf("failed to set active call: %w", err)
	}
	return nil
}

// SetActiveIncident 设置当前事件引用
func (r *PostgresUnitsRepository) SetActiveIncident(ctx context.Context, unitID string, incidentID sql.NullString) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE units SET active_incident_id = $2, updated_at = NOW() WHERE unit_id = $1`,
		unitID, incidentID)
	if err != nil {
		return fmt.Errorf("failed to set active incident: %w", err)
	}
	return nil
}

// NextIncremental 取下一个序号
// 通过 (department_id, kind) 计数器行加行锁串行化，保证并发上岗不重号
func (r *PostgresUnitsRepository) NextIncremental(ctx context.Context, departmentID string, kind domain.UnitKind) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO unit_sequences (department_id, kind, next_value)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (department_id, kind) DO NOTHING`,
		departmentID, string(kind))
	if err != nil {
		return 0, fmt.Errorf("failed to ensure sequence row: %w", err)
	}

	var value int64
	err = tx.QueryRowContext(ctx,
		`SELECT next_value FROM unit_sequences
		 WHERE department_id = $1 AND kind = $2
		 FOR UPDATE`,
		departmentID, string(kind)).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to lock sequence row: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE unit_sequences SET next_value = next_value + 1
		 WHERE department_id = $1 AND kind = $2`,
		departmentID, string(kind))
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return value, nil
}

// SetIncremental 写入单位序号
func (r *PostgresUnitsRepository) SetIncremental(ctx context.Context, unitID string, value int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE units SET incremental = $2, updated_at = NOW() WHERE unit_id = $1`,
		unitID, value)
	if err != nil {
		return fmt.Errorf("failed to set incremental: %w", err)
	}
	return nil
}

// FindCombinedByCallsign 按自定义呼号查找同类合并单位（大小写不敏感）
func (r *PostgresUnitsRepository) FindCombinedByCallsign(ctx context.Context, kind domain.UnitKind, callsign string) (*domain.Unit, error) {
	query := `SELECT` + unitColumns + unitFrom + `
		WHERE u.kind = $1 AND LOWER(u.user_defined_callsign) = LOWER($2)`

	unit, err := scanUnit(r.db.QueryRowContext(ctx, query, string(kind), callsign))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find combined unit by callsign: %w", err)
	}
	if err := r.loadMembers(ctx, unit); err != nil {
		return nil, err
	}
	return unit, nil
}

// CreateCombinedUnit 创建合并单位（单事务）：
// 插入合并单位行、写入成员链、清空各成员自身的状态与活动引用
func (r *PostgresUnitsRepository) CreateCombinedUnit(ctx context.Context, unit *domain.Unit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO units (
			unit_id, kind, callsign, callsign2, user_defined_callsign,
			department_id, active_vehicle_id, status_id, incremental, last_status_change,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`,
		unit.UnitID, string(unit.Kind), unit.Callsign, unit.Callsign2, unit.UserDefinedCallsign,
		unit.DepartmentID, unit.ActiveVehicleID, unit.StatusID, unit.Incremental, unit.LastStatusChange)
	if err != nil {
		return fmt.Errorf("failed to insert combined unit: %w", err)
	}

	for position, memberID := range unit.MemberIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO unit_members (combined_unit_id, unit_id, position) VALUES ($1, $2, $3)`,
			unit.UnitID, memberID, position)
		if err != nil {
			return fmt.Errorf("failed to insert unit member: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE units
			 SET combined_unit_id = $1, status_id = NULL,
			     active_call_id = NULL, active_incident_id = NULL, updated_at = NOW()
			 WHERE unit_id = $2`,
			unit.UnitID, memberID)
		if err != nil {
			return fmt.Errorf("failed to attach member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	r.logger.Info("combined unit created",
		zap.String("combined_unit_id", unit.UnitID),
		zap.Int("members", len(unit.MemberIDs)))
	return nil
}

// DissolveCombinedUnit 解散合并单位（单事务）：
// 把合并单位的指派记录复制给每个成员、恢复成员字段、删除合并单位行
func (r *PostgresUnitsRepository) DissolveCombinedUnit(ctx context.Context, combinedID string, restores []MemberRestore) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT assignment_id::text, call_id::text, incident_id::text, is_primary
		 FROM assignments
		 WHERE combined_leo_id = $1 OR combined_ems_fd_id = $1`,
		combinedID)
	if err != nil {
		return fmt.Errorf("failed to query combined assignments: %w", err)
	}
	type combinedAssignment struct {
		id         string
		callID     sql.NullString
		incidentID sql.NullString
		isPrimary  bool
	}
	var records []combinedAssignment
	for rows.Next() {
		var rec combinedAssignment
		if err := rows.Scan(&rec.id, &rec.callID, &rec.incidentID, &rec.isPrimary); err != nil {
			rows.Close()
			return err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, rec := range records {
		for _, restore := range restores {
			ref := &domain.AssignmentRecord{}
			ref.SetUnitRef(restore.UnitID, restore.Kind)
			_, err = tx.ExecContext(ctx,
				`INSERT INTO assignments (
					assignment_id, call_id, incident_id,
					officer_id, ems_fd_deputy_id, combined_leo_id, combined_ems_fd_id,
					is_primary, created_at
				) VALUES ($1, $2, $3, $4, $5, NULL, NULL, $6, NOW())`,
				uuid.NewString(), rec.callID, rec.incidentID,
				ref.OfficerID, ref.EmsFdDeputyID, rec.isPrimary)
			if err != nil {
				return fmt.Errorf("failed to redistribute assignment: %w", err)
			}
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM assignments WHERE assignment_id = $1`, rec.id)
		if err != nil {
			return fmt.Errorf("failed to delete combined assignment: %w", err)
		}
	}

	for _, restore := range restores {
		_, err = tx.ExecContext(ctx,
			`UPDATE units
			 SET combined_unit_id = NULL, status_id = $2,
			     active_call_id = $3, active_incident_id = $4,
			     last_status_change = NOW(), updated_at = NOW()
			 WHERE unit_id = $1`,
			restore.UnitID, restore.StatusID, restore.ActiveCallID, restore.ActiveIncidentID)
		if err != nil {
			return fmt.Errorf("failed to restore member: %w", err)
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM unit_members WHERE combined_unit_id = $1`, combinedID); err != nil {
		return fmt.Errorf("failed to delete unit members: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM units WHERE unit_id = $1`, combinedID); err != nil {
		return fmt.Errorf("failed to delete combined unit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	r.logger.Info("combined unit dissolved",
		zap.String("combined_unit_id", combinedID),
		zap.Int("members", len(restores)))
	return nil
}
