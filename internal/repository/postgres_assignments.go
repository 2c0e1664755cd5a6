package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// PostgresAssignmentsRepository 指派记录Repository的PostgreSQL实现
type PostgresAssignmentsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresAssignmentsRepository 创建指派Repository
func NewPostgresAssignmentsRepository(db *sql.DB, logger *zap.Logger) *PostgresAssignmentsRepository {
	return &PostgresAssignmentsRepository{db: db, logger: logger}
}

const assignmentColumns = `
	assignment_id::text, call_id::text, incident_id::text,
	officer_id::text, ems_fd_deputy_id::text, combined_leo_id::text, combined_ems_fd_id::text,
	is_primary, created_at`

func targetColumn(kind domain.TargetKind) string {
	if kind == domain.TargetIncident {
		return "incident_id"
	}
	return "call_id"
}

func scanAssignment(row rowScanner) (*domain.AssignmentRecord, error) {
	var rec domain.AssignmentRecord
	err := row.Scan(
		&rec.AssignmentID, &rec.CallID, &rec.IncidentID,
		&rec.OfficerID, &rec.EmsFdDeputyID, &rec.CombinedLeoID, &rec.CombinedEmsFdID,
		&rec.IsPrimary, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetAssignment 查询某目标上某单位的指派记录；不存在返回 (nil, nil)
func (r *PostgresAssignmentsRepository) GetAssignment(ctx context.Context, kind domain.TargetKind, targetID, unitID string) (*domain.AssignmentRecord, error) {
	query := `SELECT` + assignmentColumns + `
		FROM assignments
		WHERE ` + targetColumn(kind) + ` = $1
		  AND (officer_id = $2 OR ems_fd_deputy_id = $2 OR combined_leo_id = $2 OR combined_ems_fd_id = $2)`

	rec, err := scanAssignment(r.db.QueryRowContext(ctx, query, targetID, unitID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return rec, nil
}

// ListTargetAssignments 查询目标的全部指派记录
func (r *PostgresAssignmentsRepository) ListTargetAssignments(ctx context.Context, kind domain.TargetKind, targetID string) ([]*domain.AssignmentRecord, error) {
	query := `SELECT` + assignmentColumns + `
		FROM assignments
		WHERE ` + targetColumn(kind) + ` = $1
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var records []*domain.AssignmentRecord
	for rows.Next() {
		rec, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountUnitAssignments 统计单位在同类目标上的指派数量（容量检查用）
func (r *PostgresAssignmentsRepository) CountUnitAssignments(ctx context.Context, kind domain.TargetKind, unitID string) (int, error) {
	query := `SELECT COUNT(*) FROM assignments
		WHERE ` + targetColumn(kind) + ` IS NOT NULL
		  AND (officer_id = $1 OR ems_fd_deputy_id = $1 OR combined_leo_id = $1 OR combined_ems_fd_id = $1)`

	var count int
	if err := r.db.QueryRowContext(ctx, query, unitID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count assignments: %w", err)
	}
	return count, nil
}

// LatestUnitAssignment 单位同类目标中最近创建的指派记录；没有返回 (nil, nil)
func (r *PostgresAssignmentsRepository) LatestUnitAssignment(ctx context.Context, kind domain.TargetKind, unitID string) (*domain.AssignmentRecord, error) {
	query := `SELECT` + assignmentColumns + `
		FROM assignments
		WHERE ` + targetColumn(kind) + ` IS NOT NULL
		  AND (officer_id = $1 OR ems_fd_deputy_id = $1 OR combined_leo_id = $1 OR combined_ems_fd_id = $1)
		ORDER BY created_at DESC
		LIMIT 1`

	rec, err := scanAssignment(r.db.QueryRowContext(ctx, query, unitID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest assignment: %w", err)
	}
	return rec, nil
}

// CreateAssignment 插入指派记录
func (r *PostgresAssignmentsRepository) CreateAssignment(ctx context.Context, record *domain.AssignmentRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO assignments (
			assignment_id, call_id, incident_id,
			officer_id, ems_fd_deputy_id, combined_leo_id, combined_ems_fd_id,
			is_primary, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.AssignmentID, record.CallID, record.IncidentID,
		record.OfficerID, record.EmsFdDeputyID, record.CombinedLeoID, record.CombinedEmsFdID,
		record.IsPrimary, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

// DeleteAssignment 删除指派记录
func (r *PostgresAssignmentsRepository) DeleteAssignment(ctx context.Context, assignmentID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM assignments WHERE assignment_id = $1`, assignmentID)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
