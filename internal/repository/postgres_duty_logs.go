package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// PostgresDutyLogsRepository 执勤日志Repository的PostgreSQL实现
type PostgresDutyLogsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresDutyLogsRepository 创建执勤日志Repository
func NewPostgresDutyLogsRepository(db *sql.DB, logger *zap.Logger) *PostgresDutyLogsRepository {
	return &PostgresDutyLogsRepository{db: db, logger: logger}
}

// OpenLog 打开执勤日志
// 该单位已有未关闭记录时为 no-op，保持每单位至多一条 open 记录
func (r *PostgresDutyLogsRepository) OpenLog(ctx context.Context, log *domain.DutyLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO duty_logs (log_id, unit_id, user_id, started_at)
		 SELECT $1, $2, $3, $4
		 WHERE NOT EXISTS (
			SELECT 1 FROM duty_logs WHERE unit_id = $2 AND ended_at IS NULL
		 )`,
		log.LogID, log.UnitID, log.UserID, log.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to open duty log: %w", err)
	}
	return nil
}

// CloseOpenLog 关闭单位当前未关闭的执勤日志；没有 open 记录时为 no-op
func (r *PostgresDutyLogsRepository) CloseOpenLog(ctx context.Context, unitID string, endedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE duty_logs SET ended_at = $2
		 WHERE unit_id = $1 AND ended_at IS NULL`,
		unitID, endedAt)
	if err != nil {
		return fmt.Errorf("failed to close duty log: %w", err)
	}
	return nil
}

// ListLogs 按过滤器查询执勤日志
func (r *PostgresDutyLogsRepository) ListLogs(ctx context.Context, filters DutyLogFilters) ([]*domain.DutyLog, error) {
	query := `SELECT log_id::text, unit_id::text, user_id::text, started_at, ended_at
		FROM duty_logs WHERE 1=1`
	var args []interface{}
	if filters.UnitID != "" {
		args = append(args, filters.UnitID)
		query += fmt.Sprintf(" AND unit_id = $%d", len(args))
	}
	if !filters.Since.IsZero() {
		args = append(args, filters.Since)
		query += fmt.Sprintf(" AND started_at >= $%d", len(args))
	}
	query += " ORDER BY started_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query duty logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.DutyLog
	for rows.Next() {
		var log domain.DutyLog
		if err := rows.Scan(&log.LogID, &log.UnitID, &log.UserID, &log.StartedAt, &log.EndedAt); err != nil {
			return nil, fmt.Errorf("failed to scan duty log: %w", err)
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}
