package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// PostgresIncidentsRepository 事件Repository的PostgreSQL实现
type PostgresIncidentsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresIncidentsRepository 创建事件Repository
func NewPostgresIncidentsRepository(db *sql.DB, logger *zap.Logger) *PostgresIncidentsRepository {
	return &PostgresIncidentsRepository{db: db, logger: logger}
}

// GetIncident 按ID查询事件；未找到返回 (nil, nil)
func (r *PostgresIncidentsRepository) GetIncident(ctx context.Context, incidentID string) (*domain.Incident, error) {
	var incident domain.Incident
	err := r.db.QueryRowContext(ctx,
		`SELECT incident_id::text, title, is_active, created_at, updated_at
		 FROM incidents WHERE incident_id = $1`,
		incidentID).Scan(&incident.IncidentID, &incident.Title, &incident.IsActive,
		&incident.CreatedAt, &incident.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return &incident, nil
}

// ListActiveIncidents 查询所有活跃事件（调度面板）
func (r *PostgresIncidentsRepository) ListActiveIncidents(ctx context.Context) ([]*domain.Incident, error) {
	return r.queryIncidents(ctx,
		`SELECT incident_id::text, title, is_active, created_at, updated_at
		 FROM incidents WHERE is_active = true ORDER BY created_at DESC`)
}

// ListStaleActiveIncidents 查询最后更新早于 cutoff 的活跃事件（不活跃清理用）
func (r *PostgresIncidentsRepository) ListStaleActiveIncidents(ctx context.Context, cutoff time.Time) ([]*domain.Incident, error) {
	return r.queryIncidents(ctx,
		`SELECT incident_id::text, title, is_active, created_at, updated_at
		 FROM incidents WHERE is_active = true AND updated_at < $1`,
		cutoff)
}

func (r *PostgresIncidentsRepository) queryIncidents(ctx context.Context, query string, args ...interface{}) ([]*domain.Incident, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*domain.Incident
	for rows.Next() {
		var incident domain.Incident
		if err := rows.Scan(&incident.IncidentID, &incident.Title, &incident.IsActive,
			&incident.CreatedAt, &incident.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, &incident)
	}
	return incidents, rows.Err()
}

// DeactivateIncident 停用事件（单事务）：
// is_active 置 false，并清空所有引用该事件的单位的 active_incident_id
func (r *PostgresIncidentsRepository) DeactivateIncident(ctx context.Context, incidentID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE incidents SET is_active = false, updated_at = NOW() WHERE incident_id = $1`,
		incidentID)
	if err != nil {
		return fmt.Errorf("failed to deactivate incident: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE units SET active_incident_id = NULL, updated_at = NOW()
		 WHERE active_incident_id = $1`,
		incidentID)
	if err != nil {
		return fmt.Errorf("failed to clear unit incident refs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	r.logger.Info("incident deactivated", zap.String("incident_id", incidentID))
	return nil
}
