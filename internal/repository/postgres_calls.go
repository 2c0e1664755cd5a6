package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// PostgresCallsRepository 911呼叫Repository的PostgreSQL实现
type PostgresCallsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresCallsRepository 创建呼叫Repository
func NewPostgresCallsRepository(db *sql.DB, logger *zap.Logger) *PostgresCallsRepository {
	return &PostgresCallsRepository{db: db, logger: logger}
}

// GetCall 按ID查询呼叫；未找到返回 (nil, nil)
func (r *PostgresCallsRepository) GetCall(ctx context.Context, callID string) (*domain.Call, error) {
	var call domain.Call
	err := r.db.QueryRowContext(ctx,
		`SELECT call_id::text, title, is_active, created_at, updated_at
		 FROM calls WHERE call_id = $1`,
		callID).Scan(&call.CallID, &call.Title, &call.IsActive, &call.CreatedAt, &call.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call: %w", err)
	}
	return &call, nil
}

// ListActiveCalls 查询所有活跃呼叫（调度面板）
func (r *PostgresCallsRepository) ListActiveCalls(ctx context.Context) ([]*domain.Call, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT call_id::text, title, is_active, created_at, updated_at
		 FROM calls WHERE is_active = true ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active calls: %w", err)
	}
	defer rows.Close()

	var calls []*domain.Call
	for rows.Next() {
		var call domain.Call
		if err := rows.Scan(&call.CallID, &call.Title, &call.IsActive, &call.CreatedAt, &call.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		calls = append(calls, &call)
	}
	return calls, rows.Err()
}

// CreateCallEvent 追加呼叫时间线事件
func (r *PostgresCallsRepository) CreateCallEvent(ctx context.Context, event *domain.CallEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO call_events (event_id, call_id, description, created_at)
		 VALUES ($1, $2, $3, $4)`,
		event.EventID, event.CallID, event.Description, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create call event: %w", err)
	}
	return nil
}
