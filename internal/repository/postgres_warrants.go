package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// PostgresWarrantsRepository 通缉令Repository的PostgreSQL实现
type PostgresWarrantsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresWarrantsRepository 创建通缉令Repository
func NewPostgresWarrantsRepository(db *sql.DB, logger *zap.Logger) *PostgresWarrantsRepository {
	return &PostgresWarrantsRepository{db: db, logger: logger}
}

// ExpireInactiveWarrants 把最后更新早于 cutoff 的活跃通缉令置为失效，返回影响行数
func (r *PostgresWarrantsRepository) ExpireInactiveWarrants(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE warrants SET status = $1, updated_at = NOW()
		 WHERE status = $2 AND updated_at < $3`,
		domain.WarrantStatusInactive, domain.WarrantStatusActive, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire warrants: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
