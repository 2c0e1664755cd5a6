package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// PostgresStatusCodesRepository 状态码目录的PostgreSQL实现
type PostgresStatusCodesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStatusCodesRepository 创建状态码Repository
func NewPostgresStatusCodesRepository(db *sql.DB, logger *zap.Logger) *PostgresStatusCodesRepository {
	return &PostgresStatusCodesRepository{db: db, logger: logger}
}

func scanStatusCode(row rowScanner) (*domain.StatusCode, error) {
	var code domain.StatusCode
	var categories []string
	err := row.Scan(&code.StatusID, &code.Value, &code.ShouldDo, pq.Array(&categories), &code.DepartmentID)
	if err != nil {
		return nil, err
	}
	for _, c := range categories {
		code.Categories = append(code.Categories, domain.Category(c))
	}
	return &code, nil
}

// GetStatusCode 按ID查询状态码；未找到返回 (nil, nil)
func (r *PostgresStatusCodesRepository) GetStatusCode(ctx context.Context, statusID string) (*domain.StatusCode, error) {
	code, err := scanStatusCode(r.db.QueryRowContext(ctx,
		`SELECT status_id::text, value, should_do, categories, department_id::text
		 FROM status_codes WHERE status_id = $1`,
		statusID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get status code: %w", err)
	}
	return code, nil
}

// GetDefaultOnDutyCode 查询页面类别的默认上岗码
// 目录约束每类别至多一个适用码；按类别过滤后取第一条
func (r *PostgresStatusCodesRepository) GetDefaultOnDutyCode(ctx context.Context, category domain.Category) (*domain.StatusCode, error) {
	code, err := scanStatusCode(r.db.QueryRowContext(ctx,
		`SELECT status_id::text, value, should_do, categories, department_id::text
		 FROM status_codes
		 WHERE should_do = $1 AND $2 = ANY(categories)
		 LIMIT 1`,
		string(domain.ShouldDoSetOnDuty), string(category)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default on-duty code: %w", err)
	}
	return code, nil
}

// GetPanicCode 查询 PANIC_BUTTON 状态码；未配置返回 (nil, nil)
func (r *PostgresStatusCodesRepository) GetPanicCode(ctx context.Context) (*domain.StatusCode, error) {
	code, err := scanStatusCode(r.db.QueryRowContext(ctx,
		`SELECT status_id::text, value, should_do, categories, department_id::text
		 FROM status_codes
		 WHERE should_do = $1
		 LIMIT 1`,
		string(domain.ShouldDoPanicButton)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get panic code: %w", err)
	}
	return code, nil
}
