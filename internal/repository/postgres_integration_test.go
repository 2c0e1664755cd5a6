//go:build integration

package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// 需要已应用 migrations/ 的数据库：
//   TEST_DATABASE_DSN="host=localhost port=5432 user=postgres password=postgres dbname=snailycad_test sslmode=disable" \
//   go test -tags=integration ./internal/repository/
func integrationDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIntegration_NextIncrementalIsMonotonic(t *testing.T) {
	db := integrationDB(t)
	repo := NewPostgresUnitsRepository(db, zap.NewNop())

	dept := uuid.NewString()
	first, err := repo.NextIncremental(context.Background(), dept, domain.UnitKindLEO)
	require.NoError(t, err)
	second, err := repo.NextIncremental(context.Background(), dept, domain.UnitKindLEO)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, first+1, second)
}

func TestIntegration_DutyLogOpenCloseCycle(t *testing.T) {
	db := integrationDB(t)
	repo := NewPostgresDutyLogsRepository(db, zap.NewNop())

	unitID := uuid.NewString()
	started := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.OpenLog(context.Background(), &domain.DutyLog{
		LogID:     uuid.NewString(),
		UnitID:    unitID,
		StartedAt: started,
	}))
	// 重复打开是 no-op
	require.NoError(t, repo.OpenLog(context.Background(), &domain.DutyLog{
		LogID:     uuid.NewString(),
		UnitID:    unitID,
		StartedAt: started.Add(time.Minute),
	}))

	logs, err := repo.ListLogs(context.Background(), DutyLogFilters{UnitID: unitID})
	require.NoError(t, err)
	require.Len(t, logs, 1)

	require.NoError(t, repo.CloseOpenLog(context.Background(), unitID, started.Add(time.Hour)))
	logs, err = repo.ListLogs(context.Background(), DutyLogFilters{UnitID: unitID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].EndedAt.Valid)
}
