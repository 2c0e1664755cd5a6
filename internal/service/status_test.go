package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/config"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/repository"
)

func TestSetStatus_OnDutyAssignsIncrementalAndOpensLog(t *testing.T) {
	f := newFixture()
	f.seedUnit("u1", "alice", domain.UnitKindLEO)

	unit, err := f.svc.SetStatus(context.Background(), owner("alice"), "u1", codeOnDuty, config.CADSettings{})
	require.NoError(t, err)

	require.True(t, unit.StatusID.Valid)
	assert.Equal(t, codeOnDuty, unit.StatusID.String)
	require.True(t, unit.Incremental.Valid)
	assert.Equal(t, int64(1), unit.Incremental.Int64)

	logs, err := f.dutyLogs.ListLogs(context.Background(), repository.DutyLogFilters{UnitID: "u1"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].EndedAt.Valid)
}

func TestSetStatus_SecondUnitGetsNextIncremental(t *testing.T) {
	f := newFixture()
	f.seedUnit("u1", "alice", domain.UnitKindLEO)
	f.seedUnit("u2", "bob", domain.UnitKindLEO)

	_, err := f.svc.SetStatus(context.Background(), owner("alice"), "u1", codeOnDuty, config.CADSettings{})
	require.NoError(t, err)
	unit, err := f.svc.SetStatus(context.Background(), owner("bob"), "u2", codeOnDuty, config.CADSettings{})
	require.NoError(t, err)

	require.True(t, unit.Incremental.Valid)
	assert.Equal(t, int64(2), unit.Incremental.Int64)
}

func TestSetStatus_ConcurrentOnDutyUniqueIncrementals(t *testing.T) {
	f := newFixture()
	const n = 16
	for i := 0; i < n; i++ {
		f.seedUnit(fmt.Sprintf("u%d", i), fmt.Sprintf("user%d", i), domain.UnitKindLEO)
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.SetStatus(context.Background(), dispatcher(),
				fmt.Sprintf("u%d", i), codeOnDuty, config.CADSettings{})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]string)
	for i := 0; i < n; i++ {
		unit, err := f.units.GetUnit(context.Background(), fmt.Sprintf("u%d", i))
		require.NoError(t, err)
		require.True(t, unit.Incremental.Valid)
		prev, dup := seen[unit.Incremental.Int64]
		require.False(t, dup, "incremental %d assigned to both %s and %s", unit.Incremental.Int64, prev, unit.UnitID)
		seen[unit.Incremental.Int64] = unit.UnitID
	}
}

func TestSetStatus_OffDutyKeepsAssignmentsAndClosesLog(t *testing.T) {
	f := newFixture()
	f.seedUnit("u1", "alice", domain.UnitKindLEO)
	f.seedCall("c1")

	_, err := f.svc.SetStatus(context.Background(), owner("alice"), "u1", codeOnDuty, config.CADSettings{})
	require.NoError(t, err)
	require.NoError(t, f.svc.Assign(context.Background(), dispatcher(), "u1",
		TargetRef{Kind: domain.TargetCall, ID: "c1"}, false, config.CADSettings{}))

	unit, err := f.svc.SetStatus(context.Background(), owner("alice"), "u1", codeOffDuty, config.CADSettings{})
	require.NoError(t, err)

	// 离岗只清状态；呼叫引用与指派记录保留，撤下呼叫要走 Unassign
	assert.False(t, unit.StatusID.Valid)
	require.True(t, unit.ActiveCallID.Valid)
	assert.Equal(t, "c1", unit.ActiveCallID.String)

	records, err := f.assignments.ListTargetAssignments(context.Background(), domain.TargetCall, "c1")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	logs, err := f.dutyLogs.ListLogs(context.Background(), repository.DutyLogFilters{UnitID: "u1"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].EndedAt.Valid)
}

func TestSetStatus_OnDutyDeactivatesOtherUserUnits(t *testing.T) {
	f := newFixture()
	f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	f.seedUnit("u2", "alice", domain.UnitKindEMSFD)

	_, err := f.svc.SetStatus(context.Background(), owner("alice"), "u2", codeOnDuty, config.CADSettings{})
	require.NoError(t, err)

	other, err := f.units.GetUnit(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, other.IsOffDuty())
}

func TestSetStatus_DispatcherKeepsOtherUserUnitsOnDuty(t *testing.T) {
	f := newFixture()
	f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	f.seedUnit("u2", "alice", domain.UnitKindEMSFD)

	// 单用户单在岗的重置只针对本人操作，调度员代操作不动其他单位
	_, err := f.svc.SetStatus(context.Background(), dispatcher(), "u2", codeOnDuty, config.CADSettings{})
	require.NoError(t, err)

	other, err := f.units.GetUnit(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, other.IsOffDuty())
}

func TestSetStatus_PlainStatusCodeOpensNoLog(t *testing.T) {
	f := newFixture()
	f.seedUnit("u1", "alice", domain.UnitKindLEO)

	// SET_STATUS 码不算上岗：不开执勤日志、不分配序号
	unit, err := f.svc.SetStatus(context.Background(), owner("alice"), "u1", codeBusy, config.CADSettings{})
	require.NoError(t, err)
	require.True(t, unit.StatusID.Valid)
	assert.Equal(t, codeBusy, unit.StatusID.String)
	assert.False(t, unit.Incremental.Valid)

	logs, err := f.dutyLogs.ListLogs(context.Background(), repository.DutyLogFilters{UnitID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestSetStatus_SuspendedUnitRejected(t *testing.T) {
	f := newFixture()
	unit := f.seedUnit("u1", "alice", domain.UnitKindLEO)
	unit.Suspended = true
	f.units.Put(unit)

	_, err := f.svc.SetStatus(context.Background(), owner("alice"), "u1", codeOnDuty, config.CADSettings{})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), domain.ReasonUnitSuspended)
}

func TestSetStatus_UnknownStatusCode(t *testing.T) {
	f := newFixture()
	f.seedUnit("u1", "alice", domain.UnitKindLEO)

	_, err := f.svc.SetStatus(context.Background(), owner("alice"), "u1", "missing", config.CADSettings{})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetStatus_UnknownUnit(t *testing.T) {
	f := newFixture()
	_, err := f.svc.SetStatus(context.Background(), dispatcher(), "missing", codeOnDuty, config.CADSettings{})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetStatus_ForeignUnitForbidden(t *testing.T) {
	f := newFixture()
	f.seedUnit("u1", "alice", domain.UnitKindLEO)

	_, err := f.svc.SetStatus(context.Background(), owner("mallory"), "u1", codeOnDuty, config.CADSettings{})
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSetStatus_ReusesIncrementalWithinShift(t *testing.T) {
	f := newFixture()
	unit := f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	unit.Incremental = sql.NullInt64{Int64: 7, Valid: true}
	f.units.Put(unit)

	got, err := f.svc.SetStatus(context.Background(), owner("alice"), "u1", codeBusy, config.CADSettings{})
	require.NoError(t, err)
	require.True(t, got.Incremental.Valid)
	assert.Equal(t, int64(7), got.Incremental.Int64)
}

func TestSetStatus_AppendsCallTimelineEvent(t *testing.T) {
	f := newFixture()
	f.seedUnit("u1", "alice", domain.UnitKindLEO)
	f.seedCall("c1")

	_, err := f.svc.SetStatus(context.Background(), owner("alice"), "u1", codeOnDuty, config.CADSettings{})
	require.NoError(t, err)
	require.NoError(t, f.svc.Assign(context.Background(), dispatcher(), "u1",
		TargetRef{Kind: domain.TargetCall, ID: "c1"}, false, config.CADSettings{}))

	_, err = f.svc.SetStatus(context.Background(), owner("alice"), "u1", codeBusy, config.CADSettings{})
	require.NoError(t, err)

	events := f.calls.ListCallEvents("c1")
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Contains(t, last.Description, "10-6")
}

func TestSetStatus_OpenLogIsIdempotent(t *testing.T) {
	f := newFixture()
	f.seedUnit("u1", "alice", domain.UnitKindLEO)

	_, err := f.svc.SetStatus(context.Background(), owner("alice"), "u1", codeOnDuty, config.CADSettings{})
	require.NoError(t, err)
	// 已在岗的单位再次切换状态不应产生第二条 open 日志
	_, err = f.svc.SetStatus(context.Background(), owner("alice"), "u1", codeBusy, config.CADSettings{})
	require.NoError(t, err)

	logs, err := f.dutyLogs.ListLogs(context.Background(), repository.DutyLogFilters{UnitID: "u1"})
	require.NoError(t, err)
	open := 0
	for _, log := range logs {
		if !log.EndedAt.Valid {
			open++
		}
	}
	assert.Equal(t, 1, open)
}

func TestSweep_InactiveUnitsGoOffDuty(t *testing.T) {
	f := newFixture()
	stale := f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	stale.LastStatusChange = time.Now().Add(-31 * time.Minute)
	f.units.Put(stale)
	fresh := f.seedOnDutyUnit("u2", "bob", domain.UnitKindLEO)
	fresh.LastStatusChange = time.Now().Add(-29 * time.Minute)
	f.units.Put(fresh)

	report, err := f.svc.Sweep(context.Background(), config.CADSettings{UnitInactivityTimeout: 30})
	require.NoError(t, err)
	assert.Equal(t, 1, report.UnitsSetOffDuty)

	u1, _ := f.units.GetUnit(context.Background(), "u1")
	assert.True(t, u1.IsOffDuty())
	u2, _ := f.units.GetUnit(context.Background(), "u2")
	assert.False(t, u2.IsOffDuty())
}

func TestSweep_DisabledTimeoutsTouchNothing(t *testing.T) {
	f := newFixture()
	stale := f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	stale.LastStatusChange = time.Now().Add(-24 * time.Hour)
	f.units.Put(stale)

	report, err := f.svc.Sweep(context.Background(), config.CADSettings{})
	require.NoError(t, err)
	assert.Zero(t, report.UnitsSetOffDuty)

	u1, _ := f.units.GetUnit(context.Background(), "u1")
	assert.False(t, u1.IsOffDuty())
}

func TestSweep_StaleIncidentsAndWarrants(t *testing.T) {
	f := newFixture()
	incident := f.seedIncident("i1")
	incident.UpdatedAt = time.Now().Add(-2 * time.Hour)
	f.incidents.Put(incident)

	unit := f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	unit.ActiveIncidentID = sql.NullString{String: "i1", Valid: true}
	f.units.Put(unit)

	f.warrants.Put(&domain.Warrant{
		WarrantID: "w1",
		Status:    domain.WarrantStatusActive,
		UpdatedAt: time.Now().Add(-3 * time.Hour),
	})

	report, err := f.svc.Sweep(context.Background(), config.CADSettings{
		IncidentInactivityTimeout:       60,
		ActiveWarrantsInactivityTimeout: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.IncidentsDeactivated)
	assert.Equal(t, 1, report.WarrantsExpired)

	got, _ := f.incidents.GetIncident(context.Background(), "i1")
	assert.False(t, got.IsActive)
	u1, _ := f.units.GetUnit(context.Background(), "u1")
	assert.False(t, u1.ActiveIncidentID.Valid)
}

func TestGetBoard_LazySweepRemovesStaleEntries(t *testing.T) {
	f := newFixture()
	stale := f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	stale.LastStatusChange = time.Now().Add(-45 * time.Minute)
	f.units.Put(stale)
	f.seedCall("c1")

	board, err := f.svc.GetBoard(context.Background(), config.CADSettings{UnitInactivityTimeout: 30})
	require.NoError(t, err)

	assert.Empty(t, board.Units)
	require.Len(t, board.Calls, 1)
}

func TestGetBoard_StitchesAssignments(t *testing.T) {
	f := newFixture()
	f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	f.seedCall("c1")
	require.NoError(t, f.svc.Assign(context.Background(), dispatcher(), "u1",
		TargetRef{Kind: domain.TargetCall, ID: "c1"}, false, config.CADSettings{}))

	board, err := f.svc.GetBoard(context.Background(), config.CADSettings{})
	require.NoError(t, err)
	require.Len(t, board.Calls, 1)
	require.Len(t, board.Calls[0].AssignedUnits, 1)
	assert.Equal(t, "u1", board.Calls[0].AssignedUnits[0].UnitID())
}

func TestSetStatus_ConflictErrorsUnwrap(t *testing.T) {
	err := domain.Conflict(domain.ReasonUnitOffDuty)
	require.True(t, errors.Is(err, domain.ErrConflict))
	assert.Contains(t, err.Error(), domain.ReasonUnitOffDuty)
}
