package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/config"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

func TestMerge_CreatesCombinedUnit(t *testing.T) {
	f := newFixture()
	f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	f.seedOnDutyUnit("u2", "bob", domain.UnitKindLEO)

	combined, err := f.svc.Merge(context.Background(), dispatcher(), "u1", []string{"u1", "u2"}, "", config.CADSettings{})
	require.NoError(t, err)

	assert.Equal(t, domain.UnitKindCombinedLEO, combined.Kind)
	assert.False(t, combined.UserID.Valid)
	require.True(t, combined.StatusID.Valid)
	assert.Equal(t, codeOnDuty, combined.StatusID.String)
	require.True(t, combined.Incremental.Valid)
	assert.Equal(t, []string{"u1", "u2"}, combined.MemberIDs)
	assert.Equal(t, "A-u1", combined.Callsign)

	for _, memberID := range []string{"u1", "u2"} {
		member, err := f.units.GetUnit(context.Background(), memberID)
		require.NoError(t, err)
		assert.True(t, member.IsOffDuty(), "member %s keeps no own status inside combined unit", memberID)
		require.True(t, member.CombinedUnitID.Valid)
		assert.Equal(t, combined.UnitID, member.CombinedUnitID.String)
	}
}

func TestMerge_RequiresTwoMembers(t *testing.T) {
	f := newFixture()
	f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)

	_, err := f.svc.Merge(context.Background(), dispatcher(), "u1", []string{"u1"}, "", config.CADSettings{})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), domain.ReasonNotEnoughMembers)
}

func TestMerge_EntryMustBeMember(t *testing.T) {
	f := newFixture()
	f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	f.seedOnDutyUnit("u2", "bob", domain.UnitKindLEO)
	f.seedOnDutyUnit("u3", "carol", domain.UnitKindLEO)

	_, err := f.svc.Merge(context.Background(), dispatcher(), "u1", []string{"u2", "u3"}, "", config.CADSettings{})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), domain.ReasonEntryNotInMembers)
}

func TestMerge_RejectsMixedCategories(t *testing.T) {
	f := newFixture()
	f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	f.seedOnDutyUnit("u2", "bob", domain.UnitKindEMSFD)

	_, err := f.svc.Merge(context.Background(), dispatcher(), "u1", []string{"u1", "u2"}, "", config.CADSettings{})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), domain.ReasonWrongUnitKind)
}

func TestMerge_RejectsOffDutyMember(t *testing.T) {
	f := newFixture()
	f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	f.seedUnit("u2", "bob", domain.UnitKindLEO)

	_, err := f.svc.Merge(context.Background(), dispatcher(), "u1", []string{"u1", "u2"}, "", config.CADSettings{})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), domain.ReasonUnitOffDuty)
}

func TestMerge_RejectsMemberAlreadyCombined(t *testing.T) {
	f := newFixture()
	f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	f.seedOnDutyUnit("u2", "bob", domain.UnitKindLEO)
	f.seedOnDutyUnit("u3", "carol", domain.UnitKindLEO)

	_, err := f.svc.Merge(context.Background(), dispatcher(), "u1", []string{"u1", "u2"}, "", config.CADSettings{})
	require.NoError(t, err)

	_, err = f.svc.Merge(context.Background(), dispatcher(), "u3", []string{"u3", "u2"}, "", config.CADSettings{})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), domain.ReasonPartOfCombinedUnit)
}

func TestMerge_UserDefinedCallsignConflict(t *testing.T) {
	f := newFixture()
	f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	f.seedOnDutyUnit("u2", "bob", domain.UnitKindLEO)
	f.seedOnDutyUnit("u3", "carol", domain.UnitKindLEO)
	f.seedOnDutyUnit("u4", "dan", domain.UnitKindLEO)
	settings := config.CADSettings{AllowUserDefinedCallsigns: true}

	_, err := f.svc.Merge(context.Background(), dispatcher(), "u1", []string{"u1", "u2"}, "GHOST-1", settings)
	require.NoError(t, err)

	// 大小写不敏感冲突
	_, err = f.svc.Merge(context.Background(), dispatcher(), "u3", []string{"u3", "u4"}, "ghost-1", settings)
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), domain.ReasonCallsignTaken)
}

func TestMerge_CallsignIgnoredWhenDisabled(t *testing.T) {
	f := newFixture()
	f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	f.seedOnDutyUnit("u2", "bob", domain.UnitKindLEO)

	combined, err := f.svc.Merge(context.Background(), dispatcher(), "u1", []string{"u1", "u2"}, "GHOST-1", config.CADSettings{})
	require.NoError(t, err)
	assert.False(t, combined.UserDefinedCallsign.Valid)
}

func TestUnmerge_RestoresMembersAndRedistributesAssignments(t *testing.T) {
	f := newFixture()
	f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	f.seedOnDutyUnit("u2", "bob", domain.UnitKindLEO)
	f.seedCall("c1")

	combined, err := f.svc.Merge(context.Background(), dispatcher(), "u1", []string{"u1", "u2"}, "", config.CADSettings{})
	require.NoError(t, err)
	require.NoError(t, f.svc.Assign(context.Background(), dispatcher(), combined.UnitID, callTarget("c1"), false, config.CADSettings{}))

	members, err := f.svc.Unmerge(context.Background(), dispatcher(), combined.UnitID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	for _, member := range members {
		require.True(t, member.StatusID.Valid)
		assert.Equal(t, codeOnDuty, member.StatusID.String)
		assert.False(t, member.CombinedUnitID.Valid)
		require.True(t, member.ActiveCallID.Valid)
		assert.Equal(t, "c1", member.ActiveCallID.String)
	}

	// 合并单位的指派记录重分配给每个成员
	records, err := f.assignments.ListTargetAssignments(context.Background(), domain.TargetCall, "c1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	unitIDs := []string{records[0].UnitID(), records[1].UnitID()}
	assert.ElementsMatch(t, []string{"u1", "u2"}, unitIDs)

	// 合并单位自身已删除
	gone, err := f.units.GetUnit(context.Background(), combined.UnitID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestUnmerge_SoloUnitRejected(t *testing.T) {
	f := newFixture()
	f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)

	_, err := f.svc.Unmerge(context.Background(), dispatcher(), "u1")
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), domain.ReasonWrongUnitKind)
}

func TestUnmerge_MemberOwnershipGrantsAccess(t *testing.T) {
	f := newFixture()
	f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	f.seedOnDutyUnit("u2", "bob", domain.UnitKindLEO)

	combined, err := f.svc.Merge(context.Background(), dispatcher(), "u1", []string{"u1", "u2"}, "", config.CADSettings{})
	require.NoError(t, err)

	// 成员所有者可以解散；无关用户不行
	_, err = f.svc.Unmerge(context.Background(), owner("mallory"), combined.UnitID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Unmerge(context.Background(), owner("bob"), combined.UnitID)
	require.NoError(t, err)
}

func TestSetStatus_CombinedMemberBlockedUnlessDispatch(t *testing.T) {
	f := newFixture()
	f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	f.seedOnDutyUnit("u2", "bob", domain.UnitKindLEO)

	_, err := f.svc.Merge(context.Background(), dispatcher(), "u1", []string{"u1", "u2"}, "", config.CADSettings{})
	require.NoError(t, err)

	_, err = f.svc.SetStatus(context.Background(), owner("bob"), "u2", codeBusy, config.CADSettings{})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), domain.ReasonPartOfCombinedUnit)

	// 调度员可以强制变更成员状态
	_, err = f.svc.SetStatus(context.Background(), dispatcher(), "u2", codeBusy, config.CADSettings{})
	require.NoError(t, err)
}

func TestSetStatus_DispatchForcesCombinedMemberOffDuty(t *testing.T) {
	f := newFixture()
	f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	f.seedOnDutyUnit("u2", "bob", domain.UnitKindLEO)

	_, err := f.svc.Merge(context.Background(), dispatcher(), "u1", []string{"u1", "u2"}, "", config.CADSettings{})
	require.NoError(t, err)

	_, err = f.svc.SetStatus(context.Background(), owner("bob"), "u2", codeOffDuty, config.CADSettings{})
	require.ErrorIs(t, err, domain.ErrConflict)

	// 调度权限可以强制成员离岗
	unit, err := f.svc.SetStatus(context.Background(), dispatcher(), "u2", codeOffDuty, config.CADSettings{})
	require.NoError(t, err)
	assert.False(t, unit.StatusID.Valid)
}

func TestMerge_InheritsActiveVehicleFromEntry(t *testing.T) {
	f := newFixture()
	entry := f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	entry.ActiveVehicleID = sql.NullString{String: "veh-1", Valid: true}
	f.units.Put(entry)
	f.seedOnDutyUnit("u2", "bob", domain.UnitKindLEO)

	combined, err := f.svc.Merge(context.Background(), dispatcher(), "u1", []string{"u1", "u2"}, "", config.CADSettings{})
	require.NoError(t, err)

	require.True(t, combined.ActiveVehicleID.Valid)
	assert.Equal(t, "veh-1", combined.ActiveVehicleID.String)
}

func TestMerge_CombinedUnitsShareIncrementalScope(t *testing.T) {
	f := newFixture()
	f.seedOnDutyUnit("u1", "alice", domain.UnitKindLEO)
	f.seedOnDutyUnit("u2", "bob", domain.UnitKindLEO)
	f.seedOnDutyUnit("u3", "carol", domain.UnitKindLEO)
	f.seedOnDutyUnit("u4", "dan", domain.UnitKindLEO)

	first, err := f.svc.Merge(context.Background(), dispatcher(), "u1", []string{"u1", "u2"}, "", config.CADSettings{})
	require.NoError(t, err)
	second, err := f.svc.Merge(context.Background(), dispatcher(), "u3", []string{"u3", "u4"}, "", config.CADSettings{})
	require.NoError(t, err)

	require.True(t, first.Incremental.Valid)
	require.True(t, second.Incremental.Valid)
	assert.Equal(t, first.Incremental.Int64+1, second.Incremental.Int64)
}
