package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/repository"
)

// recorderGateway 记录广播事件的测试网关
type recorderGateway struct {
	mu     sync.Mutex
	events []string
}

func (g *recorderGateway) Publish(ctx context.Context, event string, payload interface{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, event)
}

func (g *recorderGateway) Close() error { return nil }

func (g *recorderGateway) count(event string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, e := range g.events {
		if e == event {
			n++
		}
	}
	return n
}

type fixture struct {
	svc         *DispatchService
	units       *repository.MemoryUnitsRepository
	codes       *repository.MemoryStatusCodesRepository
	calls       *repository.MemoryCallsRepository
	incidents   *repository.MemoryIncidentsRepository
	assignments *repository.MemoryAssignmentsRepository
	dutyLogs    *repository.MemoryDutyLogsRepository
	warrants    *repository.MemoryWarrantsRepository
	gateway     *recorderGateway
}

const (
	codeOnDuty  = "code-on-duty"
	codeOffDuty = "code-off-duty"
	codeBusy    = "code-busy"
	codePanic   = "code-panic"
)

func newFixture() *fixture {
	f := buildFixture()
	f.codes.Put(&domain.StatusCode{
		StatusID:   codePanic,
		Value:      "PANIC",
		ShouldDo:   domain.ShouldDoPanicButton,
		Categories: []domain.Category{domain.CategoryLEO, domain.CategoryEMSFD},
	})
	return f
}

// newFixtureWithoutPanicCode 目录中未配置报警码的场景
func newFixtureWithoutPanicCode() *fixture {
	return buildFixture()
}

func buildFixture() *fixture {
	codes := repository.NewMemoryStatusCodesRepository()
	assignments := repository.NewMemoryAssignmentsRepository()
	units := repository.NewMemoryUnitsRepository(codes, assignments)
	calls := repository.NewMemoryCallsRepository()
	incidents := repository.NewMemoryIncidentsRepository(units)
	dutyLogs := repository.NewMemoryDutyLogsRepository()
	warrants := repository.NewMemoryWarrantsRepository()
	gateway := &recorderGateway{}

	allCategories := []domain.Category{domain.CategoryLEO, domain.CategoryEMSFD}
	codes.Put(&domain.StatusCode{StatusID: codeOnDuty, Value: "10-8", ShouldDo: domain.ShouldDoSetOnDuty, Categories: allCategories})
	codes.Put(&domain.StatusCode{StatusID: codeOffDuty, Value: "10-42", ShouldDo: domain.ShouldDoSetOffDuty, Categories: allCategories})
	codes.Put(&domain.StatusCode{StatusID: codeBusy, Value: "10-6", ShouldDo: domain.ShouldDoSetStatus, Categories: allCategories})

	svc := NewDispatchService(Deps{
		Units:       units,
		StatusCodes: codes,
		Calls:       calls,
		Incidents:   incidents,
		Assignments: assignments,
		DutyLogs:    dutyLogs,
		Warrants:    warrants,
		Gateway:     gateway,
		Logger:      zap.NewNop(),
	})

	return &fixture{
		svc:         svc,
		units:       units,
		codes:       codes,
		calls:       calls,
		incidents:   incidents,
		assignments: assignments,
		dutyLogs:    dutyLogs,
		warrants:    warrants,
		gateway:     gateway,
	}
}

func (f *fixture) seedUnit(id, userID string, kind domain.UnitKind) *domain.Unit {
	unit := &domain.Unit{
		UnitID:           id,
		Kind:             kind,
		UserID:           sql.NullString{String: userID, Valid: userID != ""},
		Callsign:         "A-" + id,
		DepartmentID:     "dept-1",
		LastStatusChange: time.Now(),
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	f.units.Put(unit)
	return unit
}

func (f *fixture) seedOnDutyUnit(id, userID string, kind domain.UnitKind) *domain.Unit {
	unit := f.seedUnit(id, userID, kind)
	unit.StatusID = sql.NullString{String: codeOnDuty, Valid: true}
	f.units.Put(unit)
	return unit
}

func (f *fixture) seedCall(id string) *domain.Call {
	call := &domain.Call{
		CallID:    id,
		Title:     "call " + id,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.calls.Put(call)
	return call
}

func (f *fixture) seedIncident(id string) *domain.Incident {
	incident := &domain.Incident{
		IncidentID: id,
		Title:      "incident " + id,
		IsActive:   true,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	f.incidents.Put(incident)
	return incident
}

func dispatcher() domain.CallerContext {
	return domain.CallerContext{UserID: "user-dispatch", IsDispatch: true}
}

func owner(userID string) domain.CallerContext {
	return domain.CallerContext{UserID: userID}
}
