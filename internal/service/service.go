package service

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/alerts"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/broadcast"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/repository"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/webhook"
)

// PanicAlerter 报警硬件推送接口（MQTT 禁用时为 nil）
type PanicAlerter interface {
	PublishPanic(alert alerts.PanicAlert)
}

// DispatchService 调度引擎核心服务
// 聚合单位状态、指派、合并、报警与不活跃清理；写路径按单位加锁串行化
type DispatchService struct {
	units       repository.UnitsRepository
	statusCodes repository.StatusCodesRepository
	calls       repository.CallsRepository
	incidents   repository.IncidentsRepository
	assignments repository.AssignmentsRepository
	dutyLogs    repository.DutyLogsRepository
	warrants    repository.WarrantsRepository

	gateway  broadcast.Gateway
	notifier *webhook.Notifier
	alerter  PanicAlerter

	locks  unitLocker
	logger *zap.Logger
}

// Deps 服务依赖集合
type Deps struct {
	Units       repository.UnitsRepository
	StatusCodes repository.StatusCodesRepository
	Calls       repository.CallsRepository
	Incidents   repository.IncidentsRepository
	Assignments repository.AssignmentsRepository
	DutyLogs    repository.DutyLogsRepository
	Warrants    repository.WarrantsRepository
	Gateway     broadcast.Gateway
	Notifier    *webhook.Notifier
	Alerter     PanicAlerter
	Logger      *zap.Logger
}

// NewDispatchService 创建调度服务
func NewDispatchService(deps Deps) *DispatchService {
	gateway := deps.Gateway
	if gateway == nil {
		gateway = broadcast.NopGateway{}
	}
	return &DispatchService{
		units:       deps.Units,
		statusCodes: deps.StatusCodes,
		calls:       deps.Calls,
		incidents:   deps.Incidents,
		assignments: deps.Assignments,
		dutyLogs:    deps.DutyLogs,
		warrants:    deps.Warrants,
		gateway:     gateway,
		notifier:    deps.Notifier,
		alerter:     deps.Alerter,
		logger:      deps.Logger,
	}
}

func (s *DispatchService) notify(event string, data interface{}) {
	if s.notifier == nil {
		return
	}
	// webhook 用独立 context：核心操作返回后投递仍可完成
	go s.notifier.Notify(context.Background(), event, data)
}

// unitLocker 按单位ID加锁：同一单位的写操作串行化（先检查后写入的临界区）
// 多个ID按序加锁避免死锁
type unitLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *unitLocker) get(unitID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := l.locks[unitID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[unitID] = lock
	}
	return lock
}

// Lock 锁定一组单位，返回解锁函数
func (l *unitLocker) Lock(unitIDs ...string) func() {
	ids := append([]string(nil), unitIDs...)
	sort.Strings(ids)
	// 去重：同一ID重复加锁会自锁
	deduped := ids[:0]
	for i, id := range ids {
		if i == 0 || id != ids[i-1] {
			deduped = append(deduped, id)
		}
	}
	var held []*sync.Mutex
	for _, id := range deduped {
		lock := l.get(id)
		lock.Lock()
		held = append(held, lock)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
