package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/alerts"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/broadcast"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/config"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/database"
	httpapi "github.com/SnailyCAD/snaily-cadv4-sub005/internal/http"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/logger"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/repository"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/service"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/webhook"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "dispatch-engine")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("dispatch-engine starting", zap.String("addr", cfg.HTTP.Addr))

	deps := service.Deps{Logger: log}

	// 数据库不可用或显式禁用时回退到内存实现（开发与演示模式）
	if cfg.DBEnabled {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			log.Fatal("failed to connect database", zap.Error(err))
		}
		defer database.Close(db)

		deps.Units = repository.NewPostgresUnitsRepository(db, log)
		deps.StatusCodes = repository.NewPostgresStatusCodesRepository(db, log)
		deps.Calls = repository.NewPostgresCallsRepository(db, log)
		deps.Incidents = repository.NewPostgresIncidentsRepository(db, log)
		deps.Assignments = repository.NewPostgresAssignmentsRepository(db, log)
		deps.DutyLogs = repository.NewPostgresDutyLogsRepository(db, log)
		deps.Warrants = repository.NewPostgresWarrantsRepository(db, log)
		log.Info("using postgres repositories",
			zap.String("host", cfg.Database.Host), zap.Int("port", cfg.Database.Port))
	} else {
		codes := repository.NewMemoryStatusCodesRepository()
		assignments := repository.NewMemoryAssignmentsRepository()
		units := repository.NewMemoryUnitsRepository(codes, assignments)

		deps.Units = units
		deps.StatusCodes = codes
		deps.Calls = repository.NewMemoryCallsRepository()
		deps.Incidents = repository.NewMemoryIncidentsRepository(units)
		deps.Assignments = assignments
		deps.DutyLogs = repository.NewMemoryDutyLogsRepository()
		deps.Warrants = repository.NewMemoryWarrantsRepository()
		log.Warn("database disabled, using in-memory repositories")
	}

	gateway, err := broadcast.NewRedisGateway(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Warn("redis unavailable, broadcasts disabled", zap.Error(err))
		deps.Gateway = broadcast.NopGateway{}
	} else {
		defer gateway.Close()
		deps.Gateway = gateway
		log.Info("redis broadcast gateway connected", zap.String("addr", cfg.Redis.Addr))
	}

	deps.Notifier = webhook.NewNotifier(cfg.Webhook, log)

	if cfg.MQTT.Enabled {
		publisher, err := alerts.NewPublisher(cfg.MQTT, log)
		if err != nil {
			log.Warn("mqtt unavailable, panic alerts disabled", zap.Error(err))
		} else {
			defer publisher.Close()
			deps.Alerter = publisher
		}
	}

	svc := service.NewDispatchService(deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Sweep.Enabled {
		sweeper := service.NewSweeper(svc,
			time.Duration(cfg.Sweep.IntervalSeconds)*time.Second, cfg.CAD, log)
		go sweeper.Run(ctx)
	}

	apiServer := httpapi.NewServer(svc, cfg.CAD, log)
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
	log.Info("dispatch-engine stopped")
}
