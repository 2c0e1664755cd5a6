package http

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/config"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/service"
)

// Server HTTP API 服务
type Server struct {
	service  *service.DispatchService
	settings config.CADSettings
	logger   *zap.Logger
}

// NewServer 创建HTTP服务
func NewServer(svc *service.DispatchService, settings config.CADSettings, logger *zap.Logger) *Server {
	return &Server{service: svc, settings: settings, logger: logger}
}

// Router 注册路由
// 使用标准库 ServeMux 的方法+路径模式，避免引入第三方路由依赖
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /dispatch/api/v1/units/{id}/status", s.handleSetStatus)
	mux.HandleFunc("POST /dispatch/api/v1/units/{id}/panic", s.handlePanic)
	mux.HandleFunc("POST /dispatch/api/v1/units/{id}/assign", s.handleAssign)
	mux.HandleFunc("POST /dispatch/api/v1/units/{id}/unassign", s.handleUnassign)
	mux.HandleFunc("POST /dispatch/api/v1/units/{id}/unmerge", s.handleUnmerge)
	mux.HandleFunc("POST /dispatch/api/v1/units/merge", s.handleMerge)
	mux.HandleFunc("POST /dispatch/api/v1/assignments/bulk", s.handleBulkAssign)
	mux.HandleFunc("GET /dispatch/api/v1/board", s.handleBoard)
	mux.HandleFunc("GET /dispatch/api/v1/duty-logs", s.handleListDutyLogs)
	mux.HandleFunc("GET /dispatch/api/v1/duty-logs/export", s.handleExportDutyLogs)
	mux.HandleFunc("POST /dispatch/api/v1/sweep", s.handleSweep)

	return s.withLogging(s.withRecovery(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	Ok(w, map[string]string{"status": "ok"})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panicked",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec))
				Fail(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
