package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/repository"
	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/service"
)

// callerFromRequest 从上游鉴权网关注入的请求头读取调用者上下文
// 本服务不做认证；请求头由部署在前面的网关验证后填充
func callerFromRequest(r *http.Request) domain.CallerContext {
	return domain.CallerContext{
		UserID:     r.Header.Get("X-User-Id"),
		IsDispatch: r.Header.Get("X-Is-Dispatch") == "true",
		IsAdmin:    r.Header.Get("X-Is-Admin") == "true",
	}
}

func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseTargetKind(kind string) (domain.TargetKind, bool) {
	switch kind {
	case string(domain.TargetCall):
		return domain.TargetCall, true
	case string(domain.TargetIncident):
		return domain.TargetIncident, true
	}
	return "", false
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StatusID string `json:"statusId"`
	}
	if err := decodeBody(r, &req); err != nil {
		Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.StatusID == "" {
		Fail(w, http.StatusBadRequest, "statusId is required")
		return
	}

	unit, err := s.service.SetStatus(r.Context(), callerFromRequest(r), r.PathValue("id"), req.StatusID, s.settings)
	if err != nil {
		FailError(w, err)
		return
	}
	Ok(w, unit)
}

func (s *Server) handlePanic(w http.ResponseWriter, r *http.Request) {
	unit, err := s.service.TogglePanic(r.Context(), callerFromRequest(r), r.PathValue("id"), s.settings)
	if err != nil {
		FailError(w, err)
		return
	}
	Ok(w, unit)
}

type assignRequest struct {
	TargetKind string `json:"targetKind"`
	TargetID   string `json:"targetId"`
	Force      bool   `json:"force"`
}

func (r assignRequest) target() (service.TargetRef, error) {
	kind, ok := parseTargetKind(r.TargetKind)
	if !ok {
		return service.TargetRef{}, fmt.Errorf("targetKind must be %q or %q", domain.TargetCall, domain.TargetIncident)
	}
	if r.TargetID == "" {
		return service.TargetRef{}, fmt.Errorf("targetId is required")
	}
	return service.TargetRef{Kind: kind, ID: r.TargetID}, nil
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeBody(r, &req); err != nil {
		Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	target, err := req.target()
	if err != nil {
		Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.service.Assign(r.Context(), callerFromRequest(r), r.PathValue("id"), target, req.Force, s.settings); err != nil {
		FailError(w, err)
		return
	}
	Ok(w, struct{}{})
}

func (s *Server) handleUnassign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeBody(r, &req); err != nil {
		Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	target, err := req.target()
	if err != nil {
		Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.service.Unassign(r.Context(), callerFromRequest(r), r.PathValue("id"), target); err != nil {
		FailError(w, err)
		return
	}
	Ok(w, struct{}{})
}

func (s *Server) handleBulkAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UnitIDs []string `json:"unitIds"`
		assignRequest
	}
	if err := decodeBody(r, &req); err != nil {
		Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.UnitIDs) == 0 {
		Fail(w, http.StatusBadRequest, "unitIds is required")
		return
	}
	target, err := req.target()
	if err != nil {
		Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	succeeded, err := s.service.BulkAssign(r.Context(), callerFromRequest(r), req.UnitIDs, target, req.Force, s.settings)
	if err != nil {
		FailError(w, err)
		return
	}
	Ok(w, map[string][]string{"assigned": succeeded})
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntryUnitID         string   `json:"entryUnitId"`
		UnitIDs             []string `json:"unitIds"`
		UserDefinedCallsign string   `json:"userDefinedCallsign"`
	}
	if err := decodeBody(r, &req); err != nil {
		Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.EntryUnitID == "" {
		Fail(w, http.StatusBadRequest, "entryUnitId is required")
		return
	}

	combined, err := s.service.Merge(r.Context(), callerFromRequest(r), req.EntryUnitID, req.UnitIDs, req.UserDefinedCallsign, s.settings)
	if err != nil {
		FailError(w, err)
		return
	}
	Ok(w, combined)
}

func (s *Server) handleUnmerge(w http.ResponseWriter, r *http.Request) {
	members, err := s.service.Unmerge(r.Context(), callerFromRequest(r), r.PathValue("id"))
	if err != nil {
		FailError(w, err)
		return
	}
	Ok(w, members)
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	board, err := s.service.GetBoard(r.Context(), s.settings)
	if err != nil {
		FailError(w, err)
		return
	}
	Ok(w, board)
}

func dutyLogFilters(r *http.Request) (repository.DutyLogFilters, error) {
	filters := repository.DutyLogFilters{UnitID: r.URL.Query().Get("unitId")}
	if since := r.URL.Query().Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return filters, fmt.Errorf("invalid since timestamp: %w", err)
		}
		filters.Since = ts
	}
	return filters, nil
}

func (s *Server) handleListDutyLogs(w http.ResponseWriter, r *http.Request) {
	filters, err := dutyLogFilters(r)
	if err != nil {
		Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := s.service.ListDutyLogs(r.Context(), callerFromRequest(r), filters)
	if err != nil {
		FailError(w, err)
		return
	}
	Ok(w, logs)
}

func (s *Server) handleExportDutyLogs(w http.ResponseWriter, r *http.Request) {
	filters, err := dutyLogFilters(r)
	if err != nil {
		Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := s.service.ExportDutyLogs(r.Context(), callerFromRequest(r), filters)
	if err != nil {
		FailError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="duty-logs-%s.xlsx"`, time.Now().Format("20060102-150405")))
	w.Write(data)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	caller := callerFromRequest(r)
	if !caller.Privileged() {
		FailError(w, domain.ErrForbidden)
		return
	}

	report, err := s.service.Sweep(r.Context(), s.settings)
	if err != nil {
		FailError(w, err)
		return
	}
	Ok(w, report)
}
