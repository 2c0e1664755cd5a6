package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/domain"
)

// Result 统一响应信封
type Result[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Ok 成功响应
func Ok[T any](w http.ResponseWriter, data T) {
	writeJSON(w, http.StatusOK, Result[T]{Code: 0, Message: "success", Data: data})
}

// Fail 失败响应
func Fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Result[struct{}]{Code: status, Message: message})
}

// FailError 按错误分类映射HTTP状态码：404 / 409 / 403，其余为500
func FailError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		Fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		Fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		Fail(w, http.StatusForbidden, err.Error())
	default:
		Fail(w, http.StatusInternalServerError, "internal server error")
	}
}
