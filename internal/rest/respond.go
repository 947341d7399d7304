package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/CarLinkRent/CarLinkRent/internal/common/apperr"
	"github.com/CarLinkRent/CarLinkRent/internal/common/logger"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError 把业务错误映射为 HTTP 状态码。
// Internal 不向外泄露底层原因，只记日志。
func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()

	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrInvalidState),
		errors.Is(err, apperr.ErrEditWindow),
		errors.Is(err, apperr.ErrCancelWindow):
		status = http.StatusUnprocessableEntity
	default:
		if log != nil {
			log.Errorf("internal error: %v", err)
		}
		msg = "internal error"
	}

	writeJSON(w, status, map[string]string{"error": msg})
}
