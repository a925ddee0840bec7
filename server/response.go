package server

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/nbti/nbadmin/dic"
	"github.com/nbti/nbadmin/rdb"
)

// ErrorResponse 所有错误统一的响应体
type ErrorResponse struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

// statusOf 客户端可修正的错误即使被 MutationError 包装也按 400 返回
func statusOf(err error) int {
	var tableNotFound *dic.TableNotFoundError
	var fieldNotFound *dic.FieldNotFoundError
	switch {
	case errors.As(err, &tableNotFound):
		return http.StatusNotFound
	case errors.As(err, &fieldNotFound),
		errors.Is(err, rdb.ErrInvalidCondition),
		errors.Is(err, rdb.ErrInvalidOrderBy),
		errors.Is(err, rdb.ErrEmptyFilter),
		errors.Is(err, rdb.ErrInvalidPayload):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.logger.InfoContext(r.Context(), "request rejected", "method", r.Method, "path", r.URL.Path, "status", code, "error", err)
	}
	s.writeJSON(w, code, &ErrorResponse{Code: code, Error: err.Error()})
}
