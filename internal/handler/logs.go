package handler

import (
	"net/http"
	"strconv"
	"time"

	"fz-pos-api/internal/model"
	"fz-pos-api/internal/service"
	"fz-pos-api/pkg/apierror"
	"fz-pos-api/pkg/response"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// LogHandler serves the POS audit trail.
type LogHandler struct {
	audit *service.AuditService
}

func NewLogHandler(audit *service.AuditService) *LogHandler {
	return &LogHandler{audit: audit}
}

// GetAuditLogs returns audit entries, newest first. Filters: session_id,
// action, since (RFC3339) and limit.
func (h *LogHandler) GetAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > maxLogLimit {
		limit = defaultLogLimit
	}

	filter := model.AuditFilter{
		SessionID: q.Get("session_id"),
		Action:    model.AuditAction(q.Get("action")),
		Limit:     limit,
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			response.Error(w, apierror.ValidationError("invalid query",
				apierror.FieldError{Field: "since", Message: "must be an RFC3339 timestamp"}))
			return
		}
		filter.Since = t
	}

	entries, err := h.audit.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	response.JSONWithMeta(w, http.StatusOK, entries, limit, len(entries))
}
