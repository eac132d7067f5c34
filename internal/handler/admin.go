package handler

import (
	"net/http"
	"runtime"
	"time"

	"fz-pos-api/internal/service"
	"fz-pos-api/pkg/response"
)

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	audit     *service.AuditService
	sessions  SessionCounter
	cleanup   *service.CleanupScheduler
	dbType    string
	startTime time.Time
}

// NewAdminHandler creates a new admin handler. cleanup may be nil.
func NewAdminHandler(
	audit *service.AuditService,
	sessions SessionCounter,
	cleanup *service.CleanupScheduler,
	dbType string,
) *AdminHandler {
	return &AdminHandler{
		audit:     audit,
		sessions:  sessions,
		cleanup:   cleanup,
		dbType:    dbType,
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType

	if h.sessions != nil {
		stats["sessions"] = h.sessions.Count()
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if h.audit != nil {
		overview, err := h.audit.Stats(ctx)
		if err == nil {
			stats["audit"] = overview
		} else {
			stats["audit"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["audit"] = map[string]interface{}{
			"status": "not_configured",
		}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// RunCleanup handles POST /api/v1/admin/cleanup
func (h *AdminHandler) RunCleanup(w http.ResponseWriter, r *http.Request) {
	if h.cleanup == nil {
		response.OK(w, service.CleanupResult{})
		return
	}
	res, err := h.cleanup.RunNow()
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, res)
}
