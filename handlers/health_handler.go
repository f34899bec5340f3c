package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/upb/ragqa/services/interactions"
	"github.com/upb/ragqa/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// StoreStatus reports whether the chunk store is attached
type StoreStatus interface {
	Loaded() bool
}

// InteractionLogStatus reports the state of the interaction log workers
type InteractionLogStatus interface {
	GetStats() interactions.Stats
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	store        StoreStatus
	db           *sql.DB
	interactions InteractionLogStatus
	logger       *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db is nil when the
// interaction log is disabled.
func NewHealthHandler(store StoreStatus, db *sql.DB, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		db:     db,
		logger: logger,
	}
}

// WithInteractionLog adds the interaction log to readiness checks.
func (h *HealthHandler) WithInteractionLog(l InteractionLogStatus) *HealthHandler {
	h.interactions = l
	return h
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// Ready means the store is attached, the database answers and the
// interaction log workers run, when those are configured.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.store != nil && h.store.Loaded() {
		checks["store"] = "loaded"
	} else {
		checks["store"] = "not_loaded"
		allHealthy = false
	}

	if h.db != nil {
		if err := h.checkDatabase(ctx); err != nil {
			h.logger.Warn("database health check failed", zap.Error(err))
			checks["database"] = "unhealthy"
			allHealthy = false
		} else {
			checks["database"] = "healthy"
		}
	}

	if h.interactions != nil {
		stats := h.interactions.GetStats()
		if stats.Started {
			checks["interaction_log"] = "running"
		} else {
			checks["interaction_log"] = "stopped"
			allHealthy = false
		}
		checks["interaction_log_pending"] = strconv.Itoa(stats.PendingEvents) + "/" + strconv.Itoa(stats.BufferSize)
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}
