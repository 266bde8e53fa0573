package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/predictops/autoscaler/pkg/database"
)

// BackendChecker verifies reachability of an external dependency.
type BackendChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db            *database.DB
	metricsSource BackendChecker
}

func NewHealthHandler(db *database.DB, metricsSource BackendChecker) *HealthHandler {
	return &HealthHandler{
		db:            db,
		metricsSource: metricsSource,
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	status := "healthy"

	// Check database
	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
			status = "unhealthy"
		} else {
			checks["database"] = "healthy"
		}
	}

	// Check metrics backend
	if h.metricsSource != nil {
		if err := h.metricsSource.HealthCheck(ctx); err != nil {
			checks["metrics_backend"] = "unhealthy: " + err.Error()
			status = "unhealthy"
		} else {
			checks["metrics_backend"] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, HealthResponse{
				Status:    "not ready",
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
