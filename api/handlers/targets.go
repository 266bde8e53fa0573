package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/predictops/autoscaler/pkg/models"
	"github.com/predictops/autoscaler/pkg/validation"
)

// TargetManager exposes the control loop's registry to the API. Targets are
// declared through policies on the orchestration backend, so the API surface
// is read-only.
type TargetManager interface {
	TargetStatuses() []models.TargetStatus
	TargetStatus(targetID string) (models.TargetStatus, bool)
	SubscribeAllEvents() <-chan *models.Event
}

type TargetHandler struct {
	manager TargetManager
}

func NewTargetHandler(manager TargetManager) *TargetHandler {
	return &TargetHandler{manager: manager}
}

func (h *TargetHandler) List(c *gin.Context) {
	if h.manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "control loop not running"})
		return
	}

	statuses := h.manager.TargetStatuses()

	c.JSON(http.StatusOK, gin.H{
		"targets": statuses,
		"count":   len(statuses),
	})
}

func (h *TargetHandler) Get(c *gin.Context) {
	id := c.Param("id")

	if err := validation.ValidateTargetID(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "control loop not running"})
		return
	}

	status, ok := h.manager.TargetStatus(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "target not tracked"})
		return
	}

	c.JSON(http.StatusOK, status)
}
