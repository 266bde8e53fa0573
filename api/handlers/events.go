package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/predictops/autoscaler/pkg/config"
	"github.com/predictops/autoscaler/pkg/database/queries"
	"github.com/predictops/autoscaler/pkg/validation"
)

type EventsHandler struct {
	eventsRepo *queries.ScalingEventRepository
	config     *config.APIConfig
}

func NewEventsHandler(eventsRepo *queries.ScalingEventRepository, cfg *config.APIConfig) *EventsHandler {
	return &EventsHandler{
		eventsRepo: eventsRepo,
		config:     cfg,
	}
}

func (h *EventsHandler) getDefaultLimit() int {
	if h.config != nil && h.config.DefaultLimit > 0 {
		return h.config.DefaultLimit
	}
	return 50
}

func (h *EventsHandler) getMaxLimit() int {
	if h.config != nil && h.config.MaxLimit > 0 {
		return h.config.MaxLimit
	}
	return 1000
}

func (h *EventsHandler) GetScalingEvents(c *gin.Context) {
	targetID := c.Param("id")

	if err := validation.ValidateTargetID(targetID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	from, to := h.parseTimeRange(c)
	limit := h.parseLimit(c, h.getDefaultLimit())
	ctx := c.Request.Context()

	events, err := h.eventsRepo.GetByTarget(ctx, targetID, from, to, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch scaling events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"target_id": targetID,
		"from":      from,
		"to":        to,
		"data":      events,
		"count":     len(events),
	})
}

func (h *EventsHandler) GetScalingStats(c *gin.Context) {
	targetID := c.Param("id")

	if err := validation.ValidateTargetID(targetID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	from, to := h.parseTimeRange(c)
	ctx := c.Request.Context()

	stats, err := h.eventsRepo.GetStats(ctx, targetID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch scaling stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *EventsHandler) GetRecentEvents(c *gin.Context) {
	limit := h.parseLimit(c, 20)
	ctx := c.Request.Context()

	events, err := h.eventsRepo.GetRecent(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch recent events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  events,
		"count": len(events),
	})
}

func (h *EventsHandler) parseTimeRange(c *gin.Context) (time.Time, time.Time) {
	to := time.Now()
	from := to.Add(-1 * time.Hour) // Default: last hour

	if fromStr := c.Query("from"); fromStr != "" {
		if parsed, err := time.Parse(time.RFC3339, fromStr); err == nil {
			from = parsed
		}
	}

	if toStr := c.Query("to"); toStr != "" {
		if parsed, err := time.Parse(time.RFC3339, toStr); err == nil {
			to = parsed
		}
	}

	// Handle relative time (e.g., "1h", "24h", "7d")
	if rangeStr := c.Query("range"); rangeStr != "" {
		duration := h.parseDuration(rangeStr)
		from = to.Add(-duration)
	}

	return from, to
}

func (h *EventsHandler) parseLimit(c *gin.Context, defaultLimit int) int {
	maxLimit := h.getMaxLimit()
	limit := defaultLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > maxLimit {
				limit = maxLimit
			}
		}
	}
	return limit
}

func (h *EventsHandler) parseDuration(s string) time.Duration {
	if len(s) < 2 {
		return time.Hour
	}

	unit := s[len(s)-1]
	valueStr := s[:len(s)-1]
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return time.Hour
	}

	switch unit {
	case 'm':
		return time.Duration(value) * time.Minute
	case 'h':
		return time.Duration(value) * time.Hour
	case 'd':
		return time.Duration(value) * 24 * time.Hour
	default:
		return time.Hour
	}
}
