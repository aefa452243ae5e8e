package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskflow/internal/models"
	"github.com/huangang/taskflow/internal/services"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthHandler reports the state of the database, the notification queue
// and, when configured, Redis.
type HealthHandler struct {
	db    *gorm.DB
	queue services.TaskQueue
	hub   *services.EventHub
	redis *redis.Client
}

// NewHealthHandler builds the handler. rdb may be nil when Redis is disabled.
func NewHealthHandler(db *gorm.DB, queue services.TaskQueue, hub *services.EventHub, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, hub: hub, redis: rdb}
}

// CheckHealth returns the health status of all subsystems
// GET /health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"

	dbStatus := "ok"
	if err := models.Ping(h.db); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	components := gin.H{
		"database":    dbStatus,
		"queue_mode":  queueMode,
		"sse_clients": h.hub.ClientCount(),
	}

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		redisStatus := "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "error: " + err.Error()
			if overall == "healthy" {
				overall = "degraded"
			}
		}
		components["redis"] = redisStatus
	}

	status := http.StatusOK
	if overall == "unhealthy" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":     overall,
		"service":    "taskflow",
		"components": components,
	})
}
