package handlers

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/huangang/taskflow/internal/middleware"
	"github.com/huangang/taskflow/internal/services"
	"github.com/huangang/taskflow/internal/utils"
	"github.com/huangang/taskflow/pkg/logger"
	"github.com/huangang/taskflow/pkg/response"
)

// SSEHandler streams task events to project members.
type SSEHandler struct {
	hub    *services.EventHub
	access *services.AccessService
	users  middleware.UserLookup
}

func NewSSEHandler(hub *services.EventHub, access *services.AccessService, users middleware.UserLookup) *SSEHandler {
	return &SSEHandler{hub: hub, access: access, users: users}
}

// resolveUser accepts the identity set by the auth middleware or, since
// EventSource cannot send headers, a ?token= query parameter.
func (h *SSEHandler) resolveUser(c *gin.Context) (uint, bool) {
	if id := middleware.GetUserID(c); id != 0 {
		return id, true
	}

	token := c.Query("token")
	if token == "" {
		return 0, false
	}
	claims, err := utils.ParseToken(token)
	if err != nil {
		logger.Debug().Err(err).Msg("SSE token rejected")
		return 0, false
	}
	user, err := h.users.FindUser(claims.UserID)
	if err != nil {
		return 0, false
	}
	return user.ID, true
}

// StreamTaskEvents handles SSE connections for task updates
// GET /api/events/tasks
func (h *SSEHandler) StreamTaskEvents(c *gin.Context) {
	userID, ok := h.resolveUser(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID := uuid.New().String()

	events := h.hub.Subscribe(clientID)
	defer h.hub.Unsubscribe(clientID)

	logger.Info().Str("client_id", clientID).Uint("user_id", userID).Int("total", h.hub.ClientCount()).Msg("SSE client connected")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			if !h.access.CanAccessProject(userID, event.ProjectID) {
				return true
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error().Err(err).Msg("SSE marshal error")
				return true
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			c.Writer.Flush()
			return true
		case <-c.Request.Context().Done():
			logger.Info().Str("client_id", clientID).Msg("SSE client disconnected")
			return false
		}
	})
}
