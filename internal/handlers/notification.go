package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskflow/internal/middleware"
	"github.com/huangang/taskflow/internal/services"
	"github.com/huangang/taskflow/pkg/response"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// List returns the caller's notifications, newest first, with the unread count
// GET /api/notifications?page=&size=&unreadOnly=
func (h *NotificationHandler) List(c *gin.Context) {
	var req services.NotificationListRequest
	if !bindQuery(c, &req) {
		return
	}
	userID := middleware.GetUserID(c)

	page, err := h.notificationService.List(userID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	unread, err := h.notificationService.UnreadCount(userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"notifications": page,
		"unreadCount":   unread,
	})
}

// PUT /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := parseID(c, "id", "notification id")
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(middleware.GetUserID(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "notification marked as read"})
}

// PUT /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	updated, err := h.notificationService.MarkAllRead(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"updated": updated})
}
