package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskflow/internal/middleware"
	"github.com/huangang/taskflow/internal/services"
	"github.com/huangang/taskflow/pkg/response"
)

type StatsHandler struct {
	statsService *services.StatsService
}

func NewStatsHandler(statsService *services.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// Dashboard returns the caller's dashboard counters
// GET /api/stats/dashboard
func (h *StatsHandler) Dashboard(c *gin.Context) {
	stats, err := h.statsService.Dashboard(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// AllProjects returns stats for every project the caller belongs to
// GET /api/stats/projects
func (h *StatsHandler) AllProjects(c *gin.Context) {
	stats, err := h.statsService.AllProjectStats(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// GET /api/stats/projects/:id
func (h *StatsHandler) Project(c *gin.Context) {
	id, ok := parseID(c, "id", "project id")
	if !ok {
		return
	}

	stats, err := h.statsService.ProjectStats(middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// GET /api/stats/users/:id
func (h *StatsHandler) User(c *gin.Context) {
	id, ok := parseID(c, "id", "user id")
	if !ok {
		return
	}

	stats, err := h.statsService.UserStats(middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}
