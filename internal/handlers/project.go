package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskflow/internal/middleware"
	"github.com/huangang/taskflow/internal/services"
	"github.com/huangang/taskflow/pkg/response"
)

type ProjectHandler struct {
	projectService *services.ProjectService
}

func NewProjectHandler(projectService *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// Create creates a project owned by the caller
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req services.CreateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.projectService.Create(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, project)
}

// List returns the caller's projects
// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projectService.List(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, projects)
}

// GetByID returns project detail with members
// GET /api/projects/:id
func (h *ProjectHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id", "project id")
	if !ok {
		return
	}

	project, err := h.projectService.GetByID(middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, project)
}

// Update changes name and description
// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id", "project id")
	if !ok {
		return
	}

	var req services.UpdateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.projectService.Update(middleware.GetUserID(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, project)
}

// Delete removes a project with its members and tasks
// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id", "project id")
	if !ok {
		return
	}

	if err := h.projectService.Delete(middleware.GetUserID(c), id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
