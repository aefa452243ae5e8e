package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskflow/internal/middleware"
	"github.com/huangang/taskflow/internal/services"
	"github.com/huangang/taskflow/pkg/response"
)

// ProjectMemberHandler manages project memberships. Only the owner may add
// or remove members; any member may list them.
type ProjectMemberHandler struct {
	projectService *services.ProjectService
}

func NewProjectMemberHandler(projectService *services.ProjectService) *ProjectMemberHandler {
	return &ProjectMemberHandler{projectService: projectService}
}

// AddMember adds a user to the project
// POST /api/projects/:id/members
func (h *ProjectMemberHandler) AddMember(c *gin.Context) {
	id, ok := parseID(c, "id", "project id")
	if !ok {
		return
	}

	var req services.AddMemberRequest
	if !bindJSON(c, &req) {
		return
	}

	member, err := h.projectService.AddMember(middleware.GetUserID(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, member)
}

// RemoveMember removes a user from the project
// DELETE /api/projects/:id/members/:userId
func (h *ProjectMemberHandler) RemoveMember(c *gin.Context) {
	id, ok := parseID(c, "id", "project id")
	if !ok {
		return
	}
	memberID, ok := parseID(c, "userId", "user id")
	if !ok {
		return
	}

	if err := h.projectService.RemoveMember(middleware.GetUserID(c), id, memberID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// ListMembers returns the project's members
// GET /api/projects/:id/members
func (h *ProjectMemberHandler) ListMembers(c *gin.Context) {
	id, ok := parseID(c, "id", "project id")
	if !ok {
		return
	}

	members, err := h.projectService.ListMembers(middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, members)
}
