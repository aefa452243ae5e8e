package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskflow/internal/middleware"
	"github.com/huangang/taskflow/internal/services"
	"github.com/huangang/taskflow/pkg/response"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// Create adds a task to a project
// POST /api/projects/:id/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	projectID, ok := parseID(c, "id", "project id")
	if !ok {
		return
	}

	var req services.CreateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.Create(middleware.GetUserID(c), projectID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, task)
}

// GetByID returns a task
// GET /api/tasks/:id
func (h *TaskHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id", "task id")
	if !ok {
		return
	}

	task, err := h.taskService.GetByID(middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, task)
}

// Update applies a partial update to a task
// PUT /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id", "task id")
	if !ok {
		return
	}

	var req services.UpdateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.Update(middleware.GetUserID(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, task)
}

// Delete removes a task
// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id", "task id")
	if !ok {
		return
	}

	if err := h.taskService.Delete(middleware.GetUserID(c), id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Assign sets the task's assignee
// PUT /api/tasks/:id/assign/:assigneeId
func (h *TaskHandler) Assign(c *gin.Context) {
	id, ok := parseID(c, "id", "task id")
	if !ok {
		return
	}
	assigneeID, ok := parseID(c, "assigneeId", "assignee id")
	if !ok {
		return
	}

	task, err := h.taskService.Assign(middleware.GetUserID(c), id, assigneeID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, task)
}

// ListByProject returns every task of a project
// GET /api/projects/:id/tasks
func (h *TaskHandler) ListByProject(c *gin.Context) {
	h.listProject(c, services.TaskFilter{}, false)
}

// GET /api/projects/:id/tasks/paged
func (h *TaskHandler) ListByProjectPaged(c *gin.Context) {
	h.listProject(c, services.TaskFilter{}, true)
}

// ListByStatus filters a project's tasks by status (any letter case)
// GET /api/projects/:id/tasks/status/:status
func (h *TaskHandler) ListByStatus(c *gin.Context) {
	h.listByStatus(c, false)
}

// GET /api/projects/:id/tasks/status/:status/paged
func (h *TaskHandler) ListByStatusPaged(c *gin.Context) {
	h.listByStatus(c, true)
}

// ListByPriority filters a project's tasks by priority (any letter case)
// GET /api/projects/:id/tasks/priority/:priority
func (h *TaskHandler) ListByPriority(c *gin.Context) {
	h.listByPriority(c, false)
}

// GET /api/projects/:id/tasks/priority/:priority/paged
func (h *TaskHandler) ListByPriorityPaged(c *gin.Context) {
	h.listByPriority(c, true)
}

// ListOverdue returns a project's overdue tasks
// GET /api/projects/:id/tasks/overdue
func (h *TaskHandler) ListOverdue(c *gin.Context) {
	h.listProject(c, services.TaskFilter{Overdue: true}, false)
}

// GET /api/projects/:id/tasks/overdue/paged
func (h *TaskHandler) ListOverduePaged(c *gin.Context) {
	h.listProject(c, services.TaskFilter{Overdue: true}, true)
}

func (h *TaskHandler) listByStatus(c *gin.Context, paged bool) {
	status, err := services.ParseTaskStatus(c.Param("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.listProject(c, services.TaskFilter{Status: status}, paged)
}

func (h *TaskHandler) listByPriority(c *gin.Context, paged bool) {
	priority, err := services.ParseTaskPriority(c.Param("priority"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.listProject(c, services.TaskFilter{Priority: priority}, paged)
}

func (h *TaskHandler) listProject(c *gin.Context, filter services.TaskFilter, paged bool) {
	projectID, ok := parseID(c, "id", "project id")
	if !ok {
		return
	}
	userID := middleware.GetUserID(c)

	if !paged {
		tasks, err := h.taskService.ListProjectTasks(userID, projectID, filter)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, tasks)
		return
	}

	var page services.PageRequest
	if !bindQuery(c, &page) {
		return
	}
	result, err := h.taskService.ListProjectTasksPaged(userID, projectID, filter, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// MyTasks returns the tasks of every project the caller is a member of
// GET /api/tasks/my-tasks
func (h *TaskHandler) MyTasks(c *gin.Context) {
	tasks, err := h.taskService.ListMyTasks(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, tasks)
}

// GET /api/tasks/my-tasks/paged
func (h *TaskHandler) MyTasksPaged(c *gin.Context) {
	var page services.PageRequest
	if !bindQuery(c, &page) {
		return
	}

	result, err := h.taskService.ListMyTasksPaged(middleware.GetUserID(c), page)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Search filters tasks across the caller's projects
// GET /api/tasks/search?keyword=&status=&priority=&assigneeId=&projectId=
func (h *TaskHandler) Search(c *gin.Context) {
	var req services.TaskSearchRequest
	if !bindQuery(c, &req) {
		return
	}

	result, err := h.taskService.Search(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
