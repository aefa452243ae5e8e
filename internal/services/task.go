package services

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/huangang/taskflow/internal/models"
	"github.com/huangang/taskflow/pkg/logger"
	"github.com/huangang/taskflow/pkg/response"
	"gorm.io/gorm"
)

type TaskService struct {
	db     *gorm.DB
	access *AccessService
	events *EventHub
	queue  TaskQueue
	now    func() time.Time
}

func NewTaskService(db *gorm.DB) *TaskService {
	return &TaskService{
		db:     db,
		access: NewAccessService(db),
		now:    time.Now,
	}
}

// SetEventHub enables publishing of task events.
func (s *TaskService) SetEventHub(hub *EventHub) {
	s.events = hub
}

// SetTaskQueue enables assignment notifications.
func (s *TaskService) SetTaskQueue(queue TaskQueue) {
	s.queue = queue
}

func (s *TaskService) SetClock(now func() time.Time) {
	s.now = now
}

type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,min=3,max=200"`
	Description string     `json:"description"`
	Status      string     `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS REVIEW DONE"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	AssigneeID  *uint      `json:"assigneeId"`
	Deadline    *time.Time `json:"deadline"`
}

// UpdateTaskRequest fields are applied only when present: non-empty strings
// and non-null pointers. A field cannot be cleared through an update.
type UpdateTaskRequest struct {
	Title       string     `json:"title" validate:"omitempty,min=3,max=200"`
	Description string     `json:"description"`
	Status      string     `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS REVIEW DONE"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	AssigneeID  *uint      `json:"assigneeId"`
	Deadline    *time.Time `json:"deadline"`
}

// TaskSearchRequest is the query of /tasks/search. Every filter is optional.
type TaskSearchRequest struct {
	PageRequest
	Keyword    string `form:"keyword"`
	Status     string `form:"status"`
	Priority   string `form:"priority"`
	AssigneeID *uint  `form:"assigneeId"`
	ProjectID  *uint  `form:"projectId"`
}

// TaskFilter narrows the project scoped listings.
type TaskFilter struct {
	Status   string
	Priority string
	Overdue  bool
}

type ProjectSummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type TaskResponse struct {
	ID          uint           `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	Priority    string         `json:"priority"`
	Deadline    *time.Time     `json:"deadline"`
	IsOverdue   bool           `json:"isOverdue"`
	Project     ProjectSummary `json:"project"`
	Assignee    *UserSummary   `json:"assignee"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

type TaskListItem struct {
	ID           uint       `json:"id"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	Deadline     *time.Time `json:"deadline"`
	IsOverdue    bool       `json:"isOverdue" gorm:"-"`
	ProjectID    uint       `json:"projectId"`
	ProjectName  string     `json:"projectName"`
	AssigneeID   *uint      `json:"assigneeId"`
	AssigneeName *string    `json:"assigneeName"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// ParseTaskStatus accepts any letter case and returns the canonical status.
func ParseTaskStatus(s string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if !models.IsValidTaskStatus(v) {
		return "", fieldError("status", "must be one of TODO IN_PROGRESS REVIEW DONE")
	}
	return v, nil
}

// ParseTaskPriority accepts any letter case and returns the canonical priority.
func ParseTaskPriority(p string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(p))
	if !models.IsValidTaskPriority(v) {
		return "", fieldError("priority", "must be one of LOW MEDIUM HIGH CRITICAL")
	}
	return v, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (s *TaskService) Create(userID, projectID uint, req *CreateTaskRequest) (*TaskResponse, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Status = strings.ToUpper(strings.TrimSpace(req.Status))
	req.Priority = strings.ToUpper(strings.TrimSpace(req.Priority))
	if err := Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.access.RequireMember(userID, projectID); err != nil {
		return nil, err
	}
	if req.AssigneeID != nil {
		if err := s.access.RequireAssignable(projectID, *req.AssigneeID); err != nil {
			return nil, err
		}
	}

	task := models.Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Deadline:    utcPtr(req.Deadline),
		ProjectID:   projectID,
		AssigneeID:  req.AssigneeID,
	}
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}

	if err := s.db.Create(&task).Error; err != nil {
		return nil, err
	}

	s.publish(EventTaskCreated, &task, userID)
	if task.AssigneeID != nil {
		s.notifyAssigned(&task, userID)
	}

	return s.toResponse(&task)
}

func (s *TaskService) GetByID(userID, taskID uint) (*TaskResponse, error) {
	task, err := s.loadAccessible(userID, taskID)
	if err != nil {
		return nil, err
	}
	return s.toResponse(task)
}

// Update applies the present fields of req.
func (s *TaskService) Update(userID, taskID uint, req *UpdateTaskRequest) (*TaskResponse, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Status = strings.ToUpper(strings.TrimSpace(req.Status))
	req.Priority = strings.ToUpper(strings.TrimSpace(req.Priority))
	if err := Validate(req); err != nil {
		return nil, err
	}

	task, err := s.loadAccessible(userID, taskID)
	if err != nil {
		return nil, err
	}
	if req.AssigneeID != nil {
		if err := s.access.RequireAssignable(task.ProjectID, *req.AssigneeID); err != nil {
			return nil, err
		}
	}

	previousAssignee := copyID(task.AssigneeID)

	updates := make(map[string]interface{})
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.Status != "" {
		updates["status"] = req.Status
	}
	if req.Priority != "" {
		updates["priority"] = req.Priority
	}
	if req.Deadline != nil {
		updates["deadline"] = req.Deadline.UTC()
	}
	if req.AssigneeID != nil {
		updates["assignee_id"] = *req.AssigneeID
	}

	if len(updates) > 0 {
		if err := s.db.Model(task).Updates(updates).Error; err != nil {
			return nil, err
		}
		if err := s.db.First(task, task.ID).Error; err != nil {
			return nil, err
		}
		s.publish(EventTaskUpdated, task, userID)
		if assigneeChanged(previousAssignee, task.AssigneeID) {
			s.notifyAssigned(task, userID)
		}
	}

	return s.toResponse(task)
}

func (s *TaskService) Delete(userID, taskID uint) error {
	task, err := s.loadAccessible(userID, taskID)
	if err != nil {
		return err
	}

	result := s.db.Delete(task)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return response.NewNotFound("task not found")
	}

	s.publish(EventTaskDeleted, task, userID)
	return nil
}

// Assign sets the assignee, who must be a member of the task's project.
func (s *TaskService) Assign(userID, taskID, assigneeID uint) (*TaskResponse, error) {
	task, err := s.loadAccessible(userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireAssignable(task.ProjectID, assigneeID); err != nil {
		return nil, err
	}

	previousAssignee := copyID(task.AssigneeID)
	if err := s.db.Model(task).Update("assignee_id", assigneeID).Error; err != nil {
		return nil, err
	}
	if err := s.db.First(task, task.ID).Error; err != nil {
		return nil, err
	}

	s.publish(EventTaskAssigned, task, userID)
	if assigneeChanged(previousAssignee, task.AssigneeID) {
		s.notifyAssigned(task, userID)
	}

	return s.toResponse(task)
}

// ListProjectTasks returns the project's tasks matching f, newest first.
func (s *TaskService) ListProjectTasks(userID, projectID uint, f TaskFilter) ([]TaskListItem, error) {
	if _, err := s.access.RequireMember(userID, projectID); err != nil {
		return nil, err
	}

	var items []TaskListItem
	err := s.readOnly(func(tx *gorm.DB) error {
		var err error
		items, err = s.scan(s.projectQuery(tx, projectID, f).Order("t.created_at DESC, t.id DESC"))
		return err
	})
	return items, err
}

func (s *TaskService) ListProjectTasksPaged(userID, projectID uint, f TaskFilter, page PageRequest) (*Page[TaskListItem], error) {
	if _, err := s.access.RequireMember(userID, projectID); err != nil {
		return nil, err
	}

	page = page.Normalize()
	var result *Page[TaskListItem]
	err := s.readOnly(func(tx *gorm.DB) error {
		var err error
		result, err = s.scanPage(s.projectQuery(tx, projectID, f), page)
		return err
	})
	return result, err
}

// ListMyTasks returns the tasks of every project userID is a member of.
func (s *TaskService) ListMyTasks(userID uint) ([]TaskListItem, error) {
	var items []TaskListItem
	err := s.readOnly(func(tx *gorm.DB) error {
		var err error
		items, err = s.scan(s.memberQuery(tx, userID).Order("t.created_at DESC, t.id DESC"))
		return err
	})
	return items, err
}

func (s *TaskService) ListMyTasksPaged(userID uint, page PageRequest) (*Page[TaskListItem], error) {
	page = page.Normalize()
	var result *Page[TaskListItem]
	err := s.readOnly(func(tx *gorm.DB) error {
		var err error
		result, err = s.scanPage(s.memberQuery(tx, userID), page)
		return err
	})
	return result, err
}

// Search combines the optional filters of req, always restricted to the
// caller's projects. A projectId outside them yields an empty page.
func (s *TaskService) Search(userID uint, req *TaskSearchRequest) (*Page[TaskListItem], error) {
	status, priority := "", ""
	if strings.TrimSpace(req.Status) != "" {
		v, err := ParseTaskStatus(req.Status)
		if err != nil {
			return nil, err
		}
		status = v
	}
	if strings.TrimSpace(req.Priority) != "" {
		v, err := ParseTaskPriority(req.Priority)
		if err != nil {
			return nil, err
		}
		priority = v
	}

	page := req.PageRequest.Normalize()
	var result *Page[TaskListItem]
	err := s.readOnly(func(tx *gorm.DB) error {
		q := s.memberQuery(tx, userID)
		if kw := strings.TrimSpace(req.Keyword); kw != "" {
			// fold pattern and columns with the same LOWER
			like := "%" + escapeLike(kw) + "%"
			q = q.Where("(LOWER(t.title) LIKE LOWER(?) ESCAPE '!' OR LOWER(t.description) LIKE LOWER(?) ESCAPE '!')", like, like)
		}
		if status != "" {
			q = q.Where("t.status = ?", status)
		}
		if priority != "" {
			q = q.Where("t.priority = ?", priority)
		}
		if req.AssigneeID != nil {
			q = q.Where("t.assignee_id = ?", *req.AssigneeID)
		}
		if req.ProjectID != nil {
			q = q.Where("t.project_id = ?", *req.ProjectID)
		}
		var err error
		result, err = s.scanPage(q, page)
		return err
	})
	return result, err
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

func (s *TaskService) readOnly(fn func(tx *gorm.DB) error) error {
	return s.db.Transaction(fn, &sql.TxOptions{ReadOnly: true})
}

func (s *TaskService) baseQuery(tx *gorm.DB) *gorm.DB {
	return tx.Table("tasks t").
		Joins("JOIN projects p ON p.id = t.project_id").
		Joins("LEFT JOIN users u ON u.id = t.assignee_id")
}

func (s *TaskService) projectQuery(tx *gorm.DB, projectID uint, f TaskFilter) *gorm.DB {
	q := s.baseQuery(tx).Where("t.project_id = ?", projectID)
	if f.Status != "" {
		q = q.Where("t.status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("t.priority = ?", f.Priority)
	}
	if f.Overdue {
		q = q.Where("t.deadline IS NOT NULL AND t.deadline < ? AND t.status <> ?", s.now().UTC(), models.TaskStatusDone)
	}
	return q
}

func (s *TaskService) memberQuery(tx *gorm.DB, userID uint) *gorm.DB {
	return s.baseQuery(tx).Where("t.project_id IN (?)",
		tx.Model(&models.ProjectMember{}).Select("project_id").Where("user_id = ?", userID))
}

const taskListColumns = `t.id, t.title, t.status, t.priority, t.deadline, t.project_id,
	p.name AS project_name, t.assignee_id, u.full_name AS assignee_name, t.created_at, t.updated_at`

func (s *TaskService) scan(q *gorm.DB) ([]TaskListItem, error) {
	items := []TaskListItem{}
	if err := q.Select(taskListColumns).Scan(&items).Error; err != nil {
		return nil, err
	}
	s.markOverdue(items)
	return items, nil
}

func (s *TaskService) scanPage(q *gorm.DB, page PageRequest) (*Page[TaskListItem], error) {
	paged, total, err := paginate(q, page, "t")
	if err != nil {
		return nil, err
	}
	items, err := s.scan(paged)
	if err != nil {
		return nil, err
	}
	return NewPage(items, page, total), nil
}

func (s *TaskService) markOverdue(items []TaskListItem) {
	now := s.now()
	for i := range items {
		t := models.Task{Deadline: items[i].Deadline, Status: items[i].Status}
		items[i].IsOverdue = t.IsOverdue(now)
	}
}

// loadAccessible loads the task and checks membership of its project.
func (s *TaskService) loadAccessible(userID, taskID uint) (*models.Task, error) {
	var task models.Task
	if err := s.db.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("task not found")
		}
		return nil, err
	}
	if _, err := s.access.RequireMember(userID, task.ProjectID); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) toResponse(task *models.Task) (*TaskResponse, error) {
	var project models.Project
	if err := s.db.Select("id", "name").First(&project, task.ProjectID).Error; err != nil {
		return nil, err
	}

	resp := &TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		Deadline:    task.Deadline,
		IsOverdue:   task.IsOverdue(s.now()),
		Project:     ProjectSummary{ID: project.ID, Name: project.Name},
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}

	if task.AssigneeID != nil {
		var assignee models.User
		err := s.db.First(&assignee, *task.AssigneeID).Error
		switch {
		case err == nil:
			resp.Assignee = &UserSummary{ID: assignee.ID, Email: assignee.Email, FullName: assignee.FullName}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}
	}

	return resp, nil
}

func copyID(id *uint) *uint {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func assigneeChanged(before, after *uint) bool {
	if after == nil {
		return false
	}
	return before == nil || *before != *after
}

func (s *TaskService) publish(eventType string, task *models.Task, actorID uint) {
	if s.events == nil {
		return
	}
	s.events.Publish(NewTaskEvent(eventType, task, actorID))
}

func (s *TaskService) notifyAssigned(task *models.Task, actorID uint) {
	if s.queue == nil || task.AssigneeID == nil || *task.AssigneeID == actorID {
		return
	}
	job := &NotificationJob{
		Type:      JobTypeTaskAssigned,
		UserID:    *task.AssigneeID,
		TaskID:    task.ID,
		ProjectID: task.ProjectID,
		ActorID:   actorID,
	}
	if err := s.queue.Enqueue(job); err != nil {
		logger.Warn().Err(err).Uint("task_id", task.ID).Msg("failed to enqueue assignment notification")
	}
}
