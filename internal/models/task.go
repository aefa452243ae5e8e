package models

import "time"

const (
	TaskStatusTodo       = "TODO"
	TaskStatusInProgress = "IN_PROGRESS"
	TaskStatusReview     = "REVIEW"
	TaskStatusDone       = "DONE"
)

const (
	TaskPriorityLow      = "LOW"
	TaskPriorityMedium   = "MEDIUM"
	TaskPriorityHigh     = "HIGH"
	TaskPriorityCritical = "CRITICAL"
)

var (
	TaskStatuses   = []string{TaskStatusTodo, TaskStatusInProgress, TaskStatusReview, TaskStatusDone}
	TaskPriorities = []string{TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityCritical}
)

// Task is a unit of work inside a project. The assignee, when set, must be a
// member of the project.
type Task struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Status      string     `gorm:"size:20;not null;default:TODO;index" json:"status"`
	Priority    string     `gorm:"size:20;not null;default:MEDIUM;index" json:"priority"`
	Deadline    *time.Time `gorm:"index" json:"deadline"`
	ProjectID   uint       `gorm:"index;not null" json:"projectId"`
	Project     *Project   `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	AssigneeID  *uint      `gorm:"index" json:"assigneeId"`
	Assignee    *User      `gorm:"foreignKey:AssigneeID;constraint:OnDelete:SET NULL" json:"-"`
	CreatedAt   time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (Task) TableName() string { return "tasks" }

// IsOverdue reports whether the deadline has passed at now and the task is
// still open. It is never stored.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Deadline != nil && t.Deadline.Before(now) && t.Status != TaskStatusDone
}

func IsValidTaskStatus(s string) bool {
	for _, v := range TaskStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func IsValidTaskPriority(p string) bool {
	for _, v := range TaskPriorities {
		if v == p {
			return true
		}
	}
	return false
}
