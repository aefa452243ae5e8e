package models

import "time"

const (
	NotificationTaskAssigned = "TASK_ASSIGNED"
	NotificationTaskDue      = "TASK_DUE"
)

// Notification is an inbox entry for a single user.
type Notification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"userId"`
	User      *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Type      string     `gorm:"size:30;not null;index" json:"type"`
	TaskID    *uint      `gorm:"index" json:"taskId"`
	Task      *Task      `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"-"`
	ProjectID *uint      `json:"projectId"`
	Title     string     `gorm:"size:255" json:"title"`
	Message   string     `gorm:"type:text" json:"message"`
	IsRead    bool       `gorm:"default:false;index" json:"isRead"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"createdAt"`
}

func (Notification) TableName() string { return "notifications" }
