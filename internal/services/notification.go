package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangang/taskflow/internal/models"
	"github.com/huangang/taskflow/pkg/logger"
	"github.com/huangang/taskflow/pkg/response"
	"gorm.io/gorm"
)

// NotificationService turns queued jobs into inbox entries and serves the inbox.
type NotificationService struct {
	db     *gorm.DB
	events *EventHub
	now    func() time.Time
}

func NewNotificationService(db *gorm.DB, hub *EventHub) *NotificationService {
	return &NotificationService{db: db, events: hub, now: time.Now}
}

func (s *NotificationService) SetClock(now func() time.Time) {
	s.now = now
}

type NotificationListRequest struct {
	Page       int  `form:"page"`
	Size       int  `form:"size"`
	UnreadOnly bool `form:"unreadOnly"`
}

// Process is the JobProcessor for both queue implementations. Jobs for
// tasks that no longer exist are dropped.
func (s *NotificationService) Process(ctx context.Context, job *NotificationJob) error {
	db := s.db.WithContext(ctx)

	var task models.Task
	if err := db.First(&task, job.TaskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Debug().Uint("task_id", job.TaskID).Msg("task gone, notification dropped")
			return nil
		}
		return err
	}

	var project models.Project
	if err := db.Select("id", "name").First(&project, task.ProjectID).Error; err != nil {
		return err
	}

	n := models.Notification{
		UserID:    job.UserID,
		TaskID:    &task.ID,
		ProjectID: &project.ID,
	}

	switch job.Type {
	case JobTypeTaskAssigned:
		actor := "Someone"
		var u models.User
		if job.ActorID != 0 && db.Select("id", "full_name").First(&u, job.ActorID).Error == nil {
			actor = u.FullName
		}
		n.Type = models.NotificationTaskAssigned
		n.Title = "New task assigned"
		n.Message = fmt.Sprintf("%s assigned you \"%s\" in %s", actor, task.Title, project.Name)
	case JobTypeTaskDue:
		if task.Status == models.TaskStatusDone || task.Deadline == nil {
			return nil
		}
		sent, err := s.dueReminderSentToday(db, job.UserID, task.ID)
		if err != nil {
			return err
		}
		if sent {
			return nil
		}
		n.Type = models.NotificationTaskDue
		n.Title = "Task due soon"
		n.Message = fmt.Sprintf("\"%s\" in %s is due %s", task.Title, project.Name, task.Deadline.UTC().Format(time.RFC1123))
	default:
		return fmt.Errorf("unknown notification job type %q", job.Type)
	}

	if err := db.Create(&n).Error; err != nil {
		return err
	}

	if job.Type == JobTypeTaskDue && s.events != nil {
		s.events.Publish(NewTaskEvent(EventTaskDue, &task, 0))
	}
	return nil
}

func (s *NotificationService) dueReminderSentToday(db *gorm.DB, userID, taskID uint) (bool, error) {
	var count int64
	err := db.Model(&models.Notification{}).
		Where("user_id = ? AND task_id = ? AND type = ? AND created_at >= ?",
			userID, taskID, models.NotificationTaskDue, startOfDay(s.now()).UTC()).
		Count(&count).Error
	return count > 0, err
}

func (s *NotificationService) List(userID uint, req *NotificationListRequest) (*Page[models.Notification], error) {
	page := PageRequest{Page: req.Page, Size: req.Size}.Normalize()

	query := s.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if req.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.Notification
	if err := query.Order("created_at DESC, id DESC").Offset(page.Offset()).Limit(page.Size).Find(&items).Error; err != nil {
		return nil, err
	}

	return NewPage(items, page, total), nil
}

func (s *NotificationService) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkRead fails with NOT_FOUND for notifications of other users.
func (s *NotificationService) MarkRead(userID, id uint) error {
	result := s.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": s.now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return response.NewNotFound("notification not found")
	}
	return nil
}

func (s *NotificationService) MarkAllRead(userID uint) (int64, error) {
	result := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": s.now().UTC()})
	return result.RowsAffected, result.Error
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
