package services

import (
	"time"

	"github.com/huangang/taskflow/internal/config"
	"github.com/huangang/taskflow/internal/models"
	"github.com/huangang/taskflow/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// ReminderService runs the periodic background jobs: due date reminders and
// system log retention.
type ReminderService struct {
	db            *gorm.DB
	queue         TaskQueue
	logs          *SystemLogService
	cfg           config.SchedulerConfig
	cronScheduler *cron.Cron
	now           func() time.Time
}

func NewReminderService(db *gorm.DB, queue TaskQueue, cfg config.SchedulerConfig) *ReminderService {
	return &ReminderService{
		db:    db,
		queue: queue,
		logs:  NewSystemLogService(db),
		cfg:   cfg,
		now:   time.Now,
	}
}

func (s *ReminderService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *ReminderService) StartScheduler() error {
	s.cronScheduler = cron.New()

	if s.cfg.ReminderCron != "" {
		if _, err := s.cronScheduler.AddFunc(s.cfg.ReminderCron, s.runReminders); err != nil {
			return err
		}
		logger.Infof("[Reminder] Scheduled due reminders (cron: %s)", s.cfg.ReminderCron)
	}
	if s.cfg.LogCleanupCron != "" {
		if _, err := s.cronScheduler.AddFunc(s.cfg.LogCleanupCron, s.runLogCleanup); err != nil {
			return err
		}
	}

	s.cronScheduler.Start()
	return nil
}

func (s *ReminderService) StopScheduler() {
	if s.cronScheduler != nil {
		<-s.cronScheduler.Stop().Done()
	}
}

func (s *ReminderService) runReminders() {
	n, err := s.EnqueueDueReminders()
	if err != nil {
		logger.Error().Err(err).Msg("[Reminder] Failed to enqueue due reminders")
		return
	}
	if n > 0 {
		logger.Infof("[Reminder] Enqueued %d due reminders", n)
	}
}

func (s *ReminderService) runLogCleanup() {
	deleted, err := s.logs.CleanupOldLogs(s.cfg.LogRetentionDays)
	if err != nil {
		logger.Error().Err(err).Msg("[SystemLog] Failed to cleanup old logs")
		return
	}
	if deleted > 0 {
		logger.Infof("[SystemLog] Cleaned up %d logs older than %d days", deleted, s.cfg.LogRetentionDays)
	}
}

type dueTask struct {
	ID         uint
	ProjectID  uint
	AssigneeID uint
}

// EnqueueDueReminders enqueues one due job per open assigned task whose
// deadline falls within the reminder window, skipping tasks whose assignee
// already got a reminder today.
func (s *ReminderService) EnqueueDueReminders() (int, error) {
	now := s.now()
	window := s.cfg.ReminderWindowHrs
	if window <= 0 {
		window = 24
	}

	remindedToday := s.db.Model(&models.Notification{}).
		Select("task_id").
		Where("type = ? AND task_id IS NOT NULL AND created_at >= ? AND user_id = tasks.assignee_id", models.NotificationTaskDue, startOfDay(now).UTC())

	var tasks []dueTask
	err := s.db.Model(&models.Task{}).
		Select("id, project_id, assignee_id").
		Where("assignee_id IS NOT NULL AND status <> ?", models.TaskStatusDone).
		Where("deadline IS NOT NULL AND deadline >= ? AND deadline <= ?", now.UTC(), now.Add(time.Duration(window)*time.Hour).UTC()).
		Where("id NOT IN (?)", remindedToday).
		Order("deadline").
		Scan(&tasks).Error
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, t := range tasks {
		job := &NotificationJob{
			Type:      JobTypeTaskDue,
			UserID:    t.AssigneeID,
			TaskID:    t.ID,
			ProjectID: t.ProjectID,
		}
		if err := s.queue.Enqueue(job); err != nil {
			logger.Warn().Err(err).Uint("task_id", t.ID).Msg("[Reminder] Failed to enqueue due reminder")
			continue
		}
		enqueued++
	}
	return enqueued, nil
}
