package services

import (
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/huangang/taskflow/internal/models"
	"github.com/huangang/taskflow/pkg/response"
	"gorm.io/gorm"
)

// Project status labels.
const (
	ProjectStatusNoTasks = "NO_TASKS"
	ProjectStatusDelayed = "DELAYED"
	ProjectStatusAtRisk  = "AT_RISK"
	ProjectStatusOnTrack = "ON_TRACK"
)

type StatsService struct {
	db     *gorm.DB
	access *AccessService
	now    func() time.Time
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db, access: NewAccessService(db), now: time.Now}
}

func (s *StatsService) SetClock(now func() time.Time) {
	s.now = now
}

type StatusBreakdown struct {
	TodoTasks       int64 `json:"todoTasks"`
	InProgressTasks int64 `json:"inProgressTasks"`
	ReviewTasks     int64 `json:"reviewTasks"`
	DoneTasks       int64 `json:"doneTasks"`
}

type PriorityBreakdown struct {
	LowPriorityTasks      int64 `json:"lowPriorityTasks"`
	MediumPriorityTasks   int64 `json:"mediumPriorityTasks"`
	HighPriorityTasks     int64 `json:"highPriorityTasks"`
	CriticalPriorityTasks int64 `json:"criticalPriorityTasks"`
}

type DashboardStats struct {
	TotalProjects     int64 `json:"totalProjects"`
	ProjectsIOwn      int64 `json:"projectsIOwn"`
	ProjectsAsMember  int64 `json:"projectsAsMember"`
	TotalTasks        int64 `json:"totalTasks"`
	TasksAssignedToMe int64 `json:"tasksAssignedToMe"`
	UnassignedTasks   int64 `json:"unassignedTasks"`
	StatusBreakdown
	PriorityBreakdown
	OverdueTasks     int64   `json:"overdueTasks"`
	DueTodayTasks    int64   `json:"dueTodayTasks"`
	DueThisWeekTasks int64   `json:"dueThisWeekTasks"`
	CompletionRate   float64 `json:"completionRate"`
}

type ProjectStats struct {
	ProjectID      uint   `json:"projectId"`
	ProjectName    string `json:"projectName"`
	TotalTasks     int64  `json:"totalTasks"`
	CompletedTasks int64  `json:"completedTasks"`
	PendingTasks   int64  `json:"pendingTasks"`
	ActiveTasks    int64  `json:"activeTasks"`
	OverdueTasks   int64  `json:"overdueTasks"`
	StatusBreakdown
	PriorityBreakdown
	TotalMembers   int64   `json:"totalMembers"`
	CompletionRate float64 `json:"completionRate"`
	Status         string  `json:"status"`
}

type UserStats struct {
	UserID             uint   `json:"userId"`
	UserName           string `json:"userName"`
	UserEmail          string `json:"userEmail"`
	TotalAssignedTasks int64  `json:"totalAssignedTasks"`
	CompletedTasks     int64  `json:"completedTasks"`
	PendingTasks       int64  `json:"pendingTasks"`
	OverdueTasks       int64  `json:"overdueTasks"`
	StatusBreakdown
	PriorityBreakdown
	CompletionRate float64 `json:"completionRate"`
	OnTimeRate     float64 `json:"onTimeRate"`
	ProjectsCount  int64   `json:"projectsCount"`
}

// taskTally is what every stats view derives its counters from.
type taskTally struct {
	total    int64
	status   StatusBreakdown
	priority PriorityBreakdown
	overdue  int64
}

func (t taskTally) pending() int64 {
	return t.status.TodoTasks + t.status.InProgressTasks + t.status.ReviewTasks
}

type groupCount struct {
	Grp   string
	Total int64
}

func (s *StatsService) readOnly(fn func(tx *gorm.DB) error) error {
	return s.db.Transaction(fn, &sql.TxOptions{ReadOnly: true})
}

// tally counts the tasks selected by scope. scope must be built on tx.
func (s *StatsService) tally(scope *gorm.DB, now time.Time) (taskTally, error) {
	var t taskTally
	base := scope.Session(&gorm.Session{})

	var byStatus []groupCount
	if err := base.Select("status AS grp, COUNT(*) AS total").Group("status").Scan(&byStatus).Error; err != nil {
		return t, err
	}
	for _, g := range byStatus {
		t.total += g.Total
		switch g.Grp {
		case models.TaskStatusTodo:
			t.status.TodoTasks = g.Total
		case models.TaskStatusInProgress:
			t.status.InProgressTasks = g.Total
		case models.TaskStatusReview:
			t.status.ReviewTasks = g.Total
		case models.TaskStatusDone:
			t.status.DoneTasks = g.Total
		}
	}

	var byPriority []groupCount
	if err := base.Select("priority AS grp, COUNT(*) AS total").Group("priority").Scan(&byPriority).Error; err != nil {
		return t, err
	}
	for _, g := range byPriority {
		switch g.Grp {
		case models.TaskPriorityLow:
			t.priority.LowPriorityTasks = g.Total
		case models.TaskPriorityMedium:
			t.priority.MediumPriorityTasks = g.Total
		case models.TaskPriorityHigh:
			t.priority.HighPriorityTasks = g.Total
		case models.TaskPriorityCritical:
			t.priority.CriticalPriorityTasks = g.Total
		}
	}

	err := base.Where("deadline IS NOT NULL AND deadline < ? AND status <> ?", now.UTC(), models.TaskStatusDone).
		Count(&t.overdue).Error
	return t, err
}

// Dashboard summarizes every project userID is a member of.
func (s *StatsService) Dashboard(userID uint) (*DashboardStats, error) {
	now := s.now()
	stats := &DashboardStats{}

	err := s.readOnly(func(tx *gorm.DB) error {
		memberOf := tx.Model(&models.ProjectMember{}).Select("project_id").Where("user_id = ?", userID)

		if err := tx.Model(&models.ProjectMember{}).Where("user_id = ?", userID).Count(&stats.TotalProjects).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Project{}).Where("owner_id = ?", userID).Count(&stats.ProjectsIOwn).Error; err != nil {
			return err
		}
		stats.ProjectsAsMember = stats.TotalProjects - stats.ProjectsIOwn

		scope := tx.Model(&models.Task{}).Where("project_id IN (?)", memberOf)
		t, err := s.tally(scope, now)
		if err != nil {
			return err
		}
		stats.TotalTasks = t.total
		stats.StatusBreakdown = t.status
		stats.PriorityBreakdown = t.priority
		stats.OverdueTasks = t.overdue

		base := scope.Session(&gorm.Session{})
		if err := base.Where("assignee_id = ?", userID).Count(&stats.TasksAssignedToMe).Error; err != nil {
			return err
		}
		if err := base.Where("assignee_id IS NULL").Count(&stats.UnassignedTasks).Error; err != nil {
			return err
		}

		today := startOfDay(now)
		if err := base.Where("deadline >= ? AND deadline < ? AND status <> ?",
			today.UTC(), today.AddDate(0, 0, 1).UTC(), models.TaskStatusDone).
			Count(&stats.DueTodayTasks).Error; err != nil {
			return err
		}
		return base.Where("deadline >= ? AND deadline < ? AND status <> ?",
			today.UTC(), today.AddDate(0, 0, 7).UTC(), models.TaskStatusDone).
			Count(&stats.DueThisWeekTasks).Error
	})
	if err != nil {
		return nil, err
	}

	stats.CompletionRate = Rate(stats.DoneTasks, stats.TotalTasks)
	return stats, nil
}

// ProjectStats requires membership of the project.
func (s *StatsService) ProjectStats(userID, projectID uint) (*ProjectStats, error) {
	if _, err := s.access.RequireMember(userID, projectID); err != nil {
		return nil, err
	}

	var stats *ProjectStats
	err := s.readOnly(func(tx *gorm.DB) error {
		var err error
		stats, err = s.projectStats(tx, projectID, s.now())
		return err
	})
	return stats, err
}

// AllProjectStats returns ProjectStats for each project userID belongs to,
// ordered by project id.
func (s *StatsService) AllProjectStats(userID uint) ([]ProjectStats, error) {
	now := s.now()
	out := []ProjectStats{}

	err := s.readOnly(func(tx *gorm.DB) error {
		ids, err := s.access.WithTx(tx).ProjectIDs(userID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			ps, err := s.projectStats(tx, id, now)
			if err != nil {
				return err
			}
			out = append(out, *ps)
		}
		return nil
	})
	return out, err
}

func (s *StatsService) projectStats(tx *gorm.DB, projectID uint, now time.Time) (*ProjectStats, error) {
	var project models.Project
	if err := tx.Select("id", "name").First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found")
		}
		return nil, err
	}

	t, err := s.tally(tx.Model(&models.Task{}).Where("project_id = ?", projectID), now)
	if err != nil {
		return nil, err
	}

	stats := &ProjectStats{
		ProjectID:         project.ID,
		ProjectName:       project.Name,
		TotalTasks:        t.total,
		CompletedTasks:    t.status.DoneTasks,
		PendingTasks:      t.pending(),
		ActiveTasks:       t.pending(),
		OverdueTasks:      t.overdue,
		StatusBreakdown:   t.status,
		PriorityBreakdown: t.priority,
		CompletionRate:    Rate(t.status.DoneTasks, t.total),
	}
	if err := tx.Model(&models.ProjectMember{}).Where("project_id = ?", projectID).Count(&stats.TotalMembers).Error; err != nil {
		return nil, err
	}
	stats.Status = ProjectStatusLabel(stats.TotalTasks, stats.OverdueTasks, stats.CompletionRate)
	return stats, nil
}

// UserStats reports on the tasks assigned to targetID.
func (s *StatsService) UserStats(requesterID, targetID uint) (*UserStats, error) {
	var stats *UserStats
	err := s.readOnly(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, targetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("user not found")
			}
			return err
		}

		ok, err := s.access.WithTx(tx).CanViewUserStats(requesterID, targetID)
		if err != nil {
			return err
		}
		if !ok {
			return response.NewForbidden("you cannot view statistics of this user")
		}

		scope := tx.Model(&models.Task{}).Where("assignee_id = ?", targetID)
		t, err := s.tally(scope, s.now())
		if err != nil {
			return err
		}

		var onTime int64
		if err := scope.Session(&gorm.Session{}).
			Where("status = ? AND (deadline IS NULL OR updated_at <= deadline)", models.TaskStatusDone).
			Count(&onTime).Error; err != nil {
			return err
		}

		stats = &UserStats{
			UserID:             user.ID,
			UserName:           user.FullName,
			UserEmail:          user.Email,
			TotalAssignedTasks: t.total,
			CompletedTasks:     t.status.DoneTasks,
			PendingTasks:       t.pending(),
			OverdueTasks:       t.overdue,
			StatusBreakdown:    t.status,
			PriorityBreakdown:  t.priority,
			CompletionRate:     Rate(t.status.DoneTasks, t.total),
			OnTimeRate:         Rate(onTime, t.status.DoneTasks),
		}
		return tx.Model(&models.ProjectMember{}).Where("user_id = ?", targetID).Count(&stats.ProjectsCount).Error
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Rate is part/whole as a percentage rounded half up to two decimals, 0 when
// whole is 0.
func Rate(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return math.Floor(float64(part)*100/float64(whole)*100+0.5) / 100
}

func ProjectStatusLabel(total, overdue int64, completionRate float64) string {
	switch {
	case total == 0:
		return ProjectStatusNoTasks
	case float64(overdue) > float64(total)*0.3:
		return ProjectStatusDelayed
	case overdue > 0 || completionRate < 50:
		return ProjectStatusAtRisk
	default:
		return ProjectStatusOnTrack
	}
}
