package services

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/huangang/taskflow/internal/config"
	"github.com/huangang/taskflow/internal/models"
	"github.com/huangang/taskflow/internal/utils"
	"gorm.io/gorm"
)

func init() {
	utils.SetJWTSecret("test-secret-for-services")
}

// newTestDB opens a private in-memory sqlite database with the full schema.
// A single connection keeps the database alive and serializes access.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	db, err := models.Open(&config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      "file:" + name + "?mode=memory&cache=shared&_foreign_keys=on",
		LogLevel: "error",
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, email, fullName string) *models.User {
	t.Helper()
	hashed, err := utils.HashPassword("secret123")
	if err != nil {
		t.Fatal(err)
	}
	user := &models.User{Email: email, Password: hashed, FullName: fullName, Role: models.RoleUser}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

func createProject(t *testing.T, db *gorm.DB, owner *models.User, name string, members ...*models.User) *ProjectResponse {
	t.Helper()
	svc := NewProjectService(db)
	project, err := svc.Create(owner.ID, &CreateProjectRequest{Name: name})
	if err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}
	for _, m := range members {
		if _, err := svc.AddMember(owner.ID, project.ID, &AddMemberRequest{UserID: m.ID}); err != nil {
			t.Fatalf("add member %d: %v", m.ID, err)
		}
	}
	return project
}

// insertTask writes a task row directly, bypassing validation and events.
func insertTask(t *testing.T, db *gorm.DB, projectID uint, title, status, priority string, deadline *time.Time, assigneeID *uint) *models.Task {
	t.Helper()
	task := &models.Task{
		Title:      title,
		Status:     status,
		Priority:   priority,
		Deadline:   utcPtr(deadline),
		ProjectID:  projectID,
		AssigneeID: assigneeID,
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("insert task %s: %v", title, err)
	}
	return task
}

func timePtr(t time.Time) *time.Time { return &t }

func uintPtr(v uint) *uint { return &v }

// recordingQueue collects enqueued jobs instead of processing them.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []NotificationJob
	err  error
}

func (q *recordingQueue) Enqueue(job *NotificationJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, *job)
	return nil
}

func (q *recordingQueue) IsAsync() bool { return false }

func (q *recordingQueue) Close() error { return nil }

func (q *recordingQueue) Jobs() []NotificationJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]NotificationJob(nil), q.jobs...)
}
