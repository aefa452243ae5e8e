package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskflow/internal/config"
	"github.com/huangang/taskflow/internal/middleware"
	"github.com/huangang/taskflow/internal/models"
	"github.com/huangang/taskflow/internal/services"
	"github.com/huangang/taskflow/internal/utils"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-handlers")
}

type envelope struct {
	Code    int    `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
	Data json.RawMessage `json:"data"`
}

type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
	queue  *services.SyncQueue
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	db, err := models.Open(&config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      "file:handlers_" + name + "?mode=memory&cache=shared&_foreign_keys=on",
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

// newTestEnv wires the API the same way the server does, minus the
// process wide middleware that is tested on its own.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)

	hub := services.NewEventHub()
	notifications := services.NewNotificationService(db, hub)
	queue := services.NewSyncQueue()
	queue.SetProcessor(notifications.Process)
	// runs before the database cleanup registered in newTestDB
	t.Cleanup(func() { queue.Close() })

	auth := services.NewAuthService(db, &config.JWTConfig{ExpireHour: 1})
	projects := services.NewProjectService(db)
	tasks := services.NewTaskService(db)
	tasks.SetEventHub(hub)
	tasks.SetTaskQueue(queue)

	authHandler := NewAuthHandler(auth)
	projectHandler := NewProjectHandler(projects)
	memberHandler := NewProjectMemberHandler(projects)
	taskHandler := NewTaskHandler(tasks)
	statsHandler := NewStatsHandler(services.NewStatsService(db))
	notificationHandler := NewNotificationHandler(notifications)
	systemLogHandler := NewSystemLogHandler(services.NewSystemLogService(db))

	r := gin.New()
	r.Use(middleware.Authenticate(auth))
	r.GET("/health", NewHealthHandler(db, queue, hub, nil).CheckHealth)

	api := r.Group("/api")
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	p := api.Group("", middleware.AuthRequired())
	p.GET("/auth/me", authHandler.GetCurrentUser)
	p.GET("/profile", authHandler.GetCurrentUser)
	p.POST("/auth/change-password", authHandler.ChangePassword)
	p.POST("/auth/logout", authHandler.Logout)
	p.POST("/projects", projectHandler.Create)
	p.GET("/projects", projectHandler.List)
	p.GET("/projects/:id", projectHandler.GetByID)
	p.PUT("/projects/:id", projectHandler.Update)
	p.DELETE("/projects/:id", projectHandler.Delete)
	p.POST("/projects/:id/members", memberHandler.AddMember)
	p.DELETE("/projects/:id/members/:userId", memberHandler.RemoveMember)
	p.GET("/projects/:id/members", memberHandler.ListMembers)
	p.POST("/projects/:id/tasks", taskHandler.Create)
	p.GET("/projects/:id/tasks", taskHandler.ListByProject)
	p.GET("/projects/:id/tasks/paged", taskHandler.ListByProjectPaged)
	p.GET("/projects/:id/tasks/status/:status", taskHandler.ListByStatus)
	p.GET("/projects/:id/tasks/priority/:priority/paged", taskHandler.ListByPriorityPaged)
	p.GET("/projects/:id/tasks/overdue", taskHandler.ListOverdue)
	p.GET("/tasks/my-tasks", taskHandler.MyTasks)
	p.GET("/tasks/search", taskHandler.Search)
	p.GET("/tasks/:id", taskHandler.GetByID)
	p.PUT("/tasks/:id", taskHandler.Update)
	p.DELETE("/tasks/:id", taskHandler.Delete)
	p.PUT("/tasks/:id/assign/:assigneeId", taskHandler.Assign)
	p.GET("/stats/dashboard", statsHandler.Dashboard)
	p.GET("/stats/projects", statsHandler.AllProjects)
	p.GET("/stats/projects/:id", statsHandler.Project)
	p.GET("/stats/users/:id", statsHandler.User)
	p.GET("/notifications", notificationHandler.List)
	p.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
	p.PUT("/notifications/:id/read", notificationHandler.MarkRead)

	admin := api.Group("", middleware.AuthRequired(), middleware.AdminRequired())
	admin.GET("/system-logs", systemLogHandler.List)
	admin.GET("/system-logs/modules", systemLogHandler.GetModules)

	return &testEnv{t: t, db: db, router: r, queue: queue}
}

func (e *testEnv) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	e.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			e.t.Fatalf("%s %s: decode body %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w, env
}

func (e *testEnv) expect(method, path, token string, body interface{}, status int) envelope {
	e.t.Helper()
	w, env := e.do(method, path, token, body)
	if w.Code != status {
		e.t.Fatalf("%s %s: status = %d, want %d (body %s)", method, path, w.Code, status, w.Body.String())
	}
	return env
}

type account struct {
	ID    uint
	Token string
}

func (e *testEnv) register(email, name string) account {
	e.t.Helper()
	env := e.expect(http.MethodPost, "/api/auth/register", "", gin.H{
		"email": email, "password": "secret123", "fullName": name,
	}, http.StatusCreated)

	var resp services.AuthResponse
	decode(e.t, env, &resp)
	return account{ID: resp.UserID, Token: resp.Token}
}

func (e *testEnv) createProject(owner account, name string, members ...account) uint {
	e.t.Helper()
	env := e.expect(http.MethodPost, "/api/projects", owner.Token, gin.H{"name": name}, http.StatusCreated)
	var project services.ProjectResponse
	decode(e.t, env, &project)

	for _, m := range members {
		e.expect(http.MethodPost, fmt.Sprintf("/api/projects/%d/members", project.ID), owner.Token,
			gin.H{"userId": m.ID}, http.StatusCreated)
	}
	return project.ID
}

func decode(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}
