package services

import (
	"testing"
	"time"

	"github.com/huangang/taskflow/internal/models"
)

func TestSystemLog_WriteAndList(t *testing.T) {
	db := newTestDB(t)
	InitSystemLogger(db)
	t.Cleanup(func() { InitSystemLogger(nil) })

	uid := uint(7)
	LogInfo("Project", "Create", "POST /api/projects", LogEntry{UserID: &uid, RequestID: "req-1", IP: "10.0.0.1"})
	LogWarning("Auth", "Login", "POST /api/auth/login", LogEntry{Extra: map[string]int{"status": 401}})
	LogError("Task", "Delete", "DELETE /api/tasks/3 100%", LogEntry{})

	svc := NewSystemLogService(db)

	tests := []struct {
		name string
		req  SystemLogListRequest
		want int64
	}{
		{"all", SystemLogListRequest{}, 3},
		{"by level", SystemLogListRequest{Level: LogLevelWarning}, 1},
		{"by module", SystemLogListRequest{Module: "Project"}, 1},
		{"by action", SystemLogListRequest{Action: "Log"}, 1},
		{"search literal percent", SystemLogListRequest{Search: "100%"}, 1},
		{"date range", SystemLogListRequest{StartDate: time.Now().UTC().Format("2006-01-02"), EndDate: time.Now().UTC().Format("2006-01-02")}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			page, err := svc.List(&req)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if page.TotalElements != tt.want {
				t.Errorf("got %d logs, expected %d", page.TotalElements, tt.want)
			}
		})
	}

	page, err := svc.List(&SystemLogListRequest{Module: "Auth"})
	if err != nil {
		t.Fatal(err)
	}
	if got := page.Content[0].Extra; got != `{"status":401}` {
		t.Errorf("Extra = %q", got)
	}

	modules, err := svc.GetModules()
	if err != nil {
		t.Fatal(err)
	}
	if len(modules) != 3 || modules[0] != "Auth" {
		t.Errorf("modules = %v", modules)
	}
}

func TestSystemLog_ListBadDate(t *testing.T) {
	svc := NewSystemLogService(newTestDB(t))
	if _, err := svc.List(&SystemLogListRequest{StartDate: "yesterday"}); err == nil {
		t.Error("expected validation error for bad date")
	}
}

func TestSystemLog_WithoutDBIsNoop(t *testing.T) {
	InitSystemLogger(nil)
	LogInfo("Test", "Noop", "nothing happens", LogEntry{})
}

func TestSystemLogService_CleanupOldLogs(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	db.Create(&models.SystemLog{Level: LogLevelInfo, Module: "Old", CreatedAt: now.AddDate(0, 0, -40)})
	db.Create(&models.SystemLog{Level: LogLevelInfo, Module: "New", CreatedAt: now.AddDate(0, 0, -5)})

	svc := NewSystemLogService(db)

	if n, err := svc.CleanupOldLogs(0); err != nil || n != 0 {
		t.Errorf("disabled cleanup = %d, %v", n, err)
	}

	n, err := svc.CleanupOldLogs(30)
	if err != nil {
		t.Fatalf("CleanupOldLogs() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d logs, expected 1", n)
	}
}
