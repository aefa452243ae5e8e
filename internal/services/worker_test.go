package services

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/huangang/taskflow/internal/config"
)

func TestNewWorker_DisabledRedis(t *testing.T) {
	if w := NewWorker(&config.RedisConfig{Enabled: false}); w != nil {
		t.Error("NewWorker should return nil when Redis is disabled")
	}
}

func TestWorker_HandleJob(t *testing.T) {
	w := &Worker{mux: asynq.NewServeMux()}

	var got *NotificationJob
	w.SetProcessor(func(ctx context.Context, job *NotificationJob) error {
		got = job
		return nil
	})

	payload := []byte(`{"type":"notify:task_due","user_id":4,"task_id":8,"project_id":2}`)
	if err := w.handleJob(context.Background(), asynq.NewTask(JobTypeTaskDue, payload)); err != nil {
		t.Fatalf("handleJob() error = %v", err)
	}
	if got == nil || got.TaskID != 8 || got.UserID != 4 {
		t.Errorf("unexpected job %+v", got)
	}
}

func TestWorker_HandleJob_BadPayloadSkipsRetry(t *testing.T) {
	w := &Worker{mux: asynq.NewServeMux()}

	err := w.handleJob(context.Background(), asynq.NewTask(JobTypeTaskAssigned, []byte("{not json")))
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("expected SkipRetry, got %v", err)
	}
}
