package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/huangang/taskflow/internal/config"
	"github.com/huangang/taskflow/pkg/logger"
)

// Worker consumes notification jobs from Redis.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor JobProcessor
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}

	server := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"notifications": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error().Err(err).Str("type", task.Type()).Msg("[Worker] job failed")
			}),
		},
	)

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
	}
}

func (w *Worker) SetProcessor(processor JobProcessor) {
	w.processor = processor
}

func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.mux.HandleFunc(JobTypeTaskAssigned, w.handleJob)
	w.mux.HandleFunc(JobTypeTaskDue, w.handleJob)

	w.running = true
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		logger.Infof("[Worker] Starting notification worker...")
		if err := w.server.Run(w.mux); err != nil {
			logger.Error().Err(err).Msg("[Worker] server stopped")
		}
	}()

	return nil
}

func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	logger.Infof("[Worker] Shutting down...")
	w.server.Shutdown()
	w.running = false
	w.wg.Wait()
	logger.Infof("[Worker] Shutdown complete")
}

func (w *Worker) handleJob(ctx context.Context, t *asynq.Task) error {
	var job NotificationJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		// a malformed payload will never succeed
		return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}

	logger.Debug().Str("type", job.Type).Uint("task_id", job.TaskID).Uint("user_id", job.UserID).Msg("[Worker] processing job")

	if w.processor == nil {
		logger.Warn().Msg("[Worker] no processor set")
		return nil
	}
	return w.processor(ctx, &job)
}
