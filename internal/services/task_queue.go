package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/huangang/taskflow/internal/config"
	"github.com/huangang/taskflow/pkg/logger"
)

const (
	JobTypeTaskAssigned = "notify:task_assigned"
	JobTypeTaskDue      = "notify:task_due"
)

// NotificationJob asks the worker to notify UserID about TaskID.
type NotificationJob struct {
	Type      string `json:"type"`
	UserID    uint   `json:"user_id"`
	TaskID    uint   `json:"task_id"`
	ProjectID uint   `json:"project_id"`
	ActorID   uint   `json:"actor_id,omitempty"`
}

// JobProcessor handles one notification job.
type JobProcessor func(context.Context, *NotificationJob) error

// TaskQueue carries notification jobs to the processor.
type TaskQueue interface {
	Enqueue(job *NotificationJob) error
	// IsAsync reports whether jobs are handed to an external worker.
	IsAsync() bool
	Close() error
}

var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue picks the Redis backed queue when Redis is enabled and
// reachable, and the in-process queue otherwise.
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err != nil {
				logger.Warn().Err(err).Msg("[TaskQueue] Redis unavailable, falling back to sync mode")
				globalTaskQueue = NewSyncQueue()
			} else {
				logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalTaskQueue = queue
			}
		} else {
			logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
			globalTaskQueue = NewSyncQueue()
		}
	})
	return globalTaskQueue
}

func GetTaskQueue() TaskQueue {
	return globalTaskQueue
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := redisOpt(cfg)
	client := asynq.NewClient(opt)

	// verify the connection before committing to async mode
	inspector := asynq.NewInspector(opt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(job *NotificationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}

	opts := []asynq.Option{
		asynq.Queue("notifications"),
		asynq.MaxRetry(3),
		asynq.Timeout(30 * time.Second),
	}
	// one due reminder per task and user per day
	if job.Type == JobTypeTaskDue {
		opts = append(opts, asynq.TaskID(fmt.Sprintf("due:%d:%d:%s", job.TaskID, job.UserID, time.Now().UTC().Format("20060102"))))
	}

	info, err := q.client.Enqueue(asynq.NewTask(job.Type, payload), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return err
	}

	logger.Debug().Str("id", info.ID).Str("queue", info.Queue).Str("type", job.Type).Msg("[AsyncQueue] job enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue processes jobs in-process on a background goroutine.
type SyncQueue struct {
	processor JobProcessor
	wg        sync.WaitGroup
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) SetProcessor(processor JobProcessor) {
	q.processor = processor
}

// Enqueue returns immediately; the job runs on its own goroutine.
func (q *SyncQueue) Enqueue(job *NotificationJob) error {
	if q.processor == nil {
		logger.Warn().Str("type", job.Type).Msg("[SyncQueue] no processor set, job dropped")
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := q.processor(context.Background(), job); err != nil {
			logger.Error().Err(err).Str("type", job.Type).Uint("task_id", job.TaskID).Msg("[SyncQueue] job failed")
		}
	}()

	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close waits for in-flight jobs.
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
