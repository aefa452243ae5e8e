package main

import (
	"github.com/huangang/taskflow/internal/config"
	"github.com/huangang/taskflow/internal/handlers"
	"github.com/huangang/taskflow/internal/models"
	"github.com/huangang/taskflow/internal/services"
	"github.com/huangang/taskflow/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// appServices holds all initialized services needed by the application.
type appServices struct {
	cfg          *config.Config
	db           *gorm.DB
	hub          *services.EventHub
	taskQueue    services.TaskQueue
	worker       *services.Worker
	redis        *redis.Client
	access       *services.AccessService
	auth         *services.AuthService
	projects     *services.ProjectService
	tasks        *services.TaskService
	stats        *services.StatsService
	notification *services.NotificationService
	systemLogs   *services.SystemLogService
	reminders    *services.ReminderService
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	db := models.GetDB()

	if err := models.AutoMigrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	services.InitSystemLogger(db)

	authService := services.NewAuthService(db, &cfg.JWT)
	if err := authService.CreateAdminIfNotExists(&cfg.Admin); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	hub := services.GetEventHub()
	notificationService := services.NewNotificationService(db, hub)

	// Initialize task queue (uses Redis if enabled, otherwise sync mode)
	taskQueue := services.InitTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(notificationService.Process)
	}

	var worker *services.Worker
	var rdb *redis.Client
	if taskQueue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis)
		worker.SetProcessor(notificationService.Process)
		if err := worker.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start notification worker")
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	taskService := services.NewTaskService(db)
	taskService.SetEventHub(hub)
	taskService.SetTaskQueue(taskQueue)

	reminders := services.NewReminderService(db, taskQueue, cfg.Scheduler)
	if err := reminders.StartScheduler(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start reminder scheduler")
	}

	if err := handlers.RegisterMetrics(prometheus.DefaultRegisterer, db, hub); err != nil {
		logger.Warn().Err(err).Msg("Failed to register metrics")
	}

	return &appServices{
		cfg:          cfg,
		db:           db,
		hub:          hub,
		taskQueue:    taskQueue,
		worker:       worker,
		redis:        rdb,
		access:       services.NewAccessService(db),
		auth:         authService,
		projects:     services.NewProjectService(db),
		tasks:        taskService,
		stats:        services.NewStatsService(db),
		notification: notificationService,
		systemLogs:   services.NewSystemLogService(db),
		reminders:    reminders,
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.reminders.StopScheduler()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}
