package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskflow/internal/handlers"
	"github.com/huangang/taskflow/internal/middleware"
	"github.com/huangang/taskflow/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
// It returns the auth rate limiter so the caller can stop its janitor.
func registerRoutes(r *gin.Engine, svc *appServices) *middleware.RateLimiter {
	r.Use(
		middleware.RequestID(),
		logger.GinLogger(),
		logger.GinRecovery(),
		middleware.SecureHeaders(middleware.SecureOptions(svc.cfg.Server.Mode != gin.ReleaseMode)),
		middleware.CORS(svc.cfg.CORS.AllowedOrigins),
		middleware.Metrics(),
		middleware.Authenticate(svc.auth),
		middleware.AuditLog(),
	)

	authLimiter := middleware.NewRateLimiter(svc.cfg.RateLimit.AuthRPS, svc.cfg.RateLimit.AuthBurst)

	healthHandler := handlers.NewHealthHandler(svc.db, svc.taskQueue, svc.hub, svc.redis)
	r.GET("/health", healthHandler.CheckHealth)
	r.GET("/metrics", handlers.MetricsHandler())

	authHandler := handlers.NewAuthHandler(svc.auth)
	projectHandler := handlers.NewProjectHandler(svc.projects)
	memberHandler := handlers.NewProjectMemberHandler(svc.projects)
	taskHandler := handlers.NewTaskHandler(svc.tasks)
	statsHandler := handlers.NewStatsHandler(svc.stats)
	notificationHandler := handlers.NewNotificationHandler(svc.notification)
	systemLogHandler := handlers.NewSystemLogHandler(svc.systemLogs)
	sseHandler := handlers.NewSSEHandler(svc.hub, svc.access, svc.auth)

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// SSE events (public route with internal token validation)
		api.GET("/events/tasks", sseHandler.StreamTaskEvents)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/auth/me", authHandler.GetCurrentUser)
			protected.POST("/auth/change-password", authHandler.ChangePassword)
			protected.POST("/auth/logout", authHandler.Logout)
			protected.GET("/profile", authHandler.GetCurrentUser)

			// Projects
			protected.POST("/projects", projectHandler.Create)
			protected.GET("/projects", projectHandler.List)
			protected.GET("/projects/:id", projectHandler.GetByID)
			protected.PUT("/projects/:id", projectHandler.Update)
			protected.DELETE("/projects/:id", projectHandler.Delete)

			// Members
			protected.POST("/projects/:id/members", memberHandler.AddMember)
			protected.DELETE("/projects/:id/members/:userId", memberHandler.RemoveMember)
			protected.GET("/projects/:id/members", memberHandler.ListMembers)

			// Project tasks
			protected.POST("/projects/:id/tasks", taskHandler.Create)
			protected.GET("/projects/:id/tasks", taskHandler.ListByProject)
			protected.GET("/projects/:id/tasks/paged", taskHandler.ListByProjectPaged)
			protected.GET("/projects/:id/tasks/status/:status", taskHandler.ListByStatus)
			protected.GET("/projects/:id/tasks/status/:status/paged", taskHandler.ListByStatusPaged)
			protected.GET("/projects/:id/tasks/priority/:priority", taskHandler.ListByPriority)
			protected.GET("/projects/:id/tasks/priority/:priority/paged", taskHandler.ListByPriorityPaged)
			protected.GET("/projects/:id/tasks/overdue", taskHandler.ListOverdue)
			protected.GET("/projects/:id/tasks/overdue/paged", taskHandler.ListOverduePaged)

			// Tasks
			protected.GET("/tasks/my-tasks", taskHandler.MyTasks)
			protected.GET("/tasks/my-tasks/paged", taskHandler.MyTasksPaged)
			protected.GET("/tasks/search", taskHandler.Search)
			protected.GET("/tasks/:id", taskHandler.GetByID)
			protected.PUT("/tasks/:id", taskHandler.Update)
			protected.DELETE("/tasks/:id", taskHandler.Delete)
			protected.PUT("/tasks/:id/assign/:assigneeId", taskHandler.Assign)

			// Stats
			protected.GET("/stats/dashboard", statsHandler.Dashboard)
			protected.GET("/stats/projects", statsHandler.AllProjects)
			protected.GET("/stats/projects/:id", statsHandler.Project)
			protected.GET("/stats/users/:id", statsHandler.User)

			// Notifications
			protected.GET("/notifications", notificationHandler.List)
			protected.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
			protected.PUT("/notifications/:id/read", notificationHandler.MarkRead)
		}

		// Admin routes
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/system-logs", systemLogHandler.List)
			admin.GET("/system-logs/modules", systemLogHandler.GetModules)
		}
	}

	return authLimiter
}
