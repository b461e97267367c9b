package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/sweep-app/sweep-api/api/swagger"
	"github.com/sweep-app/sweep-api/internal/handler"
	"github.com/sweep-app/sweep-api/internal/middleware"
	"github.com/sweep-app/sweep-api/internal/models"
	"github.com/sweep-app/sweep-api/internal/repository"
	"github.com/sweep-app/sweep-api/internal/service"
	"github.com/sweep-app/sweep-api/pkg/cache"
	"github.com/sweep-app/sweep-api/pkg/config"
	"github.com/sweep-app/sweep-api/pkg/database"
	"github.com/sweep-app/sweep-api/pkg/jobs"
	"github.com/sweep-app/sweep-api/pkg/logger"
	corsmiddleware "github.com/sweep-app/sweep-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sweep-app/sweep-api/pkg/middleware/requestid"
	"github.com/sweep-app/sweep-api/pkg/storage"
)

// @title SWEEP API
// @version 1.0.0
// @description Task marketplace connecting employers and students, with token-based rewards.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	fieldRepo := repository.NewFieldRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	exportRepo := repository.NewExportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	// Assignment lifecycle events fan out to the audit trail inside the
	// service; this queue carries the notification side only.
	eventsQueue := jobs.NewQueue("assignment-events", func(ctx context.Context, job jobs.Job) error {
		assignment, ok := job.Payload.(models.TaskAssignment)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", job.Payload)
		}
		logr.Info("assignment event",
			zap.String("action", job.Type),
			zap.Int64("assignment_id", assignment.ID),
			zap.Int64("task_id", assignment.TaskID),
			zap.Int64("student_user_id", assignment.StudentUserID),
			zap.String("status", string(assignment.Status)),
		)
		return nil
	}, jobs.QueueConfig{Workers: 1, BufferSize: 256, Logger: logr})
	eventsQueue.Start()
	defer eventsQueue.Stop()

	// Services.
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	fieldSvc := service.NewFieldService(fieldRepo, validate, logr)
	profileSvc := service.NewProfileService(profileRepo, fieldRepo, validate, logr)
	taskSvc := service.NewTaskService(taskRepo, fieldRepo, assignmentRepo, cacheSvc, validate, logr)
	assignmentSvc := service.NewAssignmentService(
		assignmentRepo, taskRepo, profileRepo, userRepo,
		cacheSvc, metricsSvc, eventsQueue, validate, logr,
		cfg.Tokens.MinAward, cfg.Tokens.MaxAward,
	)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Fatal("failed to init export storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(exportRepo, assignmentRepo, exportStorage, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr)

		exportQueue := jobs.NewQueue("assignment-exports", exportSvc.Process, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			BufferSize: 64,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportQueue.Start()
		defer exportQueue.Stop()
		exportSvc.BindQueue(exportQueue)

		go func() {
			ticker := time.NewTicker(cfg.Exports.CleanupInterval)
			defer ticker.Stop()
			for range ticker.C {
				exportSvc.Cleanup()
			}
		}()
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	fieldHandler := handler.NewFieldHandler(fieldSvc)
	profileHandler := handler.NewProfileHandler(profileSvc)
	taskHandler := handler.NewTaskHandler(taskSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "database"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", middleware.Audit(userRepo, models.AuditActionRegister, "user"), authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		fields := authed.Group("/fields")
		{
			fields.GET("", fieldHandler.List)
			fields.GET("/:id", fieldHandler.Get)
			fields.POST("", middleware.RequireRoles(models.RoleAdmin), fieldHandler.Create)
			fields.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), fieldHandler.Rename)
		}

		profiles := authed.Group("/profiles")
		{
			profiles.GET("/me", profileHandler.Me)
			profiles.GET("/students/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleEmployer), profileHandler.GetStudent)
			profiles.PUT("/student", middleware.RequireRoles(models.RoleStudent), profileHandler.UpsertStudent)
			profiles.PUT("/employer", middleware.RequireRoles(models.RoleEmployer), profileHandler.UpsertEmployer)
		}

		tasks := authed.Group("/tasks")
		{
			tasks.GET("", taskHandler.List)
			tasks.GET("/:id", taskHandler.Get)
			tasks.POST("", middleware.RequireRoles(models.RoleEmployer), taskHandler.Create)
			tasks.PUT("/:id", middleware.RequireRoles(models.RoleEmployer), taskHandler.Update)
			tasks.DELETE("/:id", middleware.RequireRoles(models.RoleEmployer), taskHandler.Delete)
			tasks.GET("/:id/available-students", middleware.RequireRoles(models.RoleEmployer), assignmentHandler.AvailableStudents)
		}

		assignments := authed.Group("/assignments")
		{
			assignments.POST("", middleware.RequireRoles(models.RoleEmployer, models.RoleStudent), assignmentHandler.Create)
			assignments.POST("/:id/accept", middleware.RequireRoles(models.RoleStudent), assignmentHandler.Accept)
			assignments.POST("/:id/reject", middleware.RequireRoles(models.RoleEmployer, models.RoleStudent), assignmentHandler.Reject)
			assignments.POST("/:id/complete", middleware.RequireRoles(models.RoleStudent), assignmentHandler.Complete)
			assignments.POST("/:id/approve", middleware.RequireRoles(models.RoleEmployer), assignmentHandler.Approve)
			assignments.GET("/employer", middleware.RequireRoles(models.RoleEmployer), assignmentHandler.ListForEmployer)
			assignments.GET("/student", middleware.RequireRoles(models.RoleStudent), assignmentHandler.ListForStudent)
		}

		if exportSvc != nil {
			exportHandler := handler.NewExportHandler(exportSvc)
			exports := authed.Group("/exports")
			{
				exports.POST("", exportHandler.Create)
				exports.GET("/:id", exportHandler.Get)
			}
			// Download authenticates via the signed token instead of a JWT.
			api.GET("/exports/download", exportHandler.Download)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
