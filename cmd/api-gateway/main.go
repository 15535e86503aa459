package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/academic-programs-api/api/swagger"
	"github.com/noah-isme/academic-programs-api/internal/handler"
	"github.com/noah-isme/academic-programs-api/internal/middleware"
	"github.com/noah-isme/academic-programs-api/internal/models"
	"github.com/noah-isme/academic-programs-api/internal/repository"
	"github.com/noah-isme/academic-programs-api/internal/service"
	"github.com/noah-isme/academic-programs-api/pkg/cache"
	"github.com/noah-isme/academic-programs-api/pkg/config"
	"github.com/noah-isme/academic-programs-api/pkg/database"
	"github.com/noah-isme/academic-programs-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/academic-programs-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academic-programs-api/pkg/middleware/requestid"
)

// @title Academic Programs API
// @version 1.0.0
// @description Versioned degree and course catalog with approval workflow and semester enrollment.
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, caching and notifications disabled", zap.Error(err))
	} else {
		redisClient = client
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	degreeRepo := repository.NewDegreeRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Directory.CacheTTL, logr, cfg.Directory.CacheEnabled && redisClient != nil)
	directory := service.NewUserDirectoryService(userRepo, cacheSvc, cfg.Directory.CacheTTL, logr)

	notifications := service.NewNotificationService(cacheRepo, service.NotificationConfig{
		Enabled:    cfg.Notifications.Enabled && redisClient != nil,
		Channel:    cfg.Notifications.Channel,
		Workers:    cfg.Notifications.Workers,
		Retries:    cfg.Notifications.Retries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, metricsSvc, logr)
	notifications.Start(ctx)
	defer notifications.Stop()

	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Leeway:            cfg.JWT.Leeway,
	})
	access := service.NewEntityAccess(enrollmentRepo)

	degreeSvc := service.NewDegreeService(degreeRepo, auditRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, directory, auditRepo, validate, logr)
	degreeLifecycle := service.NewProgramLifecycleService(degreeRepo, auditRepo, notifications, metricsSvc, logr)
	courseLifecycle := service.NewProgramLifecycleService(courseRepo, auditRepo, notifications, metricsSvc, logr)
	degreeVersions := service.NewVersionService(degreeRepo, auditRepo, notifications, metricsSvc, logr)
	courseVersions := service.NewVersionService(courseRepo, auditRepo, notifications, metricsSvc, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, degreeRepo, courseRepo,
		service.NewQuotaWindowValidator(), auditRepo, notifications, metricsSvc, validate, logr)
	timelineSvc := service.NewTimelineService(auditRepo, messageRepo, directory, access,
		service.TimelineConfig{ExportEnabled: cfg.Timeline.ExportEnabled}, logr)
	messageSvc := service.NewMessageService(messageRepo, access, logr)

	degreeHandler := handler.NewDegreeHandler(degreeSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	degreeWorkflow := handler.NewProgramHandler(degreeLifecycle, degreeVersions)
	courseWorkflow := handler.NewProgramHandler(courseLifecycle, courseVersions)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	timelineHandler := handler.NewTimelineHandler(timelineSvc)
	messageHandler := handler.NewMessageHandler(messageSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	degrees := api.Group("/degrees")
	degrees.POST("", middleware.RequireRoles(models.RoleFaculty), degreeHandler.Create)
	degrees.GET("", degreeHandler.List)
	degrees.GET("/:id", degreeHandler.Get)
	degrees.PUT("/:id", middleware.RequireRoles(models.RoleFaculty), degreeHandler.Update)
	degrees.GET("/:id/versions", degreeHandler.Versions)
	degreeWorkflow.Register(degrees.Group("", middleware.RequireRoles(models.RoleFaculty)))

	courses := api.Group("/courses")
	courses.POST("", middleware.RequireRoles(models.RoleFaculty), courseHandler.Create)
	courses.GET("", courseHandler.List)
	courses.GET("/:id", courseHandler.Get)
	courses.PUT("/:id", middleware.RequireRoles(models.RoleFaculty), courseHandler.Update)
	courses.GET("/:id/versions", courseHandler.Versions)
	courseWorkflow.Register(courses.Group("", middleware.RequireRoles(models.RoleFaculty)))

	enrollments := api.Group("/enrollments")
	enrollments.POST("/drafts", middleware.RequireRoles(models.RoleStudent), enrollmentHandler.SaveDraft)
	enrollments.POST("/:id/submit", middleware.RequireRoles(models.RoleStudent), enrollmentHandler.Submit)
	enrollments.POST("/decisions", middleware.RequireHeadOfDepartment(), enrollmentHandler.Decide)
	enrollments.GET("", enrollmentHandler.List)
	enrollments.GET("/:id", enrollmentHandler.Get)

	api.GET("/timeline/:entityType/:entityId", timelineHandler.Get)
	api.GET("/timeline/:entityType/:entityId/export", timelineHandler.Export)
	api.POST("/messages/:entityType/:entityId", messageHandler.Post)
	api.GET("/messages/:entityType/:entityId", messageHandler.List)
	api.GET("/metrics/summary", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), metricsHandler.Snapshot)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
