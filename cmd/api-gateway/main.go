package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lesson-package-api/api/swagger"
	"github.com/noah-isme/lesson-package-api/internal/handler"
	"github.com/noah-isme/lesson-package-api/internal/ledger"
	"github.com/noah-isme/lesson-package-api/internal/middleware"
	"github.com/noah-isme/lesson-package-api/internal/repository"
	"github.com/noah-isme/lesson-package-api/internal/service"
	"github.com/noah-isme/lesson-package-api/pkg/cache"
	"github.com/noah-isme/lesson-package-api/pkg/config"
	"github.com/noah-isme/lesson-package-api/pkg/database"
	"github.com/noah-isme/lesson-package-api/pkg/export"
	"github.com/noah-isme/lesson-package-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lesson-package-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lesson-package-api/pkg/middleware/requestid"
)

// @title Lesson Package API
// @version 1.0.0
// @description Hour-based lesson packages with ledger, lifecycle status, overflow resolution and weekly extensions
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := database.Migrate(ctx, db); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, package listings are served uncached", zap.Error(err))
	}

	clock, err := ledger.NewSystemClock(cfg.Ledger.Timezone)
	if err != nil {
		logr.Fatal("invalid ledger timezone", zap.Error(err))
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	validate := validator.New()
	tx := repository.NewTransactor(db)
	packageRepo := repository.NewPackageRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)

	var cacheSvc *service.CacheService
	if redisClient != nil {
		defer redisClient.Close()
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metricsSvc, cfg.Ledger.CacheTTL, logr, cfg.Ledger.CacheEnabled)
	}

	activitySvc := service.NewActivityService(repository.NewActivityRepository(db), logr)
	ledgerSvc := service.NewLedgerService(tx, packageRepo, clock, metricsSvc, logr)
	packageSvc := service.NewPackageService(service.PackageServiceDeps{
		Tx:        tx,
		Packages:  packageRepo,
		Lessons:   lessonRepo,
		Students:  directoryRepo,
		Payments:  paymentRepo,
		Ledger:    ledgerSvc,
		Cache:     cacheSvc,
		Activity:  activitySvc,
		Metrics:   metricsSvc,
		Validator: validate,
		Logger:    logr,
	}, service.PackageConfig{MaxStudents: cfg.Ledger.MaxStudents, CacheTTL: cfg.Ledger.CacheTTL})
	lessonSvc := service.NewLessonService(service.LessonServiceDeps{
		Tx:        tx,
		Lessons:   lessonRepo,
		Packages:  packageRepo,
		Directory: directoryRepo,
		Ledger:    ledgerSvc,
		Cache:     cacheSvc,
		Activity:  activitySvc,
		Metrics:   metricsSvc,
		Validator: validate,
		Logger:    logr,
	})
	paymentSvc := service.NewPaymentService(paymentRepo, packageRepo, activitySvc, validate, logr)
	statementSvc := service.NewStatementService(packageSvc, lessonSvc, logr, export.NewCSVExporter(), export.NewPDFExporter())

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if metricsSvc != nil {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Actor(), middleware.WithResponseMeta())
	handler.RegisterRoutes(api, handler.Handlers{
		Packages: handler.NewPackageHandler(packageSvc, statementSvc),
		Lessons:  handler.NewLessonHandler(lessonSvc),
		Payments: handler.NewPaymentHandler(paymentSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
