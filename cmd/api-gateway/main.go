package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/timeweaver/timeweaver-api/api/swagger"
	"github.com/timeweaver/timeweaver-api/internal/handler"
	"github.com/timeweaver/timeweaver-api/internal/repository"
	"github.com/timeweaver/timeweaver-api/internal/service"
	"github.com/timeweaver/timeweaver-api/pkg/cache"
	"github.com/timeweaver/timeweaver-api/pkg/config"
	"github.com/timeweaver/timeweaver-api/pkg/database"
	"github.com/timeweaver/timeweaver-api/pkg/logger"
	corsmiddleware "github.com/timeweaver/timeweaver-api/pkg/middleware/cors"
	reqidmiddleware "github.com/timeweaver/timeweaver-api/pkg/middleware/requestid"
)

// @title Timeweaver API
// @version 0.1.0
// @description Academic timetable generation and conflict management service
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	timetableRepo := repository.NewTimetableRepository(db)
	slotRepo := repository.NewSlotRepository(db)
	conflictRepo := repository.NewConflictRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	leaveRepo := repository.NewLeaveRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	preferenceRepo := repository.NewPreferenceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	mutex := service.NewTimetableMutex()
	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, cfg.Cache, metrics, logr)
	curriculumSvc := service.NewCurriculumService(resourceRepo, logr)
	ruleEngine := service.NewRuleEngine(ruleRepo, logr)
	constraintSvc := service.NewConstraintService(logr)
	preferenceSvc := service.NewPreferenceService(preferenceRepo, cfg.Preferences, logr)
	detector := service.NewConflictDetector(conflictRepo, slotRepo, timetableRepo, logr)

	timetableSvc := service.NewTimetableService(timetableRepo, slotRepo, conflictRepo, resourceRepo, detector, cacheSvc, mutex, logr)
	generatorSvc := service.NewGeneratorService(
		timetableRepo, slotRepo, conflictRepo, resourceRepo,
		curriculumSvc, ruleEngine, constraintSvc, detector, preferenceSvc,
		metrics, cacheSvc, cfg.Generator, logr,
	)
	lockSvc := service.NewSlotLockService(slotRepo, timetableRepo, cacheSvc, mutex, logr)
	workloadSvc := service.NewWorkloadService(slotRepo, resourceRepo, logr)
	substituteSvc := service.NewSubstituteService(slotRepo, resourceRepo, preferenceSvc, logr)
	ruleSvc := service.NewRuleService(ruleRepo, logr)

	rescanWorker := service.NewRescanWorker(timetableSvc, cfg.Rescan, logr)
	rescanWorker.Start(context.Background())
	defer rescanWorker.Stop()

	leaveSvc := service.NewLeaveService(
		leaveRepo, slotRepo, resourceRepo, timetableRepo,
		ruleEngine, cacheSvc, rescanWorker, metrics, mutex, logr,
	)

	timetableHandler := handler.NewTimetableHandler(timetableSvc, generatorSvc, workloadSvc)
	ruleHandler := handler.NewRuleHandler(ruleSvc)
	leaveHandler := handler.NewLeaveHandler(leaveSvc)
	lockHandler := handler.NewLockHandler(lockSvc, substituteSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		timetables := api.Group("/timetables")
		{
			timetables.POST("/generate", timetableHandler.Generate)
			timetables.GET("", timetableHandler.List)
			timetables.GET("/:id", timetableHandler.Get)
			timetables.DELETE("/:id", timetableHandler.Delete)
			timetables.GET("/:id/slots", timetableHandler.Slots)
			timetables.POST("/:id/publish", timetableHandler.Publish)
			timetables.POST("/:id/unpublish", timetableHandler.Unpublish)
			timetables.GET("/:id/conflicts", timetableHandler.Conflicts)
			timetables.GET("/:id/conflicts/summary", timetableHandler.ConflictSummary)
			timetables.POST("/:id/conflicts/rescan", timetableHandler.Rescan)
			timetables.GET("/:id/workload", timetableHandler.Workload)
			timetables.GET("/:id/substitutes", lockHandler.Substitutes)
			timetables.POST("/:id/slots/lock", lockHandler.Lock)
			timetables.POST("/:id/slots/unlock", lockHandler.Unlock)
			timetables.POST("/:id/slots/lock-all", lockHandler.LockAll)
			timetables.POST("/:id/slots/unlock-all", lockHandler.UnlockAll)
			timetables.GET("/:id/slots/locked", lockHandler.Locked)
			timetables.GET("/:id/slots/lock-statistics", lockHandler.Statistics)
		}

		api.POST("/conflicts/:conflictId/resolve", timetableHandler.ResolveConflict)

		rules := api.Group("/rules")
		{
			rules.POST("", ruleHandler.Create)
			rules.GET("", ruleHandler.List)
			rules.GET("/:id", ruleHandler.Get)
			rules.PUT("/:id", ruleHandler.Update)
			rules.PATCH("/:id/toggle", ruleHandler.Toggle)
			rules.DELETE("/:id", ruleHandler.Delete)
		}

		leaves := api.Group("/leaves")
		{
			leaves.POST("/analyze", leaveHandler.Analyze)
			leaves.POST("", leaveHandler.Create)
			leaves.GET("", leaveHandler.List)
			leaves.GET("/:id", leaveHandler.Get)
			leaves.POST("/:id/approve", leaveHandler.Approve)
			leaves.POST("/:id/reject", leaveHandler.Reject)
			leaves.POST("/:id/cancel", leaveHandler.Cancel)
			leaves.POST("/:id/apply", leaveHandler.Apply)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
