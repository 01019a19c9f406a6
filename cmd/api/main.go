package main

import (
	"fmt"
	"log"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-achievement-api/api/swagger"
	"github.com/noah-isme/sma-achievement-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-achievement-api/internal/middleware"
	"github.com/noah-isme/sma-achievement-api/internal/models"
	"github.com/noah-isme/sma-achievement-api/internal/repository"
	"github.com/noah-isme/sma-achievement-api/internal/service"
	"github.com/noah-isme/sma-achievement-api/pkg/cache"
	"github.com/noah-isme/sma-achievement-api/pkg/config"
	"github.com/noah-isme/sma-achievement-api/pkg/database"
	"github.com/noah-isme/sma-achievement-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-achievement-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-achievement-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-achievement-api/pkg/storage"
)

// @title SMA Achievement API
// @version 1.0.0
// @description Student achievement tracking with admin review
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
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard caching disabled", "error", err)
		redisClient = nil
	}

	evidenceStore, err := storage.NewEvidenceStorage(cfg.Evidence.StorageDir, cfg.Evidence.PublicPath)
	if err != nil {
		logr.Sugar().Fatalw("failed to init evidence storage", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	achievementRepo := repository.NewAchievementRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled && redisClient != nil)

	authSvc := service.NewAuthService(userRepo, auditRepo, nil, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, logr)
	activitySvc := service.NewActivityService(activityRepo, nil, logr)
	achievementSvc := service.NewAchievementService(service.AchievementServiceParams{
		Repo:       achievementRepo,
		Activities: activityRepo,
		Evidence:   evidenceStore,
		Cache:      cacheSvc,
		Audit:      auditRepo,
		Logger:     logr,
	})
	dashboardSvc := service.NewDashboardService(achievementRepo, cacheSvc, logr, service.DashboardServiceConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	})
	exportSvc := service.NewExportService(achievementRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	activityHandler := handler.NewActivityHandler(activitySvc)
	achievementHandler := handler.NewAchievementHandler(achievementSvc, exportSvc, cfg.Evidence.MaxFileSizeBytes)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

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

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Evidence files are also reachable without auth through their public path.
	r.Static(cfg.Evidence.PublicPath, cfg.Evidence.StorageDir)

	if cfg.Web.Enabled {
		registerWebClient(r, cfg.Web.Dir)
	}

	api := r.Group(cfg.APIPrefix)

	api.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	api.POST("/users/register", authHandler.Register)
	api.POST("/users/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))

	adminOnly := internalmiddleware.RequireRoles(models.RoleAdmin)

	secured.GET("/users/profile", userHandler.Profile)
	secured.GET("/users", adminOnly, userHandler.List)

	secured.GET("/activities", activityHandler.List)
	secured.GET("/activities/:id", activityHandler.Get)
	secured.POST("/activities", adminOnly, internalmiddleware.Audit(auditRepo, models.AuditActionCatalogChange, "activities"), activityHandler.Create)
	secured.PUT("/activities/:id", adminOnly, internalmiddleware.Audit(auditRepo, models.AuditActionCatalogChange, "activities"), activityHandler.Update)
	secured.DELETE("/activities/:id", adminOnly, internalmiddleware.Audit(auditRepo, models.AuditActionCatalogChange, "activities"), activityHandler.Delete)

	secured.POST("/achievements", achievementHandler.Submit)
	secured.GET("/achievements/my", achievementHandler.ListMine)
	secured.GET("/achievements", adminOnly, achievementHandler.ListAll)
	secured.GET("/achievements/export", adminOnly, achievementHandler.Export)
	secured.GET("/achievements/:id", achievementHandler.Get)
	secured.PUT("/achievements/:id", achievementHandler.UpdateContent)
	secured.PUT("/achievements/:id/status", adminOnly, achievementHandler.UpdateStatus)
	secured.DELETE("/achievements/:id", achievementHandler.Delete)
	secured.GET("/achievements/:id/evidence", achievementHandler.Evidence)

	secured.GET("/dashboard/student", dashboardHandler.Student)
	secured.GET("/dashboard/admin", adminOnly, dashboardHandler.Admin)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// registerWebClient serves the bundled single-page client from the web
// directory, with the index as the fallback for unknown non-API paths.
func registerWebClient(r *gin.Engine, dir string) {
	indexFile := filepath.Join(dir, "index.html")

	r.StaticFile("/", indexFile)
	r.StaticFile("/app.js", filepath.Join(dir, "app.js"))
	r.StaticFile("/styles.css", filepath.Join(dir, "styles.css"))

	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.File(indexFile)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "route not found"}})
	})
}
