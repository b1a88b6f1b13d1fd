package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/course-select-api/api/swagger"
	"github.com/noah-isme/course-select-api/internal/handler"
	"github.com/noah-isme/course-select-api/internal/middleware"
	"github.com/noah-isme/course-select-api/internal/repository"
	"github.com/noah-isme/course-select-api/internal/service"
	"github.com/noah-isme/course-select-api/migrations"
	"github.com/noah-isme/course-select-api/pkg/cache"
	"github.com/noah-isme/course-select-api/pkg/config"
	"github.com/noah-isme/course-select-api/pkg/database"
	"github.com/noah-isme/course-select-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-select-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-select-api/pkg/middleware/requestid"
)

// @title Course Select API
// @version 1.0.0
// @description University course browsing and enrollment service
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

	if err := migrations.Up(db.DB); err != nil {
		logr.Sugar().Fatalw("failed to run migrations", "error", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	txManager := repository.NewPostgresTxManager(db)

	metricsSvc := service.NewMetricsService()

	var catalogSvc *service.CatalogService
	if cfg.Catalog.CacheEnabled && redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		catalogSvc = service.NewCatalogService(courseRepo, cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr)
	} else {
		catalogSvc = service.NewCatalogService(courseRepo, nil, metricsSvc, cfg.Catalog.CacheTTL, logr)
	}

	enrollmentSvc := service.NewEnrollmentService(courseRepo, enrollmentRepo, txManager, catalogSvc, logr)
	authSvc := service.NewAuthService(userRepo, validator.New(), logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

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
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	router := &handler.Router{
		Auth:        handler.NewAuthHandler(authSvc),
		Courses:     handler.NewCourseHandler(catalogSvc),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		Metrics:     handler.NewMetricsHandler(metricsSvc),
		AuthService: authSvc,
	}
	router.Register(r, cfg.APIPrefix)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
