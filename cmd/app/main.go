package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"zzik-backend/internal/api"
	"zzik-backend/internal/events"
	"zzik-backend/internal/middleware"
	"zzik-backend/internal/repository"
	"zzik-backend/internal/service"
	"zzik-backend/pkg/antispoof"
	"zzik-backend/pkg/logger"
	"zzik-backend/pkg/qrsign"
	"go.uber.org/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	repo, err := repository.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.EventsURL != "" {
		wsPublisher := events.NewWsPublisher(cfg.EventsURL)
		defer wsPublisher.Close()
		publisher = wsPublisher
	}

	serviceCfg := service.Config{
		MaxGpsAge:         cfg.Verification.MaxGpsAge,
		MaxAccuracyMeters: cfg.Verification.MaxAccuracyMeters,
		MaxDistanceMeters: cfg.Verification.MaxDistanceMeters,
		RunTTL:            cfg.Verification.RunTTL,
		NonceTTL:          cfg.Verification.NonceTTL,
	}

	signer := qrsign.NewSigner(cfg.QrSecret)
	runService := service.NewMissionRunService(repo, repo, serviceCfg, publisher)
	verificationService := service.NewVerificationService(
		repo, repo, repo, signer, antispoof.NewMockFlagChecker(), serviceCfg, publisher)
	rewardService := service.NewRewardService(repo, repo, repo, publisher)

	authorization := middleware.NewAuthorization(cfg.AdminAPIKey)

	router := gin.New()
	router.Use(gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	}
	config.AllowHeaders = []string{"*"}
	config.AllowCredentials = true
	config.MaxAge = 12 * time.Hour

	router.Use(cors.New(config))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	a := router.Group("/api/v1")
	api.NewMissionRunRoutes(a, runService, verificationService)
	api.NewAdminRoutes(a, rewardService, verificationService, authorization)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	zapLogger.Info("Starting server", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		zapLogger.Fatal("Failed to start server", zap.Error(err))
	}
}
