package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credential-engagement-backend/app/repository"
	"credential-engagement-backend/app/service"
	"credential-engagement-backend/config"
	"credential-engagement-backend/database"
	"credential-engagement-backend/middleware"
	"credential-engagement-backend/routes"
	"credential-engagement-backend/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "credential-engagement-backend"

func main() {
	// =================================================================
	// LOAD CONFIG (.env + environment)
	// =================================================================
	cfg, loaded, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Konfigurasi tidak valid: %v", err)
	}

	logger, err := utils.NewLogger(cfg.AppMode)
	if err != nil {
		log.Fatalf("❌ Gagal membuat logger: %v", err)
	}
	defer logger.Sync()
	if !loaded {
		logger.Warn(".env tidak ditemukan, menggunakan environment proses")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// =================================================================
	// TRACING (opsional)
	// =================================================================
	shutdownTracing, err := utils.SetupTracing(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		logger.Fatal("setup tracing failed", "error", err)
	}

	// =================================================================
	// INIT DB (POSTGRES + MONGODB + REDIS)
	// =================================================================
	dbConn, err := database.InitDB(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("database connection failed", "error", err)
	}

	// =================================================================
	// REPOSITORIES
	// =================================================================
	userRepo := repository.NewUserRepository(dbConn.Postgres)
	certRepo := repository.NewCertificateRepository(dbConn.Postgres)
	skillRepo := repository.NewSkillRepository(dbConn.Postgres)
	issuerRepo := repository.NewIssuerRepository(dbConn.Postgres)
	leaderboardRepo := repository.NewLeaderboardRepository(dbConn.Postgres)
	historyRepo := repository.NewVerificationHistoryRepository(dbConn.Mongo)
	reportRepo := repository.NewReportRepository(dbConn.Mongo)

	var snapshots repository.SnapshotStore
	switch cfg.Leaderboard.Store {
	case "redis":
		if dbConn.Redis == nil {
			logger.Fatal("LEADERBOARD_STORE=redis membutuhkan REDIS_ADDR")
		}
		snapshots = repository.NewRedisSnapshotStore(dbConn.Redis)
	case "memory":
		snapshots = repository.NewMemorySnapshotStore()
	default:
		snapshots = repository.NewMongoSnapshotStore(dbConn.Mongo)
	}

	// =================================================================
	// SEED DATA (SKILLS + ISSUERS + ADMIN)
	// =================================================================
	admin, err := database.RunSeeders(ctx, dbConn.Postgres, issuerRepo, logger)
	if err != nil {
		logger.Fatal("seeding failed", "error", err)
	}

	// =================================================================
	// EXTERNAL ADAPTERS (oracle, OCR)
	// =================================================================
	oracle := service.NewOracleClient(cfg.Oracle, &http.Client{}, logger)
	extractors := []service.TextExtractor{}
	if cfg.Vision.Enabled {
		visionExtractor, err := service.NewVisionExtractor(ctx, cfg.Vision.CredentialsFile)
		if err != nil {
			logger.Fatal("vision client init failed", "error", err)
		}
		defer visionExtractor.Close()
		extractors = append(extractors, visionExtractor)
	}
	extractors = append(extractors, oracle)
	extractor := service.NewChainExtractor(logger, extractors...)

	// =================================================================
	// SERVICES
	// =================================================================
	ledger := service.NewGamificationService(userRepo, cfg.Awards, nil, logger)
	streakService, err := service.NewStreakService(ledger, cfg.Streak, cfg.Awards)
	if err != nil {
		logger.Fatal("streak service init failed", "error", err)
	}
	verificationService := service.NewVerificationService(
		certRepo,
		historyRepo,
		extractor,
		oracle,
		service.NewIssuerRegistry(issuerRepo),
		ledger,
		nil,
		logger,
	)
	certificateService := service.NewCertificateService(certRepo, skillRepo, ledger, logger)
	leaderboardService := service.NewLeaderboardService(leaderboardRepo, snapshots, cfg.Leaderboard, nil, logger)
	profileService := service.NewProfileService(userRepo, skillRepo)
	reportService := service.NewReportService(reportRepo)
	adminService := service.NewAdminService(userRepo, issuerRepo, ledger, verificationService, []byte(cfg.JWTSecret))

	if cfg.AppMode == "development" {
		if token, err := utils.GenerateToken([]byte(cfg.JWTSecret), admin.ID, admin.Role, 24*time.Hour); err == nil {
			logger.Info("development admin token", "userId", admin.ID, "token", token)
		}
	}

	// =================================================================
	// ROUTER
	// =================================================================
	if cfg.AppMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), gin.Logger(), otelgin.Middleware(serviceName))

	auth := middleware.AuthMiddleware([]byte(cfg.JWTSecret))
	activity := middleware.ActivityTracker(streakService, nil, logger)

	routes.NewCertificateHandler(certificateService, verificationService).SetupCertificateRoutes(r, auth, activity)
	routes.NewLeaderboardHandler(leaderboardService).SetupLeaderboardRoutes(r, auth, activity)
	routes.NewEngagementHandler(profileService, streakService, nil).SetupEngagementRoutes(r, auth)
	routes.AdminRoutes(r, adminService, auth)
	routes.ReportRoutes(r, reportService, auth)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Credential Engagement API RUNNING",
			"version": "1.0.0",
		})
	})

	// =================================================================
	// START SERVER
	// =================================================================
	srv := &http.Server{Addr: ":" + cfg.AppPort, Handler: r}
	go func() {
		logger.Info("server running", "addr", "http://localhost:"+cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown failed", "error", err)
	}
	dbConn.Close(shutdownCtx)
}
