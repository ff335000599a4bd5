package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/likenovel/likenovel-backend/internal/clients/keycloak"
	rediscache "github.com/likenovel/likenovel-backend/internal/clients/redis"
	"github.com/likenovel/likenovel-backend/internal/clients/sns"
	"github.com/likenovel/likenovel-backend/internal/db"
	"github.com/likenovel/likenovel-backend/internal/handlers"
	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/middleware"
	"github.com/likenovel/likenovel-backend/internal/observability"
	"github.com/likenovel/likenovel-backend/internal/repos"
	"github.com/likenovel/likenovel-backend/internal/scheduler"
	"github.com/likenovel/likenovel-backend/internal/server"
	"github.com/likenovel/likenovel-backend/internal/services"
	"github.com/likenovel/likenovel-backend/internal/utils"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing (no-op unless OTEL_ENABLED is set)
	tracingShutdown := observability.InitTracing(context.Background(), log, observability.TracingConfig{
		ServiceName: "likenovel",
		Environment: logMode,
		Version:     os.Getenv("APP_VERSION"),
	})
	if tracingShutdown != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracingShutdown(ctx); err != nil {
				log.Warn("Tracing shutdown failed", "error", err)
			}
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Redis
	cache, err := rediscache.NewCache(log)
	if err != nil {
		log.Fatal("Redis init failed", "error", err)
	}
	defer cache.Close()

	// Identity provider, social providers, blob store
	kcClient, err := keycloak.New(log)
	if err != nil {
		log.Fatal("Keycloak client init failed", "error", err)
	}
	snsRegistry := sns.NewRegistry(log)
	bucketService, err := services.NewBucketService(log)
	if err != nil {
		log.Fatal("Bucket service init failed", "error", err)
	}

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	socialBindingRepo := repos.NewSocialBindingRepo(thePG, log)
	profileRepo := repos.NewProfileRepo(thePG, log)
	userCashRepo := repos.NewUserCashRepo(thePG, log)
	productRepo := repos.NewProductRepo(thePG, log)
	episodeRepo := repos.NewEpisodeRepo(thePG, log)
	fileRepo := repos.NewFileRepo(thePG, log)
	ticketbookRepo := repos.NewTicketbookRepo(thePG, log)
	giftbookRepo := repos.NewGiftbookRepo(thePG, log)
	usageRecordRepo := repos.NewUsageRecordRepo(thePG, log)
	promotionRepo := repos.NewPromotionRepo(thePG, log)
	bookmarkRepo := repos.NewBookmarkRepo(thePG, log)
	recommendRepo := repos.NewRecommendRepo(thePG, log)
	userNotificationRepo := repos.NewUserNotificationRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	tokenVerifier := services.NewTokenVerifier(log, kcClient, cache)
	reconcileService := services.NewReconcileService(log, kcClient, userRepo)
	authService := services.NewAuthService(log, thePG, kcClient, snsRegistry, tokenVerifier, reconcileService, userRepo, socialBindingRepo, profileRepo)
	counterService := services.NewCounterService(log, thePG)
	entitlementService := services.NewEntitlementService(log, thePG, episodeRepo, productRepo, ticketbookRepo, userCashRepo, usageRecordRepo, counterService)
	promotionService := services.NewPromotionService(log, thePG, promotionRepo, giftbookRepo, usageRecordRepo, counterService)
	interestService := services.NewInterestService(log, usageRecordRepo)
	notificationService := services.NewNotificationService(log, thePG, bookmarkRepo, profileRepo, userNotificationRepo)
	episodeService := services.NewEpisodeService(log, thePG, episodeRepo, productRepo, fileRepo, bucketService, notificationService)
	catalogService := services.NewCatalogService(log, productRepo, episodeRepo, fileRepo, ticketbookRepo, usageRecordRepo, bookmarkRepo, promotionRepo)
	recommendationService := services.NewRecommendationService(log, cache, recommendRepo, profileRepo, usageRecordRepo, catalogService)
	userService := services.NewUserService(log, userRepo, profileRepo, userCashRepo)

	// Metrics and scheduled jobs
	metrics := observability.NewMetrics()
	jobs := scheduler.New(log, episodeService, metrics)
	if err := jobs.Start(); err != nil {
		log.Fatal("Scheduler start failed", "error", err)
	}
	defer jobs.Stop()

	// Router
	authMiddleware := middleware.NewAuthMiddleware(log, tokenVerifier, userRepo)
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:    handlers.NewAuthHandler(authService, metrics),
		ProductHandler: handlers.NewProductHandler(catalogService, promotionService, interestService, metrics),
		EpisodeHandler: handlers.NewEpisodeHandler(episodeService, entitlementService, metrics),
		HomeHandler:    handlers.NewHomeHandler(recommendationService),
		UserHandler:    handlers.NewUserHandler(userService, notificationService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	port := utils.GetEnv("PORT", "8080", log)
	srv := &http.Server{Addr: ":" + port, Handler: router}

	go func() {
		log.Info("Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", "error", err)
	}
}
