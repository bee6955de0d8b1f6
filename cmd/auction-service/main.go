package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mariaiaiaia/auction-sub000/internal/api/handlers"
	"github.com/Mariaiaiaia/auction-sub000/internal/config"
	"github.com/Mariaiaiaia/auction-sub000/internal/infrastructure/collaborator"
	"github.com/Mariaiaiaia/auction-sub000/internal/infrastructure/mysql"
	redisinfra "github.com/Mariaiaiaia/auction-sub000/internal/infrastructure/redis"
	ws "github.com/Mariaiaiaia/auction-sub000/internal/infrastructure/websocket"
	"github.com/Mariaiaiaia/auction-sub000/internal/services"
	"github.com/Mariaiaiaia/auction-sub000/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	log := logger.New()
	log.Info("Starting Auction Lifecycle Service")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}(db)

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Durable store and Redis based components
	auctionRepo := mysql.NewMySQLAuctionRepository(db)
	snapshotCache := redisinfra.NewRedisSnapshotCache(rdb, log)
	participantStore := redisinfra.NewRedisParticipantStore(rdb)
	eventPublisher := redisinfra.NewRedisEventPublisher(rdb, cfg.Bus.PublishAttempts, cfg.Bus.PublishDelay, log)
	eventSubscriber := redisinfra.NewRedisEventSubscriber(rdb, log)
	leaderElection := redisinfra.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	// Collaborator services
	itemClient := collaborator.NewHTTPItemClient(cfg.Collaborator.ItemServiceURL, cfg.Collaborator.Timeout)
	userClient := collaborator.NewHTTPUserClient(cfg.Collaborator.UserServiceURL, cfg.Collaborator.Timeout)

	// Live feed
	connManager := ws.NewConnectionManager(log)

	// Services
	accessControl := services.NewAccessControl(participantStore, log)
	cacheManager := services.NewCacheManager(auctionRepo, snapshotCache, eventPublisher, connManager,
		cfg.Sweep.PrewarmWindow, log)
	coordinator := services.NewCoordinator(auctionRepo, snapshotCache, accessControl, eventPublisher,
		itemClient, userClient, cacheManager, connManager, log)
	consumers := services.NewConsumers(eventSubscriber, coordinator, log)
	sweeper := services.NewSweeper(cacheManager, leaderElection, cfg.Instance.ID,
		cfg.Sweep.PrewarmInterval, cfg.Sweep.FinalizeInterval, log)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET, echo.HEAD, echo.PUT, echo.PATCH,
			echo.POST, echo.DELETE, echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			echo.HeaderXRequestedWith,
		},
	}))

	auctionHandler := handlers.NewAuctionHandler(coordinator, log)
	auctionHandler.Register(e)

	// Websocket live feed listens on its own port behind the gateway.
	feedHandler := ws.NewFeedHandler(coordinator, connManager, log)
	feedServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Feed.Port),
		Handler: feedHandler.Router(),
	}

	// Start background services
	rootCtx, stopBackground := context.WithCancel(context.Background())

	consumers.Start(rootCtx)

	if err := sweeper.Start(rootCtx); err != nil {
		log.Error("Failed to start sweeper", "error", err)
		os.Exit(1)
	}

	go func() {
		for {
			became, err := leaderElection.BecomeLeader(rootCtx, cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
			} else if became {
				log.Info("Became sweep leader", "instance_id", cfg.Instance.ID)
			}
			select {
			case <-time.After(10 * time.Second):
			case <-rootCtx.Done():
				return
			}
		}
	}()

	go func() {
		log.Info("Starting live feed server", "address", feedServer.Addr)
		if err := feedServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Feed server failed", "error", err)
			os.Exit(1)
		}
	}()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting auction server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := sweeper.Stop(); err != nil {
		log.Error("Failed to stop sweeper", "error", err)
	}
	consumers.Stop()
	stopBackground()

	if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}

	if err := feedServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Feed server forced to shutdown", "error", err)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Auction service stopped")
}
