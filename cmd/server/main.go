package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/betselot/herdstore/internal/adapter/handler"
	"github.com/betselot/herdstore/internal/adapter/storage"
	"github.com/betselot/herdstore/internal/adapter/telegram"
	"github.com/betselot/herdstore/internal/config"
	"github.com/betselot/herdstore/internal/core/domain"
	"github.com/betselot/herdstore/internal/core/service"
	"github.com/betselot/herdstore/internal/metrics"
	"github.com/betselot/herdstore/internal/port"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	// Seed the availability gate from the store so the cache never admits
	// more buyers than the table would.
	animals, err := mysqlAdapter.ListAvailableAnimals(ctx)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.Error(err))
	}
	for _, a := range animals {
		if err := redisAdapter.SeedAvailability(ctx, a.ID, a.Available); err != nil {
			logger.Fatal("failed to seed availability gate", zap.Int64("animal_id", a.ID), zap.Error(err))
		}
	}
	logger.Info("availability gate seeded", zap.Int("animals", len(animals)))

	intake := service.NewIntakeService(mysqlAdapter, redisAdapter, logger, cfg.QueueSize)
	router := service.NewCommandRouter(mysqlAdapter, cfg.AdminChatID, cfg.FrontendURL(), logger)

	tgClient := telegram.NewClient(cfg.BotToken)
	notifier := telegram.NewNotifier(tgClient, cfg.AdminChatID)

	// Notification workers: drain the post-commit queue, log failures and
	// keep going. A dropped message never touches the order.
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			notifyLoop(id, intake.Notifications(), notifier, logger)
		}(i)
	}
	logger.Info("started notification workers", zap.Int("count", cfg.WorkerCount))

	// Webhook registration (production only; dev points Telegram elsewhere)
	if !cfg.IsDev() && cfg.PublicURL != "" {
		if err := tgClient.DeleteWebhook(ctx); err != nil {
			logger.Warn("delete webhook failed", zap.Error(err))
		}
		if err := tgClient.SetWebhook(ctx, cfg.PublicURL+"/webhook"); err != nil {
			logger.Fatal("failed to register webhook", zap.Error(err))
		}
		if err := tgClient.SetChatMenuButton(ctx, "🐑 Sheep & Goat Store", cfg.FrontendURL()); err != nil {
			logger.Warn("set chat menu button failed", zap.Error(err))
		}
		logger.Info("telegram webhook registered", zap.String("url", cfg.PublicURL+"/webhook"))
	}

	// HTTP server
	httpHandler := handler.NewHTTPHandler(intake, mysqlAdapter, logger)
	webhookHandler := handler.NewWebhookHandler(intake, router, mysqlAdapter, tgClient, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.Handle("/webhook", webhookHandler)
	mux.Handle("/api/webhook", webhookHandler)
	mux.HandleFunc("/orders", httpHandler.PlaceOrder)
	mux.HandleFunc("/users/upsert", httpHandler.UpsertUser)
	mux.HandleFunc("/animals", httpHandler.Animals)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: mux,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("port", cfg.HTTPPort), zap.String("env", cfg.AppEnv))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	intake.Close()
	wg.Wait()
	logger.Info("notification workers stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}

func notifyLoop(id int, queue <-chan domain.OrderNotification, notifier port.Notifier, logger *zap.Logger) {
	for n := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

		if err := notifier.NotifyBuyer(ctx, n); err != nil {
			metrics.NotificationsFailed.Inc()
			logger.Warn("buyer notification failed",
				zap.Int("worker", id), zap.Int64("order_id", n.OrderID), zap.Error(err))
		}
		if err := notifier.NotifyOperator(ctx, n); err != nil {
			metrics.NotificationsFailed.Inc()
			logger.Warn("operator notification failed",
				zap.Int("worker", id), zap.Int64("order_id", n.OrderID), zap.Error(err))
		}

		cancel()
	}
}
