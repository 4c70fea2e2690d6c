package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-backoffice/config"
	"github.com/yeremiapane/restaurant-backoffice/controllers"
	"github.com/yeremiapane/restaurant-backoffice/database"
	"github.com/yeremiapane/restaurant-backoffice/events"
	"github.com/yeremiapane/restaurant-backoffice/kds"
	"github.com/yeremiapane/restaurant-backoffice/realtime"
	"github.com/yeremiapane/restaurant-backoffice/router"
	"github.com/yeremiapane/restaurant-backoffice/services"
	"github.com/yeremiapane/restaurant-backoffice/utils"
)

func main() {
	cfg, err := config.Load(utils.NewLogger("info", "text"))
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	if err := config.AutoMigrate(db); err != nil {
		logger.WithError(err).Fatal("Failed to AutoMigrate")
	}
	logger.Info("AutoMigrate completed")

	if err := controllers.SeedAdmin(db, cfg.AdminEmail, cfg.AdminPassword, logger); err != nil {
		logger.WithError(err).Fatal("Failed to seed admin user")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := kds.NewHub(logger)
	go hub.Run(ctx)

	// Change feed: db_changes -> broker, or -> Kafka when brokers are configured.
	broker := realtime.NewBroker(logger)
	defer broker.Close()
	var transport realtime.Transport = broker
	var sink realtime.Publisher = broker
	if cfg.KafkaEnabled() {
		publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer publisher.Close()
		sink = publisher
		transport = events.NewKafkaTransport(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup, logger)
		logger.WithField("brokers", cfg.KafkaBrokers).Info("Change feed mirrored to Kafka")
	}

	monitor := services.NewChangeMonitor(db, logger, sink)
	monitor.Interval = cfg.ChangePollInterval
	monitor.Start()
	defer monitor.Stop()

	notifier := services.MultiNotifier{
		services.LogNotifier{Logger: logger},
		services.NewDBNotifier(db, logger),
		hub,
	}
	session := services.NewSession(database.NewGormStore(db, logger), transport, notifier, logger)
	session.Start(ctx)
	defer session.Close()

	go func() {
		if err := hub.Relay(ctx, transport, services.OrdersKey); err != nil {
			logger.WithError(err).Error("Websocket relay stopped")
		}
	}()

	r := router.SetupRouter(router.Dependencies{
		DB:             db,
		Session:        session,
		Hub:            hub,
		Tokens:         utils.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		Logger:         logger,
		CORSOrigin:     cfg.CORSOrigin,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Starting back-office server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	logger.Info("Server gracefully stopped")
}
