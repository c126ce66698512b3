package main

import (
	"context"
	"fmt"
	"time"

	"salome-be/internal/config"
	"salome-be/internal/database"
	"salome-be/internal/handlers"
	"salome-be/internal/logger"
	"salome-be/internal/metrics"
	"salome-be/internal/middleware"
	"salome-be/internal/routes"
	"salome-be/internal/service"
	"salome-be/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	if err := config.LoadConfig(); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}
	defer log.Sync()

	db, err := database.InitDB()
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warn("redis unreachable, rate limiting degraded", zap.Error(err))
	}

	var email *service.MultiProviderEmailService
	var providers []service.EmailProvider
	if cfg.Email.ResendAPIKey != "" {
		providers = append(providers, service.NewResendService(cfg.Email.ResendAPIKey, cfg.Email.FromEmail, cfg.Email.FromName))
	}
	if cfg.Email.MailerSendAPIKey != "" {
		providers = append(providers, service.NewEmailService(cfg.Email.MailerSendAPIKey, cfg.Email.FromEmail, cfg.Email.FromName))
	}
	if len(providers) > 0 {
		email = service.NewMultiProviderEmailService(log, providers...)
	} else {
		log.Warn("no email providers configured, emails disabled")
	}

	midtrans := service.NewMidtransService(log)

	groupService := services.NewGroupService(db, log)
	membershipService := services.NewMembershipService(db, log)
	reconciliationService := services.NewReconciliationService(db, log, midtrans, membershipService, email)
	broadcastService := services.NewBroadcastService(db, log, email)

	scheduler := cron.New()
	scheduler.AddFunc("*/10 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		removed, err := membershipService.ExpireOverduePayments(ctx)
		if err != nil {
			log.Error("payment deadline sweep failed", zap.Error(err))
			return
		}
		if removed > 0 {
			metrics.ExpiredMemberships.Add(float64(removed))
			log.Info("payment deadline sweep", zap.Int("removed", removed))
		}
	})
	scheduler.AddFunc("* * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		sent, err := broadcastService.DispatchDue(ctx)
		if err != nil {
			log.Error("broadcast dispatch failed", zap.Error(err))
			return
		}
		if sent > 0 {
			log.Info("scheduled broadcasts dispatched", zap.Int("sent", sent))
		}
	})
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS())

	routes.SetupRoutes(r, routes.Handlers{
		Auth:               handlers.NewAuthHandler(db, log, email),
		App:                handlers.NewAppHandler(db, log),
		Group:              handlers.NewGroupHandler(db, log, groupService, membershipService),
		Payment:            handlers.NewPaymentHandler(log, reconciliationService),
		Broadcast:          handlers.NewBroadcastHandler(broadcastService),
		Notification:       handlers.NewNotificationHandler(db),
		AccountCredentials: handlers.NewAccountCredentialsHandler(db),
		Admin:              handlers.NewAdminHandler(db, log, membershipService, reconciliationService),
	}, db, rdb, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("server starting", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
