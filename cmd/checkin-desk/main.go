package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkin-desk/common/database"
	"checkin-desk/common/logger"
	commonmqtt "checkin-desk/common/mqtt"
	commonredis "checkin-desk/common/redis"
	"checkin-desk/internal/config"
	httpapi "checkin-desk/internal/http"
	deskmqtt "checkin-desk/internal/mqtt"
	"checkin-desk/internal/service"
	"checkin-desk/internal/store"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "checkin-desk")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	st, db, err := openStore(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("failed to open check-in store", zap.Error(err))
	}

	notifierOpts := service.NotifierOptions{SummaryTTL: cfg.Redis.SummaryTTL}
	svcOpts := service.CheckInServiceOptions{
		Retrier:    store.NewRetrier(cfg.Tx.MaxAttempts, cfg.Tx.Backoff, log),
		SummaryTTL: cfg.Redis.SummaryTTL,
	}

	// Redis: summary cache + check-in event stream
	var redisClient *commonredis.Client
	if cfg.Redis.Enabled {
		redisClient = commonredis.NewRedisClient(&cfg.Redis.RedisConfig)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := commonredis.Ping(pingCtx, redisClient); err != nil {
			log.Warn("redis unreachable, cache and event stream disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			_ = commonredis.Close(redisClient)
			redisClient = nil
		}
		cancel()
	}
	if redisClient != nil {
		kv := store.NewRedisKV(redisClient)
		svcOpts.Cache = kv
		notifierOpts.Cache = kv
		notifierOpts.Events = service.NewStreamPublisher(redisClient, cfg.Redis.Stream, cfg.Redis.StreamMaxLen)
	}

	// MQTT: desk display push
	var mqttClient *commonmqtt.Client
	if cfg.MQTT.Enabled {
		if c, err := commonmqtt.NewClient(&cfg.MQTT.MQTTConfig); err == nil {
			mqttClient = c
			notifierOpts.Displays = deskmqtt.NewDeskPublisher(mqttClient, cfg.MQTT.TopicPrefix, log)
			log.Info("MQTT desk displays enabled", zap.String("broker", cfg.MQTT.Broker))
		} else {
			log.Warn("MQTT enabled but connection failed, desk displays disabled", zap.Error(err))
		}
	}

	if cfg.SMTP.Enabled {
		if m, err := service.NewSMTPMailer(cfg.SMTP.SMTPConfig); err == nil {
			notifierOpts.Mailer = m
		} else {
			log.Warn("SMTP enabled but client setup failed, summary emails disabled", zap.Error(err))
		}
	}
	notifierOpts.Webhook = service.NewWebhookClient(cfg.Webhook.Timeout, log)
	svcOpts.Notifier = service.NewNotifier(st, notifierOpts, log)

	svc := service.NewCheckInService(st, svcOpts, log)

	var checks []httpapi.HealthCheck
	if db != nil {
		checks = append(checks, httpapi.HealthCheck{Name: "postgres", Check: db.PingContext})
	}
	if redisClient != nil {
		checks = append(checks, httpapi.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return commonredis.Ping(ctx, redisClient)
		}})
	}
	if mqttClient != nil {
		checks = append(checks, httpapi.HealthCheck{Name: "mqtt", Check: func(context.Context) error {
			if !mqttClient.IsConnected() {
				return errors.New("not connected to broker")
			}
			return nil
		}})
	}

	router := httpapi.NewRouter(log)
	router.RegisterHealthRoutes(checks...)
	router.RegisterCheckInRoutes(httpapi.NewCheckInHandler(svc, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)
	srv.DrainOnStop(svc.Wait)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop server", zap.Error(err))
	}

	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	if redisClient != nil {
		_ = commonredis.Close(redisClient)
	}
	if db != nil {
		_ = database.Close(db)
	}
	log.Info("checkin-desk stopped")
}
