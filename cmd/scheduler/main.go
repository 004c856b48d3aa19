package main

import (
	"context"
	"log"
	"os"
	"time"

	"topup/internal/config"
	"topup/internal/db"
	"topup/internal/notify"
	"topup/internal/provider"
	"topup/internal/runlock"
	"topup/internal/scheduler"
	"topup/internal/store"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// One pass over due subscriptions, meant to run from cron every few minutes.
// The redis lock keeps overlapping cron fires from double-delivering.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()

	lock := runlock.NewRedisLock(redisClient, "topup:scheduler:run", uuid.NewString(), 10*time.Minute)
	txRunner := db.NewTxRunner(database)
	subscriptions := store.NewSubscriptionStore(database)
	logs := store.NewDeliveryLogStore(database)
	gateway := provider.NewGateway(cfg.Providers, nil)

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.NotifyURL != "" {
		notifier = notify.NewHTTPNotifier(cfg.NotifyURL)
	}

	runner := scheduler.New(lock, txRunner, subscriptions, logs, gateway, notifier)

	ctx, cancel := context.WithTimeout(context.Background(), 9*time.Minute)
	defer cancel()
	stats, err := runner.Run(ctx)
	if err != nil {
		log.Printf("scheduler run failed: %v", err)
		os.Exit(1)
	}
	if stats.Skipped {
		return
	}
	log.Printf("done: due=%d delivered=%d failed=%d", stats.Due, stats.Delivered, stats.Failed)
}
