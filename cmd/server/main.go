package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"topup/internal/config"
	"topup/internal/db"
	"topup/internal/handlers"
	"topup/internal/notify"
	"topup/internal/provider"
	"topup/internal/services"
	"topup/internal/store"
	"topup/internal/websocket"
)

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

	users := store.NewUserStore(database)
	accounts := store.NewAccountStore(database)
	transactions := store.NewTransactionStore(database)
	plans := store.NewPlanStore(database)
	subscriptions := store.NewSubscriptionStore(database)
	deliveries := store.NewDeliveryLogStore(database)
	rewards := store.NewRewardStore(database)
	wins := store.NewWinStore(database)
	admin := store.NewAdminStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.NotifyURL != "" {
		notifier = notify.NewHTTPNotifier(cfg.NotifyURL)
	}
	gateway := provider.NewGateway(cfg.Providers, nil)

	ledger := services.NewLedgerService(txRunner, accounts, transactions, audit)
	purchases := services.NewPurchaseService(ledger, gateway, plans, notifier, hub)
	subscriptionSvc := services.NewSubscriptionService(txRunner, accounts, transactions, subscriptions, plans, notifier, hub)
	rewardSvc := services.NewRewardService(txRunner, rewards, wins, ledger, gateway, notifier)

	handler := handlers.New(txRunner, cfg, users, accounts, transactions, plans, rewards, deliveries, admin, audit, purchases, subscriptionSvc, rewardSvc, ledger, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("topup API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
