package handlers

import (
	"net/http"

	"topup/internal/config"
	"topup/internal/db"
	"topup/internal/middleware"
	"topup/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	txRunner      db.TxRunner
	cfg           config.Config
	users         UserStore
	accounts      AccountStore
	transactions  TransactionStore
	plans         PlanStore
	rewards       RewardStore
	deliveries    DeliveryLogStore
	admin         AdminStore
	audit         AuditStore
	purchases     PurchaseService
	subscriptions SubscriptionService
	rewardEngine  RewardService
	ledger        LedgerService
	hub           *websocket.Hub
}

func New(txRunner db.TxRunner, cfg config.Config, users UserStore, accounts AccountStore, transactions TransactionStore, plans PlanStore, rewards RewardStore, deliveries DeliveryLogStore, admin AdminStore, audit AuditStore, purchases PurchaseService, subscriptions SubscriptionService, rewardEngine RewardService, ledger LedgerService, hub *websocket.Hub) *Handler {
	return &Handler{
		txRunner:      txRunner,
		cfg:           cfg,
		users:         users,
		accounts:      accounts,
		transactions:  transactions,
		plans:         plans,
		rewards:       rewards,
		deliveries:    deliveries,
		admin:         admin,
		audit:         audit,
		purchases:     purchases,
		subscriptions: subscriptions,
		rewardEngine:  rewardEngine,
		ledger:        ledger,
		hub:           hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})
	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Get("/wallet", h.GetWallet)
		r.Post("/wallet/credit", h.CreditWallet)
		r.Get("/plans", h.ListPlans)
		r.Post("/purchases/{service}", h.Purchase)
		r.Get("/transactions", h.ListTransactions)
		r.Post("/subscriptions", h.Subscribe)
		r.Get("/subscriptions", h.ListSubscriptions)
		r.Get("/subscriptions/{id}/deliveries", h.ListDeliveries)
		r.Post("/spin", h.Spin)
		r.Get("/wins", h.ListWins)
		r.Post("/wins/{id}/claim", h.ClaimWin)
	})
	router.Get("/ws/balances", h.WSBalances)

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.With(middleware.RequireAdmin(h.admin, "CanViewTransactions")).Get("/transactions", h.AdminListTransactions)
		r.With(middleware.RequireAdmin(h.admin, "CanViewTransactions")).Get("/audit", h.ListAuditLogs)
		r.With(middleware.RequireAdmin(h.admin, "CanViewTransactions")).Get("/reconcile", h.Reconcile)
		r.With(middleware.RequireAdmin(h.admin, "CanManageCatalog")).Post("/plans", h.UpsertPlan)
		r.With(middleware.RequireAdmin(h.admin, "CanManageCatalog")).Post("/rewards", h.UpsertReward)
		r.With(middleware.RequireAdmin(h.admin, "")).Post("/promote", h.PromoteAdmin)
		r.With(middleware.RequireAdmin(h.admin, "")).Post("/roles/grant", h.GrantRole)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
