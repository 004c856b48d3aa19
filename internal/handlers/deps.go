package handlers

import (
	"context"
	"time"

	"topup/internal/services"
	"topup/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (map[string]any, error)
	GetByID(ctx context.Context, userID string) (map[string]any, error)
}

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, id, userID string, balance int64) error
	GetByUser(ctx context.Context, userID string) (store.Account, error)
	GetByID(ctx context.Context, accountID string) (store.Account, error)
}

type TransactionStore interface {
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]store.Transaction, error)
	ListAll(ctx context.Context, limit, offset int) ([]store.Transaction, error)
	SumSuccessDeltas(ctx context.Context, accountID string) (int64, error)
}

type PlanStore interface {
	ListByService(ctx context.Context, network, service string) ([]store.Plan, error)
	Upsert(ctx context.Context, tx store.Execer, plan store.Plan) error
}

type RewardStore interface {
	Upsert(ctx context.Context, tx store.Execer, entry store.RewardEntry) error
}

type DeliveryLogStore interface {
	ListBySubscription(ctx context.Context, subscriptionID string, limit int) ([]store.DeliveryLog, error)
}

type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, bool, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
	CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	GrantRole(ctx context.Context, tx store.Execer, adminUserID, role string) error
	HasAnyAdmin(ctx context.Context) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	List(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

type PurchaseService interface {
	Purchase(ctx context.Context, req services.PurchaseRequest) (services.PurchaseResult, error)
}

type SubscriptionService interface {
	Subscribe(ctx context.Context, req services.SubscribeRequest) (services.SubscribeResult, error)
	List(ctx context.Context, accountID string) ([]store.Subscription, error)
}

type RewardService interface {
	Spin(ctx context.Context, accountID string) (services.SpinResult, error)
	Claim(ctx context.Context, req services.ClaimRequest) (services.ClaimResult, error)
	ListWins(ctx context.Context, accountID string) ([]store.Win, error)
}

type LedgerService interface {
	Credit(ctx context.Context, accountID string, amount int64, service string) (string, int64, error)
}

type SubscriptionReadStore interface {
	ListDue(ctx context.Context, now time.Time) ([]store.Subscription, error)
}
