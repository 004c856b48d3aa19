package services

import (
	"context"
	"errors"
	"time"

	"topup/internal/db"
	"topup/internal/models"
	"topup/internal/money"
	"topup/internal/notify"
	"topup/internal/store"
	"topup/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotRecurringPlan = errors.New("plan is not a recurring plan")

type SubscriptionStore interface {
	Create(ctx context.Context, tx store.Execer, input store.SubscriptionInput) error
	ListByAccount(ctx context.Context, accountID string) ([]store.Subscription, error)
}

// SubscriptionService sells recurring daily data plans. The full plan price
// is charged up front in one unit of work with the subscription row, so a
// crash can never leave a paid plan without its schedule or a schedule
// without its payment. Deliveries themselves are the scheduler's job and
// never touch the wallet again.
type SubscriptionService struct {
	txRunner      db.TxRunner
	accounts      AccountStore
	transactions  TransactionStore
	subscriptions SubscriptionStore
	plans         PlanStore
	notifier      notify.Notifier
	hub           BalanceHub
}

func NewSubscriptionService(txRunner db.TxRunner, accounts AccountStore, transactions TransactionStore, subscriptions SubscriptionStore, plans PlanStore, notifier notify.Notifier, hub BalanceHub) *SubscriptionService {
	return &SubscriptionService{
		txRunner:      txRunner,
		accounts:      accounts,
		transactions:  transactions,
		subscriptions: subscriptions,
		plans:         plans,
		notifier:      notifier,
		hub:           hub,
	}
}

type SubscribeRequest struct {
	UserID    string
	AccountID string
	Network   string
	PlanCode  string
	Phone     string
}

type SubscribeResult struct {
	SubscriptionID string
	TransactionID  string
	Reference      string
	TotalCycles    int
	BalanceAfter   int64
}

func (s *SubscriptionService) Subscribe(ctx context.Context, req SubscribeRequest) (SubscribeResult, error) {
	if req.Phone == "" {
		return SubscribeResult{}, ErrMissingDestination
	}
	plan, found, err := s.plans.GetByCode(ctx, req.Network, "data", req.PlanCode)
	if err != nil {
		return SubscribeResult{}, err
	}
	if !found {
		return SubscribeResult{}, ErrPlanNotFound
	}
	if plan.Cycles <= 1 {
		return SubscribeResult{}, ErrNotRecurringPlan
	}

	var result SubscribeResult
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, req.AccountID)
		if err != nil {
			return err
		}
		// Same rule as a purchase reserve: money under an open hold is not
		// available to spend on a subscription.
		holds, err := s.transactions.SumOpenHolds(ctx, tx, req.AccountID)
		if err != nil {
			return err
		}
		if account.Balance-holds < plan.SellPrice {
			return ErrInsufficientFunds
		}
		balanceAfter := account.Balance - plan.SellPrice
		reference := NewReference("sub")
		transactionID := uuid.NewString()
		if err := s.transactions.Create(ctx, tx, store.TransactionInput{
			ID:            transactionID,
			AccountID:     req.AccountID,
			Reference:     reference,
			Service:       "subscription",
			Destination:   req.Phone,
			Amount:        plan.SellPrice,
			Status:        models.TxSuccess,
			BalanceBefore: account.Balance,
			BalanceAfter:  balanceAfter,
		}); err != nil {
			return err
		}
		if err := s.accounts.UpdateBalance(ctx, tx, req.AccountID, balanceAfter); err != nil {
			return err
		}
		subscriptionID := uuid.NewString()
		// First cycle is due immediately; the next scheduler run delivers it.
		if err := s.subscriptions.Create(ctx, tx, store.SubscriptionInput{
			ID:             subscriptionID,
			AccountID:      req.AccountID,
			Phone:          req.Phone,
			Network:        req.Network,
			PlanCode:       req.PlanCode,
			PricePerCycle:  plan.SellPrice / int64(plan.Cycles),
			TotalCycles:    plan.Cycles,
			NextDeliveryAt: time.Now().UTC(),
			Reference:      reference,
		}); err != nil {
			return err
		}
		result = SubscribeResult{
			SubscriptionID: subscriptionID,
			TransactionID:  transactionID,
			Reference:      reference,
			TotalCycles:    plan.Cycles,
			BalanceAfter:   balanceAfter,
		}
		return nil
	})
	if err != nil {
		return SubscribeResult{}, err
	}

	notify.BestEffort(ctx, s.notifier, notify.Event{
		AccountID: req.AccountID,
		Type:      "subscription_created",
		Payload: map[string]any{
			"plan":      req.PlanCode,
			"phone":     req.Phone,
			"cycles":    result.TotalCycles,
			"reference": result.Reference,
		},
	})
	if s.hub != nil {
		s.hub.BroadcastBalance(req.UserID, websocket.BalanceUpdate{
			AccountID: req.AccountID,
			Balance:   money.FormatMinor(result.BalanceAfter),
			Reference: result.Reference,
		})
	}
	return result, nil
}

func (s *SubscriptionService) List(ctx context.Context, accountID string) ([]store.Subscription, error) {
	return s.subscriptions.ListByAccount(ctx, accountID)
}
