package services

import (
	"context"
	"errors"
	"log"

	"topup/internal/models"
	"topup/internal/money"
	"topup/internal/notify"
	"topup/internal/provider"
	"topup/internal/store"
	"topup/internal/websocket"
)

var (
	ErrInvalidService     = errors.New("unknown service type")
	ErrMissingDestination = errors.New("destination is required")
	ErrPlanNotFound       = errors.New("plan not found")
	ErrPriceMismatch      = errors.New("amount does not match catalog price")
)

// Product types the orchestrator sells.
var purchaseServices = map[string]bool{
	"airtime":     true,
	"data":        true,
	"cable":       true,
	"electricity": true,
	"exam":        true,
	"pin":         true,
}

// Services sold strictly from the plan catalog; the others take a free-form
// amount.
var planServices = map[string]bool{
	"data":  true,
	"cable": true,
	"exam":  true,
	"pin":   true,
}

// Services where a caller-supplied amount must equal the catalog price.
// Mismatch is a hard failure, never silently corrected.
var priceMatchServices = map[string]bool{
	"cable":       true,
	"electricity": true,
}

type Ledger interface {
	Reserve(ctx context.Context, accountID, service, destination string, amount int64) (Reservation, error)
	Finalize(ctx context.Context, transactionID string, outcome provider.Outcome, costPrice int64, providerPayload string) (FinalizeResult, error)
}

type Gateway interface {
	Submit(ctx context.Context, req provider.Request) (provider.Result, error)
}

type PlanStore interface {
	GetByCode(ctx context.Context, network, service, code string) (store.Plan, bool, error)
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

// PurchaseService drives one purchase from request to terminal state:
// validate, reserve, call the provider, settle the ledger, tell the user.
type PurchaseService struct {
	ledger   Ledger
	gateway  Gateway
	plans    PlanStore
	notifier notify.Notifier
	hub      BalanceHub
}

func NewPurchaseService(ledger Ledger, gateway Gateway, plans PlanStore, notifier notify.Notifier, hub BalanceHub) *PurchaseService {
	return &PurchaseService{
		ledger:   ledger,
		gateway:  gateway,
		plans:    plans,
		notifier: notifier,
		hub:      hub,
	}
}

type PurchaseRequest struct {
	UserID      string
	AccountID   string
	Service     string
	Network     string
	Destination string
	PlanCode    string
	Amount      int64
	MeterType   string
}

type PurchaseResult struct {
	TransactionID string
	Reference     string
	Status        string
	Message       string
	BalanceAfter  int64
	Duplicate     bool
}

func (s *PurchaseService) Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error) {
	if !purchaseServices[req.Service] {
		return PurchaseResult{}, ErrInvalidService
	}
	if req.Destination == "" {
		return PurchaseResult{}, ErrMissingDestination
	}

	chargeAmount := req.Amount
	costPrice := req.Amount
	if planServices[req.Service] || (req.Service == "electricity" && req.PlanCode != "") {
		plan, found, err := s.plans.GetByCode(ctx, req.Network, req.Service, req.PlanCode)
		if err != nil {
			return PurchaseResult{}, err
		}
		if !found {
			return PurchaseResult{}, ErrPlanNotFound
		}
		costPrice = plan.CostPrice
		if req.Amount == 0 {
			chargeAmount = plan.SellPrice
		} else if req.Amount != plan.SellPrice && priceMatchServices[req.Service] {
			return PurchaseResult{}, ErrPriceMismatch
		} else if planServices[req.Service] {
			chargeAmount = plan.SellPrice
		}
	}
	if chargeAmount <= 0 {
		return PurchaseResult{}, ErrInvalidAmount
	}

	reservation, err := s.ledger.Reserve(ctx, req.AccountID, req.Service, req.Destination, chargeAmount)
	if err != nil {
		return PurchaseResult{}, err
	}
	if reservation.Duplicate {
		return PurchaseResult{
			TransactionID: reservation.TransactionID,
			Reference:     reservation.Reference,
			Status:        reservation.Status,
			Message:       "purchase already in progress",
			Duplicate:     true,
		}, nil
	}

	// From here the purchase must reach a terminal state and be logged even
	// if the client hangs up mid-flight.
	ctx = context.WithoutCancel(ctx)

	result, err := s.gateway.Submit(ctx, provider.Request{
		Network:     req.Network,
		Service:     req.Service,
		Destination: req.Destination,
		PlanCode:    req.PlanCode,
		Amount:      chargeAmount,
		Reference:   reservation.Reference,
		MeterType:   req.MeterType,
	})
	if err != nil {
		// Our own misconfiguration, not a provider verdict. Close the
		// record so no money is in limbo, then surface the bug.
		if _, finErr := s.ledger.Finalize(ctx, reservation.TransactionID, provider.Failed, 0, ""); finErr != nil {
			log.Printf("finalize after gateway error failed for %s: %v", reservation.Reference, finErr)
		}
		return PurchaseResult{}, err
	}

	final, err := s.ledger.Finalize(ctx, reservation.TransactionID, result.Outcome, costPrice, string(result.Raw))
	if err != nil {
		return PurchaseResult{}, err
	}

	notify.BestEffort(ctx, s.notifier, notify.Event{
		AccountID: req.AccountID,
		Type:      "purchase_" + final.Status,
		Payload: map[string]any{
			"service":     req.Service,
			"destination": req.Destination,
			"amount":      money.FormatMinor(chargeAmount),
			"reference":   reservation.Reference,
			"message":     result.Message,
		},
	})
	if final.Status == models.TxSuccess && s.hub != nil {
		s.hub.BroadcastBalance(req.UserID, websocket.BalanceUpdate{
			AccountID: req.AccountID,
			Balance:   money.FormatMinor(final.BalanceAfter),
			Reference: reservation.Reference,
		})
	}
	return PurchaseResult{
		TransactionID: reservation.TransactionID,
		Reference:     reservation.Reference,
		Status:        final.Status,
		Message:       result.Message,
		BalanceAfter:  final.BalanceAfter,
	}, nil
}
