package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"topup/internal/db"
	"topup/internal/models"
	"topup/internal/notify"
	"topup/internal/provider"
	"topup/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNoRewards        = errors.New("no active rewards configured")
	ErrWinNotFound      = errors.New("win not found")
	ErrNotYourWin       = errors.New("win belongs to another account")
	ErrAlreadyDelivered = errors.New("reward already delivered")
)

// SpinCooldown is the wait between spins for one account.
const SpinCooldown = 72 * time.Hour

// CooldownError reports how long the caller still has to wait.
type CooldownError struct {
	Remaining time.Duration
}

func (e CooldownError) Error() string {
	return fmt.Sprintf("spin not available for another %s", e.Remaining.Round(time.Second))
}

type RewardCatalog interface {
	ListActive(ctx context.Context) ([]store.RewardEntry, error)
}

type WinStore interface {
	Create(ctx context.Context, tx store.Execer, input store.WinInput) error
	LastSpinAt(ctx context.Context, accountID string) (time.Time, error)
	GetForUpdate(ctx context.Context, tx store.Getter, winID string) (store.Win, error)
	MarkClaimed(ctx context.Context, tx store.Execer, winID, phone, network string) (int64, error)
	MarkDelivered(ctx context.Context, tx store.Execer, winID string) (int64, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]store.Win, error)
}

type RewardLedger interface {
	CreditReward(ctx context.Context, tx store.Execer, accountID string, amount int64) error
}

// RewardService runs the spin-and-win engine. A spin is a weighted draw
// recorded before anyone hears about it; claiming moves the win through its
// state machine and a failed delivery only ever leaves it claimable again:
// a reward is re-attempted, never re-issued.
type RewardService struct {
	txRunner db.TxRunner
	catalog  RewardCatalog
	wins     WinStore
	ledger   RewardLedger
	gateway  Gateway
	notifier notify.Notifier
	now      func() time.Time
	roll     func() float64
}

func NewRewardService(txRunner db.TxRunner, catalog RewardCatalog, wins WinStore, ledger RewardLedger, gateway Gateway, notifier notify.Notifier) *RewardService {
	return &RewardService{
		txRunner: txRunner,
		catalog:  catalog,
		wins:     wins,
		ledger:   ledger,
		gateway:  gateway,
		notifier: notifier,
		now:      time.Now,
		roll:     rand.Float64,
	}
}

type SpinResult struct {
	WinID      string
	Reference  string
	RewardCode string
	Type       string
	Amount     int64
	Unit       string
}

func (s *RewardService) Spin(ctx context.Context, accountID string) (SpinResult, error) {
	lastSpin, err := s.wins.LastSpinAt(ctx, accountID)
	if err != nil {
		return SpinResult{}, err
	}
	if !lastSpin.IsZero() {
		elapsed := s.now().Sub(lastSpin)
		if elapsed < SpinCooldown {
			return SpinResult{}, CooldownError{Remaining: SpinCooldown - elapsed}
		}
	}

	entries, err := s.catalog.ListActive(ctx)
	if err != nil {
		return SpinResult{}, err
	}
	entry, err := weightedDraw(entries, s.roll())
	if err != nil {
		return SpinResult{}, err
	}

	result := SpinResult{
		WinID:      uuid.NewString(),
		Reference:  NewReference("win"),
		RewardCode: entry.Code,
		Type:       entry.Type,
		Amount:     entry.Amount,
		Unit:       entry.Unit,
	}
	// Persist before any notification so a crash still leaves a claimable,
	// auditable win.
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.wins.Create(ctx, tx, store.WinInput{
			ID:         result.WinID,
			AccountID:  accountID,
			Reference:  result.Reference,
			RewardCode: entry.Code,
			Type:       entry.Type,
			Amount:     entry.Amount,
			Unit:       entry.Unit,
		})
	})
	if err != nil {
		return SpinResult{}, err
	}

	notify.BestEffort(ctx, s.notifier, notify.Event{
		AccountID: accountID,
		Type:      "spin_result",
		Payload: map[string]any{
			"reward":    entry.Code,
			"type":      entry.Type,
			"reference": result.Reference,
		},
	})
	return result, nil
}

// weightedDraw walks the cumulative weights until the scaled roll lands.
// If floating-point rounding walks off the end, the last entry wins rather
// than leaving the spin unresolved.
func weightedDraw(entries []store.RewardEntry, roll float64) (store.RewardEntry, error) {
	if len(entries) == 0 {
		return store.RewardEntry{}, ErrNoRewards
	}
	var total float64
	for _, entry := range entries {
		total += entry.Weight
	}
	if total <= 0 {
		return store.RewardEntry{}, ErrNoRewards
	}
	target := roll * total
	var cumulative float64
	for _, entry := range entries {
		cumulative += entry.Weight
		if target < cumulative {
			return entry, nil
		}
	}
	return entries[len(entries)-1], nil
}

type ClaimRequest struct {
	AccountID string
	WinID     string
	Phone     string
	Network   string
}

type ClaimResult struct {
	Status  string
	Message string
}

func (s *RewardService) Claim(ctx context.Context, req ClaimRequest) (ClaimResult, error) {
	var win store.Win
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		row, err := s.wins.GetForUpdate(ctx, tx, req.WinID)
		if err != nil {
			if isNoRowsErr(err) {
				return ErrWinNotFound
			}
			return err
		}
		if row.AccountID != req.AccountID {
			return ErrNotYourWin
		}
		if row.Status == models.WinDelivered {
			return ErrAlreadyDelivered
		}
		if _, err := s.wins.MarkClaimed(ctx, tx, req.WinID, req.Phone, req.Network); err != nil {
			return err
		}
		win = row
		return nil
	})
	if err != nil {
		return ClaimResult{}, err
	}

	switch win.Type {
	case models.RewardTryAgain:
		// Nothing to deliver.
		return ClaimResult{Status: models.WinClaimed, Message: "better luck next time"}, nil
	case models.RewardCredit:
		return s.deliverCredit(ctx, req.AccountID, req.WinID, win.Amount)
	case models.RewardAirtime, models.RewardData:
		phone := req.Phone
		network := req.Network
		if phone == "" && win.Phone != nil {
			phone = *win.Phone
		}
		if network == "" && win.Network != nil {
			network = *win.Network
		}
		if phone == "" || network == "" {
			return ClaimResult{Status: models.WinClaimed, Message: "phone and network required for delivery"}, nil
		}
		deliverReq := provider.Request{
			Network:     network,
			Service:     win.Type,
			Destination: phone,
			Reference:   win.Reference,
		}
		if win.Type == models.RewardData {
			deliverReq.PlanCode = win.RewardCode
		} else {
			deliverReq.Amount = win.Amount
		}
		result, err := s.gateway.Submit(context.WithoutCancel(ctx), deliverReq)
		if err != nil || result.Outcome != provider.Success {
			return ClaimResult{Status: models.WinClaimed, Message: "delivery not confirmed, try again later"}, nil
		}
		return s.markDelivered(ctx, req.WinID)
	default:
		return ClaimResult{Status: win.Status}, nil
	}
}

// deliverCredit pays the reward balance in the same unit of work as the
// claimed-to-delivered transition. The payout only runs when that transition
// lands, so a crash before commit leaves the win claimable and a retry after
// a completed delivery pays nothing.
func (s *RewardService) deliverCredit(ctx context.Context, accountID, winID string, amount int64) (ClaimResult, error) {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.wins.MarkDelivered(ctx, tx, winID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		return s.ledger.CreditReward(ctx, tx, accountID, amount)
	})
	if err != nil {
		return ClaimResult{Status: models.WinClaimed, Message: "credit pending, try again"}, nil
	}
	return ClaimResult{Status: models.WinDelivered, Message: "reward delivered"}, nil
}

func (s *RewardService) markDelivered(ctx context.Context, winID string) (ClaimResult, error) {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := s.wins.MarkDelivered(ctx, tx, winID)
		return err
	})
	if err != nil {
		return ClaimResult{}, err
	}
	return ClaimResult{Status: models.WinDelivered, Message: "reward delivered"}, nil
}

func (s *RewardService) ListWins(ctx context.Context, accountID string) ([]store.Win, error) {
	return s.wins.ListByAccount(ctx, accountID, 50)
}

func isNoRowsErr(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
