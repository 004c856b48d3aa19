package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"topup/internal/db"
	"topup/internal/models"
	"topup/internal/money"
	"topup/internal/provider"
	"topup/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrUnknownOutcome    = errors.New("unknown provider outcome")
)

// How long a matching open transaction blocks a duplicate purchase.
const dedupWindow = 5 * time.Minute

type AccountStore interface {
	GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (store.Account, error)
	UpdateBalance(ctx context.Context, tx store.Execer, accountID string, balance int64) error
	AdjustRewardBalance(ctx context.Context, tx store.Execer, accountID string, delta int64) (int64, error)
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, input store.TransactionInput) error
	GetForUpdate(ctx context.Context, tx store.Getter, transactionID string) (store.Transaction, error)
	Finalize(ctx context.Context, tx store.Execer, transactionID, status string, balanceBefore, balanceAfter, profit int64, providerResponse string) (int64, error)
	MarkProcessing(ctx context.Context, tx store.Execer, transactionID, providerResponse string) (int64, error)
	FindOpenDuplicate(ctx context.Context, tx store.Getter, accountID, service, destination string, amount int64, window time.Duration) (store.Transaction, bool, error)
	SumOpenHolds(ctx context.Context, tx store.Getter, accountID string) (int64, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

// LedgerService owns the wallet. The balance moves only here, always under
// the account row lock, always paired with a transaction record. Reserve
// checks funds and opens a pending record without deducting; the deduction
// happens in Finalize, and only on a confirmed success. A failed or
// ambiguous provider response never costs the user money.
type LedgerService struct {
	txRunner     db.TxRunner
	accounts     AccountStore
	transactions TransactionStore
	audit        AuditStore
}

func NewLedgerService(txRunner db.TxRunner, accounts AccountStore, transactions TransactionStore, audit AuditStore) *LedgerService {
	return &LedgerService{
		txRunner:     txRunner,
		accounts:     accounts,
		transactions: transactions,
		audit:        audit,
	}
}

// Reservation is the result of the funds check plus pending-record insert.
// Duplicate marks that an equivalent open purchase already existed and was
// returned instead of a new one.
type Reservation struct {
	TransactionID string
	Reference     string
	BalanceBefore int64
	Status        string
	Duplicate     bool
}

func (s *LedgerService) Reserve(ctx context.Context, accountID, service, destination string, amount int64) (Reservation, error) {
	if amount <= 0 {
		return Reservation{}, ErrInvalidAmount
	}
	var reservation Reservation
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, accountID)
		if err != nil {
			return err
		}
		existing, found, err := s.transactions.FindOpenDuplicate(ctx, tx, accountID, service, destination, amount, dedupWindow)
		if err != nil {
			return err
		}
		if found {
			reservation = Reservation{
				TransactionID: existing.ID,
				Reference:     existing.Reference,
				BalanceBefore: existing.BalanceBefore,
				Status:        existing.Status,
				Duplicate:     true,
			}
			return nil
		}
		// The funds check runs against the balance net of open holds, under
		// the account row lock. Two concurrent purchases serialize here, and
		// the second sees the first's pending amount as already spent.
		holds, err := s.transactions.SumOpenHolds(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if account.Balance-holds < amount {
			return ErrInsufficientFunds
		}
		reservation = Reservation{
			TransactionID: uuid.NewString(),
			Reference:     NewReference(service),
			BalanceBefore: account.Balance,
			Status:        models.TxPending,
		}
		return s.transactions.Create(ctx, tx, store.TransactionInput{
			ID:            reservation.TransactionID,
			AccountID:     accountID,
			Reference:     reservation.Reference,
			Service:       service,
			Destination:   destination,
			Amount:        amount,
			Status:        models.TxPending,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance,
		})
	})
	if err != nil {
		return Reservation{}, err
	}
	return reservation, nil
}

// FinalizeResult reports what Finalize actually did, for callers that push
// balance updates or notifications afterwards.
type FinalizeResult struct {
	Status       string
	BalanceAfter int64
	Profit       int64
	Applied      bool
}

// Finalize settles an open transaction against the provider outcome:
// success deducts and books profit, failure closes the record with the
// balance untouched, processing leaves it open for reconciliation. Settled
// records are never touched again, so a repeated call cannot double-deduct.
func (s *LedgerService) Finalize(ctx context.Context, transactionID string, outcome provider.Outcome, costPrice int64, providerPayload string) (FinalizeResult, error) {
	var result FinalizeResult
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		result = FinalizeResult{}
		txn, err := s.transactions.GetForUpdate(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if txn.Status == models.TxSuccess || txn.Status == models.TxFailed {
			result.Status = txn.Status
			result.BalanceAfter = txn.BalanceAfter
			result.Profit = txn.Profit
			return nil
		}
		switch outcome {
		case provider.Success:
			account, err := s.accounts.GetForUpdate(ctx, tx, txn.AccountID)
			if err != nil {
				return err
			}
			// balance_before is re-anchored to the balance at settlement so
			// the recorded delta is exactly the amount, even when a credit
			// landed between reserve and finalize.
			balanceAfter := account.Balance - txn.Amount
			profit := money.Profit(txn.Amount, costPrice)
			rows, err := s.transactions.Finalize(ctx, tx, transactionID, models.TxSuccess, account.Balance, balanceAfter, profit, providerPayload)
			if err != nil {
				return err
			}
			if rows == 0 {
				return nil
			}
			if err := s.accounts.UpdateBalance(ctx, tx, txn.AccountID, balanceAfter); err != nil {
				return err
			}
			result = FinalizeResult{Status: models.TxSuccess, BalanceAfter: balanceAfter, Profit: profit, Applied: true}
		case provider.Failed:
			rows, err := s.transactions.Finalize(ctx, tx, transactionID, models.TxFailed, txn.BalanceBefore, txn.BalanceBefore, 0, providerPayload)
			if err != nil {
				return err
			}
			result = FinalizeResult{Status: models.TxFailed, BalanceAfter: txn.BalanceBefore, Applied: rows > 0}
		case provider.Processing:
			if _, err := s.transactions.MarkProcessing(ctx, tx, transactionID, providerPayload); err != nil {
				return err
			}
			result = FinalizeResult{Status: models.TxProcessing, BalanceAfter: txn.BalanceBefore}
		default:
			return ErrUnknownOutcome
		}
		data, _ := json.Marshal(map[string]string{"status": result.Status})
		return s.audit.Log(ctx, tx, txn.AccountID, "finalize", "transaction", transactionID, string(data))
	})
	if err != nil {
		return FinalizeResult{}, err
	}
	return result, nil
}

// Credit funds the wallet: manual top-up, reward payout. It writes a
// success transaction in the same unit of work as the balance change.
func (s *LedgerService) Credit(ctx context.Context, accountID string, amount int64, service string) (string, int64, error) {
	if amount <= 0 {
		return "", 0, ErrInvalidAmount
	}
	var transactionID string
	var balanceAfter int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, accountID)
		if err != nil {
			return err
		}
		balanceAfter = account.Balance + amount
		transactionID = uuid.NewString()
		if err := s.transactions.Create(ctx, tx, store.TransactionInput{
			ID:            transactionID,
			AccountID:     accountID,
			Reference:     NewReference(service),
			Service:       service,
			Destination:   accountID,
			Amount:        amount,
			Status:        models.TxSuccess,
			BalanceBefore: account.Balance,
			BalanceAfter:  balanceAfter,
		}); err != nil {
			return err
		}
		return s.accounts.UpdateBalance(ctx, tx, accountID, balanceAfter)
	})
	if err != nil {
		return "", 0, err
	}
	return transactionID, balanceAfter, nil
}

// CreditReward pays into the secondary reward balance inside the caller's
// transaction, so the payout commits or rolls back together with whatever
// state transition earned it.
func (s *LedgerService) CreditReward(ctx context.Context, tx store.Execer, accountID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	rows, err := s.accounts.AdjustRewardBalance(ctx, tx, accountID, amount)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("account %s not found", accountID)
	}
	return nil
}

// NewReference builds the externally visible idempotency reference:
// service prefix, timestamp, random tail.
func NewReference(service string) string {
	prefix := strings.ToUpper(service)
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return fmt.Sprintf("%s%d%s", prefix, time.Now().Unix(), strings.ToUpper(uuid.NewString()[:6]))
}
