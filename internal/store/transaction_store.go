package store

import (
	"context"
	"time"
)

type TransactionStore struct {
	db DB
}

type Transaction struct {
	ID               string  `db:"id"`
	AccountID        string  `db:"account_id"`
	Reference        string  `db:"reference"`
	Service          string  `db:"service"`
	Destination      string  `db:"destination"`
	Amount           int64   `db:"amount"`
	Status           string  `db:"status"`
	BalanceBefore    int64   `db:"balance_before"`
	BalanceAfter     int64   `db:"balance_after"`
	Profit           int64   `db:"profit"`
	ProviderResponse *string `db:"provider_response"`
	CreatedAt        any     `db:"created_at"`
	FinalizedAt      any     `db:"finalized_at"`
}

type TransactionInput struct {
	ID            string
	AccountID     string
	Reference     string
	Service       string
	Destination   string
	Amount        int64
	Status        string
	BalanceBefore int64
	BalanceAfter  int64
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func (s *TransactionStore) Create(ctx context.Context, tx Execer, input TransactionInput) error {
	query := `
		INSERT INTO transactions (id, account_id, reference, service, destination, amount, status, balance_before, balance_after, profit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.AccountID, input.Reference, input.Service, input.Destination,
		input.Amount, input.Status, input.BalanceBefore, input.BalanceAfter,
	)
	return err
}

func (s *TransactionStore) GetForUpdate(ctx context.Context, tx Getter, transactionID string) (Transaction, error) {
	var row Transaction
	err := tx.GetContext(ctx, &row, `
		SELECT id, account_id, reference, service, destination, amount, status,
		       balance_before, balance_after, profit, provider_response
		FROM transactions
		WHERE id = $1
		FOR UPDATE
	`, transactionID)
	if err != nil {
		return Transaction{}, err
	}
	return row, nil
}

func (s *TransactionStore) GetByReference(ctx context.Context, reference string) (Transaction, error) {
	var row Transaction
	err := s.db.GetContext(ctx, &row, `
		SELECT id, account_id, reference, service, destination, amount, status,
		       balance_before, balance_after, profit, provider_response, created_at, finalized_at
		FROM transactions
		WHERE reference = $1
	`, reference)
	if err != nil {
		return Transaction{}, err
	}
	return row, nil
}

// FindOpenDuplicate looks for a non-terminal transaction matching the same
// purchase within the dedup window, so a client retry with a fresh reference
// does not open a second pending purchase.
func (s *TransactionStore) FindOpenDuplicate(ctx context.Context, tx Getter, accountID, service, destination string, amount int64, window time.Duration) (Transaction, bool, error) {
	var row Transaction
	err := tx.GetContext(ctx, &row, `
		SELECT id, account_id, reference, service, destination, amount, status,
		       balance_before, balance_after, profit, provider_response
		FROM transactions
		WHERE account_id = $1 AND service = $2 AND destination = $3 AND amount = $4
		  AND status IN ('pending', 'processing')
		  AND created_at > NOW() - $5::interval
		ORDER BY created_at DESC
		LIMIT 1
	`, accountID, service, destination, amount, window.String())
	if err != nil {
		if isNoRows(err) {
			return Transaction{}, false, nil
		}
		return Transaction{}, false, err
	}
	return row, true, nil
}

// SumOpenHolds totals the pending and processing purchase amounts for an
// account. Money under an open hold is already spoken for and must not pass
// another funds check.
func (s *TransactionStore) SumOpenHolds(ctx context.Context, tx Getter, accountID string) (int64, error) {
	var sum int64
	err := tx.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE account_id = $1 AND status IN ('pending', 'processing')
	`, accountID)
	return sum, err
}

// Finalize applies the single allowed mutation of a transaction record. The
// WHERE clause only matches open rows, so a second call is a no-op.
// balance_before is rewritten at settlement time so the row's delta always
// equals the amount that actually moved, whatever happened to the wallet
// between reserve and finalize.
func (s *TransactionStore) Finalize(ctx context.Context, tx Execer, transactionID, status string, balanceBefore, balanceAfter, profit int64, providerResponse string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, balance_before = $2, balance_after = $3, profit = $4, provider_response = $5, finalized_at = NOW()
		WHERE id = $6 AND status IN ('pending', 'processing')
	`, status, balanceBefore, balanceAfter, profit, providerResponse, transactionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkProcessing parks an open transaction in the ambiguous state. The row
// stays open for later reconciliation, so no finalized_at is written.
func (s *TransactionStore) MarkProcessing(ctx context.Context, tx Execer, transactionID, providerResponse string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = 'processing', provider_response = $2
		WHERE id = $1 AND status IN ('pending', 'processing')
	`, transactionID, providerResponse)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TransactionStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Transaction, error) {
	var rows []Transaction
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, reference, service, destination, amount, status,
		       balance_before, balance_after, profit, provider_response, created_at, finalized_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TransactionStore) ListAll(ctx context.Context, limit, offset int) ([]Transaction, error) {
	var rows []Transaction
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, reference, service, destination, amount, status,
		       balance_before, balance_after, profit, provider_response, created_at, finalized_at
		FROM transactions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SumSuccessDeltas reconciles the wallet: the sum of successful debits and
// credits for an account must explain its current balance.
func (s *TransactionStore) SumSuccessDeltas(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(balance_after - balance_before), 0)
		FROM transactions
		WHERE account_id = $1 AND status = 'success'
	`, accountID)
	return sum, err
}
