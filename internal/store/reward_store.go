package store

import (
	"context"
	"time"
)

type RewardStore struct {
	db DB
}

type RewardEntry struct {
	ID     string  `db:"id"`
	Code   string  `db:"code"`
	Type   string  `db:"type"`
	Amount int64   `db:"amount"`
	Unit   string  `db:"unit"`
	Weight float64 `db:"weight"`
	Active bool    `db:"active"`
}

func NewRewardStore(db DB) *RewardStore {
	return &RewardStore{db: db}
}

func (s *RewardStore) ListActive(ctx context.Context) ([]RewardEntry, error) {
	var rows []RewardEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, code, type, amount, unit, weight, active
		FROM reward_entries
		WHERE active = TRUE AND weight >= 0
		ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *RewardStore) Upsert(ctx context.Context, tx Execer, entry RewardEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO reward_entries (id, code, type, amount, unit, weight, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code)
		DO UPDATE SET type = $3, amount = $4, unit = $5, weight = $6, active = $7
	`, entry.ID, entry.Code, entry.Type, entry.Amount, entry.Unit, entry.Weight, entry.Active)
	return err
}

type WinStore struct {
	db DB
}

type Win struct {
	ID          string     `db:"id"`
	AccountID   string     `db:"account_id"`
	Reference   string     `db:"reference"`
	RewardCode  string     `db:"reward_code"`
	Type        string     `db:"type"`
	Amount      int64      `db:"amount"`
	Unit        string     `db:"unit"`
	Status      string     `db:"status"`
	Phone       *string    `db:"phone"`
	Network     *string    `db:"network"`
	CreatedAt   time.Time  `db:"created_at"`
	DeliveredAt *time.Time `db:"delivered_at"`
}

type WinInput struct {
	ID         string
	AccountID  string
	Reference  string
	RewardCode string
	Type       string
	Amount     int64
	Unit       string
}

func NewWinStore(db DB) *WinStore {
	return &WinStore{db: db}
}

func (s *WinStore) Create(ctx context.Context, tx Execer, input WinInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wins (id, account_id, reference, reward_code, type, amount, unit, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
	`, input.ID, input.AccountID, input.Reference, input.RewardCode, input.Type, input.Amount, input.Unit)
	return err
}

// LastSpinAt is the cooldown anchor: the most recent spin timestamp for the
// account, zero time when the account has never spun.
func (s *WinStore) LastSpinAt(ctx context.Context, accountID string) (time.Time, error) {
	var last time.Time
	err := s.db.GetContext(ctx, &last, `
		SELECT created_at
		FROM wins
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, accountID)
	if err != nil {
		if isNoRows(err) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return last, nil
}

func (s *WinStore) GetForUpdate(ctx context.Context, tx Getter, winID string) (Win, error) {
	var row Win
	err := tx.GetContext(ctx, &row, `
		SELECT id, account_id, reference, reward_code, type, amount, unit, status, phone, network, created_at, delivered_at
		FROM wins
		WHERE id = $1
		FOR UPDATE
	`, winID)
	if err != nil {
		return Win{}, err
	}
	return row, nil
}

// MarkClaimed only promotes pending wins; claimed and delivered rows are
// left alone so status never regresses.
func (s *WinStore) MarkClaimed(ctx context.Context, tx Execer, winID, phone, network string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE wins
		SET status = 'claimed',
		    phone = NULLIF($2, ''),
		    network = NULLIF($3, '')
		WHERE id = $1 AND status = 'pending'
	`, winID, phone, network)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *WinStore) MarkDelivered(ctx context.Context, tx Execer, winID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE wins
		SET status = 'delivered', delivered_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'claimed')
	`, winID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *WinStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]Win, error) {
	var rows []Win
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, reference, reward_code, type, amount, unit, status, phone, network, created_at, delivered_at
		FROM wins
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
