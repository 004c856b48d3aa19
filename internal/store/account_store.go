package store

import "context"

type AccountStore struct {
	db DB
}

type Account struct {
	ID            string `db:"id"`
	UserID        string `db:"user_id"`
	Balance       int64  `db:"balance"`
	RewardBalance int64  `db:"reward_balance"`
	CreatedAt     any    `db:"created_at"`
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, tx Execer, id, userID string, balance int64) error {
	query := `
		INSERT INTO accounts (id, user_id, balance, reward_balance)
		VALUES ($1, $2, $3, 0)
	`
	_, err := tx.ExecContext(ctx, query, id, userID, balance)
	return err
}

func (s *AccountStore) GetByUser(ctx context.Context, userID string) (Account, error) {
	var row Account
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, balance, reward_balance, created_at
		FROM accounts
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (Account, error) {
	var row Account
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, balance, reward_balance, created_at
		FROM accounts
		WHERE id = $1
	`, accountID)
	if err != nil {
		return Account{}, err
	}
	return row, nil
}

// GetForUpdate takes the account row lock. Every balance mutation happens
// while this lock is held, so purchases on one account never interleave.
func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, accountID string) (Account, error) {
	var row Account
	err := tx.GetContext(ctx, &row, `
		SELECT id, user_id, balance, reward_balance
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID)
	if err != nil {
		return Account{}, err
	}
	return row, nil
}

func (s *AccountStore) UpdateBalance(ctx context.Context, tx Execer, accountID string, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`, balance, accountID)
	return err
}

func (s *AccountStore) AdjustBalance(ctx context.Context, tx Execer, accountID string, delta int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
	`, delta, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *AccountStore) AdjustRewardBalance(ctx context.Context, tx Execer, accountID string, delta int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET reward_balance = reward_balance + $1, updated_at = NOW()
		WHERE id = $2
	`, delta, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
