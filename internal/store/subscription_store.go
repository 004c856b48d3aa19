package store

import (
	"context"
	"time"
)

type SubscriptionStore struct {
	db DB
}

type Subscription struct {
	ID              string    `db:"id"`
	AccountID       string    `db:"account_id"`
	Phone           string    `db:"phone"`
	Network         string    `db:"network"`
	PlanCode        string    `db:"plan_code"`
	PricePerCycle   int64     `db:"price_per_cycle"`
	TotalCycles     int       `db:"total_cycles"`
	RemainingCycles int       `db:"remaining_cycles"`
	NextDeliveryAt  time.Time `db:"next_delivery_at"`
	Status          string    `db:"status"`
	Reference       string    `db:"reference"`
	CreatedAt       any       `db:"created_at"`
}

type SubscriptionInput struct {
	ID             string
	AccountID      string
	Phone          string
	Network        string
	PlanCode       string
	PricePerCycle  int64
	TotalCycles    int
	NextDeliveryAt time.Time
	Reference      string
}

func NewSubscriptionStore(db DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func (s *SubscriptionStore) Create(ctx context.Context, tx Execer, input SubscriptionInput) error {
	query := `
		INSERT INTO subscriptions (id, account_id, phone, network, plan_code, price_per_cycle, total_cycles, remaining_cycles, next_delivery_at, status, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8, 'active', $9)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.AccountID, input.Phone, input.Network, input.PlanCode,
		input.PricePerCycle, input.TotalCycles, input.NextDeliveryAt, input.Reference,
	)
	return err
}

// ListDue returns every subscription with a delivery owed right now, oldest
// due first so a backlog drains in order.
func (s *SubscriptionStore) ListDue(ctx context.Context, now time.Time) ([]Subscription, error) {
	var rows []Subscription
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, phone, network, plan_code, price_per_cycle,
		       total_cycles, remaining_cycles, next_delivery_at, status, reference, created_at
		FROM subscriptions
		WHERE status = 'active' AND remaining_cycles > 0 AND next_delivery_at <= $1
		ORDER BY next_delivery_at ASC
	`, now)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *SubscriptionStore) ListByAccount(ctx context.Context, accountID string) ([]Subscription, error) {
	var rows []Subscription
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, phone, network, plan_code, price_per_cycle,
		       total_cycles, remaining_cycles, next_delivery_at, status, reference, created_at
		FROM subscriptions
		WHERE account_id = $1
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AdvanceDelivery records one confirmed delivery: cycles down by one, the
// next slot a day after the previous scheduled slot (not after "now", so the
// schedule never drifts), finished once nothing remains. The guards in the
// WHERE clause keep a duplicate call from over-advancing.
func (s *SubscriptionStore) AdvanceDelivery(ctx context.Context, tx Execer, subscriptionID string, previousDeliveryAt time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE subscriptions
		SET remaining_cycles = remaining_cycles - 1,
		    next_delivery_at = $2 + INTERVAL '1 day',
		    status = CASE WHEN remaining_cycles - 1 <= 0 THEN 'finished' ELSE status END
		WHERE id = $1 AND status = 'active' AND remaining_cycles > 0 AND next_delivery_at = $2
	`, subscriptionID, previousDeliveryAt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type DeliveryLogStore struct {
	db DB
}

type DeliveryLogInput struct {
	ID               string
	SubscriptionID   string
	Outcome          string
	HTTPStatus       int
	ProviderResponse string
}

func NewDeliveryLogStore(db DB) *DeliveryLogStore {
	return &DeliveryLogStore{db: db}
}

// Append writes one attempt to the delivery audit trail. Every attempt lands
// here, success or not, whether or not the subscription row changed.
func (s *DeliveryLogStore) Append(ctx context.Context, tx Execer, input DeliveryLogInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO delivery_logs (id, subscription_id, outcome, http_status, provider_response)
		VALUES ($1, $2, $3, $4, $5)
	`, input.ID, input.SubscriptionID, input.Outcome, input.HTTPStatus, input.ProviderResponse)
	return err
}

type DeliveryLog struct {
	ID               string `db:"id"`
	SubscriptionID   string `db:"subscription_id"`
	Outcome          string `db:"outcome"`
	HTTPStatus       int    `db:"http_status"`
	ProviderResponse string `db:"provider_response"`
	CreatedAt        any    `db:"created_at"`
}

func (s *DeliveryLogStore) ListBySubscription(ctx context.Context, subscriptionID string, limit int) ([]DeliveryLog, error) {
	var rows []DeliveryLog
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, subscription_id, outcome, http_status, provider_response, created_at
		FROM delivery_logs
		WHERE subscription_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, subscriptionID, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
