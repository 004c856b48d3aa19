package models

import "time"

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Account is a user's prepaid wallet. Balance is in kobo and is only ever
// mutated inside a ledger transaction holding the account row lock.
type Account struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	Balance       int64     `db:"balance" json:"balance"`
	RewardBalance int64     `db:"reward_balance" json:"reward_balance"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Transaction statuses. A record leaves pending exactly once, when the
// provider outcome becomes known; processing marks an ambiguous outcome
// awaiting manual reconciliation.
const (
	TxPending    = "pending"
	TxProcessing = "processing"
	TxSuccess    = "success"
	TxFailed     = "failed"
)

type Transaction struct {
	ID               string     `db:"id" json:"id"`
	AccountID        string     `db:"account_id" json:"account_id"`
	Reference        string     `db:"reference" json:"reference"`
	Service          string     `db:"service" json:"service"`
	Destination      string     `db:"destination" json:"destination"`
	Amount           int64      `db:"amount" json:"amount"`
	Status           string     `db:"status" json:"status"`
	BalanceBefore    int64      `db:"balance_before" json:"balance_before"`
	BalanceAfter     int64      `db:"balance_after" json:"balance_after"`
	Profit           int64      `db:"profit" json:"profit"`
	ProviderResponse string     `db:"provider_response" json:"-"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	FinalizedAt      *time.Time `db:"finalized_at" json:"finalized_at,omitempty"`
}

// Plan is a catalog entry: a purchasable product with a fixed sell price and
// the provider cost it carries. Cycles > 1 marks a recurring daily plan.
type Plan struct {
	ID        string `db:"id" json:"id"`
	Network   string `db:"network" json:"network"`
	Service   string `db:"service" json:"service"`
	Code      string `db:"code" json:"code"`
	Name      string `db:"name" json:"name"`
	CostPrice int64  `db:"cost_price" json:"cost_price"`
	SellPrice int64  `db:"sell_price" json:"sell_price"`
	Cycles    int    `db:"cycles" json:"cycles"`
	Active    bool   `db:"active" json:"active"`
}

const (
	SubscriptionActive   = "active"
	SubscriptionFinished = "finished"
)

type Subscription struct {
	ID              string    `db:"id" json:"id"`
	AccountID       string    `db:"account_id" json:"account_id"`
	Phone           string    `db:"phone" json:"phone"`
	Network         string    `db:"network" json:"network"`
	PlanCode        string    `db:"plan_code" json:"plan_code"`
	PricePerCycle   int64     `db:"price_per_cycle" json:"price_per_cycle"`
	TotalCycles     int       `db:"total_cycles" json:"total_cycles"`
	RemainingCycles int       `db:"remaining_cycles" json:"remaining_cycles"`
	NextDeliveryAt  time.Time `db:"next_delivery_at" json:"next_delivery_at"`
	Status          string    `db:"status" json:"status"`
	Reference       string    `db:"reference" json:"reference"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type DeliveryLog struct {
	ID               string    `db:"id" json:"id"`
	SubscriptionID   string    `db:"subscription_id" json:"subscription_id"`
	Outcome          string    `db:"outcome" json:"outcome"`
	HTTPStatus       int       `db:"http_status" json:"http_status"`
	ProviderResponse string    `db:"provider_response" json:"-"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Reward types. Credit rewards pay into the wallet through the ledger;
// airtime and data are delivered through the provider gateway; tryagain has
// nothing to deliver.
const (
	RewardAirtime  = "airtime"
	RewardData     = "data"
	RewardCredit   = "credit"
	RewardTryAgain = "tryagain"
)

type RewardEntry struct {
	ID     string  `db:"id" json:"id"`
	Code   string  `db:"code" json:"code"`
	Type   string  `db:"type" json:"type"`
	Amount int64   `db:"amount" json:"amount"`
	Unit   string  `db:"unit" json:"unit"`
	Weight float64 `db:"weight" json:"weight"`
	Active bool    `db:"active" json:"active"`
}

const (
	WinPending   = "pending"
	WinClaimed   = "claimed"
	WinDelivered = "delivered"
)

type Win struct {
	ID          string     `db:"id" json:"id"`
	AccountID   string     `db:"account_id" json:"account_id"`
	Reference   string     `db:"reference" json:"reference"`
	RewardCode  string     `db:"reward_code" json:"reward_code"`
	Type        string     `db:"type" json:"type"`
	Amount      int64      `db:"amount" json:"amount"`
	Unit        string     `db:"unit" json:"unit"`
	Status      string     `db:"status" json:"status"`
	Phone       string     `db:"phone" json:"phone"`
	Network     string     `db:"network" json:"network"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
}
