package services

import (
	"context"
	"time"

	"topup/internal/notify"
	"topup/internal/provider"
	"topup/internal/store"
	"topup/internal/websocket"

	"github.com/jmoiron/sqlx"
)

// stubTxRunner hands the callback a nil tx; the stub stores never touch it.
type stubTxRunner struct {
	err error
}

func (r stubTxRunner) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	if r.err != nil {
		return r.err
	}
	return fn(nil)
}

type stubAccounts struct {
	getForUpdateFn  func(ctx context.Context, accountID string) (store.Account, error)
	updateBalanceFn func(ctx context.Context, accountID string, balance int64) error
	adjustRewardFn  func(ctx context.Context, accountID string, delta int64) (int64, error)
}

func (s stubAccounts) GetForUpdate(ctx context.Context, _ store.Getter, accountID string) (store.Account, error) {
	return s.getForUpdateFn(ctx, accountID)
}

func (s stubAccounts) UpdateBalance(ctx context.Context, _ store.Execer, accountID string, balance int64) error {
	if s.updateBalanceFn == nil {
		return nil
	}
	return s.updateBalanceFn(ctx, accountID, balance)
}

func (s stubAccounts) AdjustRewardBalance(ctx context.Context, _ store.Execer, accountID string, delta int64) (int64, error) {
	if s.adjustRewardFn == nil {
		return 1, nil
	}
	return s.adjustRewardFn(ctx, accountID, delta)
}

type stubTransactions struct {
	createFn         func(ctx context.Context, input store.TransactionInput) error
	getForUpdateFn   func(ctx context.Context, transactionID string) (store.Transaction, error)
	finalizeFn       func(ctx context.Context, transactionID, status string, balanceBefore, balanceAfter, profit int64, providerResponse string) (int64, error)
	markProcessingFn func(ctx context.Context, transactionID, providerResponse string) (int64, error)
	findDuplicateFn  func(ctx context.Context, accountID, service, destination string, amount int64) (store.Transaction, bool, error)
	sumOpenHoldsFn   func(ctx context.Context, accountID string) (int64, error)
}

func (s stubTransactions) Create(ctx context.Context, _ store.Execer, input store.TransactionInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, input)
}

func (s stubTransactions) GetForUpdate(ctx context.Context, _ store.Getter, transactionID string) (store.Transaction, error) {
	return s.getForUpdateFn(ctx, transactionID)
}

func (s stubTransactions) Finalize(ctx context.Context, _ store.Execer, transactionID, status string, balanceBefore, balanceAfter, profit int64, providerResponse string) (int64, error) {
	if s.finalizeFn == nil {
		return 1, nil
	}
	return s.finalizeFn(ctx, transactionID, status, balanceBefore, balanceAfter, profit, providerResponse)
}

func (s stubTransactions) MarkProcessing(ctx context.Context, _ store.Execer, transactionID, providerResponse string) (int64, error) {
	if s.markProcessingFn == nil {
		return 1, nil
	}
	return s.markProcessingFn(ctx, transactionID, providerResponse)
}

func (s stubTransactions) FindOpenDuplicate(ctx context.Context, _ store.Getter, accountID, service, destination string, amount int64, _ time.Duration) (store.Transaction, bool, error) {
	if s.findDuplicateFn == nil {
		return store.Transaction{}, false, nil
	}
	return s.findDuplicateFn(ctx, accountID, service, destination, amount)
}

func (s stubTransactions) SumOpenHolds(ctx context.Context, _ store.Getter, accountID string) (int64, error) {
	if s.sumOpenHoldsFn == nil {
		return 0, nil
	}
	return s.sumOpenHoldsFn(ctx, accountID)
}

type stubAudit struct {
	logFn func(ctx context.Context, actorID, action, entityType, entityID, data string) error
}

func (s stubAudit) Log(ctx context.Context, _ store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, actorID, action, entityType, entityID, data)
}

type stubLedger struct {
	reserveFn  func(ctx context.Context, accountID, service, destination string, amount int64) (Reservation, error)
	finalizeFn func(ctx context.Context, transactionID string, outcome provider.Outcome, costPrice int64, providerPayload string) (FinalizeResult, error)
}

func (s stubLedger) Reserve(ctx context.Context, accountID, service, destination string, amount int64) (Reservation, error) {
	return s.reserveFn(ctx, accountID, service, destination, amount)
}

func (s stubLedger) Finalize(ctx context.Context, transactionID string, outcome provider.Outcome, costPrice int64, providerPayload string) (FinalizeResult, error) {
	return s.finalizeFn(ctx, transactionID, outcome, costPrice, providerPayload)
}

type stubGateway struct {
	submitFn func(ctx context.Context, req provider.Request) (provider.Result, error)
}

func (s stubGateway) Submit(ctx context.Context, req provider.Request) (provider.Result, error) {
	return s.submitFn(ctx, req)
}

type stubPlans struct {
	getByCodeFn func(ctx context.Context, network, service, code string) (store.Plan, bool, error)
}

func (s stubPlans) GetByCode(ctx context.Context, network, service, code string) (store.Plan, bool, error) {
	return s.getByCodeFn(ctx, network, service, code)
}

type stubNotifier struct {
	sendFn func(ctx context.Context, event notify.Event) error
	events []notify.Event
}

func (s *stubNotifier) Send(ctx context.Context, event notify.Event) error {
	s.events = append(s.events, event)
	if s.sendFn == nil {
		return nil
	}
	return s.sendFn(ctx, event)
}

type stubHub struct {
	updates []websocket.BalanceUpdate
}

func (s *stubHub) BroadcastBalance(_ string, update websocket.BalanceUpdate) {
	s.updates = append(s.updates, update)
}

type stubSubscriptions struct {
	createFn func(ctx context.Context, input store.SubscriptionInput) error
	listFn   func(ctx context.Context, accountID string) ([]store.Subscription, error)
}

func (s stubSubscriptions) Create(ctx context.Context, _ store.Execer, input store.SubscriptionInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, input)
}

func (s stubSubscriptions) ListByAccount(ctx context.Context, accountID string) ([]store.Subscription, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, accountID)
}

type stubCatalog struct {
	entries []store.RewardEntry
	err     error
}

func (s stubCatalog) ListActive(context.Context) ([]store.RewardEntry, error) {
	return s.entries, s.err
}

type stubWins struct {
	createFn        func(ctx context.Context, input store.WinInput) error
	lastSpinAtFn    func(ctx context.Context, accountID string) (time.Time, error)
	getForUpdateFn  func(ctx context.Context, winID string) (store.Win, error)
	markClaimedFn   func(ctx context.Context, winID, phone, network string) (int64, error)
	markDeliveredFn func(ctx context.Context, winID string) (int64, error)
}

func (s stubWins) Create(ctx context.Context, _ store.Execer, input store.WinInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, input)
}

func (s stubWins) LastSpinAt(ctx context.Context, accountID string) (time.Time, error) {
	if s.lastSpinAtFn == nil {
		return time.Time{}, nil
	}
	return s.lastSpinAtFn(ctx, accountID)
}

func (s stubWins) GetForUpdate(ctx context.Context, _ store.Getter, winID string) (store.Win, error) {
	return s.getForUpdateFn(ctx, winID)
}

func (s stubWins) MarkClaimed(ctx context.Context, _ store.Execer, winID, phone, network string) (int64, error) {
	if s.markClaimedFn == nil {
		return 1, nil
	}
	return s.markClaimedFn(ctx, winID, phone, network)
}

func (s stubWins) MarkDelivered(ctx context.Context, _ store.Execer, winID string) (int64, error) {
	if s.markDeliveredFn == nil {
		return 1, nil
	}
	return s.markDeliveredFn(ctx, winID)
}

func (s stubWins) ListByAccount(context.Context, string, int) ([]store.Win, error) {
	return nil, nil
}

type stubRewardLedger struct {
	creditFn func(ctx context.Context, accountID string, amount int64) error
}

func (s stubRewardLedger) CreditReward(ctx context.Context, _ store.Execer, accountID string, amount int64) error {
	if s.creditFn == nil {
		return nil
	}
	return s.creditFn(ctx, accountID, amount)
}
