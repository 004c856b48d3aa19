package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"topup/internal/provider"
	"topup/internal/store"

	"github.com/jmoiron/sqlx"
)

type stubLock struct {
	acquired bool
	err      error
	unlocked bool
}

func (l *stubLock) TryLock(context.Context) (bool, error) {
	return l.acquired, l.err
}

func (l *stubLock) Unlock(context.Context) error {
	l.unlocked = true
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

type stubSubscriptions struct {
	due       []store.Subscription
	listErr   error
	advanced  []string
	advanceAt []time.Time
	rows      int64
}

func (s *stubSubscriptions) ListDue(context.Context, time.Time) ([]store.Subscription, error) {
	return s.due, s.listErr
}

func (s *stubSubscriptions) AdvanceDelivery(_ context.Context, _ store.Execer, subscriptionID string, previousDeliveryAt time.Time) (int64, error) {
	s.advanced = append(s.advanced, subscriptionID)
	s.advanceAt = append(s.advanceAt, previousDeliveryAt)
	return s.rows, nil
}

type stubLogs struct {
	appended []store.DeliveryLogInput
}

func (s *stubLogs) Append(_ context.Context, _ store.Execer, input store.DeliveryLogInput) error {
	s.appended = append(s.appended, input)
	return nil
}

type stubGateway struct {
	submitFn func(ctx context.Context, req provider.Request) (provider.Result, error)
}

func (s stubGateway) Submit(ctx context.Context, req provider.Request) (provider.Result, error) {
	return s.submitFn(ctx, req)
}

func dueSub(id string, at time.Time) store.Subscription {
	return store.Subscription{
		ID:              id,
		AccountID:       "acc-1",
		Phone:           "08030000000",
		Network:         "mtn",
		PlanCode:        "1gb-30d",
		RemainingCycles: 5,
		NextDeliveryAt:  at,
		Status:          "active",
	}
}

func TestRunSkipsWhenLockHeld(t *testing.T) {
	subs := &stubSubscriptions{due: []store.Subscription{dueSub("sub-1", time.Now())}}
	s := New(&stubLock{acquired: false}, stubTxRunner{}, subs, &stubLogs{}, stubGateway{}, nil)

	stats, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("a held lock is not an error: %v", err)
	}
	if !stats.Skipped || stats.Due != 0 {
		t.Fatalf("expected a skipped run, got %+v", stats)
	}
}

func TestRunLockError(t *testing.T) {
	s := New(&stubLock{err: errors.New("redis down")}, stubTxRunner{}, &stubSubscriptions{}, &stubLogs{}, stubGateway{}, nil)
	if _, err := s.Run(context.Background()); err == nil {
		t.Fatalf("expected error when the lock cannot be checked")
	}
}

func TestRunDeliversAndAdvancesFromScheduledTime(t *testing.T) {
	slot := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	lock := &stubLock{acquired: true}
	subs := &stubSubscriptions{due: []store.Subscription{dueSub("sub-1", slot)}, rows: 1}
	logs := &stubLogs{}
	gateway := stubGateway{
		submitFn: func(context.Context, provider.Request) (provider.Result, error) {
			return provider.Result{Outcome: provider.Success, HTTPStatus: 200, Raw: []byte(`{"status":"success"}`)}, nil
		},
	}
	s := New(lock, stubTxRunner{}, subs, logs, gateway, nil)

	stats, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Delivered != 1 || stats.Failed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(subs.advanceAt) != 1 || !subs.advanceAt[0].Equal(slot) {
		t.Fatalf("advance must anchor on the scheduled slot, got %v", subs.advanceAt)
	}
	if len(logs.appended) != 1 || logs.appended[0].Outcome != string(provider.Success) {
		t.Fatalf("expected one success log entry, got %+v", logs.appended)
	}
	if !lock.unlocked {
		t.Fatalf("lock must be released after the run")
	}
}

func TestRunFailedDeliveryLeavesSubscriptionDue(t *testing.T) {
	subs := &stubSubscriptions{due: []store.Subscription{dueSub("sub-1", time.Now())}, rows: 1}
	logs := &stubLogs{}
	gateway := stubGateway{
		submitFn: func(context.Context, provider.Request) (provider.Result, error) {
			return provider.Result{Outcome: provider.Failed, HTTPStatus: 200}, nil
		},
	}
	s := New(&stubLock{acquired: true}, stubTxRunner{}, subs, logs, gateway, nil)

	stats, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Failed != 1 || stats.Delivered != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(subs.advanced) != 0 {
		t.Fatalf("failed delivery must not advance the schedule")
	}
	if len(logs.appended) != 1 {
		t.Fatalf("every attempt must be logged")
	}
}

func TestRunOneBadSubscriptionDoesNotSinkTheRest(t *testing.T) {
	subs := &stubSubscriptions{
		due:  []store.Subscription{dueSub("sub-bad", time.Now()), dueSub("sub-good", time.Now())},
		rows: 1,
	}
	logs := &stubLogs{}
	gateway := stubGateway{
		submitFn: func(_ context.Context, req provider.Request) (provider.Result, error) {
			if req.Destination == "08030000000" && len(logs.appended) == 0 {
				return provider.Result{}, errors.New("no provider configured")
			}
			return provider.Result{Outcome: provider.Success, HTTPStatus: 200}, nil
		},
	}
	s := New(&stubLock{acquired: true}, stubTxRunner{}, subs, logs, gateway, nil)

	stats, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Failed != 1 || stats.Delivered != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(logs.appended) != 2 {
		t.Fatalf("both attempts must be logged, got %d", len(logs.appended))
	}
}

func TestRunConcurrentAdvanceCountsAsNotDelivered(t *testing.T) {
	subs := &stubSubscriptions{due: []store.Subscription{dueSub("sub-1", time.Now())}, rows: 0}
	logs := &stubLogs{}
	gateway := stubGateway{
		submitFn: func(context.Context, provider.Request) (provider.Result, error) {
			return provider.Result{Outcome: provider.Success, HTTPStatus: 200}, nil
		},
	}
	s := New(&stubLock{acquired: true}, stubTxRunner{}, subs, logs, gateway, nil)

	stats, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Delivered != 0 {
		t.Fatalf("an already-advanced slot must not count as delivered, got %+v", stats)
	}
	if len(logs.appended) != 1 {
		t.Fatalf("the attempt is still logged")
	}
}
