package scheduler

import (
	"context"
	"log"
	"time"

	"topup/internal/db"
	"topup/internal/notify"
	"topup/internal/provider"
	"topup/internal/runlock"
	"topup/internal/services"
	"topup/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type SubscriptionStore interface {
	ListDue(ctx context.Context, now time.Time) ([]store.Subscription, error)
	AdvanceDelivery(ctx context.Context, tx store.Execer, subscriptionID string, previousDeliveryAt time.Time) (int64, error)
}

type DeliveryLogStore interface {
	Append(ctx context.Context, tx store.Execer, input store.DeliveryLogInput) error
}

type Gateway interface {
	Submit(ctx context.Context, req provider.Request) (provider.Result, error)
}

// Scheduler delivers one cycle of each due subscription. A run is guarded by
// a process-wide non-blocking lock: overlapping invocations exit instead of
// stacking. Failed deliveries leave the subscription untouched and due, so
// the next run retries. A paid day is never silently skipped.
type Scheduler struct {
	lock          runlock.Lock
	txRunner      db.TxRunner
	subscriptions SubscriptionStore
	logs          DeliveryLogStore
	gateway       Gateway
	notifier      notify.Notifier
	now           func() time.Time
}

func New(lock runlock.Lock, txRunner db.TxRunner, subscriptions SubscriptionStore, logs DeliveryLogStore, gateway Gateway, notifier notify.Notifier) *Scheduler {
	return &Scheduler{
		lock:          lock,
		txRunner:      txRunner,
		subscriptions: subscriptions,
		logs:          logs,
		gateway:       gateway,
		notifier:      notifier,
		now:           time.Now,
	}
}

// RunStats summarizes one scheduler pass.
type RunStats struct {
	Due       int
	Delivered int
	Failed    int
	Skipped   bool
}

func (s *Scheduler) Run(ctx context.Context) (RunStats, error) {
	acquired, err := s.lock.TryLock(ctx)
	if err != nil {
		return RunStats{}, err
	}
	if !acquired {
		log.Printf("scheduler run skipped: lock held by another run")
		return RunStats{Skipped: true}, nil
	}
	defer func() {
		if err := s.lock.Unlock(context.WithoutCancel(ctx)); err != nil {
			log.Printf("scheduler unlock failed: %v", err)
		}
	}()

	due, err := s.subscriptions.ListDue(ctx, s.now())
	if err != nil {
		return RunStats{}, err
	}
	stats := RunStats{Due: len(due)}
	for _, sub := range due {
		// One broken subscription must not sink the run.
		if delivered, err := s.deliver(ctx, sub); err != nil {
			stats.Failed++
			log.Printf("subscription %s delivery error: %v", sub.ID, err)
		} else if delivered {
			stats.Delivered++
		} else {
			stats.Failed++
		}
	}
	log.Printf("scheduler run complete: due=%d delivered=%d failed=%d", stats.Due, stats.Delivered, stats.Failed)
	return stats, nil
}

func (s *Scheduler) deliver(ctx context.Context, sub store.Subscription) (bool, error) {
	result, err := s.gateway.Submit(ctx, provider.Request{
		Network:     sub.Network,
		Service:     "data",
		Destination: sub.Phone,
		PlanCode:    sub.PlanCode,
		Reference:   services.NewReference("sub"),
	})
	if err != nil {
		// Misrouted configuration; record the attempt and leave the
		// subscription due.
		if logErr := s.logAttempt(ctx, sub.ID, string(provider.Failed), 0, err.Error()); logErr != nil {
			return false, logErr
		}
		return false, err
	}

	delivered := result.Outcome == provider.Success
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if delivered {
			rows, err := s.subscriptions.AdvanceDelivery(ctx, tx, sub.ID, sub.NextDeliveryAt)
			if err != nil {
				return err
			}
			// Another run already advanced this slot; keep the audit entry
			// but claim no delivery.
			if rows == 0 {
				delivered = false
			}
		}
		return s.logs.Append(ctx, tx, store.DeliveryLogInput{
			ID:               uuid.NewString(),
			SubscriptionID:   sub.ID,
			Outcome:          string(result.Outcome),
			HTTPStatus:       result.HTTPStatus,
			ProviderResponse: string(result.Raw),
		})
	})
	if err != nil {
		return false, err
	}

	if delivered {
		notify.BestEffort(ctx, s.notifier, notify.Event{
			AccountID: sub.AccountID,
			Type:      "subscription_delivered",
			Payload: map[string]any{
				"plan":             sub.PlanCode,
				"phone":            sub.Phone,
				"remaining_cycles": sub.RemainingCycles - 1,
			},
		})
	}
	return delivered, nil
}

func (s *Scheduler) logAttempt(ctx context.Context, subscriptionID, outcome string, httpStatus int, detail string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.logs.Append(ctx, tx, store.DeliveryLogInput{
			ID:               uuid.NewString(),
			SubscriptionID:   subscriptionID,
			Outcome:          outcome,
			HTTPStatus:       httpStatus,
			ProviderResponse: detail,
		})
	})
}
