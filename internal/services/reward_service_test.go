package services

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"testing"
	"time"

	"topup/internal/models"
	"topup/internal/notify"
	"topup/internal/provider"
	"topup/internal/store"
)

func rewardCatalog() stubCatalog {
	return stubCatalog{entries: []store.RewardEntry{
		{Code: "try-again", Type: models.RewardTryAgain, Weight: 98},
		{Code: "airtime-100", Type: models.RewardAirtime, Amount: 10000, Weight: 1},
		{Code: "data-500mb", Type: models.RewardData, Amount: 0, Unit: "mb", Weight: 1},
	}}
}

func newRewardService(catalog RewardCatalog, wins WinStore, ledger RewardLedger, gateway Gateway) *RewardService {
	return NewRewardService(stubTxRunner{}, catalog, wins, ledger, gateway, &stubNotifier{})
}

func TestSpinCooldownBoundary(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		lastSpin time.Time
		blocked  bool
	}{
		{"never spun", time.Time{}, false},
		{"one second inside the window", now.Add(-SpinCooldown + time.Second), true},
		{"exactly at the window", now.Add(-SpinCooldown), false},
		{"one second past the window", now.Add(-SpinCooldown - time.Second), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wins := stubWins{
				lastSpinAtFn: func(context.Context, string) (time.Time, error) {
					return tc.lastSpin, nil
				},
			}
			svc := newRewardService(rewardCatalog(), wins, stubRewardLedger{}, stubGateway{})
			svc.now = func() time.Time { return now }
			svc.roll = func() float64 { return 0 }

			_, err := svc.Spin(context.Background(), "acc-1")
			var cooldown CooldownError
			if tc.blocked {
				if !errors.As(err, &cooldown) {
					t.Fatalf("expected CooldownError, got %v", err)
				}
				if cooldown.Remaining <= 0 || cooldown.Remaining > SpinCooldown {
					t.Fatalf("implausible remaining %v", cooldown.Remaining)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSpinWeightedDraw(t *testing.T) {
	// Weights 98/1/1: the roll scales onto the cumulative walk.
	cases := []struct {
		roll float64
		want string
	}{
		{0.0, "try-again"},
		{0.5, "try-again"},
		{0.9799, "try-again"},
		{0.9801, "airtime-100"},
		{0.9901, "data-500mb"},
	}
	for _, tc := range cases {
		entry, err := weightedDraw(rewardCatalog().entries, tc.roll)
		if err != nil {
			t.Fatalf("roll %v: unexpected error %v", tc.roll, err)
		}
		if entry.Code != tc.want {
			t.Fatalf("roll %v drew %q, want %q", tc.roll, entry.Code, tc.want)
		}
	}
}

func TestWeightedDrawDistribution(t *testing.T) {
	// With weights 98/1/1 the heavy entry should take the overwhelming
	// majority of draws. A fixed seed keeps the run reproducible.
	rng := rand.New(rand.NewSource(1))
	heavy := 0
	for i := 0; i < 10000; i++ {
		entry, err := weightedDraw(rewardCatalog().entries, rng.Float64())
		if err != nil {
			t.Fatalf("draw %d: unexpected error %v", i, err)
		}
		if entry.Code == "try-again" {
			heavy++
		}
	}
	if heavy < 9500 {
		t.Fatalf("heaviest entry won %d of 10000 draws, expected at least 9500", heavy)
	}
}

func TestWeightedDrawFallsBackToLastEntry(t *testing.T) {
	entry, err := weightedDraw(rewardCatalog().entries, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Code != "data-500mb" {
		t.Fatalf("roll at the boundary must land on the last entry, got %q", entry.Code)
	}
}

func TestWeightedDrawNoRewards(t *testing.T) {
	if _, err := weightedDraw(nil, 0.5); !errors.Is(err, ErrNoRewards) {
		t.Fatalf("expected ErrNoRewards for empty catalog, got %v", err)
	}
	zeroed := []store.RewardEntry{{Code: "a", Weight: 0}, {Code: "b", Weight: 0}}
	if _, err := weightedDraw(zeroed, 0.5); !errors.Is(err, ErrNoRewards) {
		t.Fatalf("expected ErrNoRewards for zero total weight, got %v", err)
	}
}

func TestSpinPersistsWinBeforeNotification(t *testing.T) {
	var persisted store.WinInput
	wins := stubWins{
		createFn: func(_ context.Context, input store.WinInput) error {
			persisted = input
			return nil
		},
	}
	notifier := &stubNotifier{
		sendFn: func(context.Context, notify.Event) error { return errors.New("down") },
	}
	svc := NewRewardService(stubTxRunner{}, rewardCatalog(), wins, stubRewardLedger{}, stubGateway{}, notifier)
	svc.roll = func() float64 { return 0.985 }

	result, err := svc.Spin(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if persisted.RewardCode != "airtime-100" || persisted.AccountID != "acc-1" {
		t.Fatalf("unexpected persisted win %+v", persisted)
	}
	if result.WinID != persisted.ID || result.Type != models.RewardAirtime {
		t.Fatalf("result does not match the persisted win: %+v vs %+v", result, persisted)
	}
}

func TestClaimWinNotFound(t *testing.T) {
	wins := stubWins{
		getForUpdateFn: func(context.Context, string) (store.Win, error) {
			return store.Win{}, sql.ErrNoRows
		},
	}
	svc := newRewardService(rewardCatalog(), wins, stubRewardLedger{}, stubGateway{})
	if _, err := svc.Claim(context.Background(), ClaimRequest{AccountID: "acc-1", WinID: "nope"}); !errors.Is(err, ErrWinNotFound) {
		t.Fatalf("expected ErrWinNotFound, got %v", err)
	}
}

func TestClaimOwnershipEnforced(t *testing.T) {
	wins := stubWins{
		getForUpdateFn: func(_ context.Context, winID string) (store.Win, error) {
			return store.Win{ID: winID, AccountID: "someone-else", Status: models.WinPending}, nil
		},
	}
	svc := newRewardService(rewardCatalog(), wins, stubRewardLedger{}, stubGateway{})
	if _, err := svc.Claim(context.Background(), ClaimRequest{AccountID: "acc-1", WinID: "win-1"}); !errors.Is(err, ErrNotYourWin) {
		t.Fatalf("expected ErrNotYourWin, got %v", err)
	}
}

func TestClaimDeliveredIsTerminal(t *testing.T) {
	wins := stubWins{
		getForUpdateFn: func(_ context.Context, winID string) (store.Win, error) {
			return store.Win{ID: winID, AccountID: "acc-1", Status: models.WinDelivered}, nil
		},
		markClaimedFn: func(context.Context, string, string, string) (int64, error) {
			t.Fatalf("delivered win must not regress")
			return 0, nil
		},
	}
	svc := newRewardService(rewardCatalog(), wins, stubRewardLedger{}, stubGateway{})
	if _, err := svc.Claim(context.Background(), ClaimRequest{AccountID: "acc-1", WinID: "win-1"}); !errors.Is(err, ErrAlreadyDelivered) {
		t.Fatalf("expected ErrAlreadyDelivered, got %v", err)
	}
}

func TestClaimTryAgain(t *testing.T) {
	wins := stubWins{
		getForUpdateFn: func(_ context.Context, winID string) (store.Win, error) {
			return store.Win{ID: winID, AccountID: "acc-1", Status: models.WinPending, Type: models.RewardTryAgain}, nil
		},
	}
	svc := newRewardService(rewardCatalog(), wins, stubRewardLedger{}, stubGateway{})
	result, err := svc.Claim(context.Background(), ClaimRequest{AccountID: "acc-1", WinID: "win-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != models.WinClaimed {
		t.Fatalf("try-again stays claimed, got %q", result.Status)
	}
}

func TestClaimCreditPaysRewardBalance(t *testing.T) {
	var credited int64
	var delivered bool
	wins := stubWins{
		getForUpdateFn: func(_ context.Context, winID string) (store.Win, error) {
			return store.Win{ID: winID, AccountID: "acc-1", Status: models.WinPending, Type: models.RewardCredit, Amount: 20000}, nil
		},
		markDeliveredFn: func(context.Context, string) (int64, error) {
			delivered = true
			return 1, nil
		},
	}
	ledger := stubRewardLedger{
		creditFn: func(_ context.Context, _ string, amount int64) error {
			credited = amount
			return nil
		},
	}
	svc := newRewardService(rewardCatalog(), wins, ledger, stubGateway{})
	result, err := svc.Claim(context.Background(), ClaimRequest{AccountID: "acc-1", WinID: "win-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if credited != 20000 || !delivered || result.Status != models.WinDelivered {
		t.Fatalf("expected credit then delivered, got credited=%d delivered=%v result=%+v", credited, delivered, result)
	}
}

func TestClaimCreditFailureStaysClaimable(t *testing.T) {
	wins := stubWins{
		getForUpdateFn: func(_ context.Context, winID string) (store.Win, error) {
			return store.Win{ID: winID, AccountID: "acc-1", Status: models.WinPending, Type: models.RewardCredit, Amount: 20000}, nil
		},
	}
	ledger := stubRewardLedger{
		creditFn: func(context.Context, string, int64) error { return errors.New("db down") },
	}
	svc := newRewardService(rewardCatalog(), wins, ledger, stubGateway{})
	result, err := svc.Claim(context.Background(), ClaimRequest{AccountID: "acc-1", WinID: "win-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != models.WinClaimed {
		t.Fatalf("expected claimed so the user can retry, got %q", result.Status)
	}
}

func TestClaimCreditPaysOnlyOnDeliveredTransition(t *testing.T) {
	// A concurrent claim that already delivered the win leaves no row for
	// MarkDelivered to touch. The payout must not run a second time.
	wins := stubWins{
		getForUpdateFn: func(_ context.Context, winID string) (store.Win, error) {
			return store.Win{ID: winID, AccountID: "acc-1", Status: models.WinClaimed, Type: models.RewardCredit, Amount: 20000}, nil
		},
		markDeliveredFn: func(context.Context, string) (int64, error) {
			return 0, nil
		},
	}
	ledger := stubRewardLedger{
		creditFn: func(context.Context, string, int64) error {
			t.Fatalf("payout must not run when the win did not transition")
			return nil
		},
	}
	svc := newRewardService(rewardCatalog(), wins, ledger, stubGateway{})
	result, err := svc.Claim(context.Background(), ClaimRequest{AccountID: "acc-1", WinID: "win-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != models.WinDelivered {
		t.Fatalf("expected delivered echoed back, got %q", result.Status)
	}
}

func TestClaimAirtimeDelivers(t *testing.T) {
	var delivered bool
	var sent provider.Request
	wins := stubWins{
		getForUpdateFn: func(_ context.Context, winID string) (store.Win, error) {
			return store.Win{ID: winID, AccountID: "acc-1", Status: models.WinPending, Type: models.RewardAirtime, Amount: 10000, Reference: "WIN1"}, nil
		},
		markDeliveredFn: func(context.Context, string) (int64, error) {
			delivered = true
			return 1, nil
		},
	}
	gateway := stubGateway{
		submitFn: func(_ context.Context, req provider.Request) (provider.Result, error) {
			sent = req
			return provider.Result{Outcome: provider.Success}, nil
		},
	}
	svc := newRewardService(rewardCatalog(), wins, stubRewardLedger{}, gateway)
	result, err := svc.Claim(context.Background(), ClaimRequest{AccountID: "acc-1", WinID: "win-1", Phone: "08030000000", Network: "mtn"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !delivered || result.Status != models.WinDelivered {
		t.Fatalf("expected delivered, got %+v", result)
	}
	if sent.Destination != "08030000000" || sent.Amount != 10000 || sent.Reference != "WIN1" {
		t.Fatalf("unexpected provider request %+v", sent)
	}
}

func TestClaimAirtimeNeedsPhone(t *testing.T) {
	wins := stubWins{
		getForUpdateFn: func(_ context.Context, winID string) (store.Win, error) {
			return store.Win{ID: winID, AccountID: "acc-1", Status: models.WinPending, Type: models.RewardAirtime, Amount: 10000}, nil
		},
	}
	gateway := stubGateway{
		submitFn: func(context.Context, provider.Request) (provider.Result, error) {
			t.Fatalf("no delivery without a destination")
			return provider.Result{}, nil
		},
	}
	svc := newRewardService(rewardCatalog(), wins, stubRewardLedger{}, gateway)
	result, err := svc.Claim(context.Background(), ClaimRequest{AccountID: "acc-1", WinID: "win-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != models.WinClaimed {
		t.Fatalf("expected claimed awaiting details, got %q", result.Status)
	}
}

func TestClaimDataFailureStaysClaimable(t *testing.T) {
	wins := stubWins{
		getForUpdateFn: func(_ context.Context, winID string) (store.Win, error) {
			return store.Win{ID: winID, AccountID: "acc-1", Status: models.WinPending, Type: models.RewardData, RewardCode: "data-500mb", Reference: "WIN2"}, nil
		},
		markDeliveredFn: func(context.Context, string) (int64, error) {
			t.Fatalf("unconfirmed delivery must not mark delivered")
			return 0, nil
		},
	}
	gateway := stubGateway{
		submitFn: func(_ context.Context, req provider.Request) (provider.Result, error) {
			if req.PlanCode != "data-500mb" {
				t.Fatalf("data reward must deliver by plan code, got %+v", req)
			}
			return provider.Result{Outcome: provider.Processing}, nil
		},
	}
	svc := newRewardService(rewardCatalog(), wins, stubRewardLedger{}, gateway)
	result, err := svc.Claim(context.Background(), ClaimRequest{AccountID: "acc-1", WinID: "win-1", Phone: "08030000000", Network: "mtn"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != models.WinClaimed {
		t.Fatalf("expected claimed for retry, got %q", result.Status)
	}
}
