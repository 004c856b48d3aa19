package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"topup/internal/middleware"
	"topup/internal/services"
	"topup/internal/store"

	"github.com/go-chi/chi/v5"
)

func authedRequest(method, target, body, userID string) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type stubAccountStore struct {
	account store.Account
	err     error
}

func (s stubAccountStore) Create(context.Context, store.Execer, string, string, int64) error {
	return nil
}

func (s stubAccountStore) GetByUser(context.Context, string) (store.Account, error) {
	return s.account, s.err
}

func (s stubAccountStore) GetByID(context.Context, string) (store.Account, error) {
	return s.account, s.err
}

type stubPurchaseService struct {
	purchaseFn func(ctx context.Context, req services.PurchaseRequest) (services.PurchaseResult, error)
}

func (s stubPurchaseService) Purchase(ctx context.Context, req services.PurchaseRequest) (services.PurchaseResult, error) {
	return s.purchaseFn(ctx, req)
}

type stubRewardService struct {
	spinFn  func(ctx context.Context, accountID string) (services.SpinResult, error)
	claimFn func(ctx context.Context, req services.ClaimRequest) (services.ClaimResult, error)
}

func (s stubRewardService) Spin(ctx context.Context, accountID string) (services.SpinResult, error) {
	return s.spinFn(ctx, accountID)
}

func (s stubRewardService) Claim(ctx context.Context, req services.ClaimRequest) (services.ClaimResult, error) {
	return s.claimFn(ctx, req)
}

func (s stubRewardService) ListWins(context.Context, string) ([]store.Win, error) {
	return nil, nil
}

func testHandler() *Handler {
	return &Handler{
		accounts: stubAccountStore{account: store.Account{ID: "acc-1", UserID: "user-1", Balance: 50000}},
	}
}
