package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"topup/internal/middleware"
	"topup/internal/money"
	"topup/internal/services"
	"topup/internal/validator"

	"github.com/go-chi/chi/v5"
)

type subscribeRequest struct {
	Network  string `json:"network"`
	PlanCode string `json:"plan_code"`
	Phone    string `json:"phone"`
}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidatePhone(req.Phone); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := h.accounts.GetByUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load wallet")
		return
	}
	result, err := h.subscriptions.Subscribe(r.Context(), services.SubscribeRequest{
		UserID:    userID,
		AccountID: account.ID,
		Network:   req.Network,
		PlanCode:  req.PlanCode,
		Phone:     req.Phone,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPlanNotFound):
			respondError(w, http.StatusNotFound, "plan_not_found")
		case errors.Is(err, services.ErrNotRecurringPlan):
			respondError(w, http.StatusBadRequest, "not_a_recurring_plan")
		case errors.Is(err, services.ErrInsufficientFunds):
			respondError(w, http.StatusBadRequest, "insufficient_funds")
		case errors.Is(err, services.ErrMissingDestination):
			respondError(w, http.StatusBadRequest, "invalid_request")
		default:
			respondError(w, http.StatusInternalServerError, "subscription failed")
		}
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"subscription_id": result.SubscriptionID,
		"transaction_id":  result.TransactionID,
		"reference":       result.Reference,
		"total_cycles":    result.TotalCycles,
		"balance":         money.FormatMinor(result.BalanceAfter),
	})
}

func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	account, err := h.accounts.GetByUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load wallet")
		return
	}
	subs, err := h.subscriptions.List(r.Context(), account.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load subscriptions")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"subscriptions": subs})
}

func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	account, err := h.accounts.GetByUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load wallet")
		return
	}
	subscriptionID := chi.URLParam(r, "id")
	subs, err := h.subscriptions.List(r.Context(), account.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load subscriptions")
		return
	}
	owned := false
	for _, sub := range subs {
		if sub.ID == subscriptionID {
			owned = true
			break
		}
	}
	if !owned {
		respondError(w, http.StatusNotFound, "subscription not found")
		return
	}
	logs, err := h.deliveries.ListBySubscription(r.Context(), subscriptionID, 100)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load deliveries")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deliveries": logs})
}
