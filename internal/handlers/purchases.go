package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"topup/internal/middleware"
	"topup/internal/money"
	"topup/internal/provider"
	"topup/internal/services"
	"topup/internal/validator"

	"github.com/go-chi/chi/v5"
)

type purchaseRequest struct {
	Network     string `json:"network"`
	Destination string `json:"destination"`
	PlanCode    string `json:"plan_code"`
	Amount      string `json:"amount"`
	MeterType   string `json:"meter_type"`
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	service := chi.URLParam(r, "service")
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateDestination(service, req.Destination); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var amountMinor int64
	if req.Amount != "" {
		parsed, err := money.ParseMinor(req.Amount)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "invalid_amount")
			return
		}
		amountMinor = parsed
	}
	account, err := h.accounts.GetByUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load wallet")
		return
	}

	result, err := h.purchases.Purchase(r.Context(), services.PurchaseRequest{
		UserID:      userID,
		AccountID:   account.ID,
		Service:     service,
		Network:     req.Network,
		Destination: req.Destination,
		PlanCode:    req.PlanCode,
		Amount:      amountMinor,
		MeterType:   req.MeterType,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidService):
			respondError(w, http.StatusNotFound, "unknown_service")
		case errors.Is(err, services.ErrInsufficientFunds):
			respondError(w, http.StatusBadRequest, "insufficient_funds")
		case errors.Is(err, services.ErrPlanNotFound):
			respondError(w, http.StatusNotFound, "plan_not_found")
		case errors.Is(err, services.ErrPriceMismatch):
			respondError(w, http.StatusBadRequest, "price_mismatch")
		case errors.Is(err, services.ErrInvalidAmount), errors.Is(err, services.ErrMissingDestination):
			respondError(w, http.StatusBadRequest, "invalid_request")
		case errors.Is(err, provider.ErrNoRoute):
			respondError(w, http.StatusInternalServerError, "service_unavailable")
		default:
			respondError(w, http.StatusInternalServerError, "service_unavailable")
		}
		return
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	respondJSON(w, status, map[string]any{
		"transaction_id": result.TransactionID,
		"reference":      result.Reference,
		"status":         result.Status,
		"message":        result.Message,
		"balance":        money.FormatMinor(result.BalanceAfter),
	})
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
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
	limit, offset := paginationParams(r, 50)
	rows, err := h.transactions.ListByAccount(r.Context(), account.ID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load transactions")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"transactions": rows})
}

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	network := r.URL.Query().Get("network")
	service := r.URL.Query().Get("service")
	if network == "" || service == "" {
		respondError(w, http.StatusBadRequest, "network and service are required")
		return
	}
	plans, err := h.plans.ListByService(r.Context(), network, service)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load plans")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"plans": plans})
}
