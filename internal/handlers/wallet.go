package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"topup/internal/middleware"
	"topup/internal/money"
	"topup/internal/services"
)

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
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
	respondJSON(w, http.StatusOK, map[string]any{
		"account_id":     account.ID,
		"balance":        money.FormatMinor(account.Balance),
		"reward_balance": money.FormatMinor(account.RewardBalance),
	})
}

type creditWalletRequest struct {
	Amount string `json:"amount"`
}

// CreditWallet tops up the wallet directly. Funding normally arrives through
// a payment processor webhook; this endpoint is the manual path and records
// the same ledger entry that path would.
func (h *Handler) CreditWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req creditWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := money.ParseMinor(req.Amount)
	if err != nil || amount <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	account, err := h.accounts.GetByUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load wallet")
		return
	}
	transactionID, balanceAfter, err := h.ledger.Credit(r.Context(), account.ID, amount, "deposit")
	if err != nil {
		if errors.Is(err, services.ErrInvalidAmount) {
			respondError(w, http.StatusBadRequest, "invalid_amount")
			return
		}
		respondError(w, http.StatusInternalServerError, "credit failed")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"transaction_id": transactionID,
		"balance":        money.FormatMinor(balanceAfter),
	})
}
