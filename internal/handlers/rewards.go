package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"topup/internal/middleware"
	"topup/internal/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) Spin(w http.ResponseWriter, r *http.Request) {
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
	result, err := h.rewardEngine.Spin(r.Context(), account.ID)
	if err != nil {
		var cooldown services.CooldownError
		if errors.As(err, &cooldown) {
			respondJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":               "spin_on_cooldown",
				"retry_after_seconds": int(cooldown.Remaining / time.Second),
			})
			return
		}
		if errors.Is(err, services.ErrNoRewards) {
			respondError(w, http.StatusServiceUnavailable, "rewards unavailable")
			return
		}
		respondError(w, http.StatusInternalServerError, "spin failed")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"win_id":    result.WinID,
		"reference": result.Reference,
		"reward":    result.RewardCode,
		"type":      result.Type,
		"amount":    result.Amount,
		"unit":      result.Unit,
	})
}

func (h *Handler) ListWins(w http.ResponseWriter, r *http.Request) {
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
	wins, err := h.rewardEngine.ListWins(r.Context(), account.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load wins")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"wins": wins})
}

type claimRequest struct {
	Phone   string `json:"phone"`
	Network string `json:"network"`
}

func (h *Handler) ClaimWin(w http.ResponseWriter, r *http.Request) {
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
	var req claimRequest
	if r.Body != nil {
		// Body is optional when the win already carries delivery details.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	result, err := h.rewardEngine.Claim(r.Context(), services.ClaimRequest{
		AccountID: account.ID,
		WinID:     chi.URLParam(r, "id"),
		Phone:     req.Phone,
		Network:   req.Network,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrWinNotFound), errors.Is(err, services.ErrNotYourWin):
			respondError(w, http.StatusNotFound, "win not found")
		case errors.Is(err, services.ErrAlreadyDelivered):
			respondError(w, http.StatusConflict, "reward already delivered")
		default:
			respondError(w, http.StatusInternalServerError, "claim failed")
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  result.Status,
		"message": result.Message,
	})
}
