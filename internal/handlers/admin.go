package handlers

import (
	"encoding/json"
	"net/http"

	"topup/internal/middleware"
	"topup/internal/money"
	"topup/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func planFromRequest(req upsertPlanRequest, costPrice, sellPrice int64) store.Plan {
	return store.Plan{
		ID:        uuid.NewString(),
		Network:   req.Network,
		Service:   req.Service,
		Code:      req.Code,
		Name:      req.Name,
		CostPrice: costPrice,
		SellPrice: sellPrice,
		Cycles:    req.Cycles,
		Active:    req.Active,
	}
}

func rewardFromRequest(req upsertRewardRequest, amount int64) store.RewardEntry {
	return store.RewardEntry{
		ID:     uuid.NewString(),
		Code:   req.Code,
		Type:   req.Type,
		Amount: amount,
		Unit:   req.Unit,
		Weight: req.Weight,
		Active: req.Active,
	}
}

func (h *Handler) AdminListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r, 100)
	rows, err := h.transactions.ListAll(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load transactions")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"transactions": rows})
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r, 100)
	rows, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"audit_logs": rows})
}

// Reconcile replays an account's finalized deltas and compares the result to
// the stored balance. A mismatch means a ledger bug or manual interference,
// not something to auto-correct.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		respondError(w, http.StatusBadRequest, "account_id is required")
		return
	}
	account, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		respondError(w, http.StatusNotFound, "account not found")
		return
	}
	replayed, err := h.transactions.SumSuccessDeltas(r.Context(), accountID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to replay ledger")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"account_id":       accountID,
		"balance":          money.FormatMinor(account.Balance),
		"replayed_balance": money.FormatMinor(replayed),
		"consistent":       account.Balance == replayed,
	})
}

type upsertPlanRequest struct {
	Network   string `json:"network"`
	Service   string `json:"service"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	CostPrice string `json:"cost_price"`
	SellPrice string `json:"sell_price"`
	Cycles    int    `json:"cycles"`
	Active    bool   `json:"active"`
}

func (h *Handler) UpsertPlan(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	var req upsertPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Network == "" || req.Service == "" || req.Code == "" {
		respondError(w, http.StatusBadRequest, "network, service and code are required")
		return
	}
	costPrice, err := money.ParseMinor(req.CostPrice)
	if err != nil || costPrice < 0 {
		respondError(w, http.StatusBadRequest, "invalid cost_price")
		return
	}
	sellPrice, err := money.ParseMinor(req.SellPrice)
	if err != nil || sellPrice < 0 {
		respondError(w, http.StatusBadRequest, "invalid sell_price")
		return
	}
	if req.Cycles < 1 {
		req.Cycles = 1
	}
	plan := planFromRequest(req, costPrice, sellPrice)
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.plans.Upsert(r.Context(), tx, plan); err != nil {
			return err
		}
		data, _ := json.Marshal(req)
		return h.audit.Log(r.Context(), tx, actorID, "upsert_plan", "plan", plan.Code, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to save plan")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

type upsertRewardRequest struct {
	Code   string  `json:"code"`
	Type   string  `json:"type"`
	Amount string  `json:"amount"`
	Unit   string  `json:"unit"`
	Weight float64 `json:"weight"`
	Active bool    `json:"active"`
}

func (h *Handler) UpsertReward(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())
	var req upsertRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Code == "" || req.Type == "" {
		respondError(w, http.StatusBadRequest, "code and type are required")
		return
	}
	if req.Weight < 0 {
		respondError(w, http.StatusBadRequest, "weight must not be negative")
		return
	}
	amount, err := money.ParseMinor(req.Amount)
	if err != nil || amount < 0 {
		respondError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	entry := rewardFromRequest(req, amount)
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.rewards.Upsert(r.Context(), tx, entry); err != nil {
			return err
		}
		data, _ := json.Marshal(req)
		return h.audit.Log(r.Context(), tx, actorID, "upsert_reward", "reward", entry.Code, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to save reward")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

type promoteRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) PromoteAdmin(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req promoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admin.CreateAdmin(r.Context(), tx, req.UserID, false, &actorID); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, actorID, "promote_admin", "user", req.UserID, "{}")
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to promote user")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "promoted"})
}

type grantRoleRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (h *Handler) GrantRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req grantRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Role == "" {
		respondError(w, http.StatusBadRequest, "user_id and role are required")
		return
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admin.GrantRole(r.Context(), tx, req.UserID, req.Role); err != nil {
			return err
		}
		data, _ := json.Marshal(req)
		return h.audit.Log(r.Context(), tx, actorID, "grant_role", "user", req.UserID, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to grant role")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}
