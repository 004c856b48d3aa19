package handlers

import (
	"net/http"

	"topup/internal/auth"
	"topup/internal/websocket"
)

// WSBalances upgrades to a websocket that streams balance updates. Browsers
// cannot set an Authorization header on a websocket handshake, so the token
// rides in the query string.
func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusUnauthorized, "token is required")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}
