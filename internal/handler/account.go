package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"chips-casino/internal/game"
	"chips-casino/internal/service"
)

type meResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Balance  int64     `json:"balance"`
	IsAdmin  bool      `json:"isAdmin"`
}

// Me returns the caller's account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	writeJSON(w, http.StatusOK, meResponse{ID: u.ID, Username: u.Username, Balance: u.Balance, IsAdmin: u.IsAdmin})
}

type gameEntry struct {
	game.Info
	MinBet int64 `json:"minBet"`
	MaxBet int64 `json:"maxBet"`
}

// Games lists the catalog in registration order.
func (h *Handler) Games(w http.ResponseWriter, r *http.Request) {
	games := h.registry.List()
	out := make([]gameEntry, 0, len(games))
	for _, g := range games {
		out = append(out, gameEntry{Info: g.Info(), MinBet: g.MinBet(), MaxBet: g.MaxBet()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": out})
}

// DailyStatus reports whether the daily bonus can be claimed.
func (h *Handler) DailyStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.accounts.DailyStatus(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ClaimDaily grants the daily bonus. A claim inside the cooldown is reported
// with claimed=false, not as an error.
func (h *Handler) ClaimDaily(w http.ResponseWriter, r *http.Request) {
	res, err := h.accounts.ClaimDaily(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// History returns the caller's recent ledger rows.
// Query: gameType, limit, before (RFC 3339).
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	q := service.HistoryQuery{GameType: r.URL.Query().Get("gameType")}

	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: limit must be an integer", errBadRequest))
			return
		}
		q.Limit = n
	}
	if s := r.URL.Query().Get("before"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: before must be RFC 3339", errBadRequest))
			return
		}
		q.Before = &t
	}

	page, err := h.history.List(r.Context(), userFrom(r.Context()).ID, q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Achievements lists the caller's unlocked achievements.
func (h *Handler) Achievements(w http.ResponseWriter, r *http.Request) {
	list, err := h.achievements.List(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"achievements": list})
}
