package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"chips-casino/internal/game/roulette"
)

type betRequest struct {
	BetAmount int64 `json:"betAmount"`
}

type rouletteRequest struct {
	Bets []roulette.Bet `json:"bets"`
}

type minesStartRequest struct {
	BetAmount int64 `json:"betAmount"`
	GridSize  int   `json:"gridSize"`
	MineCount int   `json:"mineCount"`
}

type minesRevealRequest struct {
	SessionID string `json:"sessionId"`
	CellIndex *int   `json:"cellIndex"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type crashCashOutRequest struct {
	RoundID        string   `json:"roundId"`
	ElapsedSeconds *float64 `json:"elapsedSeconds"`
}

type roundRequest struct {
	RoundID string `json:"roundId"`
}

func parseID(name, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", errBadRequest, name)
	}
	return id, nil
}

// SlotsSpin stakes betAmount on one spin.
func (h *Handler) SlotsSpin(w http.ResponseWriter, r *http.Request) {
	req, err := decode[betRequest](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.slots.Spin(r.Context(), userFrom(r.Context()).ID, req.BetAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RouletteSpin settles a batch of bets against one pocket.
func (h *Handler) RouletteSpin(w http.ResponseWriter, r *http.Request) {
	req, err := decode[rouletteRequest](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.roulette.Spin(r.Context(), userFrom(r.Context()).ID, req.Bets)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// MinesStart opens a Mines session.
func (h *Handler) MinesStart(w http.ResponseWriter, r *http.Request) {
	req, err := decode[minesStartRequest](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.mines.Start(r.Context(), userFrom(r.Context()).ID, req.BetAmount, req.GridSize, req.MineCount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// MinesGet returns a session's visible state.
func (h *Handler) MinesGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("session id", chi.URLParam(r, "sessionId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.mines.Get(r.Context(), userFrom(r.Context()).ID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// MinesReveal uncovers one cell.
func (h *Handler) MinesReveal(w http.ResponseWriter, r *http.Request) {
	req, err := decode[minesRevealRequest](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := parseID("session id", req.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.CellIndex == nil {
		writeError(w, r, fmt.Errorf("%w: cellIndex is required", errBadRequest))
		return
	}
	res, err := h.mines.Reveal(r.Context(), userFrom(r.Context()).ID, id, *req.CellIndex)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// MinesCashOut settles a session at its current multiplier.
func (h *Handler) MinesCashOut(w http.ResponseWriter, r *http.Request) {
	req, err := decode[sessionRequest](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := parseID("session id", req.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.mines.CashOut(r.Context(), userFrom(r.Context()).ID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CrashStart opens a Crash round.
func (h *Handler) CrashStart(w http.ResponseWriter, r *http.Request) {
	req, err := decode[betRequest](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.crash.Start(r.Context(), userFrom(r.Context()).ID, req.BetAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CrashCashOut settles a cash-out. elapsedSeconds is the client's clock at
// the click and is bounded by the server clock.
func (h *Handler) CrashCashOut(w http.ResponseWriter, r *http.Request) {
	req, err := decode[crashCashOutRequest](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := parseID("round id", req.RoundID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.crash.CashOut(r.Context(), userFrom(r.Context()).ID, id, req.ElapsedSeconds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CrashResolve settles a round whose curve already crashed.
func (h *Handler) CrashResolve(w http.ResponseWriter, r *http.Request) {
	req, err := decode[roundRequest](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := parseID("round id", req.RoundID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.crash.Resolve(r.Context(), userFrom(r.Context()).ID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
