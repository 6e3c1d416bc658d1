package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// defaultChallengeHistory is the history size when ?history=true has no limit.
const defaultChallengeHistory = 7

// DailyChallenges returns today's challenge and the caller's entry.
// Query: history=true adds earlier challenges, limit bounds them.
func (h *Handler) DailyChallenges(w http.ResponseWriter, r *http.Request) {
	historyLimit := 0
	if r.URL.Query().Get("history") == "true" {
		historyLimit = defaultChallengeHistory
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				writeError(w, r, fmt.Errorf("%w: limit must be a positive integer", errBadRequest))
				return
			}
			historyLimit = n
		}
	}

	overview, err := h.challenges.Current(r.Context(), userFrom(r.Context()).ID, historyLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

type challengeRequest struct {
	ChallengeID uuid.UUID `json:"challengeId"`
	Action      string    `json:"action"`
}

// ChallengeAction joins or restarts the caller's challenge entry.
func (h *Handler) ChallengeAction(w http.ResponseWriter, r *http.Request) {
	req, err := decode[challengeRequest](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.ChallengeID == uuid.Nil {
		writeError(w, r, fmt.Errorf("%w: challengeId is required", errBadRequest))
		return
	}

	res, err := h.challenges.Act(r.Context(), userFrom(r.Context()).ID, req.ChallengeID, req.Action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
