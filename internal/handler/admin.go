package handler

import (
	"fmt"
	"net/http"
)

type addChipsRequest struct {
	UserID string `json:"userId"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type taskConfigRequest struct {
	TaskType        string `json:"taskType"`
	RewardAmount    *int64 `json:"rewardAmount"`
	CooldownSeconds *int   `json:"cooldownSeconds"`
}

// AddChips grants chips to a user.
func (h *Handler) AddChips(w http.ResponseWriter, r *http.Request) {
	req, err := decode[addChipsRequest](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	target, err := parseID("user id", req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.admin.AddChips(r.Context(), userFrom(r.Context()).ID, target, req.Amount, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// TaskConfig lists the task rewards and cooldowns.
func (h *Handler) TaskConfig(w http.ResponseWriter, r *http.Request) {
	configs, err := h.admin.TaskConfig(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"configs": configs})
}

// UpdateTaskConfig changes one task's reward and cooldown.
func (h *Handler) UpdateTaskConfig(w http.ResponseWriter, r *http.Request) {
	req, err := decode[taskConfigRequest](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.RewardAmount == nil || req.CooldownSeconds == nil {
		writeError(w, r, fmt.Errorf("%w: rewardAmount and cooldownSeconds are required", errBadRequest))
		return
	}
	cfg, err := h.admin.UpdateTaskConfig(r.Context(), userFrom(r.Context()).ID, req.TaskType, *req.RewardAmount, *req.CooldownSeconds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"config": cfg})
}
