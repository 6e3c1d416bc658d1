package handler

import (
	"errors"
	"net/http"
	"time"

	"chips-casino/internal/service"
)

type taskRequest struct {
	TaskType string `json:"taskType"`
}

type taskCompleteRequest struct {
	TaskType       string                 `json:"taskType"`
	CompletionData service.CompletionData `json:"completionData"`
}

type taskStartResponse struct {
	Started           bool   `json:"started"`
	TaskType          string `json:"taskType"`
	CooldownRemaining int64  `json:"cooldownRemaining"`
}

// TaskList lists the recovery tasks for a user with no chips.
func (h *Handler) TaskList(w http.ResponseWriter, r *http.Request) {
	list, err := h.tasks.List(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// TaskStatus reports the active task. Tasks run client side, so there is
// never one.
func (h *Handler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"activeTask": nil, "status": "idle"})
}

// TaskStart checks that a task may be attempted. A task on cooldown answers
// 400 with the remaining seconds.
func (h *Handler) TaskStart(w http.ResponseWriter, r *http.Request) {
	req, err := decode[taskRequest](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	err = h.tasks.Start(r.Context(), userFrom(r.Context()).ID, req.TaskType)
	var cd *service.CooldownError
	if errors.As(err, &cd) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":             cd.Error(),
			"cooldownRemaining": int64(cd.Remaining / time.Second),
		})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, taskStartResponse{Started: true, TaskType: req.TaskType})
}

// TaskComplete verifies a finished task and pays its reward.
func (h *Handler) TaskComplete(w http.ResponseWriter, r *http.Request) {
	req, err := decode[taskCompleteRequest](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.tasks.Complete(r.Context(), userFrom(r.Context()).ID, req.TaskType, req.CompletionData)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
