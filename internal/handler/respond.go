package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"chips-casino/internal/game"
	"chips-casino/internal/game/crash"
	"chips-casino/internal/game/mines"
	"chips-casino/internal/game/roulette"
	"chips-casino/internal/repository"
	"chips-casino/internal/service"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// errBadRequest marks a malformed request body or parameter.
var errBadRequest = errors.New("invalid request")

type errorResponse struct {
	Error string `json:"error"`
}

// decode reads a JSON body into T. Unknown fields are ignored.
func decode[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return v, fmt.Errorf("%w: empty body", errBadRequest)
		}
		return v, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidGameType),
		errors.Is(err, service.ErrInvalidTaskType),
		errors.Is(err, service.ErrInvalidTaskConfig),
		errors.Is(err, service.ErrTasksUnavailable),
		errors.Is(err, service.ErrTaskNotVerified),
		errors.Is(err, service.ErrTaskOnCooldown),
		errors.Is(err, service.ErrChallengeEnded),
		errors.Is(err, service.ErrInvalidChallengeAction),
		errors.Is(err, service.ErrChallengeBalanceFixed),
		errors.Is(err, game.ErrBetTooLow),
		errors.Is(err, game.ErrBetTooHigh),
		errors.Is(err, roulette.ErrNoBets),
		errors.Is(err, roulette.ErrTooManyBets),
		errors.Is(err, roulette.ErrBetFormat),
		errors.Is(err, roulette.ErrUnsupported),
		errors.Is(err, roulette.ErrInvalidValue),
		errors.Is(err, mines.ErrInvalidGridSize),
		errors.Is(err, mines.ErrInvalidMineCount),
		errors.Is(err, mines.ErrInvalidCell),
		errors.Is(err, mines.ErrCellRevealed),
		errors.Is(err, mines.ErrNothingRevealed),
		errors.Is(err, crash.ErrRoundRunning),
		errors.Is(err, repository.ErrInsufficientBalance):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSessionNotOwned),
		errors.Is(err, crash.ErrRoundNotOwned):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, repository.ErrRoundNotFound),
		errors.Is(err, repository.ErrTaskTypeNotFound),
		errors.Is(err, repository.ErrChallengeNotFound),
		errors.Is(err, repository.ErrEntryNotFound),
		errors.Is(err, crash.ErrRoundNotFound):
		return http.StatusNotFound
	case errors.Is(err, mines.ErrGameFinished),
		errors.Is(err, crash.ErrRoundFinished),
		errors.Is(err, repository.ErrAlreadyFinished),
		errors.Is(err, repository.ErrConcurrentUpdate),
		errors.Is(err, service.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the client-facing message for err. Domain errors are
// reported by their sentinel text so wrapping context stays in the logs.
func messageFor(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "Internal server error"
	}
	var cd *service.CooldownError
	if errors.As(err, &cd) {
		return cd.Error()
	}
	for _, sentinel := range publicErrors {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

var publicErrors = []error{
	repository.ErrInsufficientBalance,
	repository.ErrUserNotFound,
	repository.ErrSessionNotFound,
	repository.ErrRoundNotFound,
	repository.ErrConcurrentUpdate,
	mines.ErrGameFinished,
	crash.ErrRoundFinished,
	crash.ErrRoundNotFound,
	crash.ErrRoundNotOwned,
	service.ErrSessionNotOwned,
	repository.ErrChallengeNotFound,
	repository.ErrEntryNotFound,
}

// writeError logs err and writes the mapped status and message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	event := log.Debug()
	if status == http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("path", r.URL.Path).
		Str("request_id", middleware.GetReqID(r.Context())).
		Int("status", status).
		Msg("Request failed")
	writeJSON(w, status, errorResponse{Error: messageFor(err, status)})
}

func writeStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
