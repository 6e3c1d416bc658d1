package handler

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"chips-casino/internal/game/crash"
	"chips-casino/internal/model"
)

const (
	streamWriteWait = 5 * time.Second
	// streamRefresh is how often the stream rereads the round to notice a
	// cash-out made over HTTP.
	streamRefresh = time.Second
)

// Stream message types.
const (
	msgTick     = "tick"
	msgCrashed  = "crashed"
	msgFinished = "finished"
)

type streamMessage struct {
	Type              string  `json:"type"`
	Multiplier        float64 `json:"multiplier"`
	ElapsedSeconds    float64 `json:"elapsedSeconds"`
	CrashMultiplier   float64 `json:"crashMultiplier,omitempty"`
	CashoutMultiplier float64 `json:"cashoutMultiplier,omitempty"`
	State             string  `json:"state,omitempty"`
}

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(h.origins, "*") || slices.Contains(h.origins, origin)
		},
	}
}

// CrashStream streams the curve of one running round at the tick interval.
// Ticks hold at the crash point for the cash-out grace, then the round is
// resolved and a "crashed" message closes the stream; a round settled
// elsewhere ends it with "finished".
func (h *Handler) CrashStream(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id, err := parseID("round id", r.URL.Query().Get("roundId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	round, err := h.crash.Round(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to upgrade crash stream")
		return
	}
	defer conn.Close()

	h.metrics.StreamOpened()
	defer h.metrics.StreamClosed()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		// drain client frames so close and ping are processed
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s := &crashStream{h: h, conn: conn, user: user, id: id}
	if err := s.run(ctx, round); err != nil && !errors.Is(err, context.Canceled) {
		log.Debug().Err(err).Str("round_id", id.String()).Msg("Crash stream ended")
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(streamWriteWait))
}

type crashStream struct {
	h    *Handler
	conn *websocket.Conn
	user *model.User
	id   uuid.UUID
}

func (s *crashStream) send(m streamMessage) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return s.conn.WriteJSON(m)
}

func (s *crashStream) finished(r *crash.Round, now time.Time) error {
	final := r.CashedOutAt
	if r.State == crash.StateCrashed {
		final = r.CrashMultiplier
	}
	return s.send(streamMessage{
		Type:              msgFinished,
		Multiplier:        final,
		ElapsedSeconds:    r.ServerElapsed(now),
		CrashMultiplier:   r.CrashMultiplier,
		CashoutMultiplier: r.CashedOutAt,
		State:             string(r.State),
	})
}

// resolveDue reports whether the stream should settle r as crashed: the
// curve has reached the crash point and grace has passed since.
func resolveDue(r *crash.Round, now time.Time, grace time.Duration) bool {
	return r.HasCrashed(now) && !now.Before(r.CrashesAt().Add(grace))
}

func (s *crashStream) run(ctx context.Context, round *crash.Round) error {
	ticker := time.NewTicker(s.h.streamTick)
	defer ticker.Stop()
	lastRefresh := s.h.now()
	grace := s.h.crash.Grace()

	for {
		now := s.h.now()
		if !round.IsActive() {
			return s.finished(round, now)
		}

		if resolveDue(round, now, grace) {
			res, err := s.h.crash.Resolve(ctx, s.user.ID, s.id)
			if errors.Is(err, crash.ErrRoundFinished) {
				// settled by a concurrent cash-out
				if round, err = s.h.crash.Round(ctx, s.user.ID, s.id); err != nil {
					return err
				}
				return s.finished(round, now)
			}
			if err != nil {
				return err
			}
			return s.send(streamMessage{
				Type:            msgCrashed,
				Multiplier:      res.FinalMultiplier,
				ElapsedSeconds:  res.ElapsedSeconds,
				CrashMultiplier: res.CrashMultiplier,
				State:           string(crash.StateCrashed),
			})
		}

		if err := s.send(streamMessage{
			Type:           msgTick,
			Multiplier:     round.MultiplierAt(now),
			ElapsedSeconds: round.ServerElapsed(now),
		}); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if now := s.h.now(); now.Sub(lastRefresh) >= streamRefresh {
			lastRefresh = now
			fresh, err := s.h.crash.Round(ctx, s.user.ID, s.id)
			if err != nil {
				return err
			}
			round = fresh
		}
	}
}
