package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chips-casino/internal/game/mines"
	"chips-casino/internal/model"
	"chips-casino/internal/pkg/events"
	"chips-casino/internal/repository"
)

// ErrSessionNotOwned is returned when a session belongs to another user.
var ErrSessionNotOwned = errors.New("game session belongs to another user")

// MinesService runs Mines sessions. Reveals and cash-outs on one session are
// serialized; the mine layout never leaves the server while a session is active.
type MinesService struct {
	ledger       *Ledger
	engine       *mines.Mines
	repo         *repository.MinesRepository
	achievements *AchievementService
}

// NewMinesService creates a new MinesService instance.
func NewMinesService(ledger *Ledger, engine *mines.Mines, repo *repository.MinesRepository, achievements *AchievementService) *MinesService {
	return &MinesService{ledger: ledger, engine: engine, repo: repo, achievements: achievements}
}

// MinesView is the client-visible state of a session.
type MinesView struct {
	ID            uuid.UUID `json:"id"`
	BetAmount     int64     `json:"betAmount"`
	GridSize      int       `json:"gridSize"`
	MineCount     int       `json:"mineCount"`
	RevealedCells []int     `json:"revealedCells"`
	SafeRevealed  int       `json:"safeRevealed"`
	Multiplier    float64   `json:"multiplier"`
	State         string    `json:"state"`
	IsActive      bool      `json:"isActive"`
	// Mines is only set once the session is over.
	Mines []int `json:"mines,omitempty"`
}

// MinesStartResult is a new session with the balance after the stake.
type MinesStartResult struct {
	Session *MinesView `json:"session"`
	Balance int64      `json:"balance"`
}

// MinesRevealResult is the outcome of one reveal.
type MinesRevealResult struct {
	*mines.RevealResult
	// Mines is set when the reveal ended the session.
	Mines []int `json:"mines,omitempty"`
}

// MinesCashOutResult is a settled cash-out.
type MinesCashOutResult struct {
	*mines.CashOutResult
	Balance int64 `json:"balance"`
}

func toEngineSession(s *model.MinesSession) *mines.Session {
	revealed := make([]int, len(s.RevealedCells))
	copy(revealed, s.RevealedCells)
	return &mines.Session{
		BetAmount:    s.BetAmount,
		GridSize:     s.GridSize,
		MineCount:    s.MineCount,
		Mines:        s.MinesLayout,
		Revealed:     revealed,
		SafeRevealed: s.SafeRevealed,
		State:        mines.State(s.State),
	}
}

func newMinesView(id uuid.UUID, s *mines.Session) *MinesView {
	v := &MinesView{
		ID:            id,
		BetAmount:     s.BetAmount,
		GridSize:      s.GridSize,
		MineCount:     s.MineCount,
		RevealedCells: s.Revealed,
		SafeRevealed:  s.SafeRevealed,
		Multiplier:    s.Multiplier(),
		State:         string(s.State),
		IsActive:      s.IsActive(),
	}
	if v.RevealedCells == nil {
		v.RevealedCells = []int{}
	}
	if !s.IsActive() {
		v.Mines = s.Mines
	}
	return v
}

// Start stakes bet and lays out a new session. Zero gridSize or mineCount
// selects the defaults.
func (s *MinesService) Start(ctx context.Context, userID uuid.UUID, bet int64, gridSize, mineCount int) (*MinesStartResult, error) {
	sess, err := s.engine.Start(bet, gridSize, mineCount)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	var user *model.User
	err = s.ledger.Do(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.ledger.Stake(ctx, userID, model.GameLandmines, bet, model.ReasonMinesBet)
		if err != nil {
			return err
		}
		return s.repo.Create(ctx, &model.MinesSession{
			ID:            id,
			UserID:        userID,
			BetAmount:     bet,
			GridSize:      sess.GridSize,
			MineCount:     sess.MineCount,
			MinesLayout:   sess.Mines,
			RevealedCells: []int{},
			State:         string(sess.State),
		})
	})
	if err != nil {
		return nil, wrap("failed to start mines session", err)
	}

	log.Debug().
		Str("user_id", userID.String()).
		Str("session_id", id.String()).
		Int("grid_size", sess.GridSize).
		Int("mine_count", sess.MineCount).
		Int64("bet", bet).
		Msg("Mines session started")

	s.ledger.Staked(model.GameLandmines, bet)
	return &MinesStartResult{Session: newMinesView(id, sess), Balance: user.Balance}, nil
}

// load fetches a session owned by userID.
func (s *MinesService) load(ctx context.Context, userID, sessionID uuid.UUID) (*model.MinesSession, error) {
	row, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if row.UserID != userID {
		return nil, ErrSessionNotOwned
	}
	return row, nil
}

// Get returns the client-visible state of a session.
func (s *MinesService) Get(ctx context.Context, userID, sessionID uuid.UUID) (*MinesView, error) {
	row, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return newMinesView(row.ID, toEngineSession(row)), nil
}

// Reveal uncovers a cell. Hitting a mine settles the session as lost.
func (s *MinesService) Reveal(ctx context.Context, userID, sessionID uuid.UUID, cell int) (*MinesRevealResult, error) {
	var result *MinesRevealResult
	var sess *mines.Session
	err := s.ledger.withLock(ctx, "mines:"+sessionID.String(), func() error {
		row, err := s.load(ctx, userID, sessionID)
		if err != nil {
			return err
		}
		sess = toEngineSession(row)
		expected := sess.SafeRevealed

		res, err := sess.Reveal(cell)
		if err != nil {
			return err
		}
		result = &MinesRevealResult{RevealResult: res}

		if !res.HitMine {
			return s.repo.RecordReveal(ctx, sessionID, expected, sess.Revealed, sess.SafeRevealed)
		}

		result.Mines = sess.Mines
		zero := int64(0)
		return s.ledger.Do(ctx, func(ctx context.Context) error {
			if err := s.repo.Finish(ctx, sessionID, expected, string(sess.State), sess.Revealed, sess.SafeRevealed, &zero); err != nil {
				return err
			}
			return s.ledger.Record(ctx, userID, model.GameLandmines, sess.BetAmount, -sess.BetAmount)
		})
	})
	if err != nil {
		return nil, mapMinesErr("failed to reveal cell", err)
	}

	if result.HitMine {
		s.ledger.Settled(ctx, events.Settlement{
			UserID:    userID,
			GameType:  model.GameLandmines,
			RoundID:   sessionID.String(),
			BetAmount: sess.BetAmount,
			Net:       -sess.BetAmount,
		})
	}
	return result, nil
}

// CashOut ends the session and pays bet times the current multiplier.
func (s *MinesService) CashOut(ctx context.Context, userID, sessionID uuid.UUID) (*MinesCashOutResult, error) {
	var res *mines.CashOutResult
	var sess *mines.Session
	var user *model.User
	err := s.ledger.withLock(ctx, "mines:"+sessionID.String(), func() error {
		row, err := s.load(ctx, userID, sessionID)
		if err != nil {
			return err
		}
		sess = toEngineSession(row)
		expected := sess.SafeRevealed

		res, err = sess.CashOut()
		if err != nil {
			return err
		}

		return s.ledger.Do(ctx, func(ctx context.Context) error {
			if err := s.repo.Finish(ctx, sessionID, expected, string(sess.State), sess.Revealed, sess.SafeRevealed, &res.Payout); err != nil {
				return err
			}
			var err error
			user, err = s.ledger.Pay(ctx, userID, model.GameLandmines, res.Payout, model.ReasonMinesCashout)
			if err != nil {
				return err
			}
			return s.ledger.Record(ctx, userID, model.GameLandmines, sess.BetAmount, res.Payout-sess.BetAmount)
		})
	})
	if err != nil {
		return nil, mapMinesErr("failed to cash out", err)
	}

	net := res.Payout - sess.BetAmount
	s.ledger.Settled(ctx, events.Settlement{
		UserID:     userID,
		GameType:   model.GameLandmines,
		RoundID:    sessionID.String(),
		BetAmount:  sess.BetAmount,
		Payout:     res.Payout,
		Net:        net,
		Balance:    user.Balance,
		Multiplier: res.Multiplier,
	})
	s.achievements.Award(ctx, userID, Outcome{
		GameType:     model.GameLandmines,
		Bet:          sess.BetAmount,
		Payout:       res.Payout,
		Net:          net,
		Multiplier:   res.Multiplier,
		SafeRevealed: res.SafeRevealed,
	})

	return &MinesCashOutResult{CashOutResult: res, Balance: user.Balance}, nil
}

// mapMinesErr turns lost races into the engine's finished error so callers
// see one error for a session that moved on underneath them.
func mapMinesErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrAlreadyFinished):
		return mines.ErrGameFinished
	case errors.Is(err, repository.ErrConcurrentUpdate):
		return fmt.Errorf("%w: session changed, retry", repository.ErrConcurrentUpdate)
	}
	return wrap(op, err)
}
