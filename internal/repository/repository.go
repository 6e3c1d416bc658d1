// Package repository provides data access layer implementations.
//
// Every repository resolves its connection through the transaction manager's
// context getter, so calls made inside trm.Manager.Do share one transaction
// and calls made outside it run on the pool.
package repository

import (
	"context"
	"errors"

	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors for repository operations.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDailyNotReady       = errors.New("daily bonus already claimed")
	ErrSessionNotFound     = errors.New("game session not found")
	ErrRoundNotFound       = errors.New("round not found")
	ErrAlreadyFinished     = errors.New("already finished")
	ErrConcurrentUpdate    = errors.New("concurrent update")
	ErrTaskTypeNotFound    = errors.New("task type not found")
	ErrChallengeNotFound   = errors.New("challenge not found")
	ErrEntryNotFound       = errors.New("challenge entry not found")
)

// conn resolves the current transaction or the pool.
type conn struct {
	pool   *pgxpool.Pool
	getter *trmpgx.CtxGetter
}

func newConn(pool *pgxpool.Pool) conn {
	return conn{pool: pool, getter: trmpgx.DefaultCtxGetter}
}

func (c conn) db(ctx context.Context) trmpgx.Tr {
	return c.getter.DefaultTrOrDB(ctx, c.pool)
}
