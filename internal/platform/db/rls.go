package db

import (
	"context"
	"errors"
	"time"

	"caritas/internal/platform/actorctx"

	"gorm.io/gorm"
)

// ErrNoActor signals a mutation transaction requested outside any actor
// scope. Mutations are never anonymous.
var ErrNoActor = errors.New("no actor bound to context")

// Server-side row security policies read this session variable to decide
// which rows are visible and writable for the current transaction.
const actorSessionVar = "app.current_actor"

const (
	// ProxyTimeout bounds the implicit per-call transaction opened by
	// ActorScoped.
	ProxyTimeout = 30 * time.Second
	// MutationTimeout is the default bound for manually-managed mutation
	// transactions (ActorTx).
	MutationTimeout = 20 * time.Second
)

// ActorScoped runs fn against the database with the current actor bound as a
// transaction-local session variable. If no actor is present in ctx the
// operation passes through unmodified on the bare handle. Otherwise a fresh
// transaction is opened, set_config asserts the actor, fn runs on that
// transaction's connection, and the transaction commits. If asserting the
// variable fails, the whole transaction rolls back and nothing of fn is
// observable.
func (p *Postgres) ActorScoped(ctx context.Context, fn func(tx *gorm.DB) error) error {
	actorID, ok := actorctx.Actor(ctx)
	if !ok {
		return fn(p.DB.WithContext(ctx))
	}

	scoped, cancel := context.WithTimeout(ctx, ProxyTimeout)
	defer cancel()

	return p.DB.WithContext(scoped).Transaction(func(tx *gorm.DB) error {
		if err := assertActor(tx, actorID); err != nil {
			return err
		}
		return fn(tx)
	})
}

// ActorTx is the mutation-pattern entry point: one manually-scoped
// transaction that re-asserts the actor session variable before any
// statement runs. Every state-changing repository method goes through this
// so the re-assertion is never repeated at call sites. A non-positive
// timeout falls back to MutationTimeout.
func (p *Postgres) ActorTx(ctx context.Context, timeout time.Duration, fn func(tx *gorm.DB) error) error {
	actorID, ok := actorctx.Actor(ctx)
	if !ok {
		return ErrNoActor
	}
	if timeout <= 0 {
		timeout = MutationTimeout
	}

	scoped, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return p.DB.WithContext(scoped).Transaction(func(tx *gorm.DB) error {
		if err := assertActor(tx, actorID); err != nil {
			return err
		}
		return fn(tx)
	})
}

// assertActor sets the transaction-local session variable through a
// parameterized set_config call. Parameterization neutralizes injection
// through the actor id; never interpolate the value into the statement.
func assertActor(tx *gorm.DB, actorID string) error {
	return tx.Exec(
		"SELECT set_config('"+actorSessionVar+"', ?, true)",
		actorID,
	).Error
}
