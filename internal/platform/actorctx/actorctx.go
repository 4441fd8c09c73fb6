package actorctx

import (
	"context"
	"strings"
)

// Package actorctx carries the authenticated actor identity through a
// request's call chain. The binding rides on context.Context, so two
// concurrently-running requests can never observe each other's actor.

type actorKey struct{}

// WithActor binds actorID as the current actor for everything derived from
// the returned context. Nesting is allowed; the innermost binding wins.
// An empty id leaves the context unchanged.
func WithActor(ctx context.Context, actorID string) context.Context {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actorID)
}

// Actor returns the nearest enclosing actor binding. The second return is
// false when the chain runs outside any WithActor scope (anonymous or
// background paths).
func Actor(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	actorID, ok := ctx.Value(actorKey{}).(string)
	if !ok || actorID == "" {
		return "", false
	}
	return actorID, true
}
