package actorctx

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestActorAbsent(t *testing.T) {
	if actor, ok := Actor(context.Background()); ok || actor != "" {
		t.Fatalf("expected no actor on a bare context, got %q", actor)
	}
}

func TestWithActorInnermostWins(t *testing.T) {
	ctx := WithActor(context.Background(), "user-outer")
	inner := WithActor(ctx, "user-inner")

	if actor, ok := Actor(inner); !ok || actor != "user-inner" {
		t.Fatalf("expected innermost binding, got %q", actor)
	}
	if actor, ok := Actor(ctx); !ok || actor != "user-outer" {
		t.Fatalf("outer context must keep its own binding, got %q", actor)
	}
}

func TestWithActorIgnoresBlankID(t *testing.T) {
	ctx := WithActor(context.Background(), "   ")
	if _, ok := Actor(ctx); ok {
		t.Fatal("blank actor id must not bind")
	}
}

func TestConcurrentChainsStayIsolated(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			want := fmt.Sprintf("user-%d", n)
			ctx := WithActor(context.Background(), want)

			// Read from a nested call chain, the way repositories do.
			done := make(chan string, 1)
			go func() {
				actor, _ := Actor(ctx)
				done <- actor
			}()
			if got := <-done; got != want {
				t.Errorf("chain %d read %q", n, got)
			}
		}(i)
	}
	wg.Wait()
}
