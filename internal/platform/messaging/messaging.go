package messaging

import (
	"context"

	"caritas/internal/shared/events"
)

// Publisher delivers post-commit notification events. Implementations are
// best-effort: callers log failures and never roll back committed work
// because of them.
type Publisher interface {
	Publish(ctx context.Context, topic string, event events.Envelope) error
}
