package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Package idempotency makes mutating HTTP endpoints safe against retries and
// concurrent duplicate submissions. A client-supplied Idempotency-Key is
// claimed atomically through the store's uniqueness constraint; the wrapped
// handler runs at most once per key.

const (
	// HeaderKey is the request header carrying the client-supplied key.
	HeaderKey = "Idempotency-Key"

	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"

	// DefaultRetention is how long finalized records stay claimable-by-replay
	// before the worker sweep removes them.
	DefaultRetention = 24 * time.Hour
)

// ErrClaimRaced reports the race where the existing row vanished between a
// failed claim insert and the immediate lookup. The manager fails closed on
// it: duplicating a side effect is worse than failing one retryable request.
var ErrClaimRaced = errors.New("idempotency record vanished during claim")

// Record is one key's lifecycle row: created PENDING on claim, updated in
// place to COMPLETED with the handler's response, deleted on handler failure
// so the key becomes claimable again.
type Record struct {
	Key             string
	Status          string
	ResponseStatus  int
	ResponsePayload []byte
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

type Store interface {
	// Claim atomically inserts a PENDING row for key. When the key is already
	// taken it returns claimed=false plus the existing row; a lookup miss
	// after the insert conflict returns ErrClaimRaced.
	Claim(ctx context.Context, key string, now time.Time) (bool, Record, error)
	// Finalize transitions a PENDING row to COMPLETED with the real response.
	Finalize(ctx context.Context, key string, responseStatus int, payload []byte) error
	// Release deletes the row so the key is immediately retryable.
	Release(ctx context.Context, key string) error
	// DeleteExpired removes records past their retention window.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Clock interface {
	Now() time.Time
}

type Manager struct {
	Store     Store
	Clock     Clock
	Retention time.Duration
	Logger    *slog.Logger
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Middleware wraps a mutating handler with the claim/finalize/release
// protocol. Requests without the header bypass it entirely.
func (m Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(HeaderKey))
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		now := m.now()
		claimed, existing, err := m.Store.Claim(r.Context(), key, now)
		if err != nil {
			m.log().Error("idempotency claim failed",
				"event", "idempotency_claim_failed",
				"module", "internal/platform/idempotency",
				"layer", "platform",
				"error", err.Error(),
			)
			m.writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
			return
		}

		if !claimed {
			if existing.Status == StatusPending {
				m.writeError(w, http.StatusConflict,
					"a request with this idempotency key is already in flight",
					"IDEMPOTENCY_CONFLICT",
				)
				return
			}
			m.replay(w, existing)
			return
		}

		recorder := newResponseRecorder(w)
		completed := false
		defer func() {
			if completed {
				return
			}
			// Handler panicked; the key must become claimable again.
			m.release(r.Context(), key)
		}()

		next.ServeHTTP(recorder, r)
		completed = true

		if recorder.successfulJSON() {
			if err := m.Store.Finalize(r.Context(), key, recorder.status, recorder.body.Bytes()); err != nil {
				m.log().Error("idempotency finalize failed",
					"event", "idempotency_finalize_failed",
					"module", "internal/platform/idempotency",
					"layer", "platform",
					"key", key,
					"error", err.Error(),
				)
			}
			return
		}
		m.release(r.Context(), key)
	})
}

func (m Manager) replay(w http.ResponseWriter, record Record) {
	w.Header().Set("Content-Type", "application/json")
	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(record.ResponsePayload)
}

func (m Manager) release(ctx context.Context, key string) {
	if err := m.Store.Release(ctx, key); err != nil {
		m.log().Error("idempotency release failed",
			"event", "idempotency_release_failed",
			"module", "internal/platform/idempotency",
			"layer", "platform",
			"key", key,
			"error", err.Error(),
		)
	}
}

func (m Manager) writeError(w http.ResponseWriter, status int, message string, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message, Code: code})
}

// RetentionWindow resolves the configured retention with the 24h default.
func (m Manager) RetentionWindow() time.Duration {
	if m.Retention <= 0 {
		return DefaultRetention
	}
	return m.Retention
}

func (m Manager) now() time.Time {
	if m.Clock == nil {
		return time.Now().UTC()
	}
	return m.Clock.Now().UTC()
}

func (m Manager) log() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}
