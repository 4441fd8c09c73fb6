package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"caritas/internal/platform/actorctx"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator verifies the bearer token issued by the external identity
// provider and binds the verified subject as the request actor. Everything
// downstream reads the actor from the context, never from headers.
type Authenticator struct {
	Secret []byte
	Logger *slog.Logger
}

func (a Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "authorization header is required", "UNAUTHORIZED")
			return
		}
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			writeError(w, http.StatusUnauthorized, "authorization header must use the Bearer scheme", "UNAUTHORIZED")
			return
		}

		claims := jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return a.Secret, nil
		})
		if err != nil || !token.Valid {
			a.log().Warn("token rejected",
				"event", "auth_token_rejected",
				"module", "internal/platform/httpserver",
				"layer", "platform",
			)
			writeError(w, http.StatusUnauthorized, "invalid or expired token", "UNAUTHORIZED")
			return
		}
		if strings.TrimSpace(claims.Subject) == "" {
			writeError(w, http.StatusBadRequest, "token subject does not identify an actor", "VALIDATION_ERROR")
			return
		}

		ctx := actorctx.WithActor(r.Context(), claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a Authenticator) log() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}
