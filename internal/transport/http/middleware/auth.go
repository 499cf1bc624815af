package httpmw

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

type SessionValidator interface {
	Validate(ctx context.Context, token string) (domain.Session, error)
}

type ctxKey string

const ctxKeySession ctxKey = "session"

// BearerAuth резолвит Authorization: Bearer <token> через SessionValidator.
func BearerAuth(v SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || len(strings.TrimSpace(auth[7:])) == 0 {
				unauthorized(w, "missing bearer token")
				return
			}

			sess, err := v.Validate(r.Context(), strings.TrimSpace(auth[7:]))
			if err != nil {
				if errors.Is(err, domain.ErrInvalidToken) {
					unauthorized(w, "invalid token")
					return
				}
				logger.FromCtx(r.Context()).Error("auth: validate session", slog.Any("err", err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeySession, sess)
			ctx = logger.With(ctx, slog.Int64("user_id", int64(sess.UserID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func SessionFromCtx(ctx context.Context) (domain.Session, bool) {
	s, ok := ctx.Value(ctxKeySession).(domain.Session)
	return s, ok
}

// UserIDFromCtx: 0, если запрос не прошёл через BearerAuth.
func UserIDFromCtx(ctx context.Context) domain.UserID {
	s, _ := SessionFromCtx(ctx)
	return s.UserID
}
