package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

// SessionRepo проверяет непрозрачные токены, токен ищется в users.user_token.
type SessionRepo struct {
	q querier
}

func NewSessionRepoFromPool(q querier) *SessionRepo { return &SessionRepo{q: q} }

func (r *SessionRepo) Validate(ctx context.Context, token string) (domain.Session, error) {
	if token == "" {
		return domain.Session{}, domain.ErrInvalidToken
	}

	var (
		id       int64
		username string
	)
	err := r.q.QueryRow(ctx, querySessionByToken, token).Scan(&id, &username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, domain.ErrInvalidToken
		}
		return domain.Session{}, fmt.Errorf("validate token: %w", err)
	}

	return domain.Session{UserID: domain.UserID(id), Username: username}, nil
}
