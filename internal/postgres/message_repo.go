package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

type MessageRepo struct {
	q querier
}

func NewMessageRepoFromPool(q querier) *MessageRepo { return &MessageRepo{q: q} }
func NewMessageRepoFromTx(tx pgx.Tx) *MessageRepo   { return &MessageRepo{q: tx} }

func (r *MessageRepo) insert(ctx context.Context, chatID domain.ChatID, senderID domain.UserID, content string, ts time.Time) (int64, error) {
	var id int64
	if err := r.q.QueryRow(ctx, queryInsertMessage, int64(chatID), int64(senderID), content, ts).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert message: %w", mapPgError(err))
	}
	return id, nil
}

// History возвращает страницу истории чата (time_stamp,id DESC) и курсор следующей страницы.
func (r *MessageRepo) History(ctx context.Context, chatID domain.ChatID, after string, limit int) ([]domain.ChatMessage, string, error) {
	limit = clampLimit(limit)
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", err
	}

	var (
		ts any
		id any
	)
	if cur != nil {
		ts = cur.TimeStamp
		id = cur.ID
	}

	rows, err := r.q.Query(ctx, queryHistory, int64(chatID), ts, id, limit)
	if err != nil {
		return nil, "", fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0, limit)
	for rows.Next() {
		var (
			m              domain.ChatMessage
			chat, senderID int64
		)
		if err := rows.Scan(&m.ID, &chat, &senderID, &m.Sender, &m.Content, &m.TimeStamp); err != nil {
			return nil, "", fmt.Errorf("scan message: %w", err)
		}
		m.ChatID, m.SenderID = domain.ChatID(chat), domain.UserID(senderID)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if c, e := EncodeCursor(Cursor{TimeStamp: last.TimeStamp, ID: last.ID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}
