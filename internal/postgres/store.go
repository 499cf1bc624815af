package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

// Store собирает многошаговые операции поверх репозиториев в одну транзакцию.
type Store struct {
	db DB
}

func NewStore(db DB) *Store { return &Store{db: db} }

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			// откатываем даже если ctx уже отменён
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Record сохраняет сообщение и обновляет last_message/last_time_stamp чата.
// Оба изменения видны вместе или не видны вовсе.
// Членство проверяется в той же транзакции: участник мог быть удалён уже после Init.
func (s *Store) Record(ctx context.Context, chatID domain.ChatID, senderID domain.UserID, content string, ts time.Time) (domain.ChatMessage, error) {
	msg := domain.ChatMessage{ChatID: chatID, SenderID: senderID, Content: content, TimeStamp: ts}

	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		chats := NewChatRepoFromTx(tx)
		member, err := chats.IsMember(ctx, chatID, senderID)
		if err != nil {
			return err
		}
		if !member {
			return domain.ErrNotMember
		}

		kind, err := chats.Kind(ctx, chatID)
		if err != nil {
			return err
		}

		id, err := NewMessageRepoFromTx(tx).insert(ctx, chatID, senderID, content, ts)
		if err != nil {
			return err
		}
		msg.ID = id

		return chats.updateSummary(ctx, kind, chatID, content, ts)
	})
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("record message: %w", err)
	}
	return msg, nil
}

// CreateDirectChat создаёт direct-чат вместе с первым сообщением.
// Если чат между парой уже есть, возвращается его id и ErrChatExists.
func (s *Store) CreateDirectChat(ctx context.Context, senderID domain.UserID, partner, content string, ts time.Time) (domain.ChatID, error) {
	var chatID domain.ChatID

	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		chats := NewChatRepoFromTx(tx)

		partnerID, err := chats.UserIDByUsername(ctx, partner)
		if err != nil {
			return err
		}
		if partnerID == senderID {
			return fmt.Errorf("%w: direct chat with yourself", domain.ErrInvalidMembers)
		}

		existing, found, err := chats.findDirect(ctx, senderID, partnerID)
		if err != nil {
			return err
		}
		if found {
			chatID = existing
			return domain.ErrChatExists
		}

		if chatID, err = chats.createChat(ctx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, queryAddDirectMembers, int64(chatID), int64(senderID), int64(partnerID)); err != nil {
			return fmt.Errorf("add direct members: %w", mapPgError(err))
		}
		if _, err := tx.Exec(ctx, queryCreateDirectChat, int64(chatID), content, ts); err != nil {
			return fmt.Errorf("create direct chat: %w", mapPgError(err))
		}
		_, err = NewMessageRepoFromTx(tx).insert(ctx, chatID, senderID, content, ts)
		return err
	})
	return chatID, err
}

// CreateGroupChat: создатель становится админом и участником.
func (s *Store) CreateGroupChat(ctx context.Context, adminID domain.UserID, title string, members []string) (domain.ChatID, error) {
	var chatID domain.ChatID
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, fmt.Errorf("%w: empty title", domain.ErrInvalidMembers)
	}

	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		chats := NewChatRepoFromTx(tx)

		var err error
		if chatID, err = chats.createChat(ctx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, queryCreateGroupChat, int64(chatID), int64(adminID), title); err != nil {
			return fmt.Errorf("create group chat: %w", mapPgError(err))
		}
		if err := chats.AddMember(ctx, chatID, adminID); err != nil {
			return err
		}
		for _, name := range members {
			id, err := chats.UserIDByUsername(ctx, name)
			if err != nil {
				return fmt.Errorf("%w: %s", err, name)
			}
			if err := chats.AddMember(ctx, chatID, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return chatID, nil
}
