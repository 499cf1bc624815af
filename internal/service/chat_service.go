package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/postgres"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

const defaultMaxMessageLen = 4000

// Evictor выкидывает живые ws-сессии пользователя из чата.
type Evictor interface {
	Kick(chatID domain.ChatID, userID domain.UserID) int
}

type ChatService struct {
	chats    *postgres.ChatRepo
	messages *postgres.MessageRepo
	store    *postgres.Store

	evictor       Evictor
	maxMessageLen int
	now           func() time.Time
}

func NewChatService(chats *postgres.ChatRepo, messages *postgres.MessageRepo, store *postgres.Store) *ChatService {
	return &ChatService{
		chats:         chats,
		messages:      messages,
		store:         store,
		maxMessageLen: defaultMaxMessageLen,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *ChatService) SetMaxMessageLen(n int) {
	if n > 0 {
		s.maxMessageLen = n
	}
}

func (s *ChatService) SetEvictor(e Evictor) { s.evictor = e }

func (s *ChatService) IsMember(ctx context.Context, chatID domain.ChatID, userID domain.UserID) (bool, error) {
	return s.chats.IsMember(ctx, chatID, userID)
}

func (s *ChatService) checkContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return domain.ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > s.maxMessageLen {
		return domain.ErrMessageTooLong
	}
	return nil
}

// Record сохраняет сообщение. Текст хранится как есть, пустые и слишком длинные отклоняются.
func (s *ChatService) Record(ctx context.Context, chatID domain.ChatID, senderID domain.UserID, content string, ts time.Time) (domain.ChatMessage, error) {
	if err := s.checkContent(content); err != nil {
		return domain.ChatMessage{}, err
	}
	return s.store.Record(ctx, chatID, senderID, content, ts.UTC())
}

func (s *ChatService) requireMember(ctx context.Context, chatID domain.ChatID, userID domain.UserID) error {
	ok, err := s.chats.IsMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotMember
	}
	return nil
}

func (s *ChatService) History(ctx context.Context, userID domain.UserID, chatID domain.ChatID, cursor string, limit int) ([]domain.ChatMessage, string, error) {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return nil, "", err
	}
	return s.messages.History(ctx, chatID, cursor, limit)
}

func (s *ChatService) Inbox(ctx context.Context, userID domain.UserID) (domain.Inbox, error) {
	return s.chats.Inbox(ctx, userID)
}

func (s *ChatService) Metadata(ctx context.Context, userID domain.UserID, chatID domain.ChatID) (domain.ChatMetadata, error) {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return domain.ChatMetadata{}, err
	}
	return s.chats.Metadata(ctx, chatID)
}

func (s *ChatService) CreateDirect(ctx context.Context, userID domain.UserID, partner, content string) (domain.ChatID, error) {
	if err := s.checkContent(content); err != nil {
		return 0, err
	}
	return s.store.CreateDirectChat(ctx, userID, strings.TrimSpace(partner), content, s.now())
}

func (s *ChatService) CreateGroup(ctx context.Context, userID domain.UserID, title string, members []string) (domain.ChatID, error) {
	return s.store.CreateGroupChat(ctx, userID, title, members)
}

// UpdateMember: добавление/удаление участника группы; доступно только админу.
// При удалении живые соединения удалённого пользователя в этом чате закрываются.
func (s *ChatService) UpdateMember(ctx context.Context, actorID domain.UserID, chatID domain.ChatID, username string, action domain.MemberAction) error {
	isAdmin, err := s.chats.IsAdmin(ctx, chatID, actorID)
	if err != nil {
		return err
	}
	if !isAdmin {
		return domain.ErrNotAdmin
	}

	target, err := s.chats.UserIDByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return err
	}

	switch action {
	case domain.MemberAdd:
		return s.chats.AddMember(ctx, chatID, target)
	case domain.MemberDelete:
		if target == actorID {
			return domain.ErrAdminRemoval
		}
		if err := s.chats.RemoveMember(ctx, chatID, target); err != nil {
			return err
		}
		if s.evictor != nil {
			if n := s.evictor.Kick(chatID, target); n > 0 {
				logger.FromCtx(ctx).Info("member sessions evicted",
					slog.Int64("chat_id", int64(chatID)),
					slog.Int64("user_id", int64(target)),
					slog.Int("sessions", n),
				)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown action %q", domain.ErrInvalidMembers, action)
	}
}
