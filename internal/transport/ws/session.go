package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/cwrk-planet/chat-service/internal/transport/ws")

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/collaborators.go -package=mocks . SessionValidator,MembershipChecker,MessageRecorder

type SessionValidator interface {
	Validate(ctx context.Context, token string) (domain.Session, error)
}

type MembershipChecker interface {
	IsMember(ctx context.Context, chatID domain.ChatID, userID domain.UserID) (bool, error)
}

type MessageRecorder interface {
	Record(ctx context.Context, chatID domain.ChatID, senderID domain.UserID, content string, ts time.Time) (domain.ChatMessage, error)
}

type State int32

const (
	StateAwaitingInit State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingInit:
		return "awaiting_init"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Тексты уведомлений клиенту.
const (
	textConnected          = "connected"
	textAlreadyInitialized = "already initialized"
	textExpectedInit       = "expected init message"
	textInvalidToken       = "invalid token"
	textValidationFailed   = "session validation failed"
	textNotMember          = "not a member of this chat"
	textMembershipFailed   = "membership check failed"
	textTokenBusy          = "token is already in use"
	textTokenMismatch      = "token mismatch"
	textMalformed          = "malformed message"
	textSaveFailed         = "failed to save message"
	textInitTimeout        = "init timeout"
	textClosedBeforeInit   = "connection closed before init"
	textRemoved            = "removed from chat"
)

type sessionDeps struct {
	hub            *Hub
	broadcaster    *Broadcaster
	validator      SessionValidator
	members        MembershipChecker
	recorder       MessageRecorder
	persistTimeout time.Duration
	now            func() time.Time
}

// Session это автомат одного соединения, AwaitingInit -> Active -> Closed.
// Handle вызывается только из читающей горутины; Close безопасен откуда угодно.
type Session struct {
	deps  sessionDeps
	id    uuid.UUID
	out   *Outbox
	log   *slog.Logger
	state atomic.Int32

	// заполняются один раз при Init
	token  string
	chatID domain.ChatID
	user   domain.Session

	closeOnce sync.Once
}

func newSession(deps sessionDeps, id uuid.UUID, out *Outbox, log *slog.Logger) *Session {
	if deps.now == nil {
		deps.now = func() time.Time { return time.Now().UTC() }
	}
	s := &Session{deps: deps, id: id, out: out, log: log}
	s.state.Store(int32(StateAwaitingInit))
	return s
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) ChatID() domain.ChatID { return s.chatID }

// Handle обрабатывает один входящий фрейм. true: сессия закрыта, читать дальше не нужно.
func (s *Session) Handle(ctx context.Context, data []byte) bool {
	select {
	case <-s.out.Done():
		// outbox закрыт снаружи (kick или отвалился writer)
		s.Close()
		return true
	default:
	}

	msg, err := DecodeClientMessage(data)

	switch s.State() {
	case StateAwaitingInit:
		im, ok := msg.(InitMessage)
		if err != nil || !ok {
			s.log.Debug("ws first frame is not init", slog.Any("err", err))
			s.Fail(textExpectedInit)
			return true
		}
		return s.handleInit(ctx, im)

	case StateActive:
		if err != nil {
			s.log.Warn("ws malformed message ignored", slog.Any("err", err))
			s.notify(Error{Text: textMalformed})
			return false
		}
		switch m := msg.(type) {
		case InitMessage:
			s.notify(Info{Text: textAlreadyInitialized})
			return false
		case MsgMessage:
			return s.handleMsg(ctx, m)
		case ExitMessage:
			if m.Token != s.token {
				s.log.Warn("ws exit with foreign token")
				s.Fail(textTokenMismatch)
				return true
			}
			s.log.Debug("ws exit")
			s.Close()
			return true
		}
	}

	return true
}

func (s *Session) handleInit(ctx context.Context, m InitMessage) bool {
	user, err := s.deps.validator.Validate(ctx, m.Token)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			s.Fail(textInvalidToken)
		} else {
			s.log.Error("ws session validation failed", slog.Any("err", err))
			s.Fail(textValidationFailed)
		}
		return true
	}

	log := s.log.With(slog.Int64("chat_id", int64(m.ChatID)), slog.Int64("user_id", int64(user.UserID)))

	// до проверки членства: Kick между IsMember и Attach сдвинет epoch
	epoch := s.deps.hub.Epoch(m.ChatID, user.UserID)
	ok, err := s.deps.members.IsMember(ctx, m.ChatID, user.UserID)
	if err != nil {
		log.Error("ws membership check failed", slog.Any("err", err))
		s.Fail(textMembershipFailed)
		return true
	}
	if !ok {
		log.Info("ws init rejected: not a member")
		s.Fail(textNotMember)
		return true
	}

	entry := Entry{ConnID: s.id, Token: m.Token, UserID: user.UserID, Outbox: s.out}
	if err := s.deps.hub.Attach(m.ChatID, entry, epoch); err != nil {
		log.Warn("ws init rejected", slog.Any("err", err))
		if errors.Is(err, domain.ErrEvicted) {
			s.Fail(textNotMember)
		} else {
			s.Fail(textTokenBusy)
		}
		return true
	}

	s.token, s.chatID, s.user = m.Token, m.ChatID, user
	s.log = log
	s.state.Store(int32(StateActive))
	s.notify(Info{Text: textConnected})
	log.Info("ws session active")
	return false
}

func (s *Session) handleMsg(ctx context.Context, m MsgMessage) bool {
	if m.Token != s.token {
		s.log.Warn("ws message with foreign token")
		s.Fail(textTokenMismatch)
		return true
	}

	// запись доводим до конца даже если клиент уже отвалился
	pctx := context.WithoutCancel(ctx)
	if s.deps.persistTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(pctx, s.deps.persistTimeout)
		defer cancel()
	}

	pctx, span := tracer.Start(pctx, "ws.relay_message")
	span.SetAttributes(
		attribute.Int64("chat.id", int64(s.chatID)),
		attribute.Int64("user.id", int64(s.user.UserID)),
	)
	defer span.End()

	rec, err := s.deps.recorder.Record(pctx, s.chatID, s.user.UserID, m.Message, s.deps.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record message")
		switch {
		case errors.Is(err, domain.ErrNotMember):
			// пользователя удалили из чата, пока соединение было открыто
			s.log.Info("ws sender is no longer a member")
			s.Fail(textNotMember)
			return true
		case errors.Is(err, domain.ErrEmptyMessage), errors.Is(err, domain.ErrMessageTooLong):
			s.notify(Error{Text: err.Error()})
		default:
			s.log.Error("ws record message failed", slog.Any("err", err))
			s.notify(Error{Text: textSaveFailed})
		}
		return false
	}

	n := s.deps.broadcaster.Broadcast(s.chatID, s.user.UserID, ChatMessage{
		ChatID:     s.chatID,
		SenderID:   s.user.UserID,
		SenderName: s.user.Username,
		Message:    rec.Content,
		TimeStamp:  rec.TimeStamp,
	})
	span.SetAttributes(attribute.Int("chat.recipients", n))
	s.log.Debug("ws message relayed", slog.Int64("msg_id", rec.ID), slog.Int("recipients", n))
	return false
}

// Fail отправляет Error своему соединению и закрывает сессию.
func (s *Session) Fail(text string) {
	s.notify(Error{Text: text})
	s.Close()
}

// Close: ровно один раз снимает соединение с реестра и закрывает outbox.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		prev := State(s.state.Swap(int32(StateClosed)))
		if prev == StateActive {
			s.deps.hub.Detach(s.chatID, s.id, s.token)
		}
		s.out.Close()
		s.log.Debug("ws session closed", slog.String("from", prev.String()))
	})
}

func (s *Session) notify(m ServerMessage) {
	frame, err := EncodeServerMessage(m)
	if err != nil {
		s.log.Error("ws encode notification failed", slog.Any("err", err))
		return
	}
	if !s.out.Push(frame) {
		s.log.Debug("ws notification dropped")
	}
}
