package ws

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

type Options struct {
	PingEvery      time.Duration
	InitTimeout    time.Duration
	WriteTimeout   time.Duration
	PersistTimeout time.Duration
	ReadLimit      int64
	OutboxLimit    int
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.PingEvery <= 0 {
		o.PingEvery = 15 * time.Second
	}
	if o.InitTimeout <= 0 {
		o.InitTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = 5 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.OutboxLimit <= 0 {
		o.OutboxLimit = 1024
	}
	return o
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	deps     sessionDeps
	opts     Options
}

func NewServer(hub *Hub, validator SessionValidator, members MembershipChecker, recorder MessageRecorder, opts Options) *Server {
	opts = opts.withDefaults()
	s := &Server{
		hub:  hub,
		opts: opts,
		deps: sessionDeps{
			hub:            hub,
			broadcaster:    NewBroadcaster(hub, slog.Default()),
			validator:      validator,
			members:        members,
			recorder:       recorder,
			persistTimeout: opts.PersistTimeout,
		},
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// пустой список: пускаем всех
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 || lo.Contains(s.opts.AllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return lo.ContainsBy(s.opts.AllowedOrigins, func(allowed string) bool {
		return strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host)
	})
}

// WS endpoint: GET /ws/chat, первым фреймом клиент шлёт {"type":"init",...}
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		logger.FromCtx(r.Context()).Warn("ws upgrade failed", slog.Any("err", err))
		return
	}

	connID := uuid.New()
	log := logger.FromCtx(r.Context()).With(slog.String("conn_id", connID.String()))
	out := NewOutbox(s.opts.OutboxLimit)
	sess := newSession(s.deps, connID, out, log)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(conn, out, log)
	}()

	s.readLoop(r.Context(), conn, sess)
	sess.Close()
	<-writerDone
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, sess *Session) {
	conn.SetReadLimit(s.opts.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(s.opts.InitTimeout))
	conn.SetPongHandler(func(string) error {
		if sess.State() == StateActive {
			return conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
		}
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if sess.State() == StateAwaitingInit {
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					sess.Fail(textInitTimeout)
				} else {
					sess.Fail(textClosedBeforeInit)
				}
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				sess.log.Debug("ws read failed", slog.Any("err", err))
			}
			return
		}

		wasInit := sess.State() == StateAwaitingInit
		if sess.Handle(ctx, data) {
			return
		}
		if wasInit && sess.State() == StateActive {
			_ = conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
		}
	}
}

// writeLoop: единственный писатель в conn.
func (s *Server) writeLoop(conn *websocket.Conn, out *Outbox, log *slog.Logger) {
	ticker := time.NewTicker(s.opts.PingEvery)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case <-out.Ready():
			if err := s.flush(conn, out); err != nil {
				log.Debug("ws write failed", slog.Any("err", err))
				out.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteTimeout)); err != nil {
				log.Debug("ws ping failed", slog.Any("err", err))
				out.Close()
				return
			}
		case <-out.Done():
			// дописываем хвост (например, Error перед закрытием)
			_ = s.flush(conn, out)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.opts.WriteTimeout))
			return
		}
	}
}

func (s *Server) flush(conn *websocket.Conn, out *Outbox) error {
	for _, frame := range out.Drain() {
		_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return err
		}
	}
	return nil
}

// Kick закрывает все живые соединения пользователя в чате.
func (s *Server) Kick(chatID domain.ChatID, userID domain.UserID) int {
	removed := s.hub.Evict(chatID, userID)
	if len(removed) == 0 {
		return 0
	}
	frame, err := EncodeServerMessage(Error{Text: textRemoved})
	if err != nil {
		// соединения всё равно закрываем, просто без текста причины
		logger.L().Error("ws encode kick notice failed", slog.Any("err", err))
	}
	for _, e := range removed {
		if frame != nil {
			e.Outbox.Push(frame)
		}
		e.Outbox.Close()
	}
	return len(removed)
}
