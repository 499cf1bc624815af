package ws

import (
	"log/slog"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// Broadcaster раскладывает сообщение по outbox'ам всех участников чата, кроме отправителя.
type Broadcaster struct {
	hub *Hub
	log *slog.Logger
}

func NewBroadcaster(hub *Hub, log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{hub: hub, log: log}
}

// Broadcast: fire-and-forget; возвращает число получателей, которым фрейм поставлен в очередь.
func (b *Broadcaster) Broadcast(chatID domain.ChatID, senderID domain.UserID, msg ServerMessage) int {
	targets := b.hub.Targets(chatID)
	if len(targets) == 0 {
		return 0
	}

	frame, err := EncodeServerMessage(msg)
	if err != nil {
		b.log.Error("broadcast encode failed", slog.Int64("chat_id", int64(chatID)), slog.Any("err", err))
		return 0
	}

	delivered := 0
	for _, t := range targets {
		if t.UserID == senderID {
			continue
		}
		if !t.Outbox.Push(frame) {
			b.log.Debug("broadcast dropped",
				slog.Int64("chat_id", int64(chatID)),
				slog.Int64("user_id", int64(t.UserID)),
				slog.String("conn_id", t.ConnID.String()),
			)
			continue
		}
		delivered++
	}
	return delivered
}
