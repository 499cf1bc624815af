package domain

import "time"

type ChatMessage struct {
	ID        int64     `db:"id"`
	ChatID    ChatID    `db:"chat_id"`
	SenderID  UserID    `db:"sender_id"`
	Sender    string    `db:"sender"`
	Content   string    `db:"content"`
	TimeStamp time.Time `db:"time_stamp"`
}
