package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/go-playground/validator/v10"
)

// Дискриминант в поле "type" (как на клиенте).
const (
	TypeInit = "init"
	TypeMsg  = "msg"
	TypeExit = "exit"

	TypeInfo        = "info"
	TypeError       = "error"
	TypeChatMessage = "chatmessage"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
)

var validate = validator.New()

// ClientMessage это закрытая сумма InitMessage | MsgMessage | ExitMessage.
type ClientMessage interface {
	clientMessage()
	SessionToken() string
}

type InitMessage struct {
	Token  string        `json:"token" validate:"required"`
	ChatID domain.ChatID `json:"chat_id" validate:"gt=0"`
}

type MsgMessage struct {
	Token   string `json:"token" validate:"required"`
	Message string `json:"message"`
}

type ExitMessage struct {
	Token string `json:"token" validate:"required"`
}

func (InitMessage) clientMessage() {}
func (MsgMessage) clientMessage()  {}
func (ExitMessage) clientMessage() {}

func (m InitMessage) SessionToken() string { return m.Token }
func (m MsgMessage) SessionToken() string  { return m.Token }
func (m ExitMessage) SessionToken() string { return m.Token }

// DecodeClientMessage читает дискриминант, затем тело соответствующего варианта.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var msg ClientMessage
	switch head.Type {
	case TypeInit:
		var m InitMessage
		if err := decodeVariant(data, &m); err != nil {
			return nil, err
		}
		msg = m
	case TypeMsg:
		var m MsgMessage
		if err := decodeVariant(data, &m); err != nil {
			return nil, err
		}
		msg = m
	case TypeExit:
		var m ExitMessage
		if err := decodeVariant(data, &m); err != nil {
			return nil, err
		}
		msg = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
	return msg, nil
}

func decodeVariant(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// ServerMessage это закрытая сумма Info | Error | ChatMessage.
type ServerMessage interface {
	serverMessage()
}

type Info struct {
	Text string
}

type Error struct {
	Text string
}

type ChatMessage struct {
	ChatID     domain.ChatID
	SenderID   domain.UserID
	SenderName string
	Message    string
	TimeStamp  time.Time
}

func (Info) serverMessage()        {}
func (Error) serverMessage()       {}
func (ChatMessage) serverMessage() {}

func (m Info) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{TypeInfo, m.Text})
}

func (m Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{TypeError, m.Text})
}

func (m ChatMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       string        `json:"type"`
		ChatID     domain.ChatID `json:"chat_id"`
		Sender     string        `json:"sender"`
		SenderName string        `json:"sender_name,omitempty"`
		Message    string        `json:"message"`
		TimeStamp  time.Time     `json:"timestamp"`
	}{
		Type:       TypeChatMessage,
		ChatID:     m.ChatID,
		Sender:     strconv.FormatInt(int64(m.SenderID), 10),
		SenderName: m.SenderName,
		Message:    m.Message,
		TimeStamp:  m.TimeStamp.UTC(),
	})
}

func EncodeServerMessage(m ServerMessage) ([]byte, error) {
	return json.Marshal(m)
}
