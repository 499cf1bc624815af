package domain

import "time"

type ChatID int64

type ChatKind int

const (
	ChatKindUnknown ChatKind = iota
	ChatKindDirect
	ChatKindGroup
)

func (k ChatKind) String() string {
	switch k {
	case ChatKindDirect:
		return "direct"
	case ChatKindGroup:
		return "group"
	default:
		return "unknown"
	}
}

// ChatSummary: денормализованная "последняя реплика" для списка чатов.
type ChatSummary struct {
	LastMessage   *string
	LastTimeStamp *time.Time
}

type DirectChat struct {
	ChatID  ChatID
	Partner string
	ChatSummary
}

type GroupChat struct {
	ChatID ChatID
	Title  string
	ChatSummary
}

// Inbox: все чаты пользователя.
type Inbox struct {
	Direct []DirectChat
	Group  []GroupChat
}

type ChatMetadata struct {
	ChatID ChatID
	Kind   ChatKind

	// Direct
	UsernameA string
	UsernameB string

	// Group
	Title   string
	Admin   string
	Members []string
}

type MemberAction string

const (
	MemberAdd    MemberAction = "add"
	MemberDelete MemberAction = "delete"
)
