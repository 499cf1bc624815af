package http

import (
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/samber/lo"
)

type ErrorResponse struct {
	Error  string         `json:"error"`
	ChatID *domain.ChatID `json:"chat_id,omitempty"`
}

type ChatSummaryDTO struct {
	LastMessage   *string    `json:"last_message"`
	LastTimeStamp *time.Time `json:"last_time_stamp"`
}

type DirectChatItem struct {
	ChatID          domain.ChatID `json:"chat_id"`
	PartnerUsername string        `json:"partner_username"`
	ChatSummaryDTO
}

type GroupChatItem struct {
	ChatID domain.ChatID `json:"chat_id"`
	Title  string        `json:"title"`
	ChatSummaryDTO
}

type InboxResponse struct {
	DirectChats []DirectChatItem `json:"direct_chats"`
	GroupChats  []GroupChatItem  `json:"group_chats"`
}

type ChatMetadataResponse struct {
	ChatID    domain.ChatID `json:"chat_id"`
	Kind      string        `json:"kind"`
	UsernameA string        `json:"username_a,omitempty"`
	UsernameB string        `json:"username_b,omitempty"`
	Title     string        `json:"title,omitempty"`
	Admin     string        `json:"admin,omitempty"`
	Members   []string      `json:"members,omitempty"`
}

type MessageItem struct {
	ID        int64         `json:"id"`
	ChatID    domain.ChatID `json:"chat_id"`
	Sender    string        `json:"sender"`
	SenderID  domain.UserID `json:"sender_id"`
	Message   string        `json:"message"`
	TimeStamp time.Time     `json:"timestamp"`
}

type HistoryResponse struct {
	Items      []MessageItem `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type CreateDirectChatRequest struct {
	PartnerUsername string `json:"partner_username" validate:"required,max=64"`
	FirstMessage    string `json:"first_message" validate:"required"`
}

type CreateGroupChatRequest struct {
	Title   string   `json:"title" validate:"required,max=128"`
	Members []string `json:"members" validate:"omitempty,dive,required,max=64"`
}

type CreateChatResponse struct {
	ChatID domain.ChatID `json:"chat_id"`
}

type UpdateMemberRequest struct {
	Action   domain.MemberAction `json:"action" validate:"required,oneof=add delete"`
	Username string              `json:"username" validate:"required,max=64"`
}

func toInboxResponse(in domain.Inbox) InboxResponse {
	return InboxResponse{
		DirectChats: lo.Map(in.Direct, func(c domain.DirectChat, _ int) DirectChatItem {
			return DirectChatItem{
				ChatID:          c.ChatID,
				PartnerUsername: c.Partner,
				ChatSummaryDTO:  ChatSummaryDTO{LastMessage: c.LastMessage, LastTimeStamp: c.LastTimeStamp},
			}
		}),
		GroupChats: lo.Map(in.Group, func(c domain.GroupChat, _ int) GroupChatItem {
			return GroupChatItem{
				ChatID:         c.ChatID,
				Title:          c.Title,
				ChatSummaryDTO: ChatSummaryDTO{LastMessage: c.LastMessage, LastTimeStamp: c.LastTimeStamp},
			}
		}),
	}
}

func toMetadataResponse(m domain.ChatMetadata) ChatMetadataResponse {
	return ChatMetadataResponse{
		ChatID:    m.ChatID,
		Kind:      m.Kind.String(),
		UsernameA: m.UsernameA,
		UsernameB: m.UsernameB,
		Title:     m.Title,
		Admin:     m.Admin,
		Members:   m.Members,
	}
}

func toMessageItems(msgs []domain.ChatMessage) []MessageItem {
	return lo.Map(msgs, func(m domain.ChatMessage, _ int) MessageItem {
		return MessageItem{
			ID:        m.ID,
			ChatID:    m.ChatID,
			Sender:    m.Sender,
			SenderID:  m.SenderID,
			Message:   m.Content,
			TimeStamp: m.TimeStamp,
		}
	})
}
