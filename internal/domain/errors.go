package domain

import "errors"

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrNotMember       = errors.New("user is not a chat member")
	ErrChatNotFound    = errors.New("chat not found")
	ErrUnknownChatKind = errors.New("unknown chat kind")
	ErrNotAdmin        = errors.New("user is not a group admin")
	ErrUserNotFound    = errors.New("user not found")
	ErrChatExists      = errors.New("direct chat already exists")
	ErrInvalidMembers  = errors.New("invalid chat members")
	ErrAdminRemoval    = errors.New("group admin cannot be removed")
	ErrEmptyMessage    = errors.New("empty message")
	ErrMessageTooLong  = errors.New("message too long")
	ErrTokenBound      = errors.New("token is already bound to a live connection")
	ErrEvicted         = errors.New("user was removed from chat")
)
