package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

type ChatRepo struct {
	q querier
}

func NewChatRepoFromPool(q querier) *ChatRepo { return &ChatRepo{q: q} }
func NewChatRepoFromTx(tx pgx.Tx) *ChatRepo   { return &ChatRepo{q: tx} }

func (r *ChatRepo) IsMember(ctx context.Context, chatID domain.ChatID, userID domain.UserID) (bool, error) {
	var ok bool
	if err := r.q.QueryRow(ctx, queryIsMember, int64(chatID), int64(userID)).Scan(&ok); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return ok, nil
}

// Kind определяет тип чата по наличию строки в direct_chats/group_chats.
func (r *ChatRepo) Kind(ctx context.Context, chatID domain.ChatID) (domain.ChatKind, error) {
	var kind int
	if err := r.q.QueryRow(ctx, queryChatKind, int64(chatID)).Scan(&kind); err != nil {
		return domain.ChatKindUnknown, fmt.Errorf("chat kind: %w", err)
	}
	switch k := domain.ChatKind(kind); k {
	case domain.ChatKindDirect, domain.ChatKindGroup:
		return k, nil
	default:
		return domain.ChatKindUnknown, domain.ErrUnknownChatKind
	}
}

func (r *ChatRepo) IsAdmin(ctx context.Context, chatID domain.ChatID, userID domain.UserID) (bool, error) {
	var ok bool
	if err := r.q.QueryRow(ctx, queryIsGroupAdmin, int64(chatID), int64(userID)).Scan(&ok); err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return ok, nil
}

func (r *ChatRepo) UserIDByUsername(ctx context.Context, username string) (domain.UserID, error) {
	var id int64
	if err := r.q.QueryRow(ctx, queryUserIDByUsername, username).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrUserNotFound
		}
		return 0, fmt.Errorf("user by username: %w", err)
	}
	return domain.UserID(id), nil
}

func (r *ChatRepo) Inbox(ctx context.Context, userID domain.UserID) (domain.Inbox, error) {
	var inbox domain.Inbox

	rows, err := r.q.Query(ctx, queryListDirectChats, int64(userID))
	if err != nil {
		return inbox, fmt.Errorf("list direct chats: %w", err)
	}
	for rows.Next() {
		var (
			id int64
			dc domain.DirectChat
		)
		if err := rows.Scan(&id, &dc.Partner, &dc.LastMessage, &dc.LastTimeStamp); err != nil {
			rows.Close()
			return inbox, fmt.Errorf("scan direct chat: %w", err)
		}
		dc.ChatID = domain.ChatID(id)
		inbox.Direct = append(inbox.Direct, dc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return inbox, err
	}

	rows, err = r.q.Query(ctx, queryListGroupChats, int64(userID))
	if err != nil {
		return inbox, fmt.Errorf("list group chats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id int64
			gc domain.GroupChat
		)
		if err := rows.Scan(&id, &gc.Title, &gc.LastMessage, &gc.LastTimeStamp); err != nil {
			return inbox, fmt.Errorf("scan group chat: %w", err)
		}
		gc.ChatID = domain.ChatID(id)
		inbox.Group = append(inbox.Group, gc)
	}
	return inbox, rows.Err()
}

func (r *ChatRepo) memberUsernames(ctx context.Context, chatID domain.ChatID) ([]string, error) {
	rows, err := r.q.Query(ctx, queryMemberUsernames, int64(chatID))
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Metadata. Для direct ровно два участника, для group заголовок, админ и все участники.
func (r *ChatRepo) Metadata(ctx context.Context, chatID domain.ChatID) (domain.ChatMetadata, error) {
	meta := domain.ChatMetadata{ChatID: chatID}

	kind, err := r.Kind(ctx, chatID)
	if err != nil {
		return meta, err
	}
	meta.Kind = kind

	members, err := r.memberUsernames(ctx, chatID)
	if err != nil {
		return meta, err
	}

	switch kind {
	case domain.ChatKindDirect:
		if len(members) != 2 {
			return meta, fmt.Errorf("%w: direct chat %d has %d members", domain.ErrInvalidMembers, chatID, len(members))
		}
		meta.UsernameA, meta.UsernameB = members[0], members[1]
	case domain.ChatKindGroup:
		if err := r.q.QueryRow(ctx, queryGroupHeader, int64(chatID)).Scan(&meta.Title, &meta.Admin); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return meta, domain.ErrChatNotFound
			}
			return meta, fmt.Errorf("group header: %w", err)
		}
		meta.Members = members
	}
	return meta, nil
}

func (r *ChatRepo) AddMember(ctx context.Context, chatID domain.ChatID, userID domain.UserID) error {
	if _, err := r.q.Exec(ctx, queryAddMember, int64(chatID), int64(userID)); err != nil {
		return fmt.Errorf("add member: %w", mapPgError(err))
	}
	return nil
}

func (r *ChatRepo) RemoveMember(ctx context.Context, chatID domain.ChatID, userID domain.UserID) error {
	cmd, err := r.q.Exec(ctx, queryRemoveMember, int64(chatID), int64(userID))
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotMember
	}
	return nil
}

func (r *ChatRepo) findDirect(ctx context.Context, a, b domain.UserID) (domain.ChatID, bool, error) {
	var id int64
	err := r.q.QueryRow(ctx, queryFindDirectChat, int64(a), int64(b)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find direct chat: %w", err)
	}
	return domain.ChatID(id), true, nil
}

func (r *ChatRepo) createChat(ctx context.Context) (domain.ChatID, error) {
	var id int64
	if err := r.q.QueryRow(ctx, queryCreateChat).Scan(&id); err != nil {
		return 0, fmt.Errorf("create chat: %w", err)
	}
	return domain.ChatID(id), nil
}

func (r *ChatRepo) updateSummary(ctx context.Context, kind domain.ChatKind, chatID domain.ChatID, content string, ts time.Time) error {
	var q string
	switch kind {
	case domain.ChatKindDirect:
		q = queryUpdateDirectSummary
	case domain.ChatKindGroup:
		q = queryUpdateGroupSummary
	default:
		return domain.ErrUnknownChatKind
	}

	cmd, err := r.q.Exec(ctx, q, int64(chatID), content, ts)
	if err != nil {
		return fmt.Errorf("update %s summary: %w", kind, err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrChatNotFound
	}
	return nil
}
