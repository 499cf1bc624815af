package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestSessionRepo_Validate(t *testing.T) {
	t.Run("known token", func(t *testing.T) {
		req := require.New(t)
		mock := newMock(t)
		mock.ExpectQuery(`FROM users`).WithArgs("tok-1").
			WillReturnRows(pgxmock.NewRows([]string{"id", "username"}).AddRow(int64(7), "alice"))

		sess, err := NewSessionRepoFromPool(mock).Validate(context.Background(), "tok-1")

		req.NoError(err)
		req.Equal(domain.Session{UserID: 7, Username: "alice"}, sess)
		req.NoError(mock.ExpectationsWereMet())
	})

	t.Run("unknown token", func(t *testing.T) {
		req := require.New(t)
		mock := newMock(t)
		mock.ExpectQuery(`FROM users`).WithArgs("nope").WillReturnError(pgx.ErrNoRows)

		_, err := NewSessionRepoFromPool(mock).Validate(context.Background(), "nope")

		req.ErrorIs(err, domain.ErrInvalidToken)
	})

	t.Run("empty token skips the query", func(t *testing.T) {
		req := require.New(t)
		mock := newMock(t)

		_, err := NewSessionRepoFromPool(mock).Validate(context.Background(), "")

		req.ErrorIs(err, domain.ErrInvalidToken)
		req.NoError(mock.ExpectationsWereMet())
	})

	t.Run("db failure is not an auth failure", func(t *testing.T) {
		req := require.New(t)
		mock := newMock(t)
		mock.ExpectQuery(`FROM users`).WithArgs("tok").WillReturnError(errors.New("timeout"))

		_, err := NewSessionRepoFromPool(mock).Validate(context.Background(), "tok")

		req.Error(err)
		req.NotErrorIs(err, domain.ErrInvalidToken)
	})
}

func TestChatRepo_IsMember(t *testing.T) {
	req := require.New(t)
	mock := newMock(t)
	mock.ExpectQuery(`FROM user_chats`).WithArgs(int64(3), int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := NewChatRepoFromPool(mock).IsMember(context.Background(), 3, 7)

	req.NoError(err)
	req.True(ok)
	req.NoError(mock.ExpectationsWereMet())
}

func TestChatRepo_Metadata(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		req := require.New(t)
		mock := newMock(t)
		mock.ExpectQuery(`SELECT\s+CASE`).WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"kind"}).AddRow(1))
		mock.ExpectQuery(`SELECT u.username`).WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"username"}).AddRow("alice").AddRow("bob"))

		meta, err := NewChatRepoFromPool(mock).Metadata(context.Background(), 1)

		req.NoError(err)
		req.Equal(domain.ChatKindDirect, meta.Kind)
		req.Equal("alice", meta.UsernameA)
		req.Equal("bob", meta.UsernameB)
	})

	t.Run("direct with broken membership", func(t *testing.T) {
		req := require.New(t)
		mock := newMock(t)
		mock.ExpectQuery(`SELECT\s+CASE`).WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"kind"}).AddRow(1))
		mock.ExpectQuery(`SELECT u.username`).WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"username"}).AddRow("alice"))

		_, err := NewChatRepoFromPool(mock).Metadata(context.Background(), 1)

		req.ErrorIs(err, domain.ErrInvalidMembers)
	})

	t.Run("group", func(t *testing.T) {
		req := require.New(t)
		mock := newMock(t)
		mock.ExpectQuery(`SELECT\s+CASE`).WithArgs(int64(2)).
			WillReturnRows(pgxmock.NewRows([]string{"kind"}).AddRow(2))
		mock.ExpectQuery(`SELECT u.username`).WithArgs(int64(2)).
			WillReturnRows(pgxmock.NewRows([]string{"username"}).AddRow("alice").AddRow("bob").AddRow("carol"))
		mock.ExpectQuery(`SELECT gc.title`).WithArgs(int64(2)).
			WillReturnRows(pgxmock.NewRows([]string{"title", "username"}).AddRow("team", "alice"))

		meta, err := NewChatRepoFromPool(mock).Metadata(context.Background(), 2)

		req.NoError(err)
		req.Equal(domain.ChatKindGroup, meta.Kind)
		req.Equal("team", meta.Title)
		req.Equal("alice", meta.Admin)
		req.Equal([]string{"alice", "bob", "carol"}, meta.Members)
		req.NoError(mock.ExpectationsWereMet())
	})

	t.Run("unknown kind", func(t *testing.T) {
		req := require.New(t)
		mock := newMock(t)
		mock.ExpectQuery(`SELECT\s+CASE`).WithArgs(int64(99)).
			WillReturnRows(pgxmock.NewRows([]string{"kind"}).AddRow(0))

		_, err := NewChatRepoFromPool(mock).Metadata(context.Background(), 99)

		req.ErrorIs(err, domain.ErrUnknownChatKind)
	})
}

func TestChatRepo_Inbox(t *testing.T) {
	req := require.New(t)
	mock := newMock(t)
	last := "see you"
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`FROM direct_chats dc`).WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"chat_id", "partner", "last_message", "last_time_stamp"}).
			AddRow(int64(10), "bob", &last, &at))
	mock.ExpectQuery(`FROM group_chats gc`).WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"chat_id", "title", "last_message", "last_time_stamp"}).
			AddRow(int64(20), "team", nil, nil))

	inbox, err := NewChatRepoFromPool(mock).Inbox(context.Background(), 1)

	req.NoError(err)
	req.Len(inbox.Direct, 1)
	req.Equal(domain.ChatID(10), inbox.Direct[0].ChatID)
	req.Equal("bob", inbox.Direct[0].Partner)
	req.Equal(last, *inbox.Direct[0].LastMessage)
	req.Len(inbox.Group, 1)
	req.Equal("team", inbox.Group[0].Title)
	req.Nil(inbox.Group[0].LastMessage)
	req.NoError(mock.ExpectationsWereMet())
}

func TestChatRepo_RemoveMember_NotMember(t *testing.T) {
	req := require.New(t)
	mock := newMock(t)
	mock.ExpectExec(`DELETE FROM user_chats`).WithArgs(int64(2), int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := NewChatRepoFromPool(mock).RemoveMember(context.Background(), 2, 5)

	req.ErrorIs(err, domain.ErrNotMember)
}

func TestMessageRepo_History(t *testing.T) {
	req := require.New(t)
	mock := newMock(t)
	t1 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	t0 := t1.Add(-time.Minute)

	// Given the first page of two
	mock.ExpectQuery(`FROM chat_messages m`).WithArgs(int64(3), nil, nil, 2).
		WillReturnRows(pgxmock.NewRows([]string{"id", "chat_id", "sender_id", "username", "content", "time_stamp"}).
			AddRow(int64(9), int64(3), int64(1), "alice", "second", t1).
			AddRow(int64(8), int64(3), int64(2), "bob", "first", t0))

	// When
	msgs, next, err := NewMessageRepoFromPool(mock).History(context.Background(), 3, "", 2)

	// Then the cursor points at the oldest row of the page
	req.NoError(err)
	req.Len(msgs, 2)
	req.Equal("alice", msgs[0].Sender)
	req.Equal(domain.UserID(2), msgs[1].SenderID)
	req.NotEmpty(next)

	cur, err := DecodeCursor(next)
	req.NoError(err)
	req.Equal(int64(8), cur.ID)
	req.True(t0.Equal(cur.TimeStamp))

	// And the next page query carries the cursor
	mock.ExpectQuery(`FROM chat_messages m`).WithArgs(int64(3), pgxmock.AnyArg(), int64(8), 2).
		WillReturnRows(pgxmock.NewRows([]string{"id", "chat_id", "sender_id", "username", "content", "time_stamp"}))

	msgs, next, err = NewMessageRepoFromPool(mock).History(context.Background(), 3, next, 2)
	req.NoError(err)
	req.Empty(msgs)
	req.Empty(next)
	req.NoError(mock.ExpectationsWereMet())
}

func TestMessageRepo_History_BadCursor(t *testing.T) {
	req := require.New(t)
	mock := newMock(t)

	_, _, err := NewMessageRepoFromPool(mock).History(context.Background(), 3, "%%%", 10)

	req.ErrorIs(err, ErrInvalidCursor)
}

func TestCursor_RoundTripAndLimits(t *testing.T) {
	req := require.New(t)

	c, err := DecodeCursor("")
	req.NoError(err)
	req.Nil(c)

	_, err = DecodeCursor("e30") // {}
	req.ErrorIs(err, ErrInvalidCursor)

	req.Equal(defaultHistoryLimit, clampLimit(0))
	req.Equal(maxHistoryLimit, clampLimit(1000))
	req.Equal(7, clampLimit(7))
}
