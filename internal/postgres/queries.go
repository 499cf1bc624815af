package postgres

const (
	querySessionByToken = `
		SELECT id, username
		FROM users
		WHERE user_token = $1
		LIMIT 1
	`
	queryUserIDByUsername = `SELECT id FROM users WHERE username = $1`

	queryIsMember = `
		SELECT EXISTS(SELECT 1 FROM user_chats WHERE chat_id = $1 AND user_id = $2)
	`
	queryChatKind = `
		SELECT
			CASE
				WHEN EXISTS (SELECT 1 FROM direct_chats WHERE chat_id = $1) THEN 1
				WHEN EXISTS (SELECT 1 FROM group_chats WHERE chat_id = $1) THEN 2
				ELSE 0
			END AS kind
	`
	queryIsGroupAdmin = `
		SELECT EXISTS(SELECT 1 FROM group_chats WHERE chat_id = $1 AND admin_id = $2)
	`

	queryListDirectChats = `
		SELECT dc.chat_id, u.username AS partner, dc.last_message, dc.last_time_stamp
		FROM direct_chats dc
		JOIN user_chats uc1 ON uc1.chat_id = dc.chat_id
		JOIN user_chats uc2 ON uc2.chat_id = dc.chat_id
		JOIN users u ON u.id = uc2.user_id
		WHERE uc1.user_id = $1 AND uc2.user_id <> $1
		ORDER BY dc.last_time_stamp DESC NULLS LAST, dc.chat_id DESC
	`
	queryListGroupChats = `
		SELECT gc.chat_id, gc.title, gc.last_message, gc.last_time_stamp
		FROM group_chats gc
		JOIN user_chats uc ON uc.chat_id = gc.chat_id
		WHERE uc.user_id = $1
		ORDER BY gc.last_time_stamp DESC NULLS LAST, gc.chat_id DESC
	`

	queryMemberUsernames = `
		SELECT u.username
		FROM user_chats uc
		JOIN users u ON u.id = uc.user_id
		WHERE uc.chat_id = $1
		ORDER BY u.id
	`
	queryGroupHeader = `
		SELECT gc.title, u.username
		FROM group_chats gc
		JOIN users u ON u.id = gc.admin_id
		WHERE gc.chat_id = $1
	`

	queryAddMember    = `INSERT INTO user_chats (chat_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	queryRemoveMember = `DELETE FROM user_chats WHERE chat_id = $1 AND user_id = $2`

	queryFindDirectChat = `
		SELECT dc.chat_id
		FROM direct_chats dc
		JOIN user_chats uc1 ON uc1.chat_id = dc.chat_id
		JOIN user_chats uc2 ON uc2.chat_id = dc.chat_id
		WHERE uc1.user_id = $1 AND uc2.user_id = $2
		LIMIT 1
	`
	queryCreateChat       = `INSERT INTO chats DEFAULT VALUES RETURNING id`
	queryAddDirectMembers = `INSERT INTO user_chats (chat_id, user_id) VALUES ($1, $2), ($1, $3)`
	queryCreateDirectChat = `
		INSERT INTO direct_chats (chat_id, last_message, last_time_stamp)
		VALUES ($1, $2, $3)
	`
	queryCreateGroupChat = `
		INSERT INTO group_chats (chat_id, admin_id, title, last_message, last_time_stamp)
		VALUES ($1, $2, $3, NULL, NULL)
	`

	queryInsertMessage = `
		INSERT INTO chat_messages (chat_id, sender_id, content, time_stamp)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	queryUpdateDirectSummary = `
		UPDATE direct_chats SET last_message = $2, last_time_stamp = $3 WHERE chat_id = $1
	`
	queryUpdateGroupSummary = `
		UPDATE group_chats SET last_message = $2, last_time_stamp = $3 WHERE chat_id = $1
	`
	queryHistory = `
		SELECT m.id, m.chat_id, m.sender_id, u.username, m.content, m.time_stamp
		FROM chat_messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR m.time_stamp < $2
		    OR (m.time_stamp = $2 AND m.id < $3)
		  )
		ORDER BY m.time_stamp DESC, m.id DESC
		LIMIT $4
	`
)
