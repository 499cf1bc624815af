package domain

type UserID int64

// Session: то, во что Session Validator превращает токен.
type Session struct {
	UserID   UserID
	Username string
}
