package domain

import "time"

// UserProfile is the signed-in buyer. Absent means anonymous.
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url"`
}

// Session is the server-side state behind the session cookie.
type Session struct {
	ID        string       `json:"id"`
	User      *UserProfile `json:"user,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Anonymous reports whether nobody is signed in on s.
func (s *Session) Anonymous() bool {
	return s == nil || s.User == nil
}

// NoticeKind distinguishes success and error notices.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient message for the user.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// SuccessNotice returns a success notice with msg.
func SuccessNotice(msg string) *Notice {
	return &Notice{Kind: NoticeSuccess, Message: msg}
}

// ErrorNotice returns an error notice with msg.
func ErrorNotice(msg string) *Notice {
	return &Notice{Kind: NoticeError, Message: msg}
}

// Redirect tells the browser where to navigate and after how long.
type Redirect struct {
	Path    string `json:"path"`
	DelayMS int    `json:"delay_ms"`
}
