package domain

import "time"

type UserID int64

// SuperUserID is the bootstrap "super" user living in the default workspace.
const SuperUserID UserID = 0

// User is immutable regarding its workspace: a user signs up into one
// workspace and stays there.
type User struct {
	ID           UserID      `json:"id"`
	WorkspaceID  WorkspaceID `json:"ws_id"`
	FullName     string      `json:"fullname"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
}
