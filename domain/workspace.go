// Package domain contains core concepts of the chat system.
// This file defines Workspace, the tenant boundary for users and chats.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

type WorkspaceID int64

// DefaultWorkspaceID is the bootstrap "none" workspace every fresh
// installation carries. Users created before joining a real workspace
// belong to it.
const DefaultWorkspaceID WorkspaceID = 0

type Workspace struct {
	ID        WorkspaceID `json:"id"`
	Name      string      `json:"name"`
	OwnerID   UserID      `json:"owner_id"`
	CreatedAt time.Time   `json:"created_at"`
}
