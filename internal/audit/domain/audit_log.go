package domain

import "time"

// AuditLog records one session-lifecycle event.
type AuditLog struct {
	ID        string
	SessionID string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}

// Audit actions written by the session manager.
const (
	ActionLoginSuccess       = "login_success"
	ActionLoginFailure       = "login_failure"
	ActionTokenRefresh       = "token_refresh"
	ActionSessionInvalidated = "session_invalidated"
	ActionSubscriptionSync   = "subscription_sync"
	ActionStatusOverride     = "subscription_status_override"
	ActionProfileUpdate      = "profile_update"
	ActionLogout             = "logout"
)
