package repository

import (
	"context"
	"time"

	"pick3-session-gateway/internal/session/domain"
	"pick3-session-gateway/internal/subscription"
	userdomain "pick3-session-gateway/internal/user/domain"
)

// Repository defines persistence for sessions.
//
// Token, subscription, and profile fields are written through separate narrow
// methods so a slow subscription resync and a concurrent token refresh touch
// disjoint columns and cannot lose each other's writes.
type Repository interface {
	// GetByID returns the session for id, or nil if not found. Errors are
	// reserved for store failures, not missing rows.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// UpdateTokens replaces the access token and its decoded expiry. The
	// refresh token is never rotated by the remote contract.
	UpdateTokens(ctx context.Context, id, accessToken string, expiresAt time.Time) error
	// UpdateSubscription overwrites the status (nil = no record) and the
	// resolved-at timestamp. Callers only invoke it for resolved outcomes.
	UpdateSubscription(ctx context.Context, id string, status *subscription.Status, fetchedAt time.Time) error
	// UpdateProfile replaces the profile fields, leaving tokens and
	// subscription state untouched.
	UpdateProfile(ctx context.Context, id string, u userdomain.User) error
	// MarkInvalidated sets the error sentinel. Returns true if the session
	// was live before the call, so the sign-out side effect fires once.
	MarkInvalidated(ctx context.Context, id, sentinel string) (bool, error)
	Delete(ctx context.Context, id string) error
}
