package domain

import (
	"time"

	"pick3-session-gateway/internal/subscription"
	userdomain "pick3-session-gateway/internal/user/domain"
)

// RefreshErrorSentinel is written to Session.Error when a token refresh
// fails. A session carrying it must be torn down, never reused.
const RefreshErrorSentinel = "RefreshAccessTokenError"

// Session is the unit of client-held authentication state. ID is the opaque
// gateway handle returned to the UI; the tokens inside belong to the remote
// backend.
type Session struct {
	ID   string
	User userdomain.User

	AccessToken  string
	RefreshToken string
	// AccessTokenExpiresAt is decoded from the access token's exp claim,
	// never set independently.
	AccessTokenExpiresAt time.Time

	// SubscriptionStatus is nil when no subscription record exists. It is
	// only overwritten after a resolved fetch.
	SubscriptionStatus *subscription.Status
	// SubscriptionFetchedAt is when the status was last resolved.
	SubscriptionFetchedAt time.Time

	// Error is the invalidation sentinel (RefreshErrorSentinel); non-empty
	// means the tokens must not be trusted.
	Error string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// State is the lifecycle state of a session as evaluated on a read.
type State string

const (
	StateActiveValid    State = "ACTIVE_VALID"
	StateActiveExpiring State = "ACTIVE_EXPIRING"
	StateInvalidated    State = "INVALIDATED"
)

// StateAt reports the session's state at now, with buffer as the safety
// margin before token expiry that already counts as expiring.
func (s *Session) StateAt(now time.Time, buffer time.Duration) State {
	if s.Error != "" {
		return StateInvalidated
	}
	if now.Before(s.AccessTokenExpiresAt.Add(-buffer)) {
		return StateActiveValid
	}
	return StateActiveExpiring
}

// Clone returns a deep copy so stores can hand out sessions without aliasing
// their internal state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.SubscriptionStatus != nil {
		status := *s.SubscriptionStatus
		out.SubscriptionStatus = &status
	}
	if s.User.State != nil {
		state := *s.User.State
		out.User.State = &state
	}
	return &out
}
