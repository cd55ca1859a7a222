package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"pick3-session-gateway/internal/audit"
	auditdomain "pick3-session-gateway/internal/audit/domain"
	"pick3-session-gateway/internal/backend"
	"pick3-session-gateway/internal/security"
	"pick3-session-gateway/internal/session/domain"
	"pick3-session-gateway/internal/session/repository"
	"pick3-session-gateway/internal/subscription"
	"pick3-session-gateway/internal/telemetry"
	userdomain "pick3-session-gateway/internal/user/domain"
)

// Sentinel errors for the session manager; handler maps them to HTTP codes.
var (
	ErrValidation         = errors.New("email and password are required")
	ErrAuthentication     = errors.New("authentication failed")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionInvalidated = errors.New("session invalidated")
)

// genericLoginMessage is used when the backend rejects a login without a
// usable message of its own.
const genericLoginMessage = "invalid email or password"

// API is the slice of the backend client the manager needs.
type API interface {
	Login(ctx context.Context, email, password string) (*backend.LoginPayload, error)
	// RefreshAccessToken exchanges the refresh token for a new access
	// token. The refresh token itself is never rotated.
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
}

// StatusSyncer resolves a subscription status with retries, for flows that
// must not settle for an unresolved outcome without trying.
type StatusSyncer interface {
	Sync(ctx context.Context, accessToken string) subscription.Outcome
}

// SignOutFunc is invoked exactly once when a session transitions to
// invalidated, so the caller can tear down whatever the session anchors.
type SignOutFunc func(ctx context.Context, s *domain.Session)

// Manager owns the session lifecycle: credential exchange, expiry-driven
// token refresh, subscription resync, and invalidation.
type Manager struct {
	repo    repository.Repository
	api     API
	fetcher subscription.Fetcher
	syncer  StatusSyncer
	auditor audit.AuditLogger
	emitter telemetry.EventEmitter
	signOut SignOutFunc

	// refreshBuffer is the safety margin before access-token expiry at
	// which a read already triggers a refresh.
	refreshBuffer time.Duration
	nowF          func() time.Time
}

// NewManager returns a Manager with the given dependencies. auditor, emitter,
// and signOut may be nil.
func NewManager(
	repo repository.Repository,
	api API,
	fetcher subscription.Fetcher,
	syncer StatusSyncer,
	auditor audit.AuditLogger,
	emitter telemetry.EventEmitter,
	signOut SignOutFunc,
	refreshBuffer time.Duration,
) *Manager {
	if refreshBuffer <= 0 {
		refreshBuffer = 30 * time.Second
	}
	return &Manager{
		repo:          repo,
		api:           api,
		fetcher:       fetcher,
		syncer:        syncer,
		auditor:       auditor,
		emitter:       emitter,
		signOut:       signOut,
		refreshBuffer: refreshBuffer,
		nowF:          func() time.Time { return time.Now().UTC() },
	}
}

// Login exchanges credentials for a new session. The initial subscription
// fetch is a single opportunistic attempt; failure leaves the status nil and
// never fails the login.
func (m *Manager) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrValidation
	}
	payload, err := m.api.Login(ctx, email, password)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			m.auditEvent(ctx, "", "", auditdomain.ActionLoginFailure, "session",
				fmt.Sprintf(`{"email":%q,"status":%d}`, email, apiErr.StatusCode))
			msg := strings.TrimSpace(apiErr.Message)
			if msg == "" {
				msg = genericLoginMessage
			}
			return nil, fmt.Errorf("%w: %s", ErrAuthentication, msg)
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	claims, err := security.DecodeAccessClaims(payload.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("login: decode access token: %w", err)
	}

	out := m.fetcher.Fetch(ctx, payload.AccessToken)

	now := m.nowF()
	sess := &domain.Session{
		ID:                   uuid.New().String(),
		User:                 mapUser(payload.User),
		AccessToken:          payload.AccessToken,
		RefreshToken:         payload.RefreshToken,
		AccessTokenExpiresAt: claims.Expiry(),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if out.Resolved {
		sess.SubscriptionStatus = out.Status
		sess.SubscriptionFetchedAt = now
	}
	if err := m.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	m.auditEvent(ctx, sess.ID, userID(sess), auditdomain.ActionLoginSuccess, "session",
		fmt.Sprintf(`{"email":%q}`, email))
	m.emitEvent(ctx, telemetry.EventLogin, sess, nil)
	return sess, nil
}

// Read returns the session, refreshing the access token first when it is
// inside the expiry buffer. A read of a still-valid session touches neither
// the network nor the store.
func (m *Manager) Read(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.Error != "" {
		return nil, ErrSessionInvalidated
	}
	if sess.StateAt(m.nowF(), m.refreshBuffer) == domain.StateActiveValid {
		return sess, nil
	}
	return m.refresh(ctx, sess)
}

// refresh exchanges the refresh token for a new access token and piggybacks
// one best-effort subscription fetch on it. Any refresh failure is terminal
// for the session.
func (m *Manager) refresh(ctx context.Context, sess *domain.Session) (*domain.Session, error) {
	newAccess, err := m.api.RefreshAccessToken(ctx, sess.RefreshToken)
	if err != nil {
		m.invalidate(ctx, sess, err)
		return nil, ErrSessionInvalidated
	}
	claims, err := security.DecodeAccessClaims(newAccess)
	if err != nil {
		m.invalidate(ctx, sess, err)
		return nil, ErrSessionInvalidated
	}
	expiresAt := claims.Expiry()
	if err := m.repo.UpdateTokens(ctx, sess.ID, newAccess, expiresAt); err != nil {
		return nil, err
	}
	sess.AccessToken = newAccess
	sess.AccessTokenExpiresAt = expiresAt

	if out := m.fetcher.Fetch(ctx, newAccess); out.Resolved {
		fetchedAt := m.nowF()
		if err := m.repo.UpdateSubscription(ctx, sess.ID, out.Status, fetchedAt); err != nil {
			log.Printf("session %s: subscription update after refresh: %v", sess.ID, err)
		} else {
			sess.SubscriptionStatus = out.Status
			sess.SubscriptionFetchedAt = fetchedAt
		}
	}

	m.auditEvent(ctx, sess.ID, userID(sess), auditdomain.ActionTokenRefresh, "session",
		fmt.Sprintf(`{"expiresAt":%q}`, expiresAt.Format(time.RFC3339)))
	m.emitEvent(ctx, telemetry.EventTokenRefresh, sess, nil)
	return sess, nil
}

// invalidate marks the session with the refresh-error sentinel. The sign-out
// side effect fires only for the call that actually flipped the session, so
// concurrent failing reads do not double it.
func (m *Manager) invalidate(ctx context.Context, sess *domain.Session, cause error) {
	changed, err := m.repo.MarkInvalidated(ctx, sess.ID, domain.RefreshErrorSentinel)
	if err != nil {
		log.Printf("session %s: mark invalidated: %v", sess.ID, err)
		return
	}
	if !changed {
		return
	}
	log.Printf("session %s invalidated: %v", sess.ID, cause)
	m.auditEvent(ctx, sess.ID, userID(sess), auditdomain.ActionSessionInvalidated, "session",
		fmt.Sprintf(`{"error":%q}`, domain.RefreshErrorSentinel))
	m.emitEvent(ctx, telemetry.EventInvalidated, sess, nil)
	if m.signOut != nil {
		m.signOut(ctx, sess)
	}
}

// ProfileUpdate carries the profile fields to change; nil fields are kept.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	PhoneNo   *string
	StateID   *int64
	State     *userdomain.USState
}

// StatusOverride writes a subscription status verbatim, bypassing the
// fetcher. Status nil records "no subscription".
type StatusOverride struct {
	Status *subscription.Status
}

// UpdateRequest describes one session update. SubscriptionStatus wins over
// ForceRefreshSubscription when both are set: the caller already knows the
// value, so no fetch is made.
type UpdateRequest struct {
	User                     *ProfileUpdate
	ForceRefreshSubscription bool
	SubscriptionStatus       *StatusOverride
}

// Update applies profile changes and subscription writes to a live session.
// A forced resync that still comes back unresolved keeps the prior status.
func (m *Manager) Update(ctx context.Context, id string, req UpdateRequest) (*domain.Session, error) {
	sess, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.Error != "" {
		return nil, ErrSessionInvalidated
	}

	if req.User != nil {
		u := sess.User
		if req.User.FirstName != nil {
			u.FirstName = *req.User.FirstName
		}
		if req.User.LastName != nil {
			u.LastName = *req.User.LastName
		}
		if req.User.PhoneNo != nil {
			u.PhoneNo = *req.User.PhoneNo
		}
		if req.User.StateID != nil {
			u.StateID = *req.User.StateID
		}
		if req.User.State != nil {
			state := *req.User.State
			u.State = &state
		}
		if err := m.repo.UpdateProfile(ctx, id, u); err != nil {
			return nil, err
		}
		sess.User = u
		m.auditEvent(ctx, sess.ID, userID(sess), auditdomain.ActionProfileUpdate, "session", "")
	}

	switch {
	case req.SubscriptionStatus != nil:
		fetchedAt := m.nowF()
		if err := m.repo.UpdateSubscription(ctx, id, req.SubscriptionStatus.Status, fetchedAt); err != nil {
			return nil, err
		}
		sess.SubscriptionStatus = req.SubscriptionStatus.Status
		sess.SubscriptionFetchedAt = fetchedAt
		m.auditEvent(ctx, sess.ID, userID(sess), auditdomain.ActionStatusOverride, "subscription",
			fmt.Sprintf(`{"status":%q}`, statusString(req.SubscriptionStatus.Status)))
		m.emitEvent(ctx, telemetry.EventSubscriptionSync, sess, nil)
	case req.ForceRefreshSubscription:
		out := m.syncer.Sync(ctx, sess.AccessToken)
		if out.Resolved {
			fetchedAt := m.nowF()
			if err := m.repo.UpdateSubscription(ctx, id, out.Status, fetchedAt); err != nil {
				return nil, err
			}
			sess.SubscriptionStatus = out.Status
			sess.SubscriptionFetchedAt = fetchedAt
			m.auditEvent(ctx, sess.ID, userID(sess), auditdomain.ActionSubscriptionSync, "subscription",
				fmt.Sprintf(`{"status":%q}`, statusString(out.Status)))
			m.emitEvent(ctx, telemetry.EventSubscriptionSync, sess, nil)
		}
	}
	return sess, nil
}

// Logout deletes the session. Missing sessions are a no-op so repeated
// logouts stay idempotent.
func (m *Manager) Logout(ctx context.Context, id string) error {
	sess, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}
	if sess != nil {
		m.auditEvent(ctx, sess.ID, userID(sess), auditdomain.ActionLogout, "session", "")
		m.emitEvent(ctx, telemetry.EventLogout, sess, nil)
	}
	return nil
}

func (m *Manager) auditEvent(ctx context.Context, sessionID, uid, action, resource, metadata string) {
	if m.auditor == nil {
		return
	}
	m.auditor.LogEvent(ctx, sessionID, uid, action, resource, metadata)
}

func (m *Manager) emitEvent(ctx context.Context, eventType string, sess *domain.Session, metadata []byte) {
	if m.emitter == nil {
		return
	}
	telemetry.EmitAsync(m.emitter, ctx, telemetry.NewEvent(eventType, "session_manager", sess.ID, userID(sess), metadata))
}

func mapUser(u backend.User) userdomain.User {
	out := userdomain.User{
		ID:        u.ID,
		Email:     u.Email,
		Role:      userdomain.ParseRole(u.Role),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		PhoneNo:   u.PhoneNo,
		StateID:   u.StateID,
	}
	if u.State != nil {
		out.State = &userdomain.USState{ID: u.State.ID, Name: u.State.Name, Code: u.State.Code}
	}
	return out
}

func userID(s *domain.Session) string {
	if s.User.ID == 0 {
		return ""
	}
	return fmt.Sprintf("%d", s.User.ID)
}

func statusString(s *subscription.Status) string {
	if s == nil {
		return "none"
	}
	return string(*s)
}
