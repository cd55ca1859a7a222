package repository

import (
	"context"
	"sync"
	"time"

	"pick3-session-gateway/internal/session/domain"
	"pick3-session-gateway/internal/subscription"
	userdomain "pick3-session-gateway/internal/user/domain"
)

// MemoryRepository is an in-memory Repository. Used when the gateway runs
// without DATABASE_URL and by tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	m    map[string]*domain.Session
	nowF func() time.Time
}

// NewMemoryRepository returns an empty in-memory session store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		m:    make(map[string]*domain.Session),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// GetByID returns a copy of the session for id, or nil if not found.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.m[id].Clone(), nil
}

// Create stores a copy of s keyed by its ID.
func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[s.ID] = s.Clone()
	return nil
}

// UpdateTokens replaces the access token and expiry of the stored session.
func (r *MemoryRepository) UpdateTokens(ctx context.Context, id, accessToken string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		s.AccessToken = accessToken
		s.AccessTokenExpiresAt = expiresAt
		s.UpdatedAt = r.nowF()
	}
	return nil
}

// UpdateSubscription overwrites the subscription fields of the stored session.
func (r *MemoryRepository) UpdateSubscription(ctx context.Context, id string, status *subscription.Status, fetchedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		if status != nil {
			v := *status
			s.SubscriptionStatus = &v
		} else {
			s.SubscriptionStatus = nil
		}
		s.SubscriptionFetchedAt = fetchedAt
		s.UpdatedAt = r.nowF()
	}
	return nil
}

// UpdateProfile replaces the profile fields of the stored session.
func (r *MemoryRepository) UpdateProfile(ctx context.Context, id string, u userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		s.User = u
		if u.State != nil {
			state := *u.State
			s.User.State = &state
		}
		s.UpdatedAt = r.nowF()
	}
	return nil
}

// MarkInvalidated sets the error sentinel and reports whether the session was
// live before the call.
func (r *MemoryRepository) MarkInvalidated(ctx context.Context, id, sentinel string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[id]
	if !ok || s.Error != "" {
		return false, nil
	}
	s.Error = sentinel
	s.UpdatedAt = r.nowF()
	return true, nil
}

// Delete removes the session. Deleting a missing session is a no-op.
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, id)
	return nil
}
