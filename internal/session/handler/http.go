// Package handler exposes the session lifecycle over HTTP. The session ID is
// an opaque bearer credential; backend tokens never leave the response body
// except for the access token the UI needs for direct play calls.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pick3-session-gateway/internal/session/domain"
	"pick3-session-gateway/internal/session/service"
	"pick3-session-gateway/internal/subscription"
	userdomain "pick3-session-gateway/internal/user/domain"
)

// sessionIDKey is the gin context key set by RequireSession.
const sessionIDKey = "sessionID"

// SessionManager is the slice of the session service the handler needs.
type SessionManager interface {
	Login(ctx context.Context, email, password string) (*domain.Session, error)
	Read(ctx context.Context, id string) (*domain.Session, error)
	Update(ctx context.Context, id string, req service.UpdateRequest) (*domain.Session, error)
	Logout(ctx context.Context, id string) error
}

// Handler serves the /v1/auth and /v1/session routes.
type Handler struct {
	manager SessionManager
}

// NewHandler returns a Handler backed by manager.
func NewHandler(manager SessionManager) *Handler {
	return &Handler{manager: manager}
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	PhoneNo   string     `json:"phoneNo,omitempty"`
	StateID   int64      `json:"stateId,omitempty"`
	State     *stateView `json:"state,omitempty"`
}

type stateView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// sessionView is the wire shape of a session. The refresh token is
// deliberately absent; it stays server-side for the session's lifetime.
type sessionView struct {
	SessionID             string   `json:"sessionId"`
	User                  userView `json:"user"`
	AccessToken           string   `json:"accessToken"`
	AccessTokenExpiresAt  int64    `json:"accessTokenExpiresAt"`
	SubscriptionStatus    *string  `json:"subscriptionStatus"`
	SubscriptionFetchedAt *int64   `json:"subscriptionFetchedAt,omitempty"`
	State                 string   `json:"state"`
}

func viewOf(s *domain.Session, state domain.State) sessionView {
	v := sessionView{
		SessionID:            s.ID,
		AccessToken:          s.AccessToken,
		AccessTokenExpiresAt: s.AccessTokenExpiresAt.UnixMilli(),
		State:                string(state),
		User: userView{
			ID:        s.User.ID,
			Email:     s.User.Email,
			Role:      string(s.User.Role),
			FirstName: s.User.FirstName,
			LastName:  s.User.LastName,
			PhoneNo:   s.User.PhoneNo,
			StateID:   s.User.StateID,
		},
	}
	if s.User.State != nil {
		v.User.State = &stateView{ID: s.User.State.ID, Name: s.User.State.Name, Code: s.User.State.Code}
	}
	if s.SubscriptionStatus != nil {
		status := string(*s.SubscriptionStatus)
		v.SubscriptionStatus = &status
	}
	if !s.SubscriptionFetchedAt.IsZero() {
		at := s.SubscriptionFetchedAt.UnixMilli()
		v.SubscriptionFetchedAt = &at
	}
	return v
}

// Login handles POST /v1/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	sess, err := h.manager.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(sess, domain.StateActiveValid))
}

// Logout handles POST /v1/auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	id := c.GetString(sessionIDKey)
	if err := h.manager.Logout(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Read handles GET /v1/session. A read inside the expiry buffer refreshes the
// access token before responding.
func (h *Handler) Read(c *gin.Context) {
	sess, err := h.manager.Read(c.Request.Context(), c.GetString(sessionIDKey))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess, domain.StateActiveValid))
}

// updateInput distinguishes an absent subscriptionStatus key from an explicit
// null: absent leaves the status alone, null records "no subscription".
type updateInput struct {
	User *struct {
		FirstName *string    `json:"firstName"`
		LastName  *string    `json:"lastName"`
		PhoneNo   *string    `json:"phoneNo"`
		StateID   *int64     `json:"stateId"`
		State     *stateView `json:"state"`
	} `json:"user"`
	ForceRefreshSubscription bool             `json:"forceRefreshSubscription"`
	SubscriptionStatus       *json.RawMessage `json:"subscriptionStatus"`
}

// Update handles PATCH /v1/session.
func (h *Handler) Update(c *gin.Context) {
	var input updateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req := service.UpdateRequest{ForceRefreshSubscription: input.ForceRefreshSubscription}
	if input.User != nil {
		profile := &service.ProfileUpdate{
			FirstName: input.User.FirstName,
			LastName:  input.User.LastName,
			PhoneNo:   input.User.PhoneNo,
			StateID:   input.User.StateID,
		}
		if input.User.State != nil {
			profile.State = &userdomain.USState{
				ID:   input.User.State.ID,
				Name: input.User.State.Name,
				Code: input.User.State.Code,
			}
		}
		req.User = profile
	}
	if input.SubscriptionStatus != nil {
		override, err := parseStatusOverride(*input.SubscriptionStatus)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.SubscriptionStatus = override
	}
	sess, err := h.manager.Update(c.Request.Context(), c.GetString(sessionIDKey), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess, domain.StateActiveValid))
}

func parseStatusOverride(raw json.RawMessage) (*service.StatusOverride, error) {
	if string(raw) == "null" {
		return &service.StatusOverride{}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.New("subscriptionStatus must be a status string or null")
	}
	status, ok := subscription.ParseStatus(s)
	if !ok {
		return nil, errors.New("unknown subscription status: " + s)
	}
	return &service.StatusOverride{Status: &status}, nil
}

// RequireSession extracts the bearer session ID into the gin context. It does
// not hit the store; handlers resolve the session themselves.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) || strings.TrimSpace(auth[len(prefix):]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer session"})
			return
		}
		c.Set(sessionIDKey, strings.TrimSpace(auth[len(prefix):]))
		c.Next()
	}
}

// SessionID returns the bearer session ID set by RequireSession, or "".
func SessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// writeError maps service sentinels to HTTP responses. An invalidated session
// answers with the refresh-error sentinel so clients know to sign out rather
// than retry.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAuthentication):
		c.JSON(http.StatusUnauthorized, gin.H{"error": strings.TrimPrefix(err.Error(), service.ErrAuthentication.Error()+": ")})
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session not found"})
	case errors.Is(err, service.ErrSessionInvalidated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.RefreshErrorSentinel})
	default:
		log.Printf("session handler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
