// Package handler exposes the audit trail over HTTP, admin-only.
package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pick3-session-gateway/internal/audit/domain"
	auditrepo "pick3-session-gateway/internal/audit/repository"
	sessiondomain "pick3-session-gateway/internal/session/domain"
	sessionhandler "pick3-session-gateway/internal/session/handler"
	userdomain "pick3-session-gateway/internal/user/domain"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// SessionReader resolves a session for the role check. It is the session
// manager's Read, so an expiring caller still gets refreshed before listing.
type SessionReader interface {
	Read(ctx context.Context, id string) (*sessiondomain.Session, error)
}

// Handler serves GET /v1/audit.
type Handler struct {
	repo     auditrepo.Repository
	sessions SessionReader
}

// NewHandler returns a Handler listing from repo, gated on sessions.
func NewHandler(repo auditrepo.Repository, sessions SessionReader) *Handler {
	return &Handler{repo: repo, sessions: sessions}
}

type entryView struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Action    string `json:"action"`
	Resource  string `json:"resource"`
	IP        string `json:"ip"`
	Metadata  string `json:"metadata,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// List handles GET /v1/audit?limit=&offset=. Non-admin callers get 403.
func (h *Handler) List(c *gin.Context) {
	sess, err := h.sessions.Read(c.Request.Context(), sessionhandler.SessionID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
		return
	}
	if sess.User.Role != userdomain.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}

	limit := parseInt32(c.Query("limit"), defaultLimit)
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset := parseInt32(c.Query("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	logs, err := h.repo.ListRecent(c.Request.Context(), limit, offset)
	if err != nil {
		log.Printf("audit handler: list: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	entries := make([]entryView, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, viewOf(l))
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "limit": limit, "offset": offset})
}

func viewOf(l *domain.AuditLog) entryView {
	return entryView{
		ID:        l.ID,
		SessionID: l.SessionID,
		UserID:    l.UserID,
		Action:    l.Action,
		Resource:  l.Resource,
		IP:        l.IP,
		Metadata:  l.Metadata,
		CreatedAt: l.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func parseInt32(s string, fallback int32) int32 {
	if s == "" {
		return fallback
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(n)
}
