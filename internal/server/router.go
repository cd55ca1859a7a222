// Package server wires handlers and middleware into the HTTP router.
package server

import (
	"github.com/gin-gonic/gin"

	audithandler "pick3-session-gateway/internal/audit/handler"
	healthhandler "pick3-session-gateway/internal/health/handler"
	sessionhandler "pick3-session-gateway/internal/session/handler"
	"pick3-session-gateway/internal/telemetry"
)

// Deps holds the handlers and optional middleware dependencies for the router.
type Deps struct {
	Session *sessionhandler.Handler
	Audit   *audithandler.Handler
	Health  *healthhandler.Handler
	// Emitter feeds the request-telemetry middleware. If nil, requests are
	// not emitted.
	Emitter telemetry.EventEmitter
}

// NewRouter builds the gin engine with all routes.
//
// Route → handler mapping:
//   - POST /v1/auth/login   → session handler (credential exchange)
//   - POST /v1/auth/logout  → session handler
//   - GET  /v1/session      → session handler (read, refresh-on-expiry)
//   - PATCH /v1/session     → session handler (profile/subscription updates)
//   - GET  /v1/audit        → audit handler (admin only)
//   - GET  /healthz         → health handler
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ClientIP())
	r.Use(RequestTelemetry(deps.Emitter, map[string]bool{"/healthz": true}))

	r.GET("/healthz", deps.Health.Check)
	r.POST("/v1/auth/login", deps.Session.Login)

	auth := r.Group("/", sessionhandler.RequireSession())
	auth.POST("/v1/auth/logout", deps.Session.Logout)
	auth.GET("/v1/session", deps.Session.Read)
	auth.PATCH("/v1/session", deps.Session.Update)
	if deps.Audit != nil {
		auth.GET("/v1/audit", deps.Audit.List)
	}
	return r
}
