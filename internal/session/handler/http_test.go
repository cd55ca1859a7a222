package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"pick3-session-gateway/internal/session/domain"
	"pick3-session-gateway/internal/session/service"
	"pick3-session-gateway/internal/subscription"
	userdomain "pick3-session-gateway/internal/user/domain"
)

type fakeManager struct {
	loginSess  *domain.Session
	loginErr   error
	readSess   *domain.Session
	readErr    error
	updateSess *domain.Session
	updateErr  error
	logoutErr  error

	lastUpdate   service.UpdateRequest
	lastReadID   string
	lastLogoutID string
}

func (f *fakeManager) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	return f.loginSess, f.loginErr
}

func (f *fakeManager) Read(ctx context.Context, id string) (*domain.Session, error) {
	f.lastReadID = id
	return f.readSess, f.readErr
}

func (f *fakeManager) Update(ctx context.Context, id string, req service.UpdateRequest) (*domain.Session, error) {
	f.lastUpdate = req
	return f.updateSess, f.updateErr
}

func (f *fakeManager) Logout(ctx context.Context, id string) error {
	f.lastLogoutID = id
	return f.logoutErr
}

func testSession() *domain.Session {
	active := subscription.StatusActive
	return &domain.Session{
		ID: "sess-1",
		User: userdomain.User{
			ID:        42,
			Email:     "player@example.com",
			Role:      userdomain.RoleUser,
			FirstName: "Pat",
		},
		AccessToken:           "access-jwt",
		RefreshToken:          "refresh-secret",
		AccessTokenExpiresAt:  time.UnixMilli(1900000000000).UTC(),
		SubscriptionStatus:    &active,
		SubscriptionFetchedAt: time.UnixMilli(1800000000000).UTC(),
	}
}

func newTestRouter(m SessionManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(m)
	r.POST("/v1/auth/login", h.Login)
	auth := r.Group("/", RequireSession())
	auth.POST("/v1/auth/logout", h.Logout)
	auth.GET("/v1/session", h.Read)
	auth.PATCH("/v1/session", h.Update)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginHTTP_Success(t *testing.T) {
	m := &fakeManager{loginSess: testSession()}
	r := newTestRouter(m)

	w := doJSON(t, r, http.MethodPost, "/v1/auth/login", "", `{"email":"player@example.com","password":"secret"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", w.Code, w.Body.String())
	}
	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["sessionId"] != "sess-1" {
		t.Errorf("sessionId = %v", got["sessionId"])
	}
	if got["accessToken"] != "access-jwt" {
		t.Errorf("accessToken = %v", got["accessToken"])
	}
	if got["accessTokenExpiresAt"] != float64(1900000000000) {
		t.Errorf("accessTokenExpiresAt = %v, want epoch millis", got["accessTokenExpiresAt"])
	}
	if got["subscriptionStatus"] != "ACTIVE" {
		t.Errorf("subscriptionStatus = %v", got["subscriptionStatus"])
	}
	if strings.Contains(w.Body.String(), "refresh-secret") {
		t.Error("refresh token leaked into response body")
	}
}

func TestLoginHTTP_Unauthorized(t *testing.T) {
	m := &fakeManager{loginErr: service.ErrAuthentication}
	r := newTestRouter(m)
	w := doJSON(t, r, http.MethodPost, "/v1/auth/login", "", `{"email":"a@b.c","password":"x"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestLoginHTTP_Validation(t *testing.T) {
	m := &fakeManager{loginErr: service.ErrValidation}
	r := newTestRouter(m)
	w := doJSON(t, r, http.MethodPost, "/v1/auth/login", "", `{"email":"","password":""}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestReadHTTP_MissingBearer(t *testing.T) {
	r := newTestRouter(&fakeManager{})
	w := doJSON(t, r, http.MethodGet, "/v1/session", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestReadHTTP_InvalidatedSentinel(t *testing.T) {
	m := &fakeManager{readErr: service.ErrSessionInvalidated}
	r := newTestRouter(m)
	w := doJSON(t, r, http.MethodGet, "/v1/session", "sess-1", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["error"] != domain.RefreshErrorSentinel {
		t.Errorf("error = %q, want %q", got["error"], domain.RefreshErrorSentinel)
	}
}

func TestReadHTTP_PassesBearerID(t *testing.T) {
	m := &fakeManager{readSess: testSession()}
	r := newTestRouter(m)
	w := doJSON(t, r, http.MethodGet, "/v1/session", "sess-xyz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
	}
	if m.lastReadID != "sess-xyz" {
		t.Errorf("read id = %q, want sess-xyz", m.lastReadID)
	}
}

func TestUpdateHTTP_StatusTriState(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantCode   int
		wantSet    bool // override present in request
		wantStatus *subscription.Status
	}{
		{"absent leaves status alone", `{"forceRefreshSubscription":true}`, http.StatusOK, false, nil},
		{"null clears", `{"subscriptionStatus":null}`, http.StatusOK, true, nil},
		{"value overrides", `{"subscriptionStatus":"CANCELED"}`, http.StatusOK, true, statusPtr(subscription.StatusCanceled)},
		{"unknown value rejected", `{"subscriptionStatus":"LAPSED"}`, http.StatusBadRequest, false, nil},
		{"non-string rejected", `{"subscriptionStatus":7}`, http.StatusBadRequest, false, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := &fakeManager{updateSess: testSession()}
			r := newTestRouter(m)
			w := doJSON(t, r, http.MethodPatch, "/v1/session", "sess-1", tc.body)
			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d; body %s", w.Code, tc.wantCode, w.Body.String())
			}
			if tc.wantCode != http.StatusOK {
				return
			}
			if (m.lastUpdate.SubscriptionStatus != nil) != tc.wantSet {
				t.Fatalf("override set = %v, want %v", m.lastUpdate.SubscriptionStatus != nil, tc.wantSet)
			}
			if tc.wantSet {
				got := m.lastUpdate.SubscriptionStatus.Status
				if (got == nil) != (tc.wantStatus == nil) {
					t.Fatalf("override status = %v, want %v", got, tc.wantStatus)
				}
				if got != nil && *got != *tc.wantStatus {
					t.Fatalf("override status = %v, want %v", *got, *tc.wantStatus)
				}
			}
		})
	}
}

func TestUpdateHTTP_ProfileFields(t *testing.T) {
	m := &fakeManager{updateSess: testSession()}
	r := newTestRouter(m)
	w := doJSON(t, r, http.MethodPatch, "/v1/session", "sess-1",
		`{"user":{"firstName":"Sam","stateId":9}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
	}
	u := m.lastUpdate.User
	if u == nil || u.FirstName == nil || *u.FirstName != "Sam" {
		t.Fatalf("FirstName not forwarded: %+v", u)
	}
	if u.StateID == nil || *u.StateID != 9 {
		t.Errorf("StateID not forwarded: %+v", u)
	}
	if u.LastName != nil {
		t.Errorf("LastName = %v, want nil for absent field", u.LastName)
	}
}

func TestLogoutHTTP(t *testing.T) {
	m := &fakeManager{}
	r := newTestRouter(m)
	w := doJSON(t, r, http.MethodPost, "/v1/auth/logout", "sess-1", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if m.lastLogoutID != "sess-1" {
		t.Errorf("logout id = %q", m.lastLogoutID)
	}
}

func statusPtr(s subscription.Status) *subscription.Status { return &s }
