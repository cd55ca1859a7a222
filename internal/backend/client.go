// Package backend provides a client for the remote Pick-3 REST API
// (login, token refresh, subscription profile). The API is an opaque
// collaborator; this client only mirrors its wire contracts.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBodySize bounds how much of a backend response is read.
const maxResponseBodySize = 1 * 1024 * 1024 // 1MB

// APIError is a non-2xx response from the remote API. Message is the
// server-supplied message, empty if the body carried none.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend: status %d: %s", e.StatusCode, e.Message)
}

// User is the user object of the login payload.
type User struct {
	ID        int64    `json:"id"`
	Email     string   `json:"email"`
	Role      string   `json:"role"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	PhoneNo   string   `json:"phoneNo"`
	StateID   int64    `json:"stateId"`
	State     *USState `json:"state"`
}

// USState is the state reference attached to a user.
type USState struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// LoginPayload is the result of a successful credential exchange.
type LoginPayload struct {
	User         User
	AccessToken  string
	RefreshToken string
}

// Subscription is the subscription record of the subscription-profile payload.
// StartDate/EndDate are passed through as the server sent them.
type Subscription struct {
	ID        json.Number `json:"id"`
	Status    string      `json:"status"`
	StartDate string      `json:"startDate"`
	EndDate   string      `json:"endDate"`
	Plan      string      `json:"plan"`
}

// Client calls the remote Pick-3 API over HTTP with explicit per-call timeouts.
type Client struct {
	baseURL             string
	httpClient          *http.Client
	callTimeout         time.Duration
	subscriptionTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (e.g. for tests or custom transport).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCallTimeout sets the timeout for login and refresh calls.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) { c.callTimeout = d }
}

// WithSubscriptionTimeout sets the timeout for a subscription-profile fetch.
func WithSubscriptionTimeout(d time.Duration) Option {
	return func(c *Client) { c.subscriptionTimeout = d }
}

// NewClient returns a Client for the API at baseURL (e.g. https://api.example.com).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:             strings.TrimRight(baseURL, "/"),
		httpClient:          &http.Client{},
		callTimeout:         10 * time.Second,
		subscriptionTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the common response wrapper: {status, message, data}.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// loginData is the data field of a login response.
type loginData struct {
	User  User `json:"user"`
	Token struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"token"`
}

// Login exchanges email/password for tokens and the initial user profile.
// Returns *APIError for any non-2xx response, with the server message if present.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginPayload, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	env, err := c.do(ctx, http.MethodPost, "/auth/login", "", bytes.NewReader(body), c.callTimeout)
	if err != nil {
		return nil, err
	}
	var data loginData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("backend: decode login payload: %w", err)
	}
	if data.Token.AccessToken == "" || data.Token.RefreshToken == "" {
		return nil, errors.New("backend: login payload missing tokens")
	}
	return &LoginPayload{
		User:         data.User,
		AccessToken:  data.Token.AccessToken,
		RefreshToken: data.Token.RefreshToken,
	}, nil
}

// refreshData is the data field of a refresh-token response.
type refreshData struct {
	AccessToken string `json:"accessToken"`
}

// RefreshAccessToken exchanges refreshToken for a new access token. The
// Authorization header carries the refresh token, not the access token; the
// remote contract does not rotate refresh tokens.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	env, err := c.do(ctx, http.MethodPost, "/auth/refresh-token", refreshToken, nil, c.callTimeout)
	if err != nil {
		return "", err
	}
	var data refreshData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("backend: decode refresh payload: %w", err)
	}
	if data.AccessToken == "" {
		return "", errors.New("backend: refresh payload missing accessToken")
	}
	return data.AccessToken, nil
}

// SubscriptionProfile fetches the caller's subscription record. Returns
// (nil, nil) when the server reports no record (HTTP 404 or a null data
// payload): confirmed absence, not an error. Any other failure returns an
// error and the caller must treat the result as unresolved.
func (c *Client) SubscriptionProfile(ctx context.Context, accessToken string) (*Subscription, error) {
	env, err := c.do(ctx, http.MethodGet, "/subscriptions/profile", accessToken, nil, c.subscriptionTimeout)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}
	var sub Subscription
	if err := json.Unmarshal(env.Data, &sub); err != nil {
		return nil, fmt.Errorf("backend: decode subscription payload: %w", err)
	}
	return &sub, nil
}

// do issues one request and decodes the response envelope. bearer, when
// non-empty, is sent as the Authorization bearer credential.
func (c *Client) do(ctx context.Context, method, path, bearer string, body io.Reader, timeout time.Duration) (*envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("backend: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var env envelope
		if err := json.Unmarshal(raw, &env); err == nil {
			apiErr.Message = env.Message
		}
		return nil, apiErr
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("backend: decode response: %w", err)
	}
	return &env, nil
}
