// Package subscription resolves a session's billing entitlement from the
// remote subscription-profile endpoint, keeping "confirmed absent" distinct
// from "fetch failed" so a known-good status is never overwritten by a false
// negative.
package subscription

import (
	"context"
	"log"

	"pick3-session-gateway/internal/backend"
)

// Status is the billing entitlement state tracked alongside a session.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusExpired  Status = "EXPIRED"
	StatusCanceled Status = "CANCELED"
)

// ParseStatus returns the Status for s and whether it is one of the
// enumerated values.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusActive, StatusExpired, StatusCanceled:
		return Status(s), true
	}
	return "", false
}

// Outcome is the result of one status fetch.
//
// Resolved means the fetch definitively established either a status value or
// confirmed absence. An unresolved outcome (timeout, 5xx, transport error)
// also carries a nil Status, but callers must not treat it as "no
// subscription": only resolved outcomes may overwrite a prior status.
type Outcome struct {
	Resolved bool
	Status   *Status // nil on confirmed absence and on unresolved fetches
}

// Resolve builds a resolved outcome with the given status.
func Resolve(s Status) Outcome {
	return Outcome{Resolved: true, Status: &s}
}

// ResolveAbsent builds a resolved outcome confirming no subscription record.
func ResolveAbsent() Outcome {
	return Outcome{Resolved: true}
}

// Fetcher resolves the current subscription status for an access token.
type Fetcher interface {
	Fetch(ctx context.Context, accessToken string) Outcome
}

// SubscriptionAPI is the slice of the backend client the fetcher needs.
type SubscriptionAPI interface {
	SubscriptionProfile(ctx context.Context, accessToken string) (*backend.Subscription, error)
}

// ClientFetcher implements Fetcher against the remote API client. Fetch
// failures are logged and degrade to an unresolved outcome; they never
// surface as errors.
type ClientFetcher struct {
	api SubscriptionAPI
}

// NewClientFetcher returns a Fetcher backed by the given API client.
func NewClientFetcher(api SubscriptionAPI) *ClientFetcher {
	return &ClientFetcher{api: api}
}

// Fetch issues one subscription-profile request. The HTTP timeout is owned by
// the backend client.
func (f *ClientFetcher) Fetch(ctx context.Context, accessToken string) Outcome {
	sub, err := f.api.SubscriptionProfile(ctx, accessToken)
	if err != nil {
		log.Printf("subscription: fetch unresolved: %v", err)
		return Outcome{}
	}
	if sub == nil {
		return ResolveAbsent()
	}
	status, ok := ParseStatus(sub.Status)
	if !ok {
		log.Printf("subscription: unrecognized status %q, treating as unresolved", sub.Status)
		return Outcome{}
	}
	return Resolve(status)
}
