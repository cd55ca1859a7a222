// Package producer publishes telemetry events to Kafka.
package producer

import (
	"context"

	"pick3-session-gateway/internal/telemetry"
)

// Producer publishes telemetry events. Implementations must be safe for
// concurrent use.
type Producer interface {
	Emit(ctx context.Context, event *telemetry.Event) error
	Close() error
}
