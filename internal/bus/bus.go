// Package bus provides event bus implementations for Harrier.
package bus

import (
	"context"
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
	"go.opentelemetry.io/otel/trace"
)

// Message metadata keys.
const (
	// MetadataTraceID carries the publisher's trace id.
	MetadataTraceID = "trace_id"
	// MetadataReplyTo names the topic a responder should publish to.
	MetadataReplyTo = "reply_to"
)

var (
	_ domain.EventBus = (*ChannelBus)(nil)
	_ domain.EventBus = (*NATSBus)(nil)
)

// New creates a new event bus based on configuration.
// For Community tier: returns ChannelBus.
// For Pro tier: returns NATSBus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel", "":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

func metadataFromContext(ctx context.Context) map[string]string {
	md := make(map[string]string)
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		md[MetadataTraceID] = sc.TraceID().String()
	}
	return md
}
