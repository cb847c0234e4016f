package interfaces

import (
	"context"

	"github.com/openyield/yieldbridge/internal/auth"
	"github.com/openyield/yieldbridge/internal/models"
)

// Authorizer answers capability checks for privileged operations.
type Authorizer interface {
	Allows(caller string, c auth.Capability) bool
}

// EventPublisher emits domain events onto the event stream. Publishing is
// fire-and-forget from the ledger's point of view; failures are logged, not
// propagated.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// BridgeTransport delivers outbound messages to the destination instance.
// Delivery guarantees (ordering, origin authentication, retries) belong to
// the transport; the bridge only hands the message over.
type BridgeTransport interface {
	Send(ctx context.Context, msg models.OutboundMessage) error
}
