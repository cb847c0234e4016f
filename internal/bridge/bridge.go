// Package bridge implements the cross-instance transfer protocol. Value
// leaves one ledger instance through Outbound (settle, read rate, burn the
// pool-held balance, emit a message) and enters another through Inbound
// (origin check, replay check, mint with the carried rate). The rate is never
// recomputed on the receiving side: it travels byte-identical inside the
// message, so a holder's growth trajectory is unchanged by relocation.
//
// Deduplication is handled here, not assumed from the transport: every
// message ID is consumed through the ReplayStore exactly once before the
// mint. Outbound is fire-and-forget; the burn commits before the message is
// handed to the transport, and a message the transport permanently loses is a
// permanent loss.
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openyield/yieldbridge/internal/interfaces"
	"github.com/openyield/yieldbridge/internal/ledger"
	"github.com/openyield/yieldbridge/internal/metrics"
	"github.com/openyield/yieldbridge/internal/models"
	"github.com/openyield/yieldbridge/internal/models/events"
)

var (
	// ErrMessageReplay is returned when an inbound message ID has already
	// been consumed.
	ErrMessageReplay = errors.New("bridge message already consumed")
	// ErrInvalidOrigin is returned when an inbound message names a source
	// instance outside the peer allowlist.
	ErrInvalidOrigin = errors.New("bridge message from unknown origin")
)

type Bridge struct {
	ledger    *ledger.Ledger
	replay    interfaces.ReplayStore
	transport interfaces.BridgeTransport
	events    interfaces.EventPublisher
	metrics   *metrics.Collector
	log       zerolog.Logger

	instance string              // local instance name stamped on outbound messages
	peers    map[string]struct{} // instances accepted as inbound origins
	caller   string              // capability identity used for mint/burn
}

func New(l *ledger.Ledger, replay interfaces.ReplayStore, transport interfaces.BridgeTransport, log zerolog.Logger, instance, caller string, peers []string) *Bridge {
	allowed := make(map[string]struct{}, len(peers))
	for _, p := range peers {
		allowed[p] = struct{}{}
	}
	return &Bridge{
		ledger:    l,
		replay:    replay,
		transport: transport,
		log:       log.With().Str("component", "bridge").Logger(),
		instance:  instance,
		peers:     allowed,
		caller:    caller,
	}
}

func (b *Bridge) WithEventPublisher(p interfaces.EventPublisher) *Bridge {
	b.events = p
	return b
}

func (b *Bridge) WithMetrics(m *metrics.Collector) *Bridge {
	b.metrics = m
	return b
}

// Outbound moves amount off this instance toward destAccount on a peer. The
// holder account is settled first so its rate reflects every mint it ever
// received; the value itself is burned from poolAccount, where a prior local
// transfer parked it. The burn is committed before the transport send: a send
// failure is reported but the value has already left this instance.
func (b *Bridge) Outbound(ctx context.Context, holder, poolAccount, destAccount string, amount uint64) (models.OutboundMessage, error) {
	if amount == 0 {
		return models.OutboundMessage{}, fmt.Errorf("outbound of 0 from %s: %w", holder, ledger.ErrInvalidAmount)
	}

	settled, err := b.ledger.Settle(ctx, holder)
	if err != nil {
		return models.OutboundMessage{}, fmt.Errorf("settle holder %s: %w", holder, err)
	}
	if _, err := b.ledger.Burn(ctx, b.caller, poolAccount, amount); err != nil {
		return models.OutboundMessage{}, fmt.Errorf("burn pool balance for %s: %w", holder, err)
	}

	msg := models.OutboundMessage{
		ID:                 uuid.NewString(),
		SourceInstance:     b.instance,
		DestinationAccount: destAccount,
		Amount:             amount,
		Rate:               settled.Rate,
		SentAt:             b.ledger.Now(),
	}
	if err := b.transport.Send(ctx, msg); err != nil {
		// The burn already committed. Delivery is now entirely in the
		// transport's hands; surface the failure without unwinding.
		b.log.Error().Err(err).Str("message_id", msg.ID).Msg("transport send failed after burn")
		return msg, fmt.Errorf("send message %s: %w", msg.ID, err)
	}

	if b.metrics != nil {
		b.metrics.OutboundSent()
	}
	b.log.Info().
		Str("message_id", msg.ID).
		Str("holder", holder).
		Str("destination_account", destAccount).
		Uint64("amount", amount).
		Str("rate", msg.Rate.String()).
		Msg("outbound transfer sent")
	b.publish(ctx, events.BridgeTransferInitiated{
		EventID:            uuid.NewString(),
		MessageID:          msg.ID,
		Holder:             holder,
		DestinationAccount: destAccount,
		Amount:             amount,
		Rate:               msg.Rate,
		OccurredAt:         msg.SentAt,
	})
	return msg, nil
}

// Inbound applies a message from a peer instance: origin allowlist, one-shot
// consumption of the message ID, then a mint carrying the exact rate from the
// message.
func (b *Bridge) Inbound(ctx context.Context, msg models.OutboundMessage) error {
	if _, ok := b.peers[msg.SourceInstance]; !ok {
		if b.metrics != nil {
			b.metrics.OperationFailed("bridge_inbound")
		}
		return fmt.Errorf("message %s from %q: %w", msg.ID, msg.SourceInstance, ErrInvalidOrigin)
	}

	first, err := b.replay.MarkConsumed(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("mark message %s consumed: %w", msg.ID, err)
	}
	if !first {
		if b.metrics != nil {
			b.metrics.ReplayRejected()
		}
		return fmt.Errorf("message %s: %w", msg.ID, ErrMessageReplay)
	}

	if err := b.ledger.Mint(ctx, b.caller, msg.DestinationAccount, msg.Amount, msg.Rate); err != nil {
		return fmt.Errorf("mint inbound message %s: %w", msg.ID, err)
	}

	if b.metrics != nil {
		b.metrics.InboundConsumed()
	}
	b.log.Info().
		Str("message_id", msg.ID).
		Str("source_instance", msg.SourceInstance).
		Str("account", msg.DestinationAccount).
		Uint64("amount", msg.Amount).
		Str("rate", msg.Rate.String()).
		Msg("inbound transfer applied")
	b.publish(ctx, events.BridgeTransferCompleted{
		EventID:        uuid.NewString(),
		MessageID:      msg.ID,
		SourceInstance: msg.SourceInstance,
		Account:        msg.DestinationAccount,
		Amount:         msg.Amount,
		Rate:           msg.Rate,
		OccurredAt:     b.ledger.Now(),
	})
	return nil
}

func (b *Bridge) publish(ctx context.Context, event any) {
	if b.events == nil {
		return
	}
	if err := b.events.Publish(ctx, event); err != nil {
		b.log.Warn().Err(err).Type("event", event).Msg("event publish failed")
	}
}
