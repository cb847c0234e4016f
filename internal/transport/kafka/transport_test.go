package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openyield/yieldbridge/internal/bridge"
	"github.com/openyield/yieldbridge/internal/fixedpoint"
	"github.com/openyield/yieldbridge/internal/models"
)

type fakeReader struct {
	msgs      []kafkago.Message
	pos       int
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if r.pos >= len(r.msgs) {
		return kafkago.Message{}, io.EOF
	}
	m := r.msgs[r.pos]
	r.pos++
	return m, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafkago.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func bridgeMessage(t *testing.T, id string, offset int64) kafkago.Message {
	t.Helper()
	data, err := json.Marshal(models.OutboundMessage{
		ID:                 id,
		SourceInstance:     "ledger-a",
		DestinationAccount: "bob",
		Amount:             100,
		Rate:               fixedpoint.Rate(50_000_000_000_000_000),
	})
	require.NoError(t, err)
	return kafkago.Message{Offset: offset, Value: data}
}

func newTestConsumer(r *fakeReader) *Consumer {
	return &Consumer{reader: r, log: zerolog.Nop()}
}

func TestRunCommitsAppliedMessages(t *testing.T) {
	r := &fakeReader{msgs: []kafkago.Message{
		bridgeMessage(t, "msg-1", 0),
		bridgeMessage(t, "msg-2", 1),
	}}

	var applied []string
	err := newTestConsumer(r).Run(context.Background(), func(ctx context.Context, msg models.OutboundMessage) error {
		applied = append(applied, msg.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"msg-1", "msg-2"}, applied)
	assert.Equal(t, []int64{0, 1}, r.committed)
}

func TestRunCommitsPermanentRejections(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "replay", err: bridge.ErrMessageReplay},
		{name: "unknown origin", err: bridge.ErrInvalidOrigin},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeReader{msgs: []kafkago.Message{bridgeMessage(t, "msg-1", 0)}}

			err := newTestConsumer(r).Run(context.Background(), func(ctx context.Context, msg models.OutboundMessage) error {
				return tc.err
			})
			require.NoError(t, err)
			assert.Equal(t, []int64{0}, r.committed, "a rejection no redelivery can cure must be committed past")
		})
	}
}

func TestRunCommitsUndecodableMessages(t *testing.T) {
	r := &fakeReader{msgs: []kafkago.Message{
		{Offset: 0, Value: []byte("not json")},
		bridgeMessage(t, "msg-1", 1),
	}}

	var applied []string
	err := newTestConsumer(r).Run(context.Background(), func(ctx context.Context, msg models.OutboundMessage) error {
		applied = append(applied, msg.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"msg-1"}, applied)
	assert.Equal(t, []int64{0, 1}, r.committed)
}

func TestRunLeavesTransientFailuresUncommitted(t *testing.T) {
	// A storage outage inside the handler must not advance the offset:
	// the message's value was already burned on the source instance, so
	// dropping it here would be a permanent loss. Kafka redelivers
	// uncommitted offsets on the next run.
	r := &fakeReader{msgs: []kafkago.Message{bridgeMessage(t, "msg-1", 0)}}
	storeDown := errors.New("replay store unavailable")

	err := newTestConsumer(r).Run(context.Background(), func(ctx context.Context, msg models.OutboundMessage) error {
		return storeDown
	})
	require.ErrorIs(t, err, storeDown)
	assert.Empty(t, r.committed)

	// the same message is fetched and applied on the next run
	r.pos = 0
	err = newTestConsumer(r).Run(context.Background(), func(ctx context.Context, msg models.OutboundMessage) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, r.committed)
}
