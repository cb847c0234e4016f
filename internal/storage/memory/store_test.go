package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openyield/yieldbridge/internal/fixedpoint"
	"github.com/openyield/yieldbridge/internal/models"
)

func TestAccountRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	acct := models.Account{ID: "a", Principal: 100, Rate: fixedpoint.Rate(42), LastSettled: 7}
	require.NoError(t, s.Save(ctx, acct))

	got, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, acct, got)
}

func TestSaveMultiple(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	a := models.Account{ID: "a", Principal: 10}
	b := models.Account{ID: "b", Principal: 20}
	require.NoError(t, s.Save(ctx, a, b))

	got, ok, err := s.Get(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(20), got.Principal)
}

func TestConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, ok, err := s.LoadConfig(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "fresh store holds no config")

	cfg := models.GlobalConfig{CeilingRate: fixedpoint.Rate(5)}
	require.NoError(t, s.SaveConfig(ctx, cfg))

	got, ok, err := s.LoadConfig(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cfg, got)
}

func TestMarkConsumedOnce(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	first, err := s.MarkConsumed(ctx, "msg-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.MarkConsumed(ctx, "msg-1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := s.MarkConsumed(ctx, "msg-2")
	require.NoError(t, err)
	assert.True(t, other)
}
