package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.SetJSON(ctx, "catalog:categories", []string{"mobile", "game"}, time.Minute))

	var got []string
	ok, err := m.GetJSON(ctx, "catalog:categories", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"mobile", "game"}, got)

	now = now.Add(2 * time.Minute)
	ok, err = m.GetJSON(ctx, "catalog:categories", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryDeletePrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.SetJSON(ctx, "catalog:a", 1, 0))
	require.NoError(t, m.SetJSON(ctx, "catalog:b", 2, 0))
	require.NoError(t, m.SetJSON(ctx, "session:c", 3, 0))

	n, err := m.DeletePrefix(ctx, "catalog:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var v int
	ok, err := m.GetJSON(ctx, "session:c", &v)
	require.NoError(t, err)
	assert.True(t, ok)
}
