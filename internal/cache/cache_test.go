package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risklock/internal/models"
)

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))

	now = now.Add(2 * time.Second)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "forever", []byte("v"), 0))
	now = now.Add(time.Hour)
	_, ok = c.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestNewCacheFallsBack(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"malformed", "not a url"},
		{"unreachable", "redis://127.0.0.1:1/0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCache(tt.url, zerolog.Nop())
			defer c.Close()
			assert.Equal(t, "memory", c.Backend())
		})
	}
}

func TestPutFetchSnapshot(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, err := Fetch[models.Snapshot](ctx, c, SnapshotKey)
	assert.ErrorIs(t, err, ErrMiss)

	s := models.Snapshot{Risk: models.Risk{Status: models.RiskWarning, Violations: []string{"Approaching daily limit"}}}
	require.NoError(t, Put(ctx, c, SnapshotKey, s, time.Minute))

	e, err := Fetch[models.Snapshot](ctx, c, SnapshotKey)
	require.NoError(t, err)
	assert.Equal(t, models.RiskWarning, e.Value.Risk.Status)
	assert.Equal(t, []string{"Approaching daily limit"}, e.Value.Risk.Violations)
	assert.WithinDuration(t, time.Now(), e.StoredAt, time.Minute)
}
