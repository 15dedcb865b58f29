package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pvnkmnk/rentFalcon/internal/config"
)

func ptr(v float64) *float64 { return &v }

func TestKey(t *testing.T) {
	enabled := []string{"kijiji", "rentals_ca"}

	t.Run("normalizes location", func(t *testing.T) {
		assert.Equal(t,
			Key("Ottawa", ptr(1000), ptr(2000), enabled),
			Key("  ottawa ", ptr(1000), ptr(2000), enabled),
		)
	})

	t.Run("distinguishes bounds", func(t *testing.T) {
		assert.NotEqual(t,
			Key("ottawa", ptr(1000), ptr(2000), enabled),
			Key("ottawa", nil, ptr(2000), enabled),
		)
	})

	t.Run("distinguishes enabled source sets", func(t *testing.T) {
		assert.NotEqual(t,
			Key("ottawa", nil, nil, []string{"kijiji"}),
			Key("ottawa", nil, nil, enabled),
		)
	})
}

func TestDisabledCacheIsNoOp(t *testing.T) {
	cfg := &config.Config{}
	cfg.Cache.Enabled = false

	c := New(cfg)
	ctx := context.Background()

	_, ok := c.Get(ctx, "anything")
	assert.False(t, ok)
	c.Set(ctx, "anything", nil)
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}
