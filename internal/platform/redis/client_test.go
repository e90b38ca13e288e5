package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/platform/config"
)

func TestOptions(t *testing.T) {
	t.Run("overrides what is set", func(t *testing.T) {
		opts, err := Options(config.RedisConfig{
			URL:         "redis://:secret@cache:6380/2",
			PoolSize:    20,
			DialTimeout: time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "cache:6380", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 20, opts.PoolSize)
		assert.Equal(t, time.Second, opts.DialTimeout)
	})

	t.Run("zero values keep the url defaults", func(t *testing.T) {
		opts, err := Options(config.RedisConfig{URL: "redis://cache:6379?pool_size=7"})
		require.NoError(t, err)
		assert.Equal(t, 7, opts.PoolSize)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := Options(config.RedisConfig{URL: "http://cache"})
		assert.Error(t, err)
	})
}

func TestNew_Unconfigured(t *testing.T) {
	c, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}
