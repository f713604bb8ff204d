package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.PGDSN)
	assert.Equal(t, 50.0, cfg.RatePerSecond)
	assert.Equal(t, 100, cfg.RateBurst)
	assert.Equal(t, 3*time.Second, cfg.LockTimeout)
	assert.Equal(t, time.Minute, cfg.InvariantInterval)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("NIVESH_HTTP_ADDR", ":9999")
	t.Setenv("NIVESH_PG_DSN", "postgres://app@localhost:5432/books")
	t.Setenv("NIVESH_RATE_BURST", "7")
	t.Setenv("NIVESH_LOCK_TIMEOUT", "250ms")
	t.Setenv("NIVESH_INVARIANT_INTERVAL", "10s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "postgres://app@localhost:5432/books", cfg.PGDSN)
	assert.Equal(t, 7, cfg.RateBurst)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, 10*time.Second, cfg.InvariantInterval)
}

func TestLoadRejectsNonsenseValues(t *testing.T) {
	t.Setenv("NIVESH_RATE_BURST", "-3")
	t.Setenv("NIVESH_RATE_PER_SECOND", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.RateBurst)
	assert.Equal(t, 50.0, cfg.RatePerSecond)
}
