package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

func intPtr(v int) *int { return &v }

// TestPolicy_Defaults verifies the invariant that zero policy fields resolve
// to defaults rather than disabling a check.
func TestPolicy_Defaults(t *testing.T) {
	t.Run("nil config uses defaults", func(t *testing.T) {
		var c *Config
		p := c.Policy()
		assert.Equal(t, 7*24*time.Hour, p.MinAccountAge)
		assert.Equal(t, 3, p.MaxAttemptsPerWindow)
		assert.Equal(t, time.Hour, p.Window)
		assert.Equal(t, 5*time.Minute, p.SessionTimeout)
		assert.Equal(t, 7, p.MinAccountAgeDays())
	})

	t.Run("explicit values override", func(t *testing.T) {
		c := &Config{MinAccountAgeDays: 30, MaxAttemptsPerWindow: 5, WindowSeconds: 60, SessionTimeoutSeconds: 120}
		p := c.Policy()
		assert.Equal(t, 30*24*time.Hour, p.MinAccountAge)
		assert.Equal(t, 5, p.MaxAttemptsPerWindow)
		assert.Equal(t, time.Minute, p.Window)
		assert.Equal(t, 2*time.Minute, p.SessionTimeout)
	})
}

func TestGrantsMarker(t *testing.T) {
	assert.False(t, (&Config{AutoGrantEnabled: true}).GrantsMarker())
	assert.False(t, (&Config{AccessMarkerID: "5"}).GrantsMarker())
	assert.True(t, (&Config{AutoGrantEnabled: true, AccessMarkerID: "5"}).GrantsMarker())
}

func TestUpdate(t *testing.T) {
	t.Run("rejects out of range values", func(t *testing.T) {
		err := Update{SessionTimeoutSeconds: intPtr(7200)}.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

		err = Update{MaxAttemptsPerWindow: intPtr(-1)}.Validate()
		require.Error(t, err)
	})

	t.Run("zero is rejected instead of falling back to the default", func(t *testing.T) {
		err := Update{MinAccountAgeDays: intPtr(0)}.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		assert.Contains(t, err.Error(), "min_account_age_days must be between 1 and 3650")

		require.NoError(t, Update{MinAccountAgeDays: intPtr(1)}.Validate())
	})

	t.Run("apply only touches set fields", func(t *testing.T) {
		created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		now := created.Add(time.Hour)
		marker := domain.MarkerID("77")
		c := &Config{GroupID: "1", Name: "lounge", MaxAttemptsPerWindow: 4, CreatedAt: created}

		c.Apply(Update{AccessMarkerID: &marker}, now)

		assert.Equal(t, "lounge", c.Name)
		assert.Equal(t, marker, c.AccessMarkerID)
		assert.Equal(t, 4, c.MaxAttemptsPerWindow)
		assert.Equal(t, created, c.CreatedAt)
		assert.Equal(t, now, c.UpdatedAt)
	})
}
