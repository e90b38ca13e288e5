package models

import (
	"fmt"
	"time"

	"warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

// Defaults applied when a group has no explicit policy.
const (
	DefaultMinAccountAgeDays     = 7
	DefaultMaxAttemptsPerWindow  = 3
	DefaultWindowSeconds         = 3600
	DefaultSessionTimeoutSeconds = 300
)

// Upper bounds enforced on administrator input.
const (
	maxNameLength            = 100
	maxMinAccountAgeDays     = 3650
	maxAttemptsPerWindow     = 100
	maxWindowSeconds         = 7 * 24 * 3600
	maxSessionTimeoutSeconds = 3600
)

// Config is the per-group verification configuration.
//
// Invariants:
//   - Zero policy fields mean "use the default", never "zero".
//   - AutoGrantEnabled without an AccessMarkerID grants nothing.
//   - Only administrators of GroupID mutate it.
type Config struct {
	GroupID               domain.GroupID   `json:"group_id"`
	Name                  string           `json:"name"`
	AccessMarkerID        domain.MarkerID  `json:"access_marker_id,omitempty"`
	AutoGrantEnabled      bool             `json:"auto_grant_enabled"`
	PromptChannelID       domain.ChannelID `json:"prompt_channel_id,omitempty"`
	MinAccountAgeDays     int              `json:"min_account_age_days,omitempty"`
	MaxAttemptsPerWindow  int              `json:"max_attempts_per_window,omitempty"`
	WindowSeconds         int              `json:"window_seconds,omitempty"`
	SessionTimeoutSeconds int              `json:"session_timeout_seconds,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// Default returns the configuration used for a group that has never been
// configured.
func Default(groupID domain.GroupID) *Config {
	return &Config{GroupID: groupID}
}

// GrantsMarker reports whether verification in any group should grant this
// group's marker.
func (c *Config) GrantsMarker() bool {
	return c.AutoGrantEnabled && !c.AccessMarkerID.IsNil()
}

// Policy resolves the effective verification policy with defaults applied.
func (c *Config) Policy() Policy {
	p := Policy{
		MinAccountAge:        DefaultMinAccountAgeDays * 24 * time.Hour,
		MaxAttemptsPerWindow: DefaultMaxAttemptsPerWindow,
		Window:               DefaultWindowSeconds * time.Second,
		SessionTimeout:       DefaultSessionTimeoutSeconds * time.Second,
	}
	if c == nil {
		return p
	}
	if c.MinAccountAgeDays > 0 {
		p.MinAccountAge = time.Duration(c.MinAccountAgeDays) * 24 * time.Hour
	}
	if c.MaxAttemptsPerWindow > 0 {
		p.MaxAttemptsPerWindow = c.MaxAttemptsPerWindow
	}
	if c.WindowSeconds > 0 {
		p.Window = time.Duration(c.WindowSeconds) * time.Second
	}
	if c.SessionTimeoutSeconds > 0 {
		p.SessionTimeout = time.Duration(c.SessionTimeoutSeconds) * time.Second
	}
	return p
}

// Policy is the resolved, default-applied verification policy for a group.
type Policy struct {
	MinAccountAge        time.Duration
	MaxAttemptsPerWindow int
	Window               time.Duration
	SessionTimeout       time.Duration
}

// MinAccountAgeDays is MinAccountAge in whole days, for display.
func (p Policy) MinAccountAgeDays() int {
	return int(p.MinAccountAge / (24 * time.Hour))
}

// Update is an administrator change to a group configuration. Nil fields are
// left untouched.
type Update struct {
	Name                  *string           `json:"name,omitempty"`
	AccessMarkerID        *domain.MarkerID  `json:"access_marker_id,omitempty"`
	AutoGrantEnabled      *bool             `json:"auto_grant_enabled,omitempty"`
	PromptChannelID       *domain.ChannelID `json:"prompt_channel_id,omitempty"`
	MinAccountAgeDays     *int              `json:"min_account_age_days,omitempty"`
	MaxAttemptsPerWindow  *int              `json:"max_attempts_per_window,omitempty"`
	WindowSeconds         *int              `json:"window_seconds,omitempty"`
	SessionTimeoutSeconds *int              `json:"session_timeout_seconds,omitempty"`
}

// Validate checks bounds on every field that is set.
func (u Update) Validate() error {
	if u.Name != nil && len(*u.Name) > maxNameLength {
		return dErrors.New(dErrors.CodeInvalidInput, "name must be at most 100 characters")
	}
	if err := checkRange("min_account_age_days", u.MinAccountAgeDays, maxMinAccountAgeDays); err != nil {
		return err
	}
	if err := checkRange("max_attempts_per_window", u.MaxAttemptsPerWindow, maxAttemptsPerWindow); err != nil {
		return err
	}
	if err := checkRange("window_seconds", u.WindowSeconds, maxWindowSeconds); err != nil {
		return err
	}
	if err := checkRange("session_timeout_seconds", u.SessionTimeoutSeconds, maxSessionTimeoutSeconds); err != nil {
		return err
	}
	return nil
}

// checkRange requires a set value to be at least 1. Zero is the stored
// "use the default" marker, so accepting it would silently swap in the default.
func checkRange(field string, v *int, maxValue int) error {
	if v == nil {
		return nil
	}
	if *v < 1 || *v > maxValue {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s must be between 1 and %d", field, maxValue))
	}
	return nil
}

// Apply writes the set fields of u onto c.
func (c *Config) Apply(u Update, now time.Time) {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.AccessMarkerID != nil {
		c.AccessMarkerID = *u.AccessMarkerID
	}
	if u.AutoGrantEnabled != nil {
		c.AutoGrantEnabled = *u.AutoGrantEnabled
	}
	if u.PromptChannelID != nil {
		c.PromptChannelID = *u.PromptChannelID
	}
	if u.MinAccountAgeDays != nil {
		c.MinAccountAgeDays = *u.MinAccountAgeDays
	}
	if u.MaxAttemptsPerWindow != nil {
		c.MaxAttemptsPerWindow = *u.MaxAttemptsPerWindow
	}
	if u.WindowSeconds != nil {
		c.WindowSeconds = *u.WindowSeconds
	}
	if u.SessionTimeoutSeconds != nil {
		c.SessionTimeoutSeconds = *u.SessionTimeoutSeconds
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}
