package domain

import (
	"strconv"
	"time"

	dErrors "warden/pkg/domain-errors"
)

// Platform identifiers are snowflakes: unsigned 64-bit integers rendered as
// decimal strings. Each kind gets its own type so a group id can never be
// passed where a user id is expected.
type (
	UserID    string
	GroupID   string
	MarkerID  string
	ChannelID string
)

// snowflakeEpoch is the platform epoch (2015-01-01T00:00:00Z) in milliseconds.
const snowflakeEpoch = 1420070400000

func parseSnowflake(kind, s string) (string, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > 20 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	// Normalise leading zeros so equal ids compare equal.
	return strconv.FormatUint(v, 10), nil
}

// ParseUserID validates a user snowflake.
func ParseUserID(s string) (UserID, error) {
	v, err := parseSnowflake("user id", s)
	return UserID(v), err
}

// ParseGroupID validates a group snowflake.
func ParseGroupID(s string) (GroupID, error) {
	v, err := parseSnowflake("group id", s)
	return GroupID(v), err
}

// ParseMarkerID validates an access marker snowflake.
func ParseMarkerID(s string) (MarkerID, error) {
	v, err := parseSnowflake("marker id", s)
	return MarkerID(v), err
}

// ParseChannelID validates a channel snowflake.
func ParseChannelID(s string) (ChannelID, error) {
	v, err := parseSnowflake("channel id", s)
	return ChannelID(v), err
}

func (id UserID) String() string    { return string(id) }
func (id GroupID) String() string   { return string(id) }
func (id MarkerID) String() string  { return string(id) }
func (id ChannelID) String() string { return string(id) }

func (id UserID) IsNil() bool    { return id == "" }
func (id GroupID) IsNil() bool   { return id == "" }
func (id MarkerID) IsNil() bool  { return id == "" }
func (id ChannelID) IsNil() bool { return id == "" }

// CreatedAt decodes the creation time embedded in a user snowflake. It
// returns the zero time for ids that are not valid snowflakes.
func (id UserID) CreatedAt() time.Time {
	v, err := strconv.ParseUint(string(id), 10, 64)
	if err != nil {
		return time.Time{}
	}
	ms := int64(v>>22) + snowflakeEpoch
	return time.UnixMilli(ms).UTC()
}
