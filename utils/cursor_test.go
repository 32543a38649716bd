package utils

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileCursorRoundTrip(t *testing.T) {
	created := time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)
	token := EncodeProfileCursor(created, "prof_abc123def456")

	ts, id, err := DecodeProfileCursor(token)
	require.NoError(t, err)
	assert.True(t, ts.Equal(created))
	assert.Equal(t, "prof_abc123def456", id)
}

func TestProfileCursorRoundTripNonUTC(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, loc)

	ts, id, err := DecodeProfileCursor(EncodeProfileCursor(created, "prof_x"))
	require.NoError(t, err)
	assert.True(t, ts.Equal(created))
	assert.Equal(t, time.UTC, ts.Location())
	assert.Equal(t, "prof_x", id)
}

func TestDecodeProfileCursorMalformed(t *testing.T) {
	cases := map[string]string{
		"not base64":      "%%%not-base64%%%",
		"missing pipe":    base64.URLEncoding.EncodeToString([]byte("2025-01-01T00:00:00Z")),
		"empty id":        base64.URLEncoding.EncodeToString([]byte("2025-01-01T00:00:00Z|")),
		"bad timestamp":   base64.URLEncoding.EncodeToString([]byte("yesterday|prof_a")),
		"too many fields": base64.URLEncoding.EncodeToString([]byte("2025-01-01T00:00:00Z|a|b")),
		"empty token":     "",
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := DecodeProfileCursor(token)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}

func TestVersionCursorRoundTrip(t *testing.T) {
	v, err := DecodeVersionCursor(EncodeVersionCursor(42))
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDecodeVersionCursorRejectsNonPositive(t *testing.T) {
	for _, token := range []string{"0", "-1", "abc", "", "1.5"} {
		_, err := DecodeVersionCursor(token)
		assert.ErrorIs(t, err, ErrInvalidCursor, "token %q", token)
	}
}

func TestValidateLimit(t *testing.T) {
	assert.NoError(t, ValidateLimit(1))
	assert.NoError(t, ValidateLimit(100))
	assert.ErrorIs(t, ValidateLimit(0), ErrInvalidLimit)
	assert.ErrorIs(t, ValidateLimit(-3), ErrInvalidLimit)
	assert.ErrorIs(t, ValidateLimit(101), ErrInvalidLimit)
}
