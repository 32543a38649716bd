package utils

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Cursor decode failures. The two cursor keyspaces (profile listings and
// version listings) are never interchangeable; any malformed token fails
// uniformly with ErrInvalidCursor.
var (
	ErrInvalidCursor = errors.New("invalid pagination cursor")
	ErrInvalidLimit  = errors.New("limit must be between 1 and 100")
)

// profileCursorLayout keeps sub-second precision so rows created within the
// same millisecond still round-trip exactly.
const profileCursorLayout = time.RFC3339Nano

// EncodeProfileCursor packs the (created_at, id) pair of the last listed
// profile into an opaque URL-safe token.
func EncodeProfileCursor(createdAt time.Time, id string) string {
	raw := createdAt.UTC().Format(profileCursorLayout) + "|" + id
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// DecodeProfileCursor reverses EncodeProfileCursor. Malformed encodings,
// wrong arity, and unparsable timestamps all fail as ErrInvalidCursor.
func DecodeProfileCursor(token string) (time.Time, string, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", ErrInvalidCursor
	}

	parts := strings.SplitN(string(raw), "|", 3)
	if len(parts) != 2 || parts[1] == "" {
		return time.Time{}, "", ErrInvalidCursor
	}

	ts, err := time.Parse(profileCursorLayout, parts[0])
	if err != nil {
		return time.Time{}, "", ErrInvalidCursor
	}

	return ts.UTC(), parts[1], nil
}

// EncodeVersionCursor renders the last returned version number as a token.
func EncodeVersionCursor(version int) string {
	return strconv.Itoa(version)
}

// DecodeVersionCursor parses a version-list cursor. Version numbers start
// at 1, so anything non-positive is malformed.
func DecodeVersionCursor(token string) (int, error) {
	v, err := strconv.Atoi(token)
	if err != nil || v <= 0 {
		return 0, ErrInvalidCursor
	}
	return v, nil
}

// ValidateLimit checks a page limit against the 1..100 range shared by both
// list kinds.
func ValidateLimit(limit int) error {
	if limit < 1 || limit > MaxPageLimit {
		return ErrInvalidLimit
	}
	return nil
}
