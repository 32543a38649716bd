package utils

import (
	"time"
)

// Idempotency constants
const (
	// DefaultIdempotencyTTL is how long a cached create response stays
	// replayable (24 hours)
	DefaultIdempotencyTTL = 24 * time.Hour
)

// Pagination constants
const (
	// DefaultPageLimit is the page size used when the client does not
	// supply one
	DefaultPageLimit = 20

	// MaxPageLimit is the largest page size a client may request
	MaxPageLimit = 100
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)
