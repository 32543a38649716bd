// Package scheduler contains background jobs of the device profile service
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/models"
	"gorm.io/gorm"
)

// IdempotencyJanitor periodically deletes idempotency records that have
// aged past the configured TTL. Expiry is already enforced at read time;
// the janitor only reclaims storage, so it runs with a coarse interval.
type IdempotencyJanitor struct {
	db       *gorm.DB
	ttl      time.Duration
	interval time.Duration
	logger   *log.Logger
}

// NewIdempotencyJanitor creates a janitor for the database-backed store.
// ttl must be positive; stores with no TTL keep records forever and need
// no janitor.
func NewIdempotencyJanitor(db *gorm.DB, ttl, interval time.Duration, logger *log.Logger) *IdempotencyJanitor {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = log.Default()
	}

	return &IdempotencyJanitor{
		db:       db,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the sweep loop and returns a cancel function
func (j *IdempotencyJanitor) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		j.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (j *IdempotencyJanitor) runOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.ttl)

	result := j.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.IdempotencyKey{})
	if result.Error != nil {
		j.logger.Printf("idempotency janitor: sweep failed: %v", result.Error)
		return
	}

	if result.RowsAffected > 0 {
		j.logger.Printf("idempotency janitor: removed %d expired records", result.RowsAffected)
	}
}
