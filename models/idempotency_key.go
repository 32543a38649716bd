package models

import (
	"encoding/json"
	"time"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/utils"
	"gorm.io/gorm"
)

// IdempotencyKey stores a previously produced response body under a
// client-supplied key, scoped per owner so keys never collide across
// tenants. Expiry is evaluated at read time against the configured TTL.
type IdempotencyKey struct {
	Key       string          `gorm:"primaryKey;size:255" json:"key"`
	OwnerID   string          `gorm:"primaryKey;size:64" json:"owner_id"`
	Response  json.RawMessage `gorm:"type:jsonb;not null" json:"response"`
	CreatedAt time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for the model
func (IdempotencyKey) TableName() string {
	return "idempotency_keys"
}

// BeforeCreate is called before creating a new record
func (k *IdempotencyKey) BeforeCreate(tx *gorm.DB) error {
	if k.CreatedAt.IsZero() {
		k.CreatedAt = utils.UTCNow()
	}
	return nil
}

// ExpiredAt reports whether the record is expired at the given instant
// under the TTL policy. A nil TTL never expires; a zero TTL expires
// immediately. Stored timestamps lacking timezone context are treated
// as UTC.
func (k *IdempotencyKey) ExpiredAt(now time.Time, ttl *time.Duration) bool {
	if ttl == nil {
		return false
	}
	if *ttl == 0 {
		return true
	}
	created := k.CreatedAt
	if created.Location() == time.Local {
		created = time.Date(created.Year(), created.Month(), created.Day(),
			created.Hour(), created.Minute(), created.Second(), created.Nanosecond(), time.UTC)
	}
	return created.Add(*ttl).Before(now.UTC())
}
