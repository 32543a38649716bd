package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/models"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IdempotencyRepositoryImpl is the Postgres-backed IdempotencyStore.
// Expiry is evaluated at read time against the configured TTL: a nil TTL
// never expires, a zero TTL expires immediately.
type IdempotencyRepositoryImpl struct {
	base
	ttl *time.Duration
}

// NewIdempotencyRepository creates a database-backed idempotency store
func NewIdempotencyRepository(db *gorm.DB, ttl *time.Duration) IdempotencyStore {
	return &IdempotencyRepositoryImpl{base: base{DB: db}, ttl: ttl}
}

// Get returns the stored response body, nil when absent or expired
func (r *IdempotencyRepositoryImpl) Get(ctx context.Context, ownerID, key string) (json.RawMessage, error) {
	db := r.getDB(ctx)

	var rec models.IdempotencyKey
	err := db.Where("key = ? AND owner_id = ?", key, ownerID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if rec.ExpiredAt(utils.UTCNow(), r.ttl) {
		return nil, nil
	}

	return rec.Response, nil
}

// Save upserts the record; a replayed save overwrites the previous body
func (r *IdempotencyRepositoryImpl) Save(ctx context.Context, ownerID, key string, response json.RawMessage) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	rec := models.IdempotencyKey{
		Key:      key,
		OwnerID:  ownerID,
		Response: response,
	}

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}, {Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"response", "created_at"}),
	}).Create(&rec).Error

	return err
}
