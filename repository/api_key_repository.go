package repository

import (
	"context"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/models"
	"gorm.io/gorm"
)

// APIKeyRepositoryImpl implements the APIKeyRepository interface
type APIKeyRepositoryImpl struct {
	base
}

// NewAPIKeyRepository creates a new API key repository
func NewAPIKeyRepository(db *gorm.DB) APIKeyRepository {
	return &APIKeyRepositoryImpl{base{DB: db}}
}

// ByPrefix returns every key sharing the given hash prefix. Revocation is
// the caller's concern; candidates are returned as stored.
func (r *APIKeyRepositoryImpl) ByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	db := r.getDB(ctx)

	var keys []*models.APIKey
	err := db.Where("key_prefix = ?", prefix).Find(&keys).Error
	if err != nil {
		return nil, err
	}

	return keys, nil
}

// Save persists a new credential record
func (r *APIKeyRepositoryImpl) Save(ctx context.Context, key *models.APIKey) (err error) {
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

	err = db.Create(key).Error
	return err
}
