package repository

import (
	"context"
	"errors"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/models"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/utils"
	"gorm.io/gorm"
)

// DeviceProfileRepositoryImpl implements the DeviceProfileRepository interface
type DeviceProfileRepositoryImpl struct {
	base
}

// NewDeviceProfileRepository creates a new device profile repository
func NewDeviceProfileRepository(db *gorm.DB) DeviceProfileRepository {
	return &DeviceProfileRepositoryImpl{base{DB: db}}
}

// Create persists a new profile at version 1 and its first snapshot in one
// transaction. The (owner, lower(name)) uniqueness invariant is enforced by
// the partial unique index, not pre-checked here.
func (r *DeviceProfileRepositoryImpl) Create(ctx context.Context, profile *models.DeviceProfile, actorID string) error {
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

	profile.Version = 1

	err = db.Create(profile).Error
	if err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicateName
		}
		return err
	}

	err = db.Create(&models.DeviceProfileVersion{
		ProfileID: profile.ID,
		Version:   1,
		Snapshot:  models.SnapshotOf(profile),
		ChangedBy: actorID,
	}).Error

	return err
}

// ByIDScoped returns the profile when visible to userID, nil otherwise
func (r *DeviceProfileRepositoryImpl) ByIDScoped(ctx context.Context, userID, profileID string) (*models.DeviceProfile, error) {
	db := r.getDB(ctx)

	var profile models.DeviceProfile
	err := ScopeVisible(db, userID, true).
		Where("id = ?", profileID).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &profile, nil
}

// ListScopedPage lists visible profiles ordered by (created_at, id)
// ascending. It fetches limit+1 rows; when the extra row exists the page
// carries a continuation cursor built from the last kept row.
func (r *DeviceProfileRepositoryImpl) ListScopedPage(ctx context.Context, userID string, filter models.DeviceProfileFilter, limit int, cursor *models.ProfileCursor) (*ProfilePage, error) {
	db := r.getDB(ctx)

	query := ScopeVisible(db.Model(&models.DeviceProfile{}), userID, true)
	query = applyProfileFilter(query, filter)

	if cursor != nil {
		query = query.Where("(created_at, id) > (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []*models.DeviceProfile
	err := query.
		Order("created_at ASC, id ASC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	page := &ProfilePage{Profiles: rows}
	if len(rows) > limit {
		page.Profiles = rows[:limit]
		last := page.Profiles[limit-1]
		page.Next = &models.ProfileCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	return page, nil
}

func applyProfileFilter(db *gorm.DB, filter models.DeviceProfileFilter) *gorm.DB {
	if filter.IsTemplate != nil {
		db = db.Where("is_template = ?", *filter.IsTemplate)
	}
	if filter.DeviceType != nil {
		db = db.Where("device_type = ?", *filter.DeviceType)
	}
	if filter.Country != nil {
		db = db.Where("country = ?", *filter.Country)
	}
	if filter.NamePrefix != nil {
		db = db.Where("name ILIKE ?", escapeLike(*filter.NamePrefix)+"%")
	}
	return db
}

// escapeLike neutralizes LIKE metacharacters in a user-supplied prefix
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// UpdateOptimistic applies the patch with a single conditional update
// guarded by (id, owner_id, version) and appends the new snapshot in the
// same transaction. The WHERE clause is the compare-and-swap: there is no
// read-then-write window on the final write.
func (r *DeviceProfileRepositoryImpl) UpdateOptimistic(ctx context.Context, ownerID, profileID string, patch models.DeviceProfilePatch, actorID string) (profile *models.DeviceProfile, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return nil, err
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

	updates := map[string]any{
		"version":    gorm.Expr("version + 1"),
		"updated_at": utils.UTCNow(),
	}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.DeviceType != nil {
		updates["device_type"] = *patch.DeviceType
	}
	if patch.Width != nil {
		updates["width"] = *patch.Width
	}
	if patch.Height != nil {
		updates["height"] = *patch.Height
	}
	if patch.UserAgent != nil {
		updates["user_agent"] = *patch.UserAgent
	}
	if patch.Country != nil {
		updates["country"] = *patch.Country
	}
	if patch.CustomHeaders != nil {
		updates["custom_headers"] = patch.CustomHeaders
	}
	if patch.IsTemplate != nil {
		updates["is_template"] = *patch.IsTemplate
	}
	if patch.Visibility != nil {
		updates["visibility"] = *patch.Visibility
	}

	result := db.Model(&models.DeviceProfile{}).
		Where("id = ? AND owner_id = ? AND version = ? AND deleted_at IS NULL",
			profileID, ownerID, patch.ExpectedVersion).
		Updates(updates)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			err = ErrDuplicateName
			return nil, err
		}
		err = result.Error
		return nil, err
	}
	if result.RowsAffected == 0 {
		// Lost the race (or the row vanished). No version is consumed and
		// no snapshot is written.
		err = ErrVersionMismatch
		return nil, err
	}

	var updated models.DeviceProfile
	err = db.Where("id = ?", profileID).First(&updated).Error
	if err != nil {
		return nil, err
	}

	err = db.Create(&models.DeviceProfileVersion{
		ProfileID: updated.ID,
		Version:   updated.Version,
		Snapshot:  models.SnapshotOf(&updated),
		ChangedBy: actorID,
	}).Error
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// SoftDelete sets deleted_at on an owned row. The guard on deleted_at
// keeps the operation idempotent against a concurrent delete; the version
// log is never touched.
func (r *DeviceProfileRepositoryImpl) SoftDelete(ctx context.Context, ownerID, profileID string) error {
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

	err = db.Model(&models.DeviceProfile{}).
		Where("id = ? AND owner_id = ? AND deleted_at IS NULL", profileID, ownerID).
		Update("deleted_at", utils.UTCNow()).Error

	return err
}

// CloneFromTemplate copies a visible template into a new private profile
// owned by ownerID. Field values come from the override when present, the
// template otherwise; a missing name override falls back to
// "<template name> Copy".
func (r *DeviceProfileRepositoryImpl) CloneFromTemplate(ctx context.Context, ownerID, templateID string, overrides *models.ProfileOverrides) (profile *models.DeviceProfile, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return nil, err
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

	txCtx := context.WithValue(ctx, TxContextKey, db)

	template, err := r.ByIDScoped(txCtx, ownerID, templateID)
	if err != nil {
		return nil, err
	}
	if template == nil || !template.IsTemplate {
		return nil, nil
	}

	clone := &models.DeviceProfile{
		OwnerID:       ownerID,
		Name:          template.Name + " Copy",
		DeviceType:    template.DeviceType,
		Width:         template.Width,
		Height:        template.Height,
		UserAgent:     template.UserAgent,
		Country:       template.Country,
		CustomHeaders: template.CustomHeaders,
		IsTemplate:    false,
		Visibility:    models.VisibilityPrivate,
	}
	if overrides != nil {
		applyOverrides(clone, overrides)
	}

	err = r.Create(txCtx, clone, ownerID)
	if err != nil {
		return nil, err
	}

	return clone, nil
}

func applyOverrides(p *models.DeviceProfile, o *models.ProfileOverrides) {
	if o.Name != nil {
		p.Name = *o.Name
	}
	if o.DeviceType != nil {
		p.DeviceType = *o.DeviceType
	}
	if o.Width != nil {
		p.Width = *o.Width
	}
	if o.Height != nil {
		p.Height = *o.Height
	}
	if o.UserAgent != nil {
		p.UserAgent = *o.UserAgent
	}
	if o.Country != nil {
		p.Country = *o.Country
	}
	if o.CustomHeaders != nil {
		p.CustomHeaders = o.CustomHeaders
	}
}
