package repository

import (
	"context"
	"errors"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/models"
	"gorm.io/gorm"
)

// DeviceProfileVersionRepositoryImpl implements the DeviceProfileVersionRepository interface
type DeviceProfileVersionRepositoryImpl struct {
	base
}

// NewDeviceProfileVersionRepository creates a new version repository
func NewDeviceProfileVersionRepository(db *gorm.DB) DeviceProfileVersionRepository {
	return &DeviceProfileVersionRepositoryImpl{base{DB: db}}
}

// ListByProfile returns all snapshot rows of a profile ordered by version ascending
func (r *DeviceProfileVersionRepositoryImpl) ListByProfile(ctx context.Context, profileID string) ([]*models.DeviceProfileVersion, error) {
	db := r.getDB(ctx)

	var rows []*models.DeviceProfileVersion
	err := db.Where("profile_id = ?", profileID).
		Order("version ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// ByVersion returns one snapshot row, nil when that version was never written
func (r *DeviceProfileVersionRepositoryImpl) ByVersion(ctx context.Context, profileID string, version int) (*models.DeviceProfileVersion, error) {
	db := r.getDB(ctx)

	var row models.DeviceProfileVersion
	err := db.Where("profile_id = ? AND version = ?", profileID, version).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &row, nil
}

// ListPage returns one slice of the version log ordered by version
// ascending, continuing strictly after afterVersion when given. The
// limit+1 fetch and trim mirror profile listing.
func (r *DeviceProfileVersionRepositoryImpl) ListPage(ctx context.Context, profileID string, limit int, afterVersion *int) (*VersionPage, error) {
	db := r.getDB(ctx)

	query := db.Where("profile_id = ?", profileID)
	if afterVersion != nil {
		query = query.Where("version > ?", *afterVersion)
	}

	var rows []*models.DeviceProfileVersion
	err := query.
		Order("version ASC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	page := &VersionPage{Versions: rows}
	if len(rows) > limit {
		page.Versions = rows[:limit]
		last := page.Versions[limit-1].Version
		page.Next = &last
	}

	return page, nil
}
