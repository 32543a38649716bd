package repository

import (
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/models"
	"gorm.io/gorm"
)

// ScopeVisible narrows a device_profiles query to the rows userID may
// read: never soft-deleted, and either owned or, when includeTemplates is
// set, a globally published template. Mutation paths must additionally
// check ownership; visibility alone never grants writes.
func ScopeVisible(db *gorm.DB, userID string, includeTemplates bool) *gorm.DB {
	db = db.Where("deleted_at IS NULL")
	if includeTemplates {
		return db.Where("owner_id = ? OR (is_template AND visibility = ?)", userID, models.VisibilityGlobal)
	}
	return db.Where("owner_id = ?", userID)
}
