package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/utils"
	"gorm.io/gorm"
)

// ProfileSnapshot is the full denormalized copy of a profile's fields at a
// given version, stored as a JSON column on the version row.
type ProfileSnapshot struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Name          string     `json:"name"`
	DeviceType    DeviceType `json:"device_type"`
	Width         int        `json:"width"`
	Height        int        `json:"height"`
	UserAgent     string     `json:"user_agent"`
	Country       string     `json:"country"`
	CustomHeaders HeaderMap  `json:"custom_headers,omitempty"`
	IsTemplate    bool       `json:"is_template"`
	Visibility    Visibility `json:"visibility"`
	Version       int        `json:"version"`
}

// Value implements the driver.Valuer interface for ProfileSnapshot
func (s ProfileSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface for ProfileSnapshot
func (s *ProfileSnapshot) Scan(value any) error {
	if value == nil {
		*s = ProfileSnapshot{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ProfileSnapshot", value)
	}

	return json.Unmarshal(bytes, s)
}

// SnapshotOf captures the current state of a profile
func SnapshotOf(p *DeviceProfile) ProfileSnapshot {
	return ProfileSnapshot{
		ID:            p.ID,
		OwnerID:       p.OwnerID,
		Name:          p.Name,
		DeviceType:    p.DeviceType,
		Width:         p.Width,
		Height:        p.Height,
		UserAgent:     p.UserAgent,
		Country:       p.Country,
		CustomHeaders: p.CustomHeaders,
		IsTemplate:    p.IsTemplate,
		Visibility:    p.Visibility,
		Version:       p.Version,
	}
}

// DeviceProfileVersion is an immutable snapshot row keyed by
// (profile id, version number). Rows are created atomically with the
// mutation they record and are never updated or deleted, even when the
// parent profile is soft-deleted.
type DeviceProfileVersion struct {
	ProfileID string          `gorm:"primaryKey;size:64" json:"profile_id"`
	Version   int             `gorm:"primaryKey" json:"version"`
	Snapshot  ProfileSnapshot `gorm:"type:jsonb;not null" json:"snapshot"`
	ChangedBy string          `gorm:"size:64;not null" json:"changed_by"`
	ChangedAt time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"changed_at"`
}

// TableName returns the table name for the model
func (DeviceProfileVersion) TableName() string {
	return "device_profile_versions"
}

// BeforeCreate is called before creating a new record
func (v *DeviceProfileVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ChangedAt.IsZero() {
		v.ChangedAt = utils.UTCNow()
	}
	return nil
}
