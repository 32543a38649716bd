// Package models contains domain entities and business models for the device profile service
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeviceType represents the kind of device a profile emulates
type DeviceType string

const (
	DeviceTypeDesktop DeviceType = "desktop"
	DeviceTypeMobile  DeviceType = "mobile"
)

// String returns the string representation of the device type
func (t DeviceType) String() string {
	return string(t)
}

// Valid checks if the device type is valid
func (t DeviceType) Valid() bool {
	switch t {
	case DeviceTypeDesktop, DeviceTypeMobile:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for DeviceType
func (t *DeviceType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = DeviceType(v)
	case []byte:
		*t = DeviceType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into DeviceType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for DeviceType
func (t DeviceType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid DeviceType: %s", t)
	}
	return string(t), nil
}

// Visibility controls whether a profile is reachable beyond its owner
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityGlobal  Visibility = "global"
)

// String returns the string representation of the visibility
func (v Visibility) String() string {
	return string(v)
}

// Valid checks if the visibility is valid
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityGlobal:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for Visibility
func (v *Visibility) Scan(value any) error {
	if value == nil {
		*v = ""
		return nil
	}

	switch val := value.(type) {
	case string:
		*v = Visibility(val)
	case []byte:
		*v = Visibility(string(val))
	default:
		return fmt.Errorf("cannot scan %T into Visibility", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for Visibility
func (v Visibility) Value() (driver.Value, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("invalid Visibility: %s", v)
	}
	return string(v), nil
}

// AllowedCountries is the fixed allow-list of ISO-3166 alpha-2 codes a
// profile may emulate.
var AllowedCountries = map[string]struct{}{
	"us": {},
	"gb": {},
	"de": {},
	"fr": {},
	"es": {},
	"it": {},
	"ca": {},
	"au": {},
}

// ValidCountry reports whether code is on the allow-list after trimming
// and lowercasing.
func ValidCountry(code string) bool {
	_, ok := AllowedCountries[NormalizeCountry(code)]
	return ok
}

// NormalizeCountry trims and lowercases a country code
func NormalizeCountry(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// HeaderMap holds the custom request headers of a profile as a JSON column
type HeaderMap map[string]string

// Value implements the driver.Valuer interface for HeaderMap
func (h HeaderMap) Value() (driver.Value, error) {
	if h == nil {
		return nil, nil
	}
	return json.Marshal(h)
}

// Scan implements the sql.Scanner interface for HeaderMap
func (h *HeaderMap) Scan(value any) error {
	if value == nil {
		*h = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into HeaderMap", value)
	}

	return json.Unmarshal(bytes, h)
}

// DeviceProfile represents a device profile in the database
type DeviceProfile struct {
	ID            string     `gorm:"primaryKey;size:64" json:"id"`
	OwnerID       string     `gorm:"size:64;not null;index:idx_device_profiles_owner" json:"owner_id"`
	Name          string     `gorm:"size:255;not null" json:"name"`
	DeviceType    DeviceType `gorm:"type:device_type;not null;index:idx_device_profiles_type" json:"device_type"`
	Width         int        `gorm:"not null" json:"width"`
	Height        int        `gorm:"not null" json:"height"`
	UserAgent     string     `gorm:"type:text;not null" json:"user_agent"`
	Country       string     `gorm:"size:2;not null;index:idx_device_profiles_country" json:"country"`
	CustomHeaders HeaderMap  `gorm:"type:jsonb" json:"custom_headers,omitempty"`
	IsTemplate    bool       `gorm:"not null;default:false;index:idx_device_profiles_template" json:"is_template"`
	Visibility    Visibility `gorm:"type:visibility;not null;default:'private'" json:"visibility"`
	Version       int        `gorm:"not null;default:1" json:"version"`
	CreatedAt     time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_device_profiles_created_at" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`

	// Relations
	Owner    *User                  `gorm:"foreignKey:OwnerID;references:ID" json:"owner,omitempty"`
	Versions []DeviceProfileVersion `gorm:"foreignKey:ProfileID" json:"versions,omitempty"`
}

// TableName returns the table name for the model
func (DeviceProfile) TableName() string {
	return "device_profiles"
}

// BeforeCreate is called before creating a new record
func (p *DeviceProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = NewProfileID()
	}
	if p.Visibility == "" {
		p.Visibility = VisibilityPrivate
	}
	if p.Version == 0 {
		p.Version = 1
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = utils.UTCNow()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	return nil
}

// IsDeleted reports whether the profile has been soft-deleted
func (p *DeviceProfile) IsDeleted() bool {
	return p.DeletedAt != nil
}

// NewProfileID generates a new profile identifier
func NewProfileID() string {
	return "prof_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// DeviceProfileFilter represents filter criteria for device profile listings.
// NamePrefix matches case-insensitively against the start of the name.
type DeviceProfileFilter struct {
	IsTemplate *bool       `json:"is_template,omitempty"`
	DeviceType *DeviceType `json:"device_type,omitempty"`
	Country    *string     `json:"country,omitempty"`
	NamePrefix *string     `json:"name_prefix,omitempty"`
}

// ProfileCursor is the continuation point of a profile listing: the
// (created_at, id) pair of the last row returned.
type ProfileCursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

// DeviceProfilePatch carries the fields of an optimistic update. Nil
// fields are left as they are; ExpectedVersion is the version the caller
// last observed.
type DeviceProfilePatch struct {
	ExpectedVersion int
	Name            *string
	DeviceType      *DeviceType
	Width           *int
	Height          *int
	UserAgent       *string
	Country         *string
	CustomHeaders   HeaderMap
	IsTemplate      *bool
	Visibility      *Visibility
}

// Empty reports whether the patch changes nothing
func (p DeviceProfilePatch) Empty() bool {
	return p.Name == nil && p.DeviceType == nil && p.Width == nil && p.Height == nil &&
		p.UserAgent == nil && p.Country == nil && p.CustomHeaders == nil &&
		p.IsTemplate == nil && p.Visibility == nil
}

// ProfileOverrides are the per-field replacements applied while cloning a
// template; nil fields fall back to the template's values.
type ProfileOverrides struct {
	Name          *string
	DeviceType    *DeviceType
	Width         *int
	Height        *int
	UserAgent     *string
	Country       *string
	CustomHeaders HeaderMap
}
