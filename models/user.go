package models

import (
	"strings"
	"time"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a tenant of the device profile service. Identity issuance lives
// outside this service; only the opaque id and email are stored.
type User struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Email     string    `gorm:"size:255;not null;uniqueIndex:uk_users_email" json:"email"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	APIKeys []APIKey `gorm:"foreignKey:UserID" json:"api_keys,omitempty"`
}

// TableName returns the table name for the model
func (User) TableName() string {
	return "users"
}

// BeforeCreate is called before creating a new record
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = NewUserID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = utils.UTCNow()
	}
	return nil
}

// NewUserID generates a new user identifier
func NewUserID() string {
	return "user_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// APIKey is a hashed credential belonging to a user. The raw key is never
// stored; KeyPrefix narrows the candidate set before the hash comparison.
type APIKey struct {
	ID        string     `gorm:"primaryKey;size:64" json:"id"`
	UserID    string     `gorm:"size:64;not null;index:idx_api_keys_user" json:"user_id"`
	KeyHash   []byte     `gorm:"not null" json:"-"`
	KeyPrefix string     `gorm:"size:12;not null;index:idx_api_keys_prefix" json:"-"`
	Name      string     `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`

	// Relations
	User *User `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
}

// TableName returns the table name for the model
func (APIKey) TableName() string {
	return "api_keys"
}

// BeforeCreate is called before creating a new record
func (k *APIKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = "key_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = utils.UTCNow()
	}
	return nil
}

// IsRevoked reports whether the key has been revoked
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}
