// Package testing provides test utilities and database setup for testing the device profile service
package testing

import (
	"fmt"
	"math/rand"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/app/services"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates a user with a unique email
func (tf *TestFixtures) CreateTestUser() (*models.User, error) {
	user := &models.User{
		Email: fmt.Sprintf("user.%d.%d@example.com", rand.Intn(1000000), rand.Intn(1000000)),
	}

	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}

	return user, nil
}

// CreateTestAPIKey mints a raw key for the user, stores its hash, and
// returns both the raw key and the stored record
func (tf *TestFixtures) CreateTestAPIKey(userID string) (string, *models.APIKey, error) {
	rawKey := "zr_test_" + uuid.New().String()

	hash, err := services.HashKey(rawKey, bcrypt.MinCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash test API key: %w", err)
	}

	key := &models.APIKey{
		UserID:    userID,
		KeyHash:   hash,
		KeyPrefix: services.KeyPrefix(rawKey),
		Name:      "test key",
	}

	if err := tf.DB.DB.Create(key).Error; err != nil {
		return "", nil, fmt.Errorf("failed to create test API key: %w", err)
	}

	return rawKey, key, nil
}

// ProfileOption mutates a profile fixture before it is inserted
type ProfileOption func(*models.DeviceProfile)

// WithName sets the profile name
func WithName(name string) ProfileOption {
	return func(p *models.DeviceProfile) { p.Name = name }
}

// WithDeviceType sets the device type
func WithDeviceType(t models.DeviceType) ProfileOption {
	return func(p *models.DeviceProfile) { p.DeviceType = t }
}

// WithCountry sets the country code
func WithCountry(country string) ProfileOption {
	return func(p *models.DeviceProfile) { p.Country = country }
}

// WithHeaders sets the custom headers
func WithHeaders(headers models.HeaderMap) ProfileOption {
	return func(p *models.DeviceProfile) { p.CustomHeaders = headers }
}

// AsTemplate marks the profile as a template with the given visibility
func AsTemplate(visibility models.Visibility) ProfileOption {
	return func(p *models.DeviceProfile) {
		p.IsTemplate = true
		p.Visibility = visibility
	}
}

// CreateTestProfile inserts a profile owned by ownerID together with its
// version 1 snapshot row, the same shape the repository produces on create
func (tf *TestFixtures) CreateTestProfile(ownerID string, opts ...ProfileOption) (*models.DeviceProfile, error) {
	profile := &models.DeviceProfile{
		OwnerID:    ownerID,
		Name:       fmt.Sprintf("Profile %d", rand.Intn(1000000)),
		DeviceType: models.DeviceTypeDesktop,
		Width:      1280,
		Height:     720,
		UserAgent:  "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Country:    "us",
		Visibility: models.VisibilityPrivate,
	}

	for _, opt := range opts {
		opt(profile)
	}

	if err := tf.DB.DB.Create(profile).Error; err != nil {
		return nil, fmt.Errorf("failed to create test profile: %w", err)
	}

	version := &models.DeviceProfileVersion{
		ProfileID: profile.ID,
		Version:   profile.Version,
		Snapshot:  models.SnapshotOf(profile),
		ChangedBy: ownerID,
	}
	if err := tf.DB.DB.Create(version).Error; err != nil {
		return nil, fmt.Errorf("failed to create test profile version: %w", err)
	}

	return profile, nil
}

// CreateTestTemplate inserts a globally visible template owned by ownerID
func (tf *TestFixtures) CreateTestTemplate(ownerID string, opts ...ProfileOption) (*models.DeviceProfile, error) {
	opts = append([]ProfileOption{AsTemplate(models.VisibilityGlobal)}, opts...)
	return tf.CreateTestProfile(ownerID, opts...)
}
