// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"encoding/json"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

// ProfilePage is one slice of a profile listing plus the continuation
// point, nil when the collection is exhausted.
type ProfilePage struct {
	Profiles []*models.DeviceProfile
	Next     *models.ProfileCursor
}

// VersionPage is one slice of a version listing. Next is the last
// returned version number, nil at the end of the log.
type VersionPage struct {
	Versions []*models.DeviceProfileVersion
	Next     *int
}

// DeviceProfileRepository owns profile rows and their append-only version
// log. Every mutation that changes a profile writes its snapshot in the
// same transaction.
type DeviceProfileRepository interface {
	// Create persists a new profile at version 1 together with its first
	// snapshot. A name collision surfaces as ErrDuplicateName.
	Create(ctx context.Context, profile *models.DeviceProfile, actorID string) error

	// ByIDScoped returns the profile if it is visible to userID per the
	// scoping predicate, nil otherwise.
	ByIDScoped(ctx context.Context, userID, profileID string) (*models.DeviceProfile, error)

	// ListScopedPage returns visible profiles ordered by (created_at, id)
	// ascending, continuing strictly after the cursor when one is given.
	ListScopedPage(ctx context.Context, userID string, filter models.DeviceProfileFilter, limit int, cursor *models.ProfileCursor) (*ProfilePage, error)

	// UpdateOptimistic applies the patch through a single conditional
	// update guarded by the expected version and appends the new
	// snapshot atomically. A lost race returns ErrVersionMismatch.
	UpdateOptimistic(ctx context.Context, ownerID, profileID string, patch models.DeviceProfilePatch, actorID string) (*models.DeviceProfile, error)

	// SoftDelete marks an owned, visible profile as deleted. The version
	// log is left untouched.
	SoftDelete(ctx context.Context, ownerID, profileID string) error

	// CloneFromTemplate copies a visible global template into a new
	// private profile owned by ownerID, at version 1 with its snapshot.
	CloneFromTemplate(ctx context.Context, ownerID, templateID string, overrides *models.ProfileOverrides) (*models.DeviceProfile, error)
}

// DeviceProfileVersionRepository reads the immutable snapshot log. Callers
// establish visibility of the parent profile first; these queries do not
// rescope.
type DeviceProfileVersionRepository interface {
	ListByProfile(ctx context.Context, profileID string) ([]*models.DeviceProfileVersion, error)
	ByVersion(ctx context.Context, profileID string, version int) (*models.DeviceProfileVersion, error)
	ListPage(ctx context.Context, profileID string, limit int, afterVersion *int) (*VersionPage, error)
}

// APIKeyRepository persists hashed credentials and looks up candidates
// for authentication
type APIKeyRepository interface {
	ByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	Save(ctx context.Context, key *models.APIKey) error
}

// IdempotencyStore maps (owner, client key) to a previously produced
// response body. Get returns nil when no live record exists.
type IdempotencyStore interface {
	Get(ctx context.Context, ownerID, key string) (json.RawMessage, error)
	Save(ctx context.Context, ownerID, key string, response json.RawMessage) error
}
