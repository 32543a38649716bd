package businessflow

import (
	"context"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/app/dto"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/repository"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/utils"
)

// ProfileVersionFlow exposes the immutable version log of a profile
type ProfileVersionFlow interface {
	ListVersions(ctx context.Context, userID, profileID string) (*dto.ListVersionsResponse, error)
	ListVersionsPage(ctx context.Context, userID, profileID string, limit int, cursor *string) (*dto.ListVersionsResponse, error)
	GetVersion(ctx context.Context, userID, profileID string, version int) (*dto.VersionSnapshotResponse, error)
}

// ProfileVersionFlowImpl implements the version history business flow
type ProfileVersionFlowImpl struct {
	profileRepo repository.DeviceProfileRepository
	versionRepo repository.DeviceProfileVersionRepository
}

// NewProfileVersionFlow creates a new version history flow instance
func NewProfileVersionFlow(
	profileRepo repository.DeviceProfileRepository,
	versionRepo repository.DeviceProfileVersionRepository,
) ProfileVersionFlow {
	return &ProfileVersionFlowImpl{
		profileRepo: profileRepo,
		versionRepo: versionRepo,
	}
}

// requireVisible resolves the parent profile under userID's scope. Version
// queries never reveal more than the profile itself would.
func (f *ProfileVersionFlowImpl) requireVisible(ctx context.Context, userID, profileID string) error {
	profile, err := f.profileRepo.ByIDScoped(ctx, userID, profileID)
	if err != nil {
		return NewBusinessError("PROFILE_LOOKUP_FAILED", "Failed to look up profile", err)
	}
	if profile == nil {
		return NewBusinessError("PROFILE_NOT_FOUND", "Profile not found", ErrProfileNotFound)
	}
	return nil
}

// ListVersions returns the complete history of a visible profile in
// ascending version order
func (f *ProfileVersionFlowImpl) ListVersions(ctx context.Context, userID, profileID string) (*dto.ListVersionsResponse, error) {
	if err := f.requireVisible(ctx, userID, profileID); err != nil {
		return nil, err
	}

	versions, err := f.versionRepo.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, NewBusinessError("VERSION_LIST_FAILED", "Failed to list versions", err)
	}

	resp := &dto.ListVersionsResponse{Data: make([]*dto.VersionMeta, 0, len(versions))}
	for _, v := range versions {
		resp.Data = append(resp.Data, &dto.VersionMeta{
			Version:   v.Version,
			ChangedBy: v.ChangedBy,
			ChangedAt: v.ChangedAt,
		})
	}
	return resp, nil
}

// ListVersionsPage returns one page of history continuing strictly after
// the cursor, which is an opaque encoding of the last seen version number
func (f *ProfileVersionFlowImpl) ListVersionsPage(ctx context.Context, userID, profileID string, limit int, cursor *string) (*dto.ListVersionsResponse, error) {
	if err := utils.ValidateLimit(limit); err != nil {
		return nil, NewBusinessError("INVALID_LIMIT", "Limit is out of range", err)
	}

	var afterVersion *int
	if cursor != nil && *cursor != "" {
		v, err := utils.DecodeVersionCursor(*cursor)
		if err != nil {
			return nil, NewBusinessError("INVALID_CURSOR", "Pagination cursor is malformed", err)
		}
		afterVersion = &v
	}

	if err := f.requireVisible(ctx, userID, profileID); err != nil {
		return nil, err
	}

	page, err := f.versionRepo.ListPage(ctx, profileID, limit, afterVersion)
	if err != nil {
		return nil, NewBusinessError("VERSION_LIST_FAILED", "Failed to list versions", err)
	}

	resp := &dto.ListVersionsResponse{Data: make([]*dto.VersionMeta, 0, len(page.Versions))}
	for _, v := range page.Versions {
		resp.Data = append(resp.Data, &dto.VersionMeta{
			Version:   v.Version,
			ChangedBy: v.ChangedBy,
			ChangedAt: v.ChangedAt,
		})
	}
	if page.Next != nil {
		resp.NextCursor = utils.ToPtr(utils.EncodeVersionCursor(*page.Next))
	}
	return resp, nil
}

// GetVersion returns one historical snapshot of a visible profile. A
// missing snapshot on an existing profile is reported distinctly from a
// missing profile.
func (f *ProfileVersionFlowImpl) GetVersion(ctx context.Context, userID, profileID string, version int) (*dto.VersionSnapshotResponse, error) {
	if err := f.requireVisible(ctx, userID, profileID); err != nil {
		return nil, err
	}

	row, err := f.versionRepo.ByVersion(ctx, profileID, version)
	if err != nil {
		return nil, NewBusinessError("VERSION_LOOKUP_FAILED", "Failed to look up version", err)
	}
	if row == nil {
		return nil, NewBusinessError("VERSION_NOT_FOUND", "Version not found", ErrVersionNotFound)
	}

	return dto.FromProfileVersion(row), nil
}
