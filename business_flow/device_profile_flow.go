// Package businessflow contains the business logic for the device profile service.
package businessflow

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/app/dto"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/models"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/repository"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/utils"
	"gorm.io/gorm"
)

// DeviceProfileFlow handles the device profile business logic
type DeviceProfileFlow interface {
	// CreateProfile returns the serialized response body so idempotent
	// replays stay byte-identical to the first execution. The bool reports
	// whether the body came from the idempotency store.
	CreateProfile(ctx context.Context, ownerID string, req *dto.CreateDeviceProfileRequest, idempotencyKey string) (json.RawMessage, bool, error)
	CloneTemplate(ctx context.Context, ownerID string, req *dto.CloneTemplateRequest, idempotencyKey string) (json.RawMessage, bool, error)
	GetProfile(ctx context.Context, userID, profileID string) (*dto.DeviceProfileResponse, error)
	ListProfiles(ctx context.Context, userID string, query *dto.ListDeviceProfilesQuery) (*dto.ListDeviceProfilesResponse, error)
	UpdateProfile(ctx context.Context, ownerID, profileID string, req *dto.UpdateDeviceProfileRequest) (*dto.DeviceProfileResponse, error)
	DeleteProfile(ctx context.Context, ownerID, profileID string) (*dto.DeleteDeviceProfileResponse, error)
}

type createProfileRequest struct {
	ownerID string
	payload *dto.CreateDeviceProfileRequest
}

type cloneTemplateRequest struct {
	ownerID string
	payload *dto.CloneTemplateRequest
}

type getProfileRequest struct {
	userID    string
	profileID string
}

type listProfilesRequest struct {
	userID string
	query  *dto.ListDeviceProfilesQuery

	// derived by request transformers
	filter models.DeviceProfileFilter
	cursor *models.ProfileCursor
}

type updateProfileRequest struct {
	ownerID   string
	profileID string
	payload   *dto.UpdateDeviceProfileRequest
}

type deleteProfileRequest struct {
	ownerID   string
	profileID string
}

// DeviceProfileFlowImpl implements the device profile business flow
type DeviceProfileFlowImpl struct {
	profileRepo repository.DeviceProfileRepository
	idemStore   repository.IdempotencyStore
	db          *gorm.DB

	createPipeline *Pipeline[*createProfileRequest, *dto.DeviceProfileResponse]
	clonePipeline  *Pipeline[*cloneTemplateRequest, *dto.DeviceProfileResponse]
	getPipeline    *Pipeline[*getProfileRequest, *dto.DeviceProfileResponse]
	listPipeline   *Pipeline[*listProfilesRequest, *dto.ListDeviceProfilesResponse]
	updatePipeline *Pipeline[*updateProfileRequest, *dto.DeviceProfileResponse]
	deletePipeline *Pipeline[*deleteProfileRequest, *dto.DeleteDeviceProfileResponse]
}

// NewDeviceProfileFlow creates a new device profile flow instance
func NewDeviceProfileFlow(
	profileRepo repository.DeviceProfileRepository,
	idemStore repository.IdempotencyStore,
	db *gorm.DB,
) DeviceProfileFlow {
	f := &DeviceProfileFlowImpl{
		profileRepo: profileRepo,
		idemStore:   idemStore,
		db:          db,
	}

	f.createPipeline = &Pipeline[*createProfileRequest, *dto.DeviceProfileResponse]{
		Validators:          []Validator[*createProfileRequest]{ValidatorFunc[*createProfileRequest](f.validateCreate)},
		RequestTransformers: []RequestTransformer[*createProfileRequest]{RequestTransformerFunc[*createProfileRequest](f.normalizeCreate)},
		Executors:           []Executor[*createProfileRequest, *dto.DeviceProfileResponse]{ExecutorFunc[*createProfileRequest, *dto.DeviceProfileResponse](f.executeCreate)},
	}
	f.clonePipeline = &Pipeline[*cloneTemplateRequest, *dto.DeviceProfileResponse]{
		Validators:          []Validator[*cloneTemplateRequest]{ValidatorFunc[*cloneTemplateRequest](f.validateClone)},
		RequestTransformers: []RequestTransformer[*cloneTemplateRequest]{RequestTransformerFunc[*cloneTemplateRequest](f.normalizeClone)},
		Executors:           []Executor[*cloneTemplateRequest, *dto.DeviceProfileResponse]{ExecutorFunc[*cloneTemplateRequest, *dto.DeviceProfileResponse](f.executeClone)},
	}
	f.getPipeline = &Pipeline[*getProfileRequest, *dto.DeviceProfileResponse]{
		Validators: []Validator[*getProfileRequest]{ValidatorFunc[*getProfileRequest](func(ctx context.Context, req *getProfileRequest) error {
			if req.profileID == "" {
				return NewBusinessError("PROFILE_ID_REQUIRED", "Profile id is required", ErrProfileNotFound)
			}
			return nil
		})},
		Executors: []Executor[*getProfileRequest, *dto.DeviceProfileResponse]{ExecutorFunc[*getProfileRequest, *dto.DeviceProfileResponse](f.executeGet)},
	}
	f.listPipeline = &Pipeline[*listProfilesRequest, *dto.ListDeviceProfilesResponse]{
		Validators: []Validator[*listProfilesRequest]{ValidatorFunc[*listProfilesRequest](f.validateList)},
		RequestTransformers: []RequestTransformer[*listProfilesRequest]{
			RequestTransformerFunc[*listProfilesRequest](f.decodeListCursor),
			RequestTransformerFunc[*listProfilesRequest](f.buildListFilter),
		},
		Executors: []Executor[*listProfilesRequest, *dto.ListDeviceProfilesResponse]{ExecutorFunc[*listProfilesRequest, *dto.ListDeviceProfilesResponse](f.executeList)},
	}
	f.updatePipeline = &Pipeline[*updateProfileRequest, *dto.DeviceProfileResponse]{
		Validators:          []Validator[*updateProfileRequest]{ValidatorFunc[*updateProfileRequest](f.validateUpdate)},
		RequestTransformers: []RequestTransformer[*updateProfileRequest]{RequestTransformerFunc[*updateProfileRequest](f.normalizeUpdate)},
		Executors:           []Executor[*updateProfileRequest, *dto.DeviceProfileResponse]{ExecutorFunc[*updateProfileRequest, *dto.DeviceProfileResponse](f.executeUpdate)},
	}
	f.deletePipeline = &Pipeline[*deleteProfileRequest, *dto.DeleteDeviceProfileResponse]{
		Executors: []Executor[*deleteProfileRequest, *dto.DeleteDeviceProfileResponse]{ExecutorFunc[*deleteProfileRequest, *dto.DeleteDeviceProfileResponse](f.executeDelete)},
	}

	return f
}

// CreateProfile handles the complete profile creation process, consulting
// the idempotency store first so a retried create replays the original
// body without re-executing.
func (f *DeviceProfileFlowImpl) CreateProfile(ctx context.Context, ownerID string, req *dto.CreateDeviceProfileRequest, idempotencyKey string) (json.RawMessage, bool, error) {
	if idempotencyKey != "" {
		cached, err := f.idemStore.Get(ctx, ownerID, idempotencyKey)
		if err != nil {
			return nil, false, NewBusinessError("IDEMPOTENCY_LOOKUP_FAILED", "Failed to look up idempotency key", err)
		}
		if cached != nil {
			return cached, true, nil
		}
	}

	resp, err := f.createPipeline.Run(ctx, &createProfileRequest{ownerID: ownerID, payload: req})
	if err != nil {
		return nil, false, err
	}

	raw, err := f.finishCreate(ctx, ownerID, idempotencyKey, resp)
	return raw, false, err
}

// CloneTemplate materializes a new private profile from a visible global
// template. It shares the create path's idempotency semantics.
func (f *DeviceProfileFlowImpl) CloneTemplate(ctx context.Context, ownerID string, req *dto.CloneTemplateRequest, idempotencyKey string) (json.RawMessage, bool, error) {
	if idempotencyKey != "" {
		cached, err := f.idemStore.Get(ctx, ownerID, idempotencyKey)
		if err != nil {
			return nil, false, NewBusinessError("IDEMPOTENCY_LOOKUP_FAILED", "Failed to look up idempotency key", err)
		}
		if cached != nil {
			return cached, true, nil
		}
	}

	resp, err := f.clonePipeline.Run(ctx, &cloneTemplateRequest{ownerID: ownerID, payload: req})
	if err != nil {
		return nil, false, err
	}

	raw, err := f.finishCreate(ctx, ownerID, idempotencyKey, resp)
	return raw, false, err
}

func (f *DeviceProfileFlowImpl) finishCreate(ctx context.Context, ownerID, idempotencyKey string, resp *dto.DeviceProfileResponse) (json.RawMessage, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, NewBusinessError("RESPONSE_ENCODING_FAILED", "Failed to encode response", err)
	}

	if idempotencyKey != "" {
		if err := f.idemStore.Save(ctx, ownerID, idempotencyKey, raw); err != nil {
			return nil, NewBusinessError("IDEMPOTENCY_SAVE_FAILED", "Failed to store idempotency record", err)
		}
	}

	return raw, nil
}

// GetProfile returns a profile visible to userID
func (f *DeviceProfileFlowImpl) GetProfile(ctx context.Context, userID, profileID string) (*dto.DeviceProfileResponse, error) {
	return f.getPipeline.Run(ctx, &getProfileRequest{userID: userID, profileID: profileID})
}

// ListProfiles returns one page of visible profiles
func (f *DeviceProfileFlowImpl) ListProfiles(ctx context.Context, userID string, query *dto.ListDeviceProfilesQuery) (*dto.ListDeviceProfilesResponse, error) {
	return f.listPipeline.Run(ctx, &listProfilesRequest{userID: userID, query: query})
}

// UpdateProfile applies an optimistic update on an owned profile
func (f *DeviceProfileFlowImpl) UpdateProfile(ctx context.Context, ownerID, profileID string, req *dto.UpdateDeviceProfileRequest) (*dto.DeviceProfileResponse, error) {
	return f.updatePipeline.Run(ctx, &updateProfileRequest{ownerID: ownerID, profileID: profileID, payload: req})
}

// DeleteProfile soft-deletes an owned profile
func (f *DeviceProfileFlowImpl) DeleteProfile(ctx context.Context, ownerID, profileID string) (*dto.DeleteDeviceProfileResponse, error) {
	return f.deletePipeline.Run(ctx, &deleteProfileRequest{ownerID: ownerID, profileID: profileID})
}

func (f *DeviceProfileFlowImpl) validateCreate(ctx context.Context, req *createProfileRequest) error {
	if !models.ValidCountry(req.payload.Country) {
		return NewBusinessError("INVALID_COUNTRY", "Country is not supported", ErrInvalidCountry)
	}
	return nil
}

func (f *DeviceProfileFlowImpl) normalizeCreate(ctx context.Context, req *createProfileRequest) (*createProfileRequest, error) {
	req.payload.Country = models.NormalizeCountry(req.payload.Country)
	return req, nil
}

func (f *DeviceProfileFlowImpl) executeCreate(ctx context.Context, req *createProfileRequest) (*dto.DeviceProfileResponse, error) {
	payload := req.payload

	visibility := models.VisibilityPrivate
	if payload.Visibility != "" {
		visibility = models.Visibility(payload.Visibility)
	}

	profile := &models.DeviceProfile{
		OwnerID:       req.ownerID,
		Name:          payload.Name,
		DeviceType:    models.DeviceType(payload.DeviceType),
		Width:         payload.Window.Width,
		Height:        payload.Window.Height,
		UserAgent:     payload.UserAgent,
		Country:       payload.Country,
		CustomHeaders: dto.HeadersToMap(payload.CustomHeaders),
		IsTemplate:    payload.IsTemplate,
		Visibility:    visibility,
	}

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		return f.profileRepo.Create(txCtx, profile, req.ownerID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, NewBusinessError("PROFILE_NAME_CONFLICT", "Profile name already in use", ErrNameConflict)
		}
		return nil, NewBusinessError("PROFILE_CREATION_FAILED", "Profile creation failed", err)
	}

	return dto.FromDeviceProfile(profile), nil
}

func (f *DeviceProfileFlowImpl) validateClone(ctx context.Context, req *cloneTemplateRequest) error {
	if req.payload.TemplateID == "" {
		return NewBusinessError("TEMPLATE_ID_REQUIRED", "Template id is required", ErrTemplateNotFound)
	}
	if o := req.payload.Overrides; o != nil && o.Country != nil && !models.ValidCountry(*o.Country) {
		return NewBusinessError("INVALID_COUNTRY", "Country is not supported", ErrInvalidCountry)
	}
	return nil
}

func (f *DeviceProfileFlowImpl) normalizeClone(ctx context.Context, req *cloneTemplateRequest) (*cloneTemplateRequest, error) {
	if o := req.payload.Overrides; o != nil && o.Country != nil {
		o.Country = utils.ToPtr(models.NormalizeCountry(*o.Country))
	}
	return req, nil
}

func (f *DeviceProfileFlowImpl) executeClone(ctx context.Context, req *cloneTemplateRequest) (*dto.DeviceProfileResponse, error) {
	var overrides *models.ProfileOverrides
	if o := req.payload.Overrides; o != nil {
		overrides = &models.ProfileOverrides{
			Name:          o.Name,
			UserAgent:     o.UserAgent,
			Country:       o.Country,
			CustomHeaders: dto.HeadersToMap(o.CustomHeaders),
		}
		if o.DeviceType != nil {
			overrides.DeviceType = utils.ToPtr(models.DeviceType(*o.DeviceType))
		}
		if o.Window != nil {
			overrides.Width = utils.ToPtr(o.Window.Width)
			overrides.Height = utils.ToPtr(o.Window.Height)
		}
	}

	var clone *models.DeviceProfile
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		var err error
		clone, err = f.profileRepo.CloneFromTemplate(txCtx, req.ownerID, req.payload.TemplateID, overrides)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, NewBusinessError("PROFILE_NAME_CONFLICT", "Profile name already in use", ErrNameConflict)
		}
		return nil, NewBusinessError("TEMPLATE_CLONE_FAILED", "Template clone failed", err)
	}
	if clone == nil {
		return nil, NewBusinessError("TEMPLATE_NOT_FOUND", "Template not found", ErrTemplateNotFound)
	}

	return dto.FromDeviceProfile(clone), nil
}

func (f *DeviceProfileFlowImpl) executeGet(ctx context.Context, req *getProfileRequest) (*dto.DeviceProfileResponse, error) {
	profile, err := f.profileRepo.ByIDScoped(ctx, req.userID, req.profileID)
	if err != nil {
		return nil, NewBusinessError("PROFILE_LOOKUP_FAILED", "Failed to look up profile", err)
	}
	if profile == nil {
		return nil, NewBusinessError("PROFILE_NOT_FOUND", "Profile not found", ErrProfileNotFound)
	}

	return dto.FromDeviceProfile(profile), nil
}

func (f *DeviceProfileFlowImpl) validateList(ctx context.Context, req *listProfilesRequest) error {
	if err := utils.ValidateLimit(req.query.Limit); err != nil {
		return NewBusinessError("INVALID_LIMIT", "Limit is out of range", err)
	}
	if req.query.DeviceType != nil && !models.DeviceType(*req.query.DeviceType).Valid() {
		return NewBusinessError("INVALID_DEVICE_TYPE", "Unknown device type", ErrInvalidDeviceType)
	}
	if req.query.Country != nil && !models.ValidCountry(*req.query.Country) {
		return NewBusinessError("INVALID_COUNTRY", "Country is not supported", ErrInvalidCountry)
	}
	return nil
}

func (f *DeviceProfileFlowImpl) decodeListCursor(ctx context.Context, req *listProfilesRequest) (*listProfilesRequest, error) {
	if req.query.Cursor == nil || *req.query.Cursor == "" {
		return req, nil
	}
	createdAt, id, err := utils.DecodeProfileCursor(*req.query.Cursor)
	if err != nil {
		return nil, NewBusinessError("INVALID_CURSOR", "Pagination cursor is malformed", err)
	}
	req.cursor = &models.ProfileCursor{CreatedAt: createdAt, ID: id}
	return req, nil
}

func (f *DeviceProfileFlowImpl) buildListFilter(ctx context.Context, req *listProfilesRequest) (*listProfilesRequest, error) {
	filter := models.DeviceProfileFilter{
		IsTemplate: req.query.IsTemplate,
		NamePrefix: req.query.NamePrefix,
	}
	if req.query.DeviceType != nil {
		filter.DeviceType = utils.ToPtr(models.DeviceType(*req.query.DeviceType))
	}
	if req.query.Country != nil {
		filter.Country = utils.ToPtr(models.NormalizeCountry(*req.query.Country))
	}
	req.filter = filter
	return req, nil
}

func (f *DeviceProfileFlowImpl) executeList(ctx context.Context, req *listProfilesRequest) (*dto.ListDeviceProfilesResponse, error) {
	page, err := f.profileRepo.ListScopedPage(ctx, req.userID, req.filter, req.query.Limit, req.cursor)
	if err != nil {
		return nil, NewBusinessError("PROFILE_LIST_FAILED", "Failed to list profiles", err)
	}

	resp := &dto.ListDeviceProfilesResponse{
		Data: make([]*dto.DeviceProfileResponse, 0, len(page.Profiles)),
	}
	for _, p := range page.Profiles {
		resp.Data = append(resp.Data, dto.FromDeviceProfile(p))
	}
	if page.Next != nil {
		resp.NextCursor = utils.ToPtr(utils.EncodeProfileCursor(page.Next.CreatedAt, page.Next.ID))
	}

	return resp, nil
}

func (f *DeviceProfileFlowImpl) validateUpdate(ctx context.Context, req *updateProfileRequest) error {
	payload := req.payload
	if payload.Version == nil {
		return NewBusinessError("VERSION_REQUIRED", "Expected version is required", ErrVersionRequired)
	}
	if !payload.HasChanges() {
		return NewBusinessError("NO_UPDATES_PROVIDED", "No fields to update", ErrNoUpdates)
	}
	if payload.Country != nil && !models.ValidCountry(*payload.Country) {
		return NewBusinessError("INVALID_COUNTRY", "Country is not supported", ErrInvalidCountry)
	}
	return nil
}

func (f *DeviceProfileFlowImpl) normalizeUpdate(ctx context.Context, req *updateProfileRequest) (*updateProfileRequest, error) {
	if req.payload.Country != nil {
		req.payload.Country = utils.ToPtr(models.NormalizeCountry(*req.payload.Country))
	}
	return req, nil
}

func (f *DeviceProfileFlowImpl) executeUpdate(ctx context.Context, req *updateProfileRequest) (*dto.DeviceProfileResponse, error) {
	payload := req.payload

	var updated *models.DeviceProfile
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		current, err := f.profileRepo.ByIDScoped(txCtx, req.ownerID, req.profileID)
		if err != nil {
			return err
		}
		// Mutations require ownership, never mere visibility
		if current == nil || current.OwnerID != req.ownerID {
			return ErrProfileNotFound
		}
		if *payload.Version != current.Version {
			return ErrVersionMismatch
		}

		patch := models.DeviceProfilePatch{
			ExpectedVersion: *payload.Version,
			Name:            payload.Name,
			UserAgent:       payload.UserAgent,
			Country:         payload.Country,
			CustomHeaders:   dto.HeadersToMap(payload.CustomHeaders),
		}
		if payload.DeviceType != nil {
			patch.DeviceType = utils.ToPtr(models.DeviceType(*payload.DeviceType))
		}
		if payload.Window != nil {
			patch.Width = utils.ToPtr(payload.Window.Width)
			patch.Height = utils.ToPtr(payload.Window.Height)
		}
		if payload.IsTemplate != nil {
			patch.IsTemplate = payload.IsTemplate
		}
		if payload.Visibility != nil {
			patch.Visibility = utils.ToPtr(models.Visibility(*payload.Visibility))
		}

		updated, err = f.profileRepo.UpdateOptimistic(txCtx, req.ownerID, req.profileID, patch, req.ownerID)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrProfileNotFound):
			return nil, NewBusinessError("PROFILE_NOT_FOUND", "Profile not found", ErrProfileNotFound)
		case errors.Is(err, ErrVersionMismatch), errors.Is(err, repository.ErrVersionMismatch):
			return nil, NewBusinessError("VERSION_MISMATCH", "Profile version mismatch", ErrVersionMismatch)
		case errors.Is(err, repository.ErrDuplicateName):
			return nil, NewBusinessError("PROFILE_NAME_CONFLICT", "Profile name already in use", ErrNameConflict)
		default:
			return nil, NewBusinessError("PROFILE_UPDATE_FAILED", "Profile update failed", err)
		}
	}

	return dto.FromDeviceProfile(updated), nil
}

func (f *DeviceProfileFlowImpl) executeDelete(ctx context.Context, req *deleteProfileRequest) (*dto.DeleteDeviceProfileResponse, error) {
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		current, err := f.profileRepo.ByIDScoped(txCtx, req.ownerID, req.profileID)
		if err != nil {
			return err
		}
		if current == nil || current.OwnerID != req.ownerID {
			return ErrProfileNotFound
		}
		return f.profileRepo.SoftDelete(txCtx, req.ownerID, req.profileID)
	})
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil, NewBusinessError("PROFILE_NOT_FOUND", "Profile not found", ErrProfileNotFound)
		}
		return nil, NewBusinessError("PROFILE_DELETE_FAILED", "Profile delete failed", err)
	}

	return &dto.DeleteDeviceProfileResponse{Deleted: true}, nil
}
