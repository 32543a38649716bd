package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/app/dto"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/app/middleware"
	businessflow "github.com/Ashraf-Taha/zenrows-deviceprofiles/business_flow"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type DeviceProfileHandlerInterface interface {
	CreateProfile(c fiber.Ctx) error
	GetProfile(c fiber.Ctx) error
	ListProfiles(c fiber.Ctx) error
	UpdateProfile(c fiber.Ctx) error
	DeleteProfile(c fiber.Ctx) error
	ListVersions(c fiber.Ctx) error
	GetVersion(c fiber.Ctx) error
}

type DeviceProfileHandler struct {
	profileFlow businessflow.DeviceProfileFlow
	versionFlow businessflow.ProfileVersionFlow
	validator   *validator.Validate
}

func NewDeviceProfileHandler(profileFlow businessflow.DeviceProfileFlow, versionFlow businessflow.ProfileVersionFlow) *DeviceProfileHandler {
	return &DeviceProfileHandler{
		profileFlow: profileFlow,
		versionFlow: versionFlow,
		validator:   newValidator(),
	}
}

func (h *DeviceProfileHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *DeviceProfileHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func (h *DeviceProfileHandler) validateStruct(c fiber.Ctx, req any) error {
	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}
	return nil
}

// CreateProfile creates a new profile from scratch or from a template.
// The two request shapes share one endpoint; the presence of template_id
// selects the clone path.
func (h *DeviceProfileHandler) CreateProfile(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found in context", "MISSING_USER", nil)
	}

	var probe struct {
		TemplateID *string `json:"template_id"`
	}
	if err := json.Unmarshal(c.Body(), &probe); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	idempotencyKey := c.Get("Idempotency-Key")
	ctx := h.createRequestContext(c, "/v1/device-profiles")

	var raw json.RawMessage
	var replayed bool
	var err error
	if probe.TemplateID != nil {
		var req dto.CloneTemplateRequest
		if bindErr := c.Bind().JSON(&req); bindErr != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", bindErr.Error())
		}
		if resErr := h.validateStruct(c, &req); resErr != nil {
			return resErr
		}
		raw, replayed, err = h.profileFlow.CloneTemplate(ctx, userID, &req, idempotencyKey)
	} else {
		var req dto.CreateDeviceProfileRequest
		if bindErr := c.Bind().JSON(&req); bindErr != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", bindErr.Error())
		}
		if resErr := h.validateStruct(c, &req); resErr != nil {
			return resErr
		}
		raw, replayed, err = h.profileFlow.CreateProfile(ctx, userID, &req, idempotencyKey)
	}
	if err != nil {
		return h.profileErrorResponse(c, err, "Profile creation failed", "PROFILE_CREATION_FAILED")
	}
	if replayed {
		middleware.RecordIdempotentReplay()
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Profile created successfully", raw)
}

// GetProfile returns a single visible profile. The version number doubles
// as the ETag, so an If-None-Match hit short-circuits to 304.
func (h *DeviceProfileHandler) GetProfile(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found in context", "MISSING_USER", nil)
	}

	profileID := c.Params("id")
	res, err := h.profileFlow.GetProfile(h.createRequestContext(c, "/v1/device-profiles/:id"), userID, profileID)
	if err != nil {
		return h.profileErrorResponse(c, err, "Failed to get profile", "GET_PROFILE_FAILED")
	}

	etag := versionETag(res.Version)
	c.Set(fiber.HeaderETag, etag)
	if c.Get(fiber.HeaderIfNoneMatch) == etag {
		return c.SendStatus(fiber.StatusNotModified)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Profile retrieved successfully", res)
}

// ListProfiles returns one page of visible profiles
func (h *DeviceProfileHandler) ListProfiles(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found in context", "MISSING_USER", nil)
	}

	query, err := parseListQuery(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_QUERY", err.Error())
	}

	res, err := h.profileFlow.ListProfiles(h.createRequestContext(c, "/v1/device-profiles"), userID, query)
	if err != nil {
		return h.profileErrorResponse(c, err, "Failed to list profiles", "LIST_PROFILES_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Profiles retrieved successfully", res)
}

// UpdateProfile applies an optimistic partial update to an owned profile
func (h *DeviceProfileHandler) UpdateProfile(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found in context", "MISSING_USER", nil)
	}

	var req dto.UpdateDeviceProfileRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if resErr := h.validateStruct(c, &req); resErr != nil {
		return resErr
	}

	profileID := c.Params("id")
	res, err := h.profileFlow.UpdateProfile(h.createRequestContext(c, "/v1/device-profiles/:id"), userID, profileID, &req)
	if err != nil {
		if businessflow.IsPreconditionFailed(err) {
			middleware.RecordVersionConflict()
		}
		return h.profileErrorResponse(c, err, "Profile update failed", "PROFILE_UPDATE_FAILED")
	}

	c.Set(fiber.HeaderETag, versionETag(res.Version))
	return h.SuccessResponse(c, fiber.StatusOK, "Profile updated successfully", res)
}

// DeleteProfile soft-deletes an owned profile
func (h *DeviceProfileHandler) DeleteProfile(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found in context", "MISSING_USER", nil)
	}

	profileID := c.Params("id")
	res, err := h.profileFlow.DeleteProfile(h.createRequestContext(c, "/v1/device-profiles/:id"), userID, profileID)
	if err != nil {
		return h.profileErrorResponse(c, err, "Profile delete failed", "PROFILE_DELETE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Profile deleted successfully", res)
}

// ListVersions returns the version history of a visible profile. Without
// pagination parameters the full history is returned; limit or cursor
// switches to paged mode.
func (h *DeviceProfileHandler) ListVersions(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found in context", "MISSING_USER", nil)
	}

	profileID := c.Params("id")
	ctx := h.createRequestContext(c, "/v1/device-profiles/:id/versions")

	limitParam := c.Query("limit")
	cursorParam := c.Query("cursor")

	var res *dto.ListVersionsResponse
	var err error
	if limitParam == "" && cursorParam == "" {
		res, err = h.versionFlow.ListVersions(ctx, userID, profileID)
	} else {
		limit := utils.DefaultPageLimit
		if limitParam != "" {
			limit, err = strconv.Atoi(limitParam)
			if err != nil {
				return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid limit", "INVALID_QUERY", nil)
			}
		}
		var cursor *string
		if cursorParam != "" {
			cursor = &cursorParam
		}
		res, err = h.versionFlow.ListVersionsPage(ctx, userID, profileID, limit, cursor)
	}
	if err != nil {
		return h.profileErrorResponse(c, err, "Failed to list versions", "LIST_VERSIONS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Versions retrieved successfully", res)
}

// GetVersion returns one historical snapshot of a visible profile
func (h *DeviceProfileHandler) GetVersion(c fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found in context", "MISSING_USER", nil)
	}

	version, err := strconv.Atoi(c.Params("version"))
	if err != nil || version < 1 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid version number", "INVALID_VERSION", nil)
	}

	profileID := c.Params("id")
	res, err := h.versionFlow.GetVersion(h.createRequestContext(c, "/v1/device-profiles/:id/versions/:version"), userID, profileID, version)
	if err != nil {
		return h.profileErrorResponse(c, err, "Failed to get version", "GET_VERSION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Version retrieved successfully", res)
}

// profileErrorResponse maps business errors onto the response taxonomy
func (h *DeviceProfileHandler) profileErrorResponse(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	switch {
	case businessflow.IsTemplateNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Template not found", "TEMPLATE_NOT_FOUND", nil)
	case businessflow.IsVersionNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Version not found", "VERSION_NOT_FOUND", nil)
	case businessflow.IsNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Profile not found", "PROFILE_NOT_FOUND", nil)
	case businessflow.IsPreconditionFailed(err):
		return h.ErrorResponse(c, fiber.StatusPreconditionFailed, "Profile version mismatch", "VERSION_MISMATCH", nil)
	case businessflow.IsConflict(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Profile name already in use", "PROFILE_NAME_CONFLICT", nil)
	case businessflow.IsInvalidInput(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request", "INVALID_REQUEST", errorCode(err))
	case businessflow.IsUnauthorized(err):
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED", nil)
	default:
		log.Println(fallbackMessage, err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
	}
}

func errorCode(err error) any {
	var bizErr *businessflow.BusinessError
	if errors.As(err, &bizErr) {
		return bizErr.Code
	}
	return nil
}

func versionETag(version int) string {
	return fmt.Sprintf("%q", strconv.Itoa(version))
}

func parseListQuery(c fiber.Ctx) (*dto.ListDeviceProfilesQuery, error) {
	query := &dto.ListDeviceProfilesQuery{Limit: utils.DefaultPageLimit}

	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("limit must be an integer")
		}
		query.Limit = limit
	}
	if v := c.Query("is_template"); v != "" {
		isTemplate, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("is_template must be a boolean")
		}
		query.IsTemplate = &isTemplate
	}
	if v := c.Query("device_type"); v != "" {
		deviceType := v
		query.DeviceType = &deviceType
	}
	if v := c.Query("country"); v != "" {
		country := v
		query.Country = &country
	}
	if v := c.Query("q"); v != "" {
		prefix := v
		query.NamePrefix = &prefix
	}
	if v := c.Query("cursor"); v != "" {
		cursor := v
		query.Cursor = &cursor
	}

	return query, nil
}

func (h *DeviceProfileHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *DeviceProfileHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
