package dto

import (
	"sort"
	"strings"
	"time"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/models"
)

// ReservedHeaderNames are request headers a profile may never override
var ReservedHeaderNames = map[string]struct{}{
	"host":           {},
	"content-length": {},
}

// Window is the viewport of a device profile
type Window struct {
	Width  int `json:"width" validate:"required,gte=1,lte=10000"`
	Height int `json:"height" validate:"required,gte=1,lte=10000"`
}

// HeaderKV is one custom header as exposed on the wire. Keys are
// normalized to lower case at the boundary; reserved and empty names are
// rejected there too, never at projection time.
type HeaderKV struct {
	Key   string `json:"key" validate:"required,header_name"`
	Value string `json:"value"`
}

// NormalizeHeaderKey lowercases and trims a header name
func NormalizeHeaderKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// HeadersToMap folds the wire list into the stored mapping, nil for an
// absent list
func HeadersToMap(headers []HeaderKV) models.HeaderMap {
	if headers == nil {
		return nil
	}
	out := make(models.HeaderMap, len(headers))
	for _, h := range headers {
		out[NormalizeHeaderKey(h.Key)] = h.Value
	}
	return out
}

// HeadersFromMap expands the stored mapping into an ordered wire list.
// Keys are emitted in lexical order so identical versions project to
// identical representations.
func HeadersFromMap(m models.HeaderMap) []HeaderKV {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]HeaderKV, 0, len(keys))
	for _, k := range keys {
		out = append(out, HeaderKV{Key: k, Value: m[k]})
	}
	return out
}

// CreateDeviceProfileRequest is the payload for creating a profile
type CreateDeviceProfileRequest struct {
	Name          string     `json:"name" validate:"required,max=255"`
	DeviceType    string     `json:"device_type" validate:"required,oneof=desktop mobile"`
	Window        *Window    `json:"window" validate:"required"`
	UserAgent     string     `json:"user_agent" validate:"required"`
	Country       string     `json:"country" validate:"required,country_allowed"`
	CustomHeaders []HeaderKV `json:"custom_headers,omitempty" validate:"omitempty,dive"`
	IsTemplate    bool       `json:"is_template"`
	Visibility    string     `json:"visibility,omitempty" validate:"omitempty,oneof=private global"`
}

// UpdateDeviceProfileRequest is the payload for an optimistic update.
// Version is the expected current version; omitting it is a client error
// distinct from a version mismatch.
type UpdateDeviceProfileRequest struct {
	Name          *string    `json:"name,omitempty" validate:"omitempty,max=255"`
	DeviceType    *string    `json:"device_type,omitempty" validate:"omitempty,oneof=desktop mobile"`
	Window        *Window    `json:"window,omitempty"`
	UserAgent     *string    `json:"user_agent,omitempty"`
	Country       *string    `json:"country,omitempty" validate:"omitempty,country_allowed"`
	CustomHeaders []HeaderKV `json:"custom_headers,omitempty" validate:"omitempty,dive"`
	IsTemplate    *bool      `json:"is_template,omitempty"`
	Visibility    *string    `json:"visibility,omitempty" validate:"omitempty,oneof=private global"`
	Version       *int       `json:"version,omitempty" validate:"omitempty,gte=1"`
}

// HasChanges reports whether any field besides Version is present
func (r *UpdateDeviceProfileRequest) HasChanges() bool {
	return r.Name != nil || r.DeviceType != nil || r.Window != nil ||
		r.UserAgent != nil || r.Country != nil || r.CustomHeaders != nil ||
		r.IsTemplate != nil || r.Visibility != nil
}

// CloneOverrides are per-field replacements applied while cloning a template
type CloneOverrides struct {
	Name          *string    `json:"name,omitempty" validate:"omitempty,max=255"`
	DeviceType    *string    `json:"device_type,omitempty" validate:"omitempty,oneof=desktop mobile"`
	Window        *Window    `json:"window,omitempty"`
	UserAgent     *string    `json:"user_agent,omitempty"`
	Country       *string    `json:"country,omitempty" validate:"omitempty,country_allowed"`
	CustomHeaders []HeaderKV `json:"custom_headers,omitempty" validate:"omitempty,dive"`
}

// CloneTemplateRequest is the clone variant of a create request, selected
// by the presence of template_id in the body
type CloneTemplateRequest struct {
	TemplateID string          `json:"template_id" validate:"required"`
	Overrides  *CloneOverrides `json:"overrides,omitempty"`
}

// ListDeviceProfilesQuery carries the raw listing parameters
type ListDeviceProfilesQuery struct {
	IsTemplate *bool   `json:"is_template,omitempty"`
	DeviceType *string `json:"device_type,omitempty" validate:"omitempty,oneof=desktop mobile"`
	Country    *string `json:"country,omitempty" validate:"omitempty,country_allowed"`
	NamePrefix *string `json:"q,omitempty"`
	Limit      int     `json:"limit"`
	Cursor     *string `json:"cursor,omitempty"`
}

// DeviceProfileResponse is the externally visible shape of a profile. The
// version number doubles as its cache-validation token.
type DeviceProfileResponse struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Name          string     `json:"name"`
	DeviceType    string     `json:"device_type"`
	Window        Window     `json:"window"`
	UserAgent     string     `json:"user_agent"`
	Country       string     `json:"country"`
	CustomHeaders []HeaderKV `json:"custom_headers,omitempty"`
	IsTemplate    bool       `json:"is_template"`
	Visibility    string     `json:"visibility"`
	Version       int        `json:"version"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// FromDeviceProfile projects a stored profile into its response shape
func FromDeviceProfile(p *models.DeviceProfile) *DeviceProfileResponse {
	return &DeviceProfileResponse{
		ID:            p.ID,
		OwnerID:       p.OwnerID,
		Name:          p.Name,
		DeviceType:    p.DeviceType.String(),
		Window:        Window{Width: p.Width, Height: p.Height},
		UserAgent:     p.UserAgent,
		Country:       p.Country,
		CustomHeaders: HeadersFromMap(p.CustomHeaders),
		IsTemplate:    p.IsTemplate,
		Visibility:    p.Visibility.String(),
		Version:       p.Version,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		DeletedAt:     p.DeletedAt,
	}
}

// ListDeviceProfilesResponse is one page of profiles. A null next_cursor
// signals the end of the collection.
type ListDeviceProfilesResponse struct {
	Data       []*DeviceProfileResponse `json:"data"`
	NextCursor *string                  `json:"next_cursor"`
}

// DeleteDeviceProfileResponse acknowledges a soft delete
type DeleteDeviceProfileResponse struct {
	Deleted bool `json:"deleted"`
}

// VersionMeta is one entry of a profile's version history
type VersionMeta struct {
	Version   int       `json:"version"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}

// VersionSnapshotResponse is a full historical snapshot of a profile
type VersionSnapshotResponse struct {
	ProfileID string                 `json:"profile_id"`
	Version   int                    `json:"version"`
	Snapshot  models.ProfileSnapshot `json:"snapshot"`
	ChangedBy string                 `json:"changed_by"`
	ChangedAt time.Time              `json:"changed_at"`
}

// FromProfileVersion projects a snapshot row into its response shape
func FromProfileVersion(v *models.DeviceProfileVersion) *VersionSnapshotResponse {
	return &VersionSnapshotResponse{
		ProfileID: v.ProfileID,
		Version:   v.Version,
		Snapshot:  v.Snapshot,
		ChangedBy: v.ChangedBy,
		ChangedAt: v.ChangedAt,
	}
}

// ListVersionsResponse is one page of a profile's version history
type ListVersionsResponse struct {
	Data       []*VersionMeta `json:"data"`
	NextCursor *string        `json:"next_cursor"`
}
