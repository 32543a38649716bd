package dto

import (
	"testing"
	"time"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHeaderKey(t *testing.T) {
	assert.Equal(t, "x-custom", NormalizeHeaderKey("  X-Custom "))
	assert.Equal(t, "accept-language", NormalizeHeaderKey("Accept-Language"))
	assert.Equal(t, "", NormalizeHeaderKey("   "))
}

func TestHeadersToMapNormalizesKeys(t *testing.T) {
	m := HeadersToMap([]HeaderKV{
		{Key: "X-Custom", Value: "a"},
		{Key: " Accept-Language ", Value: "en-US"},
	})
	require.Len(t, m, 2)
	assert.Equal(t, "a", m["x-custom"])
	assert.Equal(t, "en-US", m["accept-language"])
}

func TestHeadersToMapNilForAbsentList(t *testing.T) {
	assert.Nil(t, HeadersToMap(nil))
	assert.NotNil(t, HeadersToMap([]HeaderKV{}))
}

func TestHeadersFromMapLexicalOrder(t *testing.T) {
	out := HeadersFromMap(models.HeaderMap{
		"x-custom":        "a",
		"accept-language": "en-US",
		"dnt":             "1",
	})
	require.Len(t, out, 3)
	assert.Equal(t, "accept-language", out[0].Key)
	assert.Equal(t, "dnt", out[1].Key)
	assert.Equal(t, "x-custom", out[2].Key)

	assert.Nil(t, HeadersFromMap(nil))
}

func TestUpdateRequestHasChanges(t *testing.T) {
	version := 3
	req := &UpdateDeviceProfileRequest{Version: &version}
	assert.False(t, req.HasChanges())

	name := "renamed"
	req.Name = &name
	assert.True(t, req.HasChanges())

	req = &UpdateDeviceProfileRequest{Version: &version, CustomHeaders: []HeaderKV{}}
	assert.True(t, req.HasChanges())
}

func TestFromDeviceProfile(t *testing.T) {
	now := time.Now().UTC()
	p := &models.DeviceProfile{
		ID:            "prof_abc123def456",
		OwnerID:       "user_alice",
		Name:          "Chrome on Windows",
		DeviceType:    models.DeviceTypeDesktop,
		Width:         1920,
		Height:        1080,
		UserAgent:     "Mozilla/5.0",
		Country:       "us",
		CustomHeaders: models.HeaderMap{"x-custom": "a", "dnt": "1"},
		IsTemplate:    true,
		Visibility:    models.VisibilityGlobal,
		Version:       4,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	resp := FromDeviceProfile(p)
	assert.Equal(t, p.ID, resp.ID)
	assert.Equal(t, "desktop", resp.DeviceType)
	assert.Equal(t, Window{Width: 1920, Height: 1080}, resp.Window)
	assert.Equal(t, "global", resp.Visibility)
	assert.Equal(t, 4, resp.Version)
	assert.Nil(t, resp.DeletedAt)

	// headers come out ordered regardless of map iteration
	require.Len(t, resp.CustomHeaders, 2)
	assert.Equal(t, "dnt", resp.CustomHeaders[0].Key)
	assert.Equal(t, "x-custom", resp.CustomHeaders[1].Key)
}

func TestReservedHeaderNames(t *testing.T) {
	_, reserved := ReservedHeaderNames["host"]
	assert.True(t, reserved)
	_, reserved = ReservedHeaderNames["content-length"]
	assert.True(t, reserved)
	_, reserved = ReservedHeaderNames["accept-language"]
	assert.False(t, reserved)
}
