package services

import (
	"context"
	"testing"
	"time"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeKeyRepo struct {
	keys []*models.APIKey
}

func (r *fakeKeyRepo) ByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	var out []*models.APIKey
	for _, k := range r.keys {
		if k.KeyPrefix == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

func (r *fakeKeyRepo) Save(ctx context.Context, key *models.APIKey) error {
	r.keys = append(r.keys, key)
	return nil
}

func storedKey(t *testing.T, userID, rawKey string) *models.APIKey {
	t.Helper()
	hash, err := HashKey(rawKey, bcrypt.MinCost)
	require.NoError(t, err)
	return &models.APIKey{
		ID:        "key_test",
		UserID:    userID,
		KeyHash:   hash,
		KeyPrefix: KeyPrefix(rawKey),
		Name:      "test key",
	}
}

func TestAuthenticateResolvesOwner(t *testing.T) {
	repo := &fakeKeyRepo{keys: []*models.APIKey{storedKey(t, "user_alice", "zr_live_abc123")}}
	svc := NewAPIKeyService(repo, bcrypt.MinCost)

	userID, err := svc.Authenticate(context.Background(), "zr_live_abc123")
	require.NoError(t, err)
	assert.Equal(t, "user_alice", userID)
}

func TestAuthenticateRejectsMissingKey(t *testing.T) {
	svc := NewAPIKeyService(&fakeKeyRepo{}, bcrypt.MinCost)

	_, err := svc.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrAPIKeyMissing)
}

func TestAuthenticateRejectsUnknownKey(t *testing.T) {
	repo := &fakeKeyRepo{keys: []*models.APIKey{storedKey(t, "user_alice", "zr_live_abc123")}}
	svc := NewAPIKeyService(repo, bcrypt.MinCost)

	_, err := svc.Authenticate(context.Background(), "zr_live_wrong")
	assert.ErrorIs(t, err, ErrAPIKeyInvalid)
}

func TestAuthenticateSkipsRevokedKeys(t *testing.T) {
	key := storedKey(t, "user_alice", "zr_live_abc123")
	now := time.Now().UTC()
	key.RevokedAt = &now

	svc := NewAPIKeyService(&fakeKeyRepo{keys: []*models.APIKey{key}}, bcrypt.MinCost)

	_, err := svc.Authenticate(context.Background(), "zr_live_abc123")
	assert.ErrorIs(t, err, ErrAPIKeyInvalid)
}

func TestIssueRoundTrips(t *testing.T) {
	repo := &fakeKeyRepo{}
	svc := NewAPIKeyService(repo, bcrypt.MinCost)

	rawKey, key, err := svc.Issue(context.Background(), "user_bob", "ci key")
	require.NoError(t, err)
	require.Len(t, repo.keys, 1)
	assert.Equal(t, "user_bob", key.UserID)
	assert.Equal(t, KeyPrefix(rawKey), key.KeyPrefix)
	assert.Len(t, key.KeyPrefix, KeyPrefixLength)

	userID, err := svc.Authenticate(context.Background(), rawKey)
	require.NoError(t, err)
	assert.Equal(t, "user_bob", userID)
}

func TestIssueHashesAtConfiguredCost(t *testing.T) {
	repo := &fakeKeyRepo{}
	svc := NewAPIKeyService(repo, bcrypt.MinCost)

	_, key, err := svc.Issue(context.Background(), "user_bob", "ci key")
	require.NoError(t, err)

	cost, err := bcrypt.Cost(key.KeyHash)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestKeyPrefixIsDeterministic(t *testing.T) {
	assert.Equal(t, KeyPrefix("zr_live_abc123"), KeyPrefix("zr_live_abc123"))
	assert.NotEqual(t, KeyPrefix("zr_live_abc123"), KeyPrefix("zr_live_abc124"))
}
