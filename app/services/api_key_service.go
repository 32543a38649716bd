// Package services provides technical concerns that sit outside the
// business flows, such as API credential verification.
package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/models"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/repository"
	"golang.org/x/crypto/bcrypt"
)

// API key service error constants
var (
	ErrAPIKeyMissing = errors.New("api key is missing")
	ErrAPIKeyInvalid = errors.New("api key is invalid")
)

// KeyPrefixLength is the number of hex digits of the key digest stored
// alongside the hash for candidate lookup
const KeyPrefixLength = 12

// APIKeyService authenticates raw API keys against stored credentials
type APIKeyService interface {
	// Authenticate resolves a raw key to the owning user id. Revoked and
	// unknown keys are both reported as ErrAPIKeyInvalid.
	Authenticate(ctx context.Context, rawKey string) (string, error)

	// Issue mints a new key for userID and returns the raw secret once.
	// Only the bcrypt hash and the lookup prefix are persisted.
	Issue(ctx context.Context, userID, name string) (rawKey string, key *models.APIKey, err error)
}

// APIKeyServiceImpl implements APIKeyService
type APIKeyServiceImpl struct {
	keyRepo    repository.APIKeyRepository
	bcryptCost int
}

// NewAPIKeyService creates a new API key service. bcryptCost controls the
// hashing work factor for newly issued keys; zero selects the bcrypt default.
func NewAPIKeyService(keyRepo repository.APIKeyRepository, bcryptCost int) APIKeyService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &APIKeyServiceImpl{
		keyRepo:    keyRepo,
		bcryptCost: bcryptCost,
	}
}

// KeyPrefix derives the indexed lookup prefix from a raw key. The prefix
// narrows the candidate set without revealing anything the digest does not.
func KeyPrefix(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])[:KeyPrefixLength]
}

// HashKey produces the stored bcrypt hash for a raw key at the given cost
func HashKey(rawKey string, cost int) ([]byte, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(rawKey), cost)
}

// Authenticate resolves a raw key to its owning user
func (s *APIKeyServiceImpl) Authenticate(ctx context.Context, rawKey string) (string, error) {
	if rawKey == "" {
		return "", ErrAPIKeyMissing
	}

	candidates, err := s.keyRepo.ByPrefix(ctx, KeyPrefix(rawKey))
	if err != nil {
		return "", fmt.Errorf("failed to look up api key candidates: %w", err)
	}

	for _, candidate := range candidates {
		if candidate.IsRevoked() {
			continue
		}
		if bcrypt.CompareHashAndPassword(candidate.KeyHash, []byte(rawKey)) == nil {
			return candidate.UserID, nil
		}
	}

	return "", ErrAPIKeyInvalid
}

// Issue mints a new key. The raw secret is returned exactly once and is
// never stored.
func (s *APIKeyServiceImpl) Issue(ctx context.Context, userID, name string) (string, *models.APIKey, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("failed to generate api key material: %w", err)
	}
	rawKey := "zr_" + hex.EncodeToString(raw)

	hash, err := HashKey(rawKey, s.bcryptCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash api key: %w", err)
	}

	key := &models.APIKey{
		UserID:    userID,
		KeyHash:   hash,
		KeyPrefix: KeyPrefix(rawKey),
		Name:      name,
	}
	if err := s.keyRepo.Save(ctx, key); err != nil {
		return "", nil, fmt.Errorf("failed to persist api key: %w", err)
	}

	return rawKey, key, nil
}
