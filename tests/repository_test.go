// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/models"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/repository"
	testingutil "github.com/Ashraf-Taha/zenrows-deviceprofiles/testing"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// errAbortTx forces a rollback when exercising transactional writes
var errAbortTx = errors.New("abort transaction")

func TestDeviceProfileRepositoryCreate(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewDeviceProfileRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		owner, err := fixtures.CreateTestUser()
		require.NoError(t, err)

		t.Run("CreateWritesVersionOneAndSnapshot", func(t *testing.T) {
			profile := &models.DeviceProfile{
				OwnerID:    owner.ID,
				Name:       "Pixel 8",
				DeviceType: models.DeviceTypeMobile,
				Width:      412,
				Height:     915,
				UserAgent:  "Mozilla/5.0 (Linux; Android 14; Pixel 8)",
				Country:    "de",
				CustomHeaders: models.HeaderMap{
					"accept-language": "de-DE",
				},
			}
			require.NoError(t, repo.Create(ctx, profile, owner.ID))
			assert.Equal(t, 1, profile.Version)
			assert.NotEmpty(t, profile.ID)

			var snap models.DeviceProfileVersion
			require.NoError(t, testDB.DB.
				Where("profile_id = ? AND version = ?", profile.ID, 1).
				First(&snap).Error)
			assert.Equal(t, profile.Name, snap.Snapshot.Name)
			assert.Equal(t, "de-DE", snap.Snapshot.CustomHeaders["accept-language"])
			assert.Equal(t, owner.ID, snap.ChangedBy)
		})

		t.Run("DuplicateNameSameOwner", func(t *testing.T) {
			_, err := fixtures.CreateTestProfile(owner.ID, testingutil.WithName("Duplicated"))
			require.NoError(t, err)

			dup := &models.DeviceProfile{
				OwnerID:    owner.ID,
				Name:       "duplicated", // case-insensitive collision
				DeviceType: models.DeviceTypeDesktop,
				Width:      800,
				Height:     600,
				UserAgent:  "ua",
				Country:    "us",
			}
			err = repo.Create(ctx, dup, owner.ID)
			assert.ErrorIs(t, err, repository.ErrDuplicateName)
		})

		t.Run("SameNameDifferentOwner", func(t *testing.T) {
			other, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			p := &models.DeviceProfile{
				OwnerID:    other.ID,
				Name:       "Duplicated",
				DeviceType: models.DeviceTypeDesktop,
				Width:      800,
				Height:     600,
				UserAgent:  "ua",
				Country:    "us",
			}
			assert.NoError(t, repo.Create(ctx, p, other.ID))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestDeviceProfileRepositoryScoping(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewDeviceProfileRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		owner, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		stranger, err := fixtures.CreateTestUser()
		require.NoError(t, err)

		private, err := fixtures.CreateTestProfile(owner.ID)
		require.NoError(t, err)
		template, err := fixtures.CreateTestTemplate(owner.ID)
		require.NoError(t, err)

		t.Run("OwnerSeesPrivate", func(t *testing.T) {
			got, err := repo.ByIDScoped(ctx, owner.ID, private.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, private.ID, got.ID)
		})

		t.Run("StrangerDoesNotSeePrivate", func(t *testing.T) {
			got, err := repo.ByIDScoped(ctx, stranger.ID, private.ID)
			require.NoError(t, err)
			assert.Nil(t, got)
		})

		t.Run("StrangerSeesGlobalTemplate", func(t *testing.T) {
			got, err := repo.ByIDScoped(ctx, stranger.ID, template.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, template.ID, got.ID)
		})

		t.Run("SeededTemplatesAreVisible", func(t *testing.T) {
			got, err := repo.ByIDScoped(ctx, stranger.ID, "tmpl_chrome_win")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, got.IsTemplate)
			assert.Equal(t, models.VisibilityGlobal, got.Visibility)
		})

		t.Run("SoftDeletedIsInvisibleToEveryone", func(t *testing.T) {
			doomed, err := fixtures.CreateTestProfile(owner.ID)
			require.NoError(t, err)
			require.NoError(t, repo.SoftDelete(ctx, owner.ID, doomed.ID))

			got, err := repo.ByIDScoped(ctx, owner.ID, doomed.ID)
			require.NoError(t, err)
			assert.Nil(t, got)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestDeviceProfileRepositoryUpdateOptimistic(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewDeviceProfileRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		owner, err := fixtures.CreateTestUser()
		require.NoError(t, err)

		t.Run("SequentialUpdatesBumpVersion", func(t *testing.T) {
			profile, err := fixtures.CreateTestProfile(owner.ID)
			require.NoError(t, err)

			for i := 0; i < 3; i++ {
				name := profile.Name + " rev"
				updated, err := repo.UpdateOptimistic(ctx, owner.ID, profile.ID, models.DeviceProfilePatch{
					ExpectedVersion: 1 + i,
					Name:            &name,
				}, owner.ID)
				require.NoError(t, err)
				assert.Equal(t, 2+i, updated.Version)
				profile = updated
			}

			var count int64
			require.NoError(t, testDB.DB.Model(&models.DeviceProfileVersion{}).
				Where("profile_id = ?", profile.ID).Count(&count).Error)
			assert.Equal(t, int64(4), count)
		})

		t.Run("StaleVersionConsumesNothing", func(t *testing.T) {
			profile, err := fixtures.CreateTestProfile(owner.ID)
			require.NoError(t, err)

			name := "never applied"
			_, err = repo.UpdateOptimistic(ctx, owner.ID, profile.ID, models.DeviceProfilePatch{
				ExpectedVersion: 99,
				Name:            &name,
			}, owner.ID)
			assert.ErrorIs(t, err, repository.ErrVersionMismatch)

			var head models.DeviceProfile
			require.NoError(t, testDB.DB.Where("id = ?", profile.ID).First(&head).Error)
			assert.Equal(t, 1, head.Version)
			assert.NotEqual(t, name, head.Name)

			var count int64
			require.NoError(t, testDB.DB.Model(&models.DeviceProfileVersion{}).
				Where("profile_id = ?", profile.ID).Count(&count).Error)
			assert.Equal(t, int64(1), count)
		})

		t.Run("RacingUpdatesSameVersion", func(t *testing.T) {
			profile, err := fixtures.CreateTestProfile(owner.ID)
			require.NoError(t, err)

			results := make(chan error, 2)
			start := make(chan struct{})
			for i := 0; i < 2; i++ {
				go func(i int) {
					<-start
					ua := fmt.Sprintf("racer-%d", i)
					_, err := repo.UpdateOptimistic(ctx, owner.ID, profile.ID, models.DeviceProfilePatch{
						ExpectedVersion: 1,
						UserAgent:       &ua,
					}, owner.ID)
					results <- err
				}(i)
			}
			close(start)

			var wins, losses int
			for i := 0; i < 2; i++ {
				err := <-results
				if err == nil {
					wins++
				} else {
					require.ErrorIs(t, err, repository.ErrVersionMismatch)
					losses++
				}
			}
			assert.Equal(t, 1, wins)
			assert.Equal(t, 1, losses)

			var head models.DeviceProfile
			require.NoError(t, testDB.DB.Where("id = ?", profile.ID).First(&head).Error)
			assert.Equal(t, 2, head.Version)

			// exactly one snapshot beyond the create
			var count int64
			require.NoError(t, testDB.DB.Model(&models.DeviceProfileVersion{}).
				Where("profile_id = ?", profile.ID).Count(&count).Error)
			assert.Equal(t, int64(2), count)
		})

		t.Run("UpdateToTakenNameConflicts", func(t *testing.T) {
			_, err := fixtures.CreateTestProfile(owner.ID, testingutil.WithName("Taken"))
			require.NoError(t, err)
			victim, err := fixtures.CreateTestProfile(owner.ID)
			require.NoError(t, err)

			name := "Taken"
			_, err = repo.UpdateOptimistic(ctx, owner.ID, victim.ID, models.DeviceProfilePatch{
				ExpectedVersion: 1,
				Name:            &name,
			}, owner.ID)
			assert.ErrorIs(t, err, repository.ErrDuplicateName)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestDeviceProfileRepositorySoftDelete(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewDeviceProfileRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		owner, err := fixtures.CreateTestUser()
		require.NoError(t, err)

		t.Run("DeleteFreesNameAndKeepsHistory", func(t *testing.T) {
			profile, err := fixtures.CreateTestProfile(owner.ID, testingutil.WithName("Recyclable"))
			require.NoError(t, err)

			require.NoError(t, repo.SoftDelete(ctx, owner.ID, profile.ID))
			// Idempotent against a repeat
			require.NoError(t, repo.SoftDelete(ctx, owner.ID, profile.ID))

			// The name is available again
			_, err = fixtures.CreateTestProfile(owner.ID, testingutil.WithName("Recyclable"))
			assert.NoError(t, err)

			// Version rows survive the delete
			var count int64
			require.NoError(t, testDB.DB.Model(&models.DeviceProfileVersion{}).
				Where("profile_id = ?", profile.ID).Count(&count).Error)
			assert.Equal(t, int64(1), count)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestDeviceProfileRepositoryClone(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewDeviceProfileRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		owner, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		cloner, err := fixtures.CreateTestUser()
		require.NoError(t, err)

		template, err := fixtures.CreateTestTemplate(owner.ID,
			testingutil.WithName("Firefox Linux"),
			testingutil.WithHeaders(models.HeaderMap{"accept-language": "en-US"}))
		require.NoError(t, err)

		t.Run("CloneDefaultsToCopyName", func(t *testing.T) {
			clone, err := repo.CloneFromTemplate(ctx, cloner.ID, template.ID, nil)
			require.NoError(t, err)
			require.NotNil(t, clone)
			assert.Equal(t, "Firefox Linux Copy", clone.Name)
			assert.Equal(t, cloner.ID, clone.OwnerID)
			assert.False(t, clone.IsTemplate)
			assert.Equal(t, models.VisibilityPrivate, clone.Visibility)
			assert.Equal(t, 1, clone.Version)
			assert.Equal(t, "en-US", clone.CustomHeaders["accept-language"])
		})

		t.Run("CloneAppliesOverrides", func(t *testing.T) {
			clone, err := repo.CloneFromTemplate(ctx, cloner.ID, template.ID, &models.ProfileOverrides{
				Name:    utils.ToPtr("Mine"),
				Country: utils.ToPtr("fr"),
				Width:   utils.ToPtr(1024),
			})
			require.NoError(t, err)
			require.NotNil(t, clone)
			assert.Equal(t, "Mine", clone.Name)
			assert.Equal(t, "fr", clone.Country)
			assert.Equal(t, 1024, clone.Width)
			assert.Equal(t, template.Height, clone.Height)
		})

		t.Run("CloneNonTemplateReturnsNil", func(t *testing.T) {
			plain, err := fixtures.CreateTestProfile(cloner.ID)
			require.NoError(t, err)

			clone, err := repo.CloneFromTemplate(ctx, cloner.ID, plain.ID, nil)
			require.NoError(t, err)
			assert.Nil(t, clone)
		})

		t.Run("CloneInvisibleTemplateReturnsNil", func(t *testing.T) {
			hidden, err := fixtures.CreateTestProfile(owner.ID, testingutil.AsTemplate(models.VisibilityPrivate))
			require.NoError(t, err)

			clone, err := repo.CloneFromTemplate(ctx, cloner.ID, hidden.ID, nil)
			require.NoError(t, err)
			assert.Nil(t, clone)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestDeviceProfileRepositoryListPagination(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewDeviceProfileRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		owner, err := fixtures.CreateTestUser()
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			_, err := fixtures.CreateTestProfile(owner.ID, testingutil.WithCountry("gb"))
			require.NoError(t, err)
		}

		filter := models.DeviceProfileFilter{Country: utils.ToPtr("gb")}

		t.Run("PagesDoNotOverlapOrSkip", func(t *testing.T) {
			seen := map[string]bool{}
			var cursor *models.ProfileCursor
			pages := 0
			for {
				page, err := repo.ListScopedPage(ctx, owner.ID, filter, 2, cursor)
				require.NoError(t, err)
				for _, p := range page.Profiles {
					assert.False(t, seen[p.ID], "profile %s returned twice", p.ID)
					seen[p.ID] = true
				}
				pages++
				if page.Next == nil {
					break
				}
				cursor = page.Next
			}
			assert.Equal(t, 3, pages)
			assert.Len(t, seen, 5)
		})

		t.Run("ExactMultipleHasNoTrailingCursor", func(t *testing.T) {
			page, err := repo.ListScopedPage(ctx, owner.ID, filter, 5, nil)
			require.NoError(t, err)
			assert.Len(t, page.Profiles, 5)
			assert.Nil(t, page.Next)
		})

		t.Run("FiltersCompose", func(t *testing.T) {
			page, err := repo.ListScopedPage(ctx, owner.ID, models.DeviceProfileFilter{
				Country:    utils.ToPtr("gb"),
				DeviceType: utils.ToPtr(models.DeviceTypeMobile),
			}, 10, nil)
			require.NoError(t, err)
			assert.Empty(t, page.Profiles)
		})

		t.Run("NamePrefixEscapesWildcards", func(t *testing.T) {
			_, err := fixtures.CreateTestProfile(owner.ID, testingutil.WithName("100% real"))
			require.NoError(t, err)

			page, err := repo.ListScopedPage(ctx, owner.ID, models.DeviceProfileFilter{
				NamePrefix: utils.ToPtr("100%"),
			}, 10, nil)
			require.NoError(t, err)
			require.Len(t, page.Profiles, 1)
			assert.Equal(t, "100% real", page.Profiles[0].Name)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestDeviceProfileVersionRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		profileRepo := repository.NewDeviceProfileRepository(testDB.DB)
		versionRepo := repository.NewDeviceProfileVersionRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		owner, err := fixtures.CreateTestUser()
		require.NoError(t, err)

		profile, err := fixtures.CreateTestProfile(owner.ID)
		require.NoError(t, err)
		for i := 0; i < 4; i++ {
			name := profile.Name + " rev"
			profile, err = profileRepo.UpdateOptimistic(ctx, owner.ID, profile.ID, models.DeviceProfilePatch{
				ExpectedVersion: 1 + i,
				Name:            &name,
			}, owner.ID)
			require.NoError(t, err)
		}

		t.Run("ListByProfileAscending", func(t *testing.T) {
			rows, err := versionRepo.ListByProfile(ctx, profile.ID)
			require.NoError(t, err)
			require.Len(t, rows, 5)
			for i, row := range rows {
				assert.Equal(t, i+1, row.Version)
				assert.Equal(t, i+1, row.Snapshot.Version)
			}
		})

		t.Run("ByVersion", func(t *testing.T) {
			row, err := versionRepo.ByVersion(ctx, profile.ID, 3)
			require.NoError(t, err)
			require.NotNil(t, row)
			assert.Equal(t, 3, row.Version)

			missing, err := versionRepo.ByVersion(ctx, profile.ID, 42)
			require.NoError(t, err)
			assert.Nil(t, missing)
		})

		t.Run("ListPageWalksTheLog", func(t *testing.T) {
			page, err := versionRepo.ListPage(ctx, profile.ID, 2, nil)
			require.NoError(t, err)
			require.Len(t, page.Versions, 2)
			require.NotNil(t, page.Next)
			assert.Equal(t, 2, *page.Next)

			page, err = versionRepo.ListPage(ctx, profile.ID, 10, page.Next)
			require.NoError(t, err)
			assert.Len(t, page.Versions, 3)
			assert.Nil(t, page.Next)
			assert.Equal(t, 3, page.Versions[0].Version)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestIdempotencyRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		owner, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		other, err := fixtures.CreateTestUser()
		require.NoError(t, err)

		body := json.RawMessage(`{"id":"prof_abc","version":1}`)

		t.Run("SaveAndReplay", func(t *testing.T) {
			store := repository.NewIdempotencyRepository(testDB.DB, utils.ToPtr(24*time.Hour))
			require.NoError(t, store.Save(ctx, owner.ID, "create-1", body))

			got, err := store.Get(ctx, owner.ID, "create-1")
			require.NoError(t, err)
			assert.JSONEq(t, string(body), string(got))
		})

		t.Run("KeysAreScopedPerOwner", func(t *testing.T) {
			store := repository.NewIdempotencyRepository(testDB.DB, utils.ToPtr(24*time.Hour))
			got, err := store.Get(ctx, other.ID, "create-1")
			require.NoError(t, err)
			assert.Nil(t, got)
		})

		t.Run("SaveOverwrites", func(t *testing.T) {
			store := repository.NewIdempotencyRepository(testDB.DB, utils.ToPtr(24*time.Hour))
			replacement := json.RawMessage(`{"id":"prof_abc","version":2}`)
			require.NoError(t, store.Save(ctx, owner.ID, "create-1", replacement))

			got, err := store.Get(ctx, owner.ID, "create-1")
			require.NoError(t, err)
			assert.JSONEq(t, string(replacement), string(got))
		})

		t.Run("ZeroTTLExpiresImmediately", func(t *testing.T) {
			store := repository.NewIdempotencyRepository(testDB.DB, utils.ToPtr(time.Duration(0)))
			require.NoError(t, store.Save(ctx, owner.ID, "create-2", body))

			got, err := store.Get(ctx, owner.ID, "create-2")
			require.NoError(t, err)
			assert.Nil(t, got)
		})

		t.Run("NilTTLNeverExpires", func(t *testing.T) {
			store := repository.NewIdempotencyRepository(testDB.DB, nil)
			require.NoError(t, store.Save(ctx, owner.ID, "create-3", body))

			// Age the record well past any plausible default window
			require.NoError(t, testDB.DB.Model(&models.IdempotencyKey{}).
				Where("key = ? AND owner_id = ?", "create-3", owner.ID).
				Update("created_at", time.Now().UTC().Add(-30*24*time.Hour)).Error)

			got, err := store.Get(ctx, owner.ID, "create-3")
			require.NoError(t, err)
			assert.JSONEq(t, string(body), string(got))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAPIKeyRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewAPIKeyRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		owner, err := fixtures.CreateTestUser()
		require.NoError(t, err)

		t.Run("SaveCommitsOutsideTransaction", func(t *testing.T) {
			key := &models.APIKey{
				UserID:    owner.ID,
				KeyHash:   []byte("$2a$12$not-a-real-hash"),
				KeyPrefix: "aabbccddeeff",
				Name:      "ci key",
			}
			require.NoError(t, repo.Save(ctx, key))
			require.NotEmpty(t, key.ID)

			// A separate session must see the row, so Save has to have
			// committed its own transaction.
			var stored models.APIKey
			require.NoError(t, testDB.DB.Where("id = ?", key.ID).First(&stored).Error)
			assert.Equal(t, owner.ID, stored.UserID)
			assert.Equal(t, "aabbccddeeff", stored.KeyPrefix)
		})

		t.Run("SaveJoinsAmbientTransaction", func(t *testing.T) {
			key := &models.APIKey{
				UserID:    owner.ID,
				KeyHash:   []byte("$2a$12$not-a-real-hash"),
				KeyPrefix: "112233445566",
				Name:      "rolled back",
			}
			txErr := repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
				if err := repo.Save(txCtx, key); err != nil {
					return err
				}
				return errAbortTx
			})
			require.ErrorIs(t, txErr, errAbortTx)

			keys, err := repo.ByPrefix(ctx, "112233445566")
			require.NoError(t, err)
			assert.Empty(t, keys)
		})

		t.Run("ByPrefixFiltersByPrefix", func(t *testing.T) {
			keys, err := repo.ByPrefix(ctx, "aabbccddeeff")
			require.NoError(t, err)
			require.Len(t, keys, 1)
			assert.Equal(t, owner.ID, keys[0].UserID)

			keys, err = repo.ByPrefix(ctx, "000000000000")
			require.NoError(t, err)
			assert.Empty(t, keys)
		})

		return nil
	})
	require.NoError(t, err)
}
