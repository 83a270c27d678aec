package usecases_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"entropy-gate.backend/internal/domain/entities"
	domainerrors "entropy-gate.backend/internal/domain/errors"
	"entropy-gate.backend/internal/usecases"
	loggerpkg "entropy-gate.backend/pkg/logger"
	redispkg "entropy-gate.backend/pkg/redis"
)

func newRedisForTest(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	loggerpkg.Init("test")

	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("skip: miniredis unavailable: %v", err)
	}
	t.Cleanup(srv.Close)

	redispkg.SetClient(redisv9.NewClient(&redisv9.Options{
		Addr: srv.Addr(),
	}))
	return srv
}

func newApiKeyUsecaseForTest(repo *MockApiKeyRepository) *usecases.ApiKeyUsecase {
	return usecases.NewApiKeyUsecase(repo, 5, time.Hour, 100)
}

func activeKeyFixture(secret string) *entities.ApiKey {
	return &entities.ApiKey{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Name:        "reporting",
		KeyPrefix:   "eg_live_",
		KeyHash:     usecases.HashKey(secret),
		KeyPreview:  secret[:12] + "...",
		Permissions: []string{"random:generate"},
		RateLimit:   100,
		IsActive:    true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func TestApiKeyUsecase_CreateApiKey_LimitReached(t *testing.T) {
	newRedisForTest(t)
	repo := new(MockApiKeyRepository)
	uc := newApiKeyUsecaseForTest(repo)
	userID := uuid.New()

	repo.On("CountActiveByUser", context.Background(), userID).Return(int64(5), nil).Once()

	_, err := uc.CreateApiKey(context.Background(), userID, &entities.CreateApiKeyInput{Name: "sixth"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "limit reached")
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestApiKeyUsecase_CreateApiKey_DuplicateActiveName(t *testing.T) {
	newRedisForTest(t)
	repo := new(MockApiKeyRepository)
	uc := newApiKeyUsecaseForTest(repo)
	userID := uuid.New()

	repo.On("CountActiveByUser", context.Background(), userID).Return(int64(1), nil).Once()
	repo.On("ActiveNameExists", context.Background(), userID, "reporting").Return(true, nil).Once()

	_, err := uc.CreateApiKey(context.Background(), userID, &entities.CreateApiKeyInput{Name: "reporting"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestApiKeyUsecase_CreateApiKey_Success(t *testing.T) {
	srv := newRedisForTest(t)
	repo := new(MockApiKeyRepository)
	uc := newApiKeyUsecaseForTest(repo)
	userID := uuid.New()

	var stored *entities.ApiKey
	repo.On("CountActiveByUser", context.Background(), userID).Return(int64(0), nil).Once()
	repo.On("ActiveNameExists", context.Background(), userID, "reporting").Return(false, nil).Once()
	repo.On("Create", context.Background(), mock.AnythingOfType("*entities.ApiKey")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*entities.ApiKey)
			stored.ID = uuid.New()
		}).
		Return(nil).Once()

	resp, err := uc.CreateApiKey(context.Background(), userID, &entities.CreateApiKeyInput{
		Name:        "reporting",
		Permissions: []string{"random:generate"},
	})
	require.NoError(t, err)
	require.NotNil(t, stored)

	assert.True(t, strings.HasPrefix(resp.ApiKey, "eg_live_"))
	assert.Len(t, resp.ApiKey, len("eg_live_")+32)
	assert.Equal(t, resp.ApiKey[:12]+"...", resp.KeyPreview)

	// The secret itself is never persisted, only its digest.
	assert.Equal(t, usecases.HashKey(resp.ApiKey), stored.KeyHash)
	assert.NotContains(t, stored.KeyPreview, resp.ApiKey[12:])
	assert.True(t, stored.IsActive)
	assert.Equal(t, 100, stored.RateLimit, "default rate limit applies when input omits one")

	// Creation pre-warms the cache.
	assert.True(t, srv.Exists("apikey:"+stored.KeyHash))
}

func TestApiKeyUsecase_LookupKey_RejectsMalformedSecrets(t *testing.T) {
	newRedisForTest(t)
	repo := new(MockApiKeyRepository)
	uc := newApiKeyUsecaseForTest(repo)

	for _, secret := range []string{"", "sk_live_deadbeef", "eg_test_deadbeef"} {
		_, err := uc.LookupKey(context.Background(), secret)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidApiKey)
	}
	repo.AssertNotCalled(t, "FindByKeyHash", mock.Anything, mock.Anything)
}

func TestApiKeyUsecase_LookupKey_CacheHitSkipsStore(t *testing.T) {
	srv := newRedisForTest(t)
	repo := new(MockApiKeyRepository)
	uc := newApiKeyUsecaseForTest(repo)

	secret := "eg_live_cachehit"
	info := &entities.KeyInfo{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Name:        "cached",
		Permissions: []string{"*"},
		RateLimit:   30,
	}
	data, err := json.Marshal(info)
	require.NoError(t, err)
	require.NoError(t, srv.Set("apikey:"+usecases.HashKey(secret), string(data)))

	got, err := uc.LookupKey(context.Background(), secret)
	require.NoError(t, err)
	assert.Equal(t, info.ID, got.ID)
	assert.Equal(t, 30, got.RateLimit)
	repo.AssertNotCalled(t, "FindByKeyHash", mock.Anything, mock.Anything)
}

func TestApiKeyUsecase_LookupKey_CacheMissPopulatesCache(t *testing.T) {
	srv := newRedisForTest(t)
	repo := new(MockApiKeyRepository)
	uc := newApiKeyUsecaseForTest(repo)

	secret := "eg_live_cachemiss"
	key := activeKeyFixture(secret)
	repo.On("FindByKeyHash", context.Background(), key.KeyHash).Return(key, nil).Once()

	got, err := uc.LookupKey(context.Background(), secret)
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)
	assert.True(t, srv.Exists("apikey:"+key.KeyHash))

	// Second lookup is served from the cache; the mock allows one store hit.
	got, err = uc.LookupKey(context.Background(), secret)
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)
	repo.AssertExpectations(t)
}

func TestApiKeyUsecase_LookupKey_UnknownKey(t *testing.T) {
	newRedisForTest(t)
	repo := new(MockApiKeyRepository)
	uc := newApiKeyUsecaseForTest(repo)

	secret := "eg_live_unknown"
	repo.On("FindByKeyHash", context.Background(), usecases.HashKey(secret)).
		Return(nil, domainerrors.ErrNotFound).Once()

	_, err := uc.LookupKey(context.Background(), secret)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidApiKey)
}

func TestApiKeyUsecase_LookupKey_StoreDownFailsClosed(t *testing.T) {
	newRedisForTest(t)
	repo := new(MockApiKeyRepository)
	uc := newApiKeyUsecaseForTest(repo)

	secret := "eg_live_storedown"
	repo.On("FindByKeyHash", context.Background(), usecases.HashKey(secret)).
		Return(nil, assert.AnError).Once()

	_, err := uc.LookupKey(context.Background(), secret)
	assert.ErrorIs(t, err, domainerrors.ErrStoreUnavailable)
}

func TestApiKeyUsecase_LookupKey_UnusableKeys(t *testing.T) {
	newRedisForTest(t)
	repo := new(MockApiKeyRepository)
	uc := newApiKeyUsecaseForTest(repo)

	inactive := activeKeyFixture("eg_live_inactive")
	inactive.IsActive = false

	expired := activeKeyFixture("eg_live_expired")
	expired.ExpiresAt = null.TimeFrom(time.Now().Add(-time.Minute))

	capped := activeKeyFixture("eg_live_capped")
	capped.LifetimeCap = 10
	capped.TotalRequests = 10

	cases := map[string]*entities.ApiKey{
		"eg_live_inactive": inactive,
		"eg_live_expired":  expired,
		"eg_live_capped":   capped,
	}
	for secret, key := range cases {
		repo.On("FindByKeyHash", context.Background(), usecases.HashKey(secret)).Return(key, nil).Once()

		_, err := uc.LookupKey(context.Background(), secret)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidApiKey, secret)
	}
}

func TestApiKeyUsecase_LookupKey_CachedButExpired(t *testing.T) {
	srv := newRedisForTest(t)
	repo := new(MockApiKeyRepository)
	uc := newApiKeyUsecaseForTest(repo)

	secret := "eg_live_cachedexpired"
	info := &entities.KeyInfo{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Name:      "stale",
		ExpiresAt: null.TimeFrom(time.Now().Add(-time.Minute)),
	}
	data, err := json.Marshal(info)
	require.NoError(t, err)
	require.NoError(t, srv.Set("apikey:"+usecases.HashKey(secret), string(data)))

	_, err = uc.LookupKey(context.Background(), secret)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidApiKey)
	repo.AssertNotCalled(t, "FindByKeyHash", mock.Anything, mock.Anything)
}

func TestHasPermission(t *testing.T) {
	cases := []struct {
		name        string
		permissions []string
		required    string
		want        bool
	}{
		{"empty requirement always passes", nil, "", true},
		{"exact match", []string{"random:generate"}, "random:generate", true},
		{"global wildcard", []string{"*"}, "admin:block", true},
		{"namespace wildcard", []string{"random:*"}, "random:bytes", true},
		{"namespace wildcard wrong namespace", []string{"random:*"}, "admin:block", false},
		{"no match", []string{"random:generate"}, "random:bytes", false},
		{"empty set", nil, "random:generate", false},
		{"bare wildcard is not a namespace prefix", []string{"random:*"}, "randomness:generate", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, usecases.HasPermission(tc.permissions, tc.required))
		})
	}
}

func TestApiKeyUsecase_UpdateApiKey_InvalidatesCache(t *testing.T) {
	srv := newRedisForTest(t)
	repo := new(MockApiKeyRepository)
	uc := newApiKeyUsecaseForTest(repo)

	key := activeKeyFixture("eg_live_updated")
	require.NoError(t, srv.Set("apikey:"+key.KeyHash, `{"name":"stale"}`))

	repo.On("FindByID", context.Background(), key.ID).Return(key, nil).Once()
	repo.On("Update", context.Background(), key).Return(nil).Once()

	newName := "renamed"
	updated, err := uc.UpdateApiKey(context.Background(), key.UserID, key.ID, &entities.UpdateApiKeyInput{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.False(t, srv.Exists("apikey:"+key.KeyHash), "stale cache entry must be dropped")
}

func TestApiKeyUsecase_UpdateApiKey_NotOwner(t *testing.T) {
	newRedisForTest(t)
	repo := new(MockApiKeyRepository)
	uc := newApiKeyUsecaseForTest(repo)

	key := activeKeyFixture("eg_live_foreign")
	repo.On("FindByID", context.Background(), key.ID).Return(key, nil).Once()

	_, err := uc.UpdateApiKey(context.Background(), uuid.New(), key.ID, &entities.UpdateApiKeyInput{})
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestApiKeyUsecase_RevokeApiKey(t *testing.T) {
	srv := newRedisForTest(t)
	repo := new(MockApiKeyRepository)
	uc := newApiKeyUsecaseForTest(repo)

	key := activeKeyFixture("eg_live_revoked")
	require.NoError(t, srv.Set("apikey:"+key.KeyHash, `{"name":"stale"}`))

	repo.On("FindByID", context.Background(), key.ID).Return(key, nil).Once()
	repo.On("Deactivate", context.Background(), key.ID).Return(nil).Once()

	require.NoError(t, uc.RevokeApiKey(context.Background(), key.UserID, key.ID))
	assert.False(t, srv.Exists("apikey:"+key.KeyHash))
}

func TestApiKeyUsecase_RevokeApiKey_NotFound(t *testing.T) {
	newRedisForTest(t)
	repo := new(MockApiKeyRepository)
	uc := newApiKeyUsecaseForTest(repo)

	id := uuid.New()
	repo.On("FindByID", context.Background(), id).Return(nil, domainerrors.ErrNotFound).Once()

	err := uc.RevokeApiKey(context.Background(), uuid.New(), id)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestApiKeyUsecase_RecordUsage(t *testing.T) {
	newRedisForTest(t)
	repo := new(MockApiKeyRepository)
	uc := newApiKeyUsecaseForTest(repo)

	keyID := uuid.New()
	done := make(chan struct{})
	repo.On("IncrementUsage", mock.Anything, keyID).
		Run(func(mock.Arguments) { close(done) }).
		Return(nil).Once()

	uc.RecordUsage(&entities.KeyInfo{ID: keyID})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("usage increment never ran")
	}
}

func TestApiKeyUsecase_RecordUsage_CappedKeyDropsCache(t *testing.T) {
	srv := newRedisForTest(t)
	repo := new(MockApiKeyRepository)
	uc := newApiKeyUsecaseForTest(repo)

	secret := "eg_live_" + strings.Repeat("d", 32)
	key := activeKeyFixture(secret)
	key.LifetimeCap = 3
	key.TotalRequests = 2

	repo.On("FindByKeyHash", context.Background(), key.KeyHash).Return(key, nil).Once()

	info, err := uc.LookupKey(context.Background(), secret)
	require.NoError(t, err)
	require.True(t, srv.Exists("apikey:"+key.KeyHash))

	done := make(chan struct{})
	repo.On("IncrementUsage", mock.Anything, key.ID).
		Run(func(mock.Arguments) { close(done) }).
		Return(nil).Once()

	uc.RecordUsage(info)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("usage increment never ran")
	}
	assert.Eventually(t, func() bool {
		return !srv.Exists("apikey:" + key.KeyHash)
	}, 2*time.Second, 10*time.Millisecond, "capped key must not keep serving a stale cached count")

	// The next lookup reads the authoritative count and sees the cap hit.
	spent := activeKeyFixture(secret)
	spent.ID = key.ID
	spent.LifetimeCap = 3
	spent.TotalRequests = 3
	repo.On("FindByKeyHash", context.Background(), key.KeyHash).Return(spent, nil).Once()

	_, err = uc.LookupKey(context.Background(), secret)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidApiKey)
	repo.AssertExpectations(t)
}

func TestApiKeyUsecase_RecordUsage_UncappedKeyKeepsCache(t *testing.T) {
	srv := newRedisForTest(t)
	repo := new(MockApiKeyRepository)
	uc := newApiKeyUsecaseForTest(repo)

	secret := "eg_live_" + strings.Repeat("e", 32)
	key := activeKeyFixture(secret)

	repo.On("FindByKeyHash", context.Background(), key.KeyHash).Return(key, nil).Once()

	info, err := uc.LookupKey(context.Background(), secret)
	require.NoError(t, err)
	require.True(t, srv.Exists("apikey:"+key.KeyHash))

	done := make(chan struct{})
	repo.On("IncrementUsage", mock.Anything, key.ID).
		Run(func(mock.Arguments) { close(done) }).
		Return(nil).Once()

	uc.RecordUsage(info)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("usage increment never ran")
	}
	time.Sleep(50 * time.Millisecond)
	assert.True(t, srv.Exists("apikey:"+key.KeyHash), "uncapped keys stay cache-served")
}
