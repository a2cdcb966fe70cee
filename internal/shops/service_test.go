package shops

import (
	"context"
	"errors"
	"testing"

	"barberline/internal/audit"
	"barberline/internal/secretbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func strp(s string) *string { return &s }

func newService(t *testing.T, seed ...Shop) (*Service, *MemoryRepo, *audit.MemoryRepo) {
	t.Helper()
	c, err := secretbox.New(testKey)
	require.NoError(t, err)
	repo := NewMemoryRepo(seed...)
	auditRepo := audit.NewMemoryRepo()
	return NewService(repo, c, audit.NewService(auditRepo), 0), repo, auditRepo
}

func TestLinkProvider_StoresSealedToken(t *testing.T) {
	svc, repo, auditRepo := newService(t, Shop{ID: "shop_1", OwnerUserID: "user_1", Name: "Fade Factory"})

	_, err := svc.LinkProvider(context.Background(), "user_1", "square", "sq-token", "L1")
	require.NoError(t, err)

	stored, _ := repo.GetShop(context.Background(), "shop_1")
	require.NotNil(t, stored.ProviderToken)
	assert.True(t, secretbox.IsEncrypted(*stored.ProviderToken))
	assert.NotContains(t, *stored.ProviderToken, "sq-token")
	assert.Equal(t, "L1", *stored.ProviderLocationID)
	assert.Equal(t, "square", stored.ProviderType)

	evs := auditRepo.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, audit.EventCredentialLinked, evs[0].Type)
}

func TestLinkProvider_UnknownOwner(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.LinkProvider(context.Background(), "nobody", "square", "tok", "L1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLinkProvider_InvalidatesCache(t *testing.T) {
	svc, _, _ := newService(t, Shop{ID: "shop_1", OwnerUserID: "user_1"})
	ctx := context.Background()

	before, err := svc.GetShop(ctx, "shop_1")
	require.NoError(t, err)
	assert.Nil(t, before.ProviderToken)

	_, err = svc.LinkProvider(ctx, "user_1", "square", "tok", "L1")
	require.NoError(t, err)

	after, err := svc.GetShop(ctx, "shop_1")
	require.NoError(t, err)
	assert.NotNil(t, after.ProviderToken)
}

func TestUpgradeLegacyCredential_IsOneWay(t *testing.T) {
	svc, repo, auditRepo := newService(t, Shop{ID: "shop_1", ProviderType: "square", ProviderToken: strp("legacy-token"), ProviderLocationID: strp("L1")})
	ctx := context.Background()

	svc.UpgradeLegacyCredential(ctx, "shop_1", secretbox.ParseStored("legacy-token"))

	stored, _ := repo.GetShop(ctx, "shop_1")
	assert.True(t, secretbox.IsEncrypted(*stored.ProviderToken))
	require.Len(t, auditRepo.Events(), 1)

	// A second report of the same legacy value finds ciphertext and leaves it.
	sealed := *stored.ProviderToken
	svc.UpgradeLegacyCredential(ctx, "shop_1", secretbox.ParseStored("legacy-token"))
	stored, _ = repo.GetShop(ctx, "shop_1")
	assert.Equal(t, sealed, *stored.ProviderToken)
	assert.Len(t, auditRepo.Events(), 1)
}

func TestUpgradeLegacyCredential_WithoutKeyLeavesPlaintext(t *testing.T) {
	noKey, _ := secretbox.New("")
	repo := NewMemoryRepo(Shop{ID: "shop_1", ProviderToken: strp("legacy")})
	svc := NewService(repo, noKey, nil, 0)

	svc.UpgradeLegacyCredential(context.Background(), "shop_1", secretbox.ParseStored("legacy"))
	stored, _ := repo.GetShop(context.Background(), "shop_1")
	assert.Equal(t, "legacy", *stored.ProviderToken)
}

func TestShop_Helpers(t *testing.T) {
	s := Shop{ID: "shop_1", ProviderType: "square", ProviderToken: strp("tok"), ProviderLocationID: strp("L1"), Timezone: strp("America/Chicago")}
	cfg := s.ProviderConfig()
	assert.Equal(t, "tok", cfg.Credential)
	assert.Equal(t, "L1", cfg.LocationID)
	assert.Equal(t, "America/Chicago", s.Location().String())
	assert.Equal(t, "", s.Phone())

	assert.Equal(t, DefaultTimezone, Shop{}.Location().String())
	assert.Equal(t, DefaultTimezone, Shop{Timezone: strp("Mars/Olympus")}.Location().String())
}

func TestMemoryRepo_RejectsEmptySealed(t *testing.T) {
	repo := NewMemoryRepo(Shop{ID: "shop_1"})
	err := repo.UpdateProviderCredential(context.Background(), "shop_1", "square", secretbox.Sealed{}, "L1")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestLinkProvider_WithoutLocationStoresTokenUnconfigured(t *testing.T) {
	svc, repo, _ := newService(t, Shop{ID: "shop_1", OwnerUserID: "user_1"})

	_, err := svc.LinkProvider(context.Background(), "user_1", "square", "sq-token", "")
	require.NoError(t, err)

	stored, _ := repo.GetShop(context.Background(), "shop_1")
	require.NotNil(t, stored.ProviderToken)
	assert.True(t, secretbox.IsEncrypted(*stored.ProviderToken))
	assert.Nil(t, stored.ProviderLocationID)
	assert.Equal(t, "", stored.ProviderConfig().LocationID)
}

func TestUpdateSettings(t *testing.T) {
	svc, _, _ := newService(t, Shop{ID: "shop_1", Name: "Old", Greeting: strp("Hi"), Timezone: strp("America/Chicago")})
	ctx := context.Background()
	_, err := svc.GetShop(ctx, "shop_1")
	require.NoError(t, err)

	got, err := svc.UpdateSettings(ctx, "shop_1", SettingsUpdate{Name: strp("Fade Factory"), Greeting: strp("")})
	require.NoError(t, err)
	assert.Equal(t, "Fade Factory", got.Name)
	assert.Nil(t, got.Greeting)
	assert.Equal(t, "America/Chicago", *got.Timezone)

	cached, err := svc.GetShop(ctx, "shop_1")
	require.NoError(t, err)
	assert.Equal(t, "Fade Factory", cached.Name)
}

func TestUpdateSettings_Rejects(t *testing.T) {
	svc, _, _ := newService(t, Shop{ID: "shop_1", Name: "Old"})
	ctx := context.Background()

	cases := map[string]SettingsUpdate{
		"empty":      {},
		"blank name": {Name: strp("")},
		"bad zone":   {Timezone: strp("Mars/Olympus")},
	}
	for name, u := range cases {
		_, err := svc.UpdateSettings(ctx, "shop_1", u)
		assert.ErrorIs(t, err, ErrInvalidArgument, name)
	}
	_, err := svc.UpdateSettings(ctx, "shop_9", SettingsUpdate{Name: strp("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActivate_KeepsAssignedAgent(t *testing.T) {
	svc, _, _ := newService(t,
		Shop{ID: "shop_1"},
		Shop{ID: "shop_2", VapiAgentID: strp("agent_42")},
	)
	ctx := context.Background()

	got, err := svc.Activate(ctx, "shop_1", "Thanks for calling")
	require.NoError(t, err)
	assert.True(t, got.Activated())
	assert.Equal(t, PendingAgentID, *got.VapiAgentID)
	assert.Equal(t, "Thanks for calling", *got.Greeting)

	got, err = svc.Activate(ctx, "shop_2", "")
	require.NoError(t, err)
	assert.Equal(t, "agent_42", *got.VapiAgentID)
	assert.Nil(t, got.Greeting)
}
