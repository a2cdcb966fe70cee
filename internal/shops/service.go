package shops

import (
	"context"
	"errors"
	"fmt"
	"time"

	"barberline/internal/audit"
	"barberline/internal/secretbox"
	"barberline/pkg/logger"

	gocache "github.com/patrickmn/go-cache"
)

const defaultCacheTTL = 30 * time.Second

// Service fronts the shop store with a short-lived read cache and owns the
// credential write paths so every stored credential goes through the cipher.
type Service struct {
	repo   Repository
	cipher *secretbox.Cipher
	audit  *audit.Service
	cache  *gocache.Cache
}

func NewService(repo Repository, cipher *secretbox.Cipher, auditSvc *audit.Service, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &Service{
		repo:   repo,
		cipher: cipher,
		audit:  auditSvc,
		cache:  gocache.New(cacheTTL, time.Minute),
	}
}

func (s *Service) GetShop(ctx context.Context, id string) (Shop, error) {
	if v, ok := s.cache.Get(id); ok {
		return v.(Shop), nil
	}
	shop, err := s.repo.GetShop(ctx, id)
	if err != nil {
		return Shop{}, err
	}
	s.cache.SetDefault(id, shop)
	return shop, nil
}

// ShopForOwner returns the shop owned by a dashboard user.
func (s *Service) ShopForOwner(ctx context.Context, ownerUserID string) (Shop, error) {
	return s.repo.GetShopByOwner(ctx, ownerUserID)
}

// UpdateSettings applies an owner's settings change and drops the cached
// copy so the voice agent sees it on the next call.
func (s *Service) UpdateSettings(ctx context.Context, shopID string, u SettingsUpdate) (Shop, error) {
	shop, err := s.repo.UpdateSettings(ctx, shopID, u)
	if err != nil {
		return Shop{}, err
	}
	s.cache.Delete(shopID)
	return shop, nil
}

// Activate completes onboarding for a shop.
func (s *Service) Activate(ctx context.Context, shopID, greeting string) (Shop, error) {
	shop, err := s.repo.Activate(ctx, shopID, greeting)
	if err != nil {
		return Shop{}, err
	}
	s.cache.Delete(shopID)
	return shop, nil
}

// LinkProvider seals a freshly obtained provider token and stores it on the
// shop owned by ownerUserID.
func (s *Service) LinkProvider(ctx context.Context, ownerUserID, providerType, token, locationID string) (Shop, error) {
	shop, err := s.repo.GetShopByOwner(ctx, ownerUserID)
	if err != nil {
		return Shop{}, fmt.Errorf("load shop for owner: %w", err)
	}
	sealed, err := s.cipher.Seal(token)
	if err != nil {
		return Shop{}, fmt.Errorf("seal provider token: %w", err)
	}
	if err := s.repo.UpdateProviderCredential(ctx, shop.ID, providerType, sealed, locationID); err != nil {
		return Shop{}, fmt.Errorf("store provider credential: %w", err)
	}
	s.cache.Delete(shop.ID)

	s.audit.Record(ctx, audit.EventCredentialLinked, shop.ID, ownerUserID, "", providerType+" account linked")
	return shop, nil
}

// UpgradeLegacyCredential re-stores a plaintext credential sealed. Failures
// are logged; the plaintext keeps working until a later attempt succeeds.
func (s *Service) UpgradeLegacyCredential(ctx context.Context, shopID string, cred secretbox.Credential) {
	log := logger.From(ctx).With("shop_id", shopID)
	if !cred.IsLegacy() {
		return
	}

	sealed, err := s.cipher.Upgrade(cred)
	if err != nil {
		if errors.Is(err, secretbox.ErrMissingKey) {
			log.Warn("legacy credential left in plaintext: encryption key not configured")
			return
		}
		log.Error("seal legacy credential", "err", err)
		return
	}

	changed, err := s.repo.UpgradeLegacyCredential(ctx, shopID, cred.Stored(), sealed)
	if err != nil {
		log.Error("upgrade legacy credential", "err", err)
		return
	}
	s.cache.Delete(shopID)
	if changed {
		log.Info("legacy credential upgraded")
		s.audit.Record(ctx, audit.EventCredentialUpgraded, shopID, "", "", "plaintext provider credential sealed")
	}
}
