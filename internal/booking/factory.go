package booking

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"barberline/internal/secretbox"
	"barberline/pkg/logger"
)

const ProviderSquare = "square"

// Config is the slice of shop configuration needed to build a Provider.
type Config struct {
	ShopID       string
	ProviderType string
	// Credential is the stored value: ciphertext, or legacy plaintext.
	Credential string
	LocationID string
}

// LegacyCredentialFunc is called after a plaintext credential was read so the
// owner can re-store it sealed.
type LegacyCredentialFunc func(ctx context.Context, shopID string, cred secretbox.Credential)

type Factory struct {
	cipher     *secretbox.Cipher
	httpClient *http.Client
	squareURL  string

	OnLegacyCredential LegacyCredentialFunc
}

// NewFactory builds provider instances per request. squareEnv is "sandbox" or "production".
func NewFactory(cipher *secretbox.Cipher, httpClient *http.Client, squareEnv string) *Factory {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Factory{cipher: cipher, httpClient: httpClient, squareURL: SquareBaseURL(squareEnv)}
}

// WithSquareBaseURL points Square adapters at another host (tests).
func (f *Factory) WithSquareBaseURL(u string) *Factory {
	f.squareURL = u
	return f
}

// Provider selects and configures the backend for a shop.
func (f *Factory) Provider(ctx context.Context, cfg Config) (Provider, error) {
	if cfg.Credential == "" || cfg.LocationID == "" {
		return nil, ErrNotConfigured
	}

	switch cfg.ProviderType {
	case ProviderSquare:
		token, err := f.reveal(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewSquareProvider(f.httpClient, f.squareURL, token, cfg.LocationID), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.ProviderType)
	}
}

// reveal checks the stored form before decrypting so legacy plaintext keeps working.
func (f *Factory) reveal(ctx context.Context, cfg Config) (string, error) {
	cred := secretbox.ParseStored(cfg.Credential)
	token, err := f.cipher.Reveal(cred)
	if err != nil {
		logger.From(ctx).Error("stored provider credential cannot be decrypted", "shop_id", cfg.ShopID, "err", err)
		return "", &ProviderError{Provider: cfg.ProviderType, Op: "credential", Kind: ErrUnavailable, Err: err}
	}
	if cred.IsLegacy() && f.OnLegacyCredential != nil {
		f.OnLegacyCredential(ctx, cfg.ShopID, cred)
	}
	return token, nil
}
