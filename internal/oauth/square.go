package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"barberline/internal/booking"
)

// Scopes requested when linking a Square seller account.
var Scopes = []string{
	"APPOINTMENTS_READ",
	"APPOINTMENTS_WRITE",
	"ITEMS_READ",
	"MERCHANT_PROFILE_READ",
}

var ErrNoAccessToken = errors.New("oauth: no access token returned")

type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	MerchantID   string
}

// SquareClient performs the Square OAuth exchange over plain REST.
type SquareClient struct {
	client    *http.Client
	baseURL   string
	appID     string
	appSecret string
}

func NewSquareClient(client *http.Client, env, appID, appSecret string) *SquareClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SquareClient{client: client, baseURL: booking.SquareBaseURL(env), appID: appID, appSecret: appSecret}
}

// WithBaseURL points the client at another host (tests).
func (s *SquareClient) WithBaseURL(u string) *SquareClient {
	s.baseURL = strings.TrimRight(u, "/")
	return s
}

func (s *SquareClient) AuthorizeURL(state, redirectURI string) string {
	q := url.Values{}
	q.Set("client_id", s.appID)
	q.Set("scope", strings.Join(Scopes, " "))
	q.Set("session", "false")
	q.Set("state", state)
	q.Set("redirect_uri", redirectURI)
	return s.baseURL + "/oauth2/authorize?" + q.Encode()
}

type obtainTokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code"`
	GrantType    string `json:"grant_type"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
}

type obtainTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at"`
	MerchantID   string `json:"merchant_id"`
}

// ExchangeCode trades an authorization code for an access token.
func (s *SquareClient) ExchangeCode(ctx context.Context, code, redirectURI string) (Token, error) {
	body, err := json.Marshal(obtainTokenRequest{
		ClientID:     s.appID,
		ClientSecret: s.appSecret,
		Code:         code,
		GrantType:    "authorization_code",
		RedirectURI:  redirectURI,
	})
	if err != nil {
		return Token{}, err
	}
	var out obtainTokenResponse
	if err := s.do(ctx, http.MethodPost, "/oauth2/token", "", body, &out); err != nil {
		return Token{}, fmt.Errorf("obtain token: %w", err)
	}
	if out.AccessToken == "" {
		return Token{}, ErrNoAccessToken
	}
	t := Token{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken, MerchantID: out.MerchantID}
	if exp, err := time.Parse(time.RFC3339, out.ExpiresAt); err == nil {
		t.ExpiresAt = exp
	}
	return t, nil
}

type listLocationsResponse struct {
	Locations []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"locations"`
}

// FirstLocationID returns the seller's first active location, or "" when the
// account has none.
func (s *SquareClient) FirstLocationID(ctx context.Context, accessToken string) (string, error) {
	var out listLocationsResponse
	if err := s.do(ctx, http.MethodGet, "/v2/locations", accessToken, nil, &out); err != nil {
		return "", fmt.Errorf("list locations: %w", err)
	}
	for _, l := range out.Locations {
		if l.Status == "" || l.Status == "ACTIVE" {
			return l.ID, nil
		}
	}
	return "", nil
}

func (s *SquareClient) do(ctx context.Context, method, path, token string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Square-Version", booking.SquareAPIVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Error bodies can echo request fields; only the status is kept.
		return fmt.Errorf("square returned %d", resp.StatusCode)
	}
	return json.Unmarshal(raw, out)
}
