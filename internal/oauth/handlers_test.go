package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"barberline/internal/audit"
	"barberline/internal/auth"
	"barberline/internal/secretbox"
	"barberline/internal/shops"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appURL = "https://app.test"

type fakeExchanger struct {
	exchanges  int
	err        error
	locErr     error
	noLocation bool
}

func (f *fakeExchanger) AuthorizeURL(state, redirectURI string) string {
	return "https://connect.test/oauth2/authorize?" + url.Values{"state": {state}, "redirect_uri": {redirectURI}}.Encode()
}

func (f *fakeExchanger) ExchangeCode(_ context.Context, code, _ string) (Token, error) {
	f.exchanges++
	if f.err != nil {
		return Token{}, f.err
	}
	return Token{AccessToken: "tok-" + code}, nil
}

func (f *fakeExchanger) FirstLocationID(context.Context, string) (string, error) {
	if f.noLocation {
		return "", f.locErr
	}
	return "LOC1", f.locErr
}

type flow struct {
	router *gin.Engine
	ex     *fakeExchanger
	repo   *shops.MemoryRepo
	audit  *audit.MemoryRepo
}

func newFlow(t *testing.T, seed ...shops.Shop) *flow {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cipher, err := secretbox.New(strings.Repeat("ab", 32))
	require.NoError(t, err)
	f := &flow{
		ex:    &fakeExchanger{},
		repo:  shops.NewMemoryRepo(seed...),
		audit: audit.NewMemoryRepo(),
	}
	auditSvc := audit.NewService(f.audit)
	h := Handlers{
		Square: f.ex,
		Shops:  shops.NewService(f.repo, cipher, auditSvc, 0),
		State:  NewStateGuard(),
		Audit:  auditSvc,
		AppURL: appURL,
	}

	r := gin.New()
	g := r.Group("/oauth", func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithUserID(c.Request.Context(), "user_1"))
		c.Next()
	})
	g.GET("/start", h.Start)
	g.GET("/callback", h.Callback)
	f.router = r
	return f
}

func ownedShop() shops.Shop {
	return shops.Shop{ID: "shop_1", OwnerUserID: "user_1", Name: "Fade Factory"}
}

func (f *flow) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *flow) start(t *testing.T, query string) (string, []*http.Cookie) {
	t.Helper()
	w := f.get("/oauth/start" + query)
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, appURL+CallbackPath, loc.Query().Get("redirect_uri"))
	return loc.Query().Get("state"), w.Result().Cookies()
}

func TestOAuthFlow_LinksAccount(t *testing.T) {
	f := newFlow(t, ownedShop())
	state, cookies := f.start(t, "")
	require.Equal(t, state, cookieValue(cookies, StateCookie))

	w := f.get("/oauth/callback?code=abc&state="+url.QueryEscape(state), cookies...)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, appURL+IntegrationsPath+"?success=true", w.Header().Get("Location"))
	assert.Equal(t, 1, f.ex.exchanges)

	shop, err := f.repo.GetShop(context.Background(), "shop_1")
	require.NoError(t, err)
	require.NotNil(t, shop.ProviderToken)
	assert.True(t, strings.HasPrefix(*shop.ProviderToken, secretbox.Prefix))
	assert.NotContains(t, *shop.ProviderToken, "tok-abc")
	require.NotNil(t, shop.ProviderLocationID)
	assert.Equal(t, "LOC1", *shop.ProviderLocationID)

	events := f.audit.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventCredentialLinked, events[0].Type)

	// The state is single-use.
	w = f.get("/oauth/callback?code=abc&state="+url.QueryEscape(state), &http.Cookie{Name: StateCookie, Value: ""})
	assert.Contains(t, w.Header().Get("Location"), "error="+ReasonCSRFMismatch)
	assert.Equal(t, 1, f.ex.exchanges)
}

func TestOAuthFlow_NoActiveLocation(t *testing.T) {
	f := newFlow(t, ownedShop())
	f.ex.noLocation = true
	state, cookies := f.start(t, "")

	w := f.get("/oauth/callback?code=abc&state="+url.QueryEscape(state), cookies...)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, appURL+IntegrationsPath+"?success=true", w.Header().Get("Location"))

	shop, err := f.repo.GetShop(context.Background(), "shop_1")
	require.NoError(t, err)
	require.NotNil(t, shop.ProviderToken, "token is kept even without a location")
	assert.True(t, strings.HasPrefix(*shop.ProviderToken, secretbox.Prefix))
	assert.Nil(t, shop.ProviderLocationID)
}

func TestOAuthFlow_StateMismatchSkipsExchange(t *testing.T) {
	f := newFlow(t, ownedShop())
	_, cookies := f.start(t, "")

	w := f.get("/oauth/callback?code=abc&state=forged", cookies...)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, appURL+IntegrationsPath+"?error="+ReasonCSRFMismatch, w.Header().Get("Location"))
	assert.Zero(t, f.ex.exchanges)

	ck := findCookie(w.Result(), StateCookie)
	require.NotNil(t, ck)
	assert.Less(t, ck.MaxAge, 0)

	events := f.audit.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventCSRFMismatch, events[0].Type)
}

func TestOAuthFlow_MissingCookie(t *testing.T) {
	f := newFlow(t, ownedShop())
	w := f.get("/oauth/callback?code=abc&state=anything")
	assert.Contains(t, w.Header().Get("Location"), "error="+ReasonCSRFMismatch)
	assert.Zero(t, f.ex.exchanges)
}

func TestOAuthFlow_FailureReasons(t *testing.T) {
	cases := []struct {
		name   string
		code   string
		setup  func(f *flow)
		reason string
	}{
		{"missing code", "", func(*flow) {}, ReasonMissingCode},
		{"exchange fails", "abc", func(f *flow) { f.ex.err = errors.New("boom") }, ReasonOAuthFailed},
		{"location lookup fails", "abc", func(f *flow) { f.ex.locErr = errors.New("boom") }, ReasonOAuthFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFlow(t, ownedShop())
			tc.setup(f)
			state, cookies := f.start(t, "")
			w := f.get("/oauth/callback?code="+tc.code+"&state="+url.QueryEscape(state), cookies...)
			assert.Equal(t, appURL+IntegrationsPath+"?error="+tc.reason, w.Header().Get("Location"))
		})
	}
}

func TestOAuthFlow_NoShopForUser(t *testing.T) {
	f := newFlow(t)
	state, cookies := f.start(t, "")
	w := f.get("/oauth/callback?code=abc&state="+url.QueryEscape(state), cookies...)
	assert.Equal(t, appURL+IntegrationsPath+"?error="+ReasonDBUpdate, w.Header().Get("Location"))
}

func TestOAuthFlow_ReturnTo(t *testing.T) {
	f := newFlow(t, ownedShop())
	state, cookies := f.start(t, "?returnTo="+url.QueryEscape("/dashboard/onboarding"))

	w := f.get("/oauth/callback?code=abc&state="+url.QueryEscape(state), cookies...)
	assert.Equal(t, appURL+"/dashboard/onboarding?success=true", w.Header().Get("Location"))

	f = newFlow(t, ownedShop())
	state, cookies = f.start(t, "?returnTo="+url.QueryEscape("https://evil.example/"))
	w = f.get("/oauth/callback?code=abc&state="+url.QueryEscape(state), cookies...)
	assert.Equal(t, appURL+IntegrationsPath+"?success=true", w.Header().Get("Location"))
}

func TestStart_RequiresIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := Handlers{Square: &fakeExchanger{}, State: NewStateGuard(), AppURL: appURL}
	r := gin.New()
	r.GET("/oauth/start", h.Start)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/oauth/start", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func cookieValue(cs []*http.Cookie, name string) string {
	for _, c := range cs {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
