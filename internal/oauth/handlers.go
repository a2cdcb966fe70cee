package oauth

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"barberline/internal/audit"
	"barberline/internal/auth"
	"barberline/internal/booking"
	"barberline/internal/metrics"
	"barberline/internal/ratelimit"
	"barberline/internal/shops"
	"barberline/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	ReturnToCookie     = "square_oauth_return"
	IntegrationsPath   = "/dashboard/settings/integrations"
	CallbackPath       = "/oauth/callback"
	ReasonMissingCode  = "missing_code"
	ReasonCSRFMismatch = "csrf_mismatch"
	ReasonOAuthFailed  = "oauth_failed"
	ReasonDBUpdate     = "db_update_failed"
)

type Exchanger interface {
	AuthorizeURL(state, redirectURI string) string
	ExchangeCode(ctx context.Context, code, redirectURI string) (Token, error)
	FirstLocationID(ctx context.Context, accessToken string) (string, error)
}

type Linker interface {
	LinkProvider(ctx context.Context, ownerUserID, providerType, token, locationID string) (shops.Shop, error)
}

// Handlers serves the dashboard's "connect Square" flow. Both routes sit
// behind session auth.
type Handlers struct {
	Square Exchanger
	Shops  Linker
	State  StateGuard
	Audit  *audit.Service

	// AppURL is the public base URL; redirects and the callback URI hang off it.
	AppURL string
}

func (h Handlers) redirectURI() string {
	return h.AppURL + CallbackPath
}

// Start issues a state cookie and sends the browser to the consent screen.
func (h Handlers) Start(c *gin.Context) {
	if _, err := auth.UserID(c.Request.Context()); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	state, err := h.State.Issue(c)
	if err != nil {
		logger.FromGin(c).Error("issue oauth state", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if rt := c.Query("returnTo"); safeReturnPath(rt) {
		h.State.set(c, ReturnToCookie, rt, int(h.State.TTL.Seconds()))
	}
	c.Redirect(http.StatusFound, h.Square.AuthorizeURL(state, h.redirectURI()))
}

// Callback validates state, exchanges the code and stores the sealed token.
func (h Handlers) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromGin(c)
	userID, err := auth.UserID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	stateOK := h.State.Consume(c, c.Query("state"))
	returnTo := h.consumeReturnTo(c)
	finish := func(key, value string) {
		if key == "success" {
			metrics.OAuthLink("success")
		} else {
			metrics.OAuthLink(value)
		}
		c.Redirect(http.StatusFound, h.resultURL(returnTo, key, value))
	}

	if !stateOK {
		log.Warn("oauth callback state mismatch", "user_id", userID)
		h.Audit.Record(ctx, audit.EventCSRFMismatch, "", userID, ratelimit.ClientIP(c), "square oauth callback state did not match")
		finish("error", ReasonCSRFMismatch)
		return
	}
	code := c.Query("code")
	if code == "" {
		finish("error", ReasonMissingCode)
		return
	}

	tok, err := h.Square.ExchangeCode(ctx, code, h.redirectURI())
	if err != nil {
		log.Error("square oauth exchange failed", "err", err)
		finish("error", ReasonOAuthFailed)
		return
	}
	locationID, err := h.Square.FirstLocationID(ctx, tok.AccessToken)
	if err != nil {
		log.Error("square location lookup failed", "err", err)
		finish("error", ReasonOAuthFailed)
		return
	}

	shop, err := h.Shops.LinkProvider(ctx, userID, booking.ProviderSquare, tok.AccessToken, locationID)
	if err != nil {
		log.Error("store square credential failed", "user_id", userID, "err", err)
		finish("error", ReasonDBUpdate)
		return
	}
	log.Info("square account linked", "shop_id", shop.ID, "has_location", locationID != "")
	finish("success", "true")
}

func (h Handlers) consumeReturnTo(c *gin.Context) string {
	v, err := c.Cookie(ReturnToCookie)
	if err != nil {
		return ""
	}
	h.State.set(c, ReturnToCookie, "", -1)
	if !safeReturnPath(v) {
		return ""
	}
	return v
}

func (h Handlers) resultURL(returnTo, key, value string) string {
	path := IntegrationsPath
	if returnTo != "" {
		path = returnTo
	}
	u, err := url.Parse(h.AppURL + path)
	if err != nil {
		u, _ = url.Parse(h.AppURL + IntegrationsPath)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

// safeReturnPath accepts same-origin absolute paths only.
func safeReturnPath(p string) bool {
	if p == "" || !strings.HasPrefix(p, "/") {
		return false
	}
	if strings.HasPrefix(p, "//") || strings.HasPrefix(p, `/\`) {
		return false
	}
	return !strings.ContainsAny(p, "\r\n")
}
