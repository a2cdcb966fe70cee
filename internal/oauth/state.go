// Package oauth links a shop's booking provider account through the
// provider's OAuth authorization-code flow.
package oauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	StateCookie = "square_oauth_state"
	CookiePath  = "/oauth"
	StateTTL    = 10 * time.Minute

	stateBytes = 32
)

// StateGuard binds an authorization request to the browser that started it.
// The state value lives in an HttpOnly cookie scoped to the OAuth routes and
// is good for exactly one callback.
type StateGuard struct {
	CookieName string
	Path       string
	TTL        time.Duration
	Secure     bool
}

func NewStateGuard() StateGuard {
	return StateGuard{CookieName: StateCookie, Path: CookiePath, TTL: StateTTL, Secure: true}
}

// Issue generates a fresh state and sets it on the response.
func (g StateGuard) Issue(c *gin.Context) (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	g.set(c, g.CookieName, state, int(g.TTL/time.Second))
	return state, nil
}

// Consume clears the state cookie and reports whether requestState matches it.
// The cookie is cleared on every outcome.
func (g StateGuard) Consume(c *gin.Context, requestState string) bool {
	stored, err := c.Cookie(g.CookieName)
	g.set(c, g.CookieName, "", -1)
	if err != nil || stored == "" || requestState == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(requestState)) == 1
}

func (g StateGuard) set(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, g.Path, "", g.Secure, true)
}
