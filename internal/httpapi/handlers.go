package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"barberline/internal/auth"
	"barberline/internal/reporting"
	"barberline/internal/shops"
	"barberline/pkg/logger"

	"github.com/gin-gonic/gin"
)

const shopKey = "shop"

type OwnerShops interface {
	ShopForOwner(ctx context.Context, ownerUserID string) (shops.Shop, error)
	UpdateSettings(ctx context.Context, shopID string, u shops.SettingsUpdate) (shops.Shop, error)
	Activate(ctx context.Context, shopID, greeting string) (shops.Shop, error)
}

// Handlers groups the dashboard's HTTP handlers.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Shops   OwnerShops
	Reports *reporting.Service
}

// RequireShop resolves the session user's shop and makes it available to
// the handlers below. It must run after session auth.
func (h Handlers) RequireShop() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := auth.UserID(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		shop, err := h.Shops.ShopForOwner(c.Request.Context(), userID)
		if errors.Is(err, shops.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Shop not found"})
			return
		}
		if err != nil {
			logger.FromGin(c).Error("load owner shop failed", "user_id", userID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load shop"})
			return
		}
		logger.WithShop(c, shop.ID)
		c.Set(shopKey, shop)
		c.Next()
	}
}

func currentShop(c *gin.Context) (shops.Shop, bool) {
	v, ok := c.Get(shopKey)
	if !ok {
		return shops.Shop{}, false
	}
	shop, ok := v.(shops.Shop)
	return shop, ok
}

// GetShop returns the caller's shop. Credentials are never serialized.
func (h Handlers) GetShop(c *gin.Context) {
	shop, ok := currentShop(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"shop":              shop,
		"providerConnected": shop.ProviderToken != nil && shop.ProviderLocationID != nil && *shop.ProviderLocationID != "",
	})
}

func (h Handlers) ListCalls(c *gin.Context) {
	shop, ok := currentShop(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	page, err := h.Reports.CallLogs(c.Request.Context(), shop.ID, queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		logger.FromGin(c).Error("list call logs failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch call logs"})
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h Handlers) Analytics(c *gin.Context) {
	shop, ok := currentShop(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	out, err := h.Reports.Analytics(c.Request.Context(), reporting.AnalyticsRequest{
		ShopID:   shop.ID,
		Days:     queryInt(c, "days"),
		Location: shop.Location(),
	})
	if err != nil {
		logger.FromGin(c).Error("analytics failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch analytics"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// queryInt parses an optional integer query parameter; junk reads as zero.
func queryInt(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return n
}

// settingsFields is the whitelist of owner-editable shop columns.
var settingsFields = []string{"name", "timezone", "greeting"}

func settingsView(shop shops.Shop) gin.H {
	return gin.H{
		"name":        shop.Name,
		"timezone":    deref(shop.Timezone),
		"greeting":    deref(shop.Greeting),
		"hasSquare":   shop.ProviderToken != nil && *shop.ProviderToken != "",
		"hasVapi":     shop.Activated(),
		"phoneNumber": deref(shop.PhoneNumber),
	}
}

func (h Handlers) GetSettings(c *gin.Context) {
	shop, ok := currentShop(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, settingsView(shop))
}

// UpdateSettings applies whitelisted fields; anything else in the body is
// ignored. A null timezone or greeting clears it.
func (h Handlers) UpdateSettings(c *gin.Context) {
	shop, ok := currentShop(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	var u shops.SettingsUpdate
	for _, field := range settingsFields {
		raw, present := body[field]
		if !present {
			continue
		}
		var v *string
		if err := json.Unmarshal(raw, &v); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid value for " + field})
			return
		}
		val := ""
		if v != nil {
			val = strings.TrimSpace(*v)
		}
		switch field {
		case "name":
			u.Name = &val
		case "timezone":
			u.Timezone = &val
		case "greeting":
			u.Greeting = &val
		}
	}
	if u.Empty() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "No valid fields to update"})
		return
	}

	updated, err := h.Shops.UpdateSettings(c.Request.Context(), shop.ID, u)
	switch {
	case errors.Is(err, shops.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid settings"})
		return
	case errors.Is(err, shops.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Shop not found"})
		return
	case err != nil:
		logger.FromGin(c).Error("update settings failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to update settings"})
		return
	}
	c.JSON(http.StatusOK, settingsView(updated))
}

type activateRequest struct {
	ShopID   string `json:"shopId"`
	Greeting string `json:"greeting"`
}

// Activate finishes onboarding: it saves the greeting and marks the voice
// agent as pending setup.
func (h Handlers) Activate(c *gin.Context) {
	shop, ok := currentShop(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	// A named shop must be the caller's own.
	if req.ShopID != "" && req.ShopID != shop.ID {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Shop not found"})
		return
	}
	greeting := strings.TrimSpace(req.Greeting)
	if err := (shops.SettingsUpdate{Greeting: &greeting}).Validate(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid greeting"})
		return
	}

	if _, err := h.Shops.Activate(c.Request.Context(), shop.ID, greeting); err != nil {
		logger.FromGin(c).Error("activate shop failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to activate"})
		return
	}
	logger.FromGin(c).Info("shop activated")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
