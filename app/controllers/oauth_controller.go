package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/formloft/formloft/app/models"
	"github.com/formloft/formloft/internal/pkg/credentials"
	"github.com/formloft/formloft/internal/pkg/tenants"
)

// tenantCookie carries the tenant through the OAuth round trip. The provider
// redirect cannot carry our own query parameters, so the begin handler pins
// the tenant in a short-lived cookie and the callback reads it back.
const tenantCookie = "formloft_oauth_tenant"

// OAuthController runs the operator consent flow that authorizes the
// document store for a tenant.
type OAuthController struct {
	reg   *tenants.Registry
	creds *credentials.Store
}

// NewOAuthController creates the OAuth controller.
func NewOAuthController(reg *tenants.Registry, creds *credentials.Store) *OAuthController {
	return &OAuthController{reg: reg, creds: creds}
}

// HandleBeginAuth starts the consent flow for the tenant given in the
// "tenant" query parameter.
func (oc *OAuthController) HandleBeginAuth(c *fiber.Ctx) error {
	tenantID := c.Query("tenant")
	if !oc.reg.IsConfigured(tenantID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown_tenant", "message": "Tenant is not configured"})
	}

	c.Cookie(&fiber.Cookie{
		Name:     tenantCookie,
		Value:    tenantID,
		Expires:  time.Now().Add(10 * time.Minute),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return gothfiber.BeginAuthHandler(c)
}

// HandleAuthCallback completes the consent flow and stores the resulting
// token for the operator identity.
func (oc *OAuthController) HandleAuthCallback(c *fiber.Ctx) error {
	user, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		log.Errorf("[OAuth] Consent flow failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "auth_failed", "message": "Authorization was not completed"})
	}

	tenantID := c.Cookies(tenantCookie)
	if !oc.reg.IsConfigured(tenantID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "No tenant associated with this consent flow"})
	}
	c.ClearCookie(tenantCookie)

	identity := models.IdentityKey(user.Email, tenantID)
	cred := &models.OAuthCredential{
		IdentityKey:   identity,
		OperatorEmail: user.Email,
		TenantID:      tenantID,
		AccessToken:   user.AccessToken,
		RefreshToken:  user.RefreshToken,
	}
	if !user.ExpiresAt.IsZero() {
		expiry := user.ExpiresAt
		cred.ExpiresAt = &expiry
	}

	// Re-consenting must not lose the folder the processor already uses.
	if existing, err := oc.creds.Get(tenantID, identity); err == nil {
		cred.RootFolderID = existing.RootFolderID
	}

	if err := oc.creds.Save(tenantID, cred); err != nil {
		log.Errorf("[OAuth] Failed to store credential for %s: %v", identity, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to store credential"})
	}

	log.Infof("[OAuth] Stored credential for %s", identity)
	return c.JSON(fiber.Map{
		"operator": user.Email,
		"tenant":   tenantID,
		"status":   "authorized",
	})
}
