package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/formloft/formloft/app/controllers"
	"github.com/formloft/formloft/app/repository"
	"github.com/formloft/formloft/internal/pkg/credentials"
	"github.com/formloft/formloft/internal/pkg/oauth"
	"github.com/formloft/formloft/internal/pkg/tenants"
)

// AuthRouter installs the operator consent flow endpoints.
type AuthRouter struct {
	reg *tenants.Registry
}

func NewAuthRouter(reg *tenants.Registry) *AuthRouter {
	return &AuthRouter{reg: reg}
}

func (h *AuthRouter) InstallRouter(app *fiber.App) {
	oauth.Setup()

	repos := repository.GetGlobalFactory().GetRepositories()
	provider, err := oauth.GoogleProvider()
	if err != nil {
		log.Fatalf("[Router] OAuth provider not configured: %v", err)
	}
	creds := credentials.NewStore(repos.Credential, provider)
	oauthController := controllers.NewOAuthController(h.reg, creds)

	app.Get("/auth/:provider", oauthController.HandleBeginAuth)
	app.Get("/auth/:provider/callback", oauthController.HandleAuthCallback)
}
