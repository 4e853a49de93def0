package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/formloft/formloft/app/controllers"
	"github.com/formloft/formloft/app/repository"
	"github.com/formloft/formloft/internal/pkg/blobstore"
	"github.com/formloft/formloft/internal/pkg/credentials"
	"github.com/formloft/formloft/internal/pkg/docstore"
	"github.com/formloft/formloft/internal/pkg/middleware"
	"github.com/formloft/formloft/internal/pkg/oauth"
	"github.com/formloft/formloft/internal/pkg/processor"
	"github.com/formloft/formloft/internal/pkg/ratelimit"
	"github.com/formloft/formloft/internal/pkg/tenants"
)

// ApiRouter installs the tenant-scoped intake and admin endpoints.
type ApiRouter struct {
	reg *tenants.Registry
}

func NewApiRouter(reg *tenants.Registry) *ApiRouter {
	return &ApiRouter{reg: reg}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	repos := repository.GetGlobalFactory().GetRepositories()

	blobConfig, err := blobstore.LoadConfig()
	if err != nil {
		log.Fatalf("[Router] Blob storage configuration invalid: %v", err)
	}
	blobs, err := blobstore.NewClient(blobConfig)
	if err != nil {
		log.Fatalf("[Router] Failed to connect blob storage: %v", err)
	}

	provider, err := oauth.GoogleProvider()
	if err != nil {
		log.Fatalf("[Router] OAuth provider not configured: %v", err)
	}
	creds := credentials.NewStore(repos.Credential, provider)
	proc := processor.New(h.reg, repos.Submission, creds, blobs, func(accessToken string) processor.DocumentStore {
		return docstore.NewClient(accessToken)
	})

	limiter := ratelimit.NewLimiter(h.reg)
	submitController := controllers.NewSubmitController(h.reg, repos.Submission, blobs)
	adminController := controllers.NewAdminController(h.reg, repos.Submission, proc)

	v1 := app.Group("/api/v1")

	v1.Post("/:tenant/submissions", middleware.RateLimitMiddleware(limiter), submitController.HandleCreateSubmission)

	admin := v1.Group("/:tenant/admin", middleware.AdminAuthMiddleware(h.reg))
	admin.Get("/submissions", adminController.HandleListSubmissions)
	admin.Post("/submissions/:uuid/status", adminController.HandleUpdateStatus)
	admin.Post("/process", adminController.HandleProcessSubmissions)
}
