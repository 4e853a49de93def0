package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/formloft/formloft/app/models"
	"github.com/formloft/formloft/app/repository"
	"github.com/formloft/formloft/internal/pkg/cache"
	"github.com/formloft/formloft/internal/pkg/credentials"
	"github.com/formloft/formloft/internal/pkg/middleware"
	"github.com/formloft/formloft/internal/pkg/processor"
	"github.com/formloft/formloft/internal/pkg/tenants"
)

// processLockTTL caps how long a stuck batch can hold the per-tenant lease.
const processLockTTL = 10 * time.Minute

// AdminController exposes the fulfillment endpoints: list submissions, move
// them through the manual workflow and trigger the migration batch.
type AdminController struct {
	reg         *tenants.Registry
	submissions repository.SubmissionRepository
	processor   *processor.Processor
}

// NewAdminController creates the admin controller.
func NewAdminController(reg *tenants.Registry, submissions repository.SubmissionRepository, proc *processor.Processor) *AdminController {
	return &AdminController{
		reg:         reg,
		submissions: submissions,
		processor:   proc,
	}
}

// HandleListSubmissions returns the tenant's submissions, newest first.
func (ac *AdminController) HandleListSubmissions(c *fiber.Ctx) error {
	tenantID := c.Params("tenant")

	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	submissions, err := ac.submissions.List(tenantID, offset, limit)
	if err != nil {
		log.Errorf("[Admin] Failed to list submissions for tenant %s: %v", tenantID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list submissions"})
	}

	total, err := ac.submissions.Count(tenantID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count submissions"})
	}

	return c.JSON(fiber.Map{
		"submissions": submissions,
		"total":       total,
		"offset":      offset,
		"limit":       limit,
	})
}

type updateStatusRequest struct {
	Status models.SubmissionStatus `json:"status"`
}

// HandleUpdateStatus applies an admin status transition. Completing a
// submission deletes its record.
func (ac *AdminController) HandleUpdateStatus(c *fiber.Ctx) error {
	tenantID := c.Params("tenant")
	submissionUUID := c.Params("uuid")
	operator, _ := c.Locals(middleware.KeyOperatorEmail).(string)

	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if !req.Status.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Unknown status: " + string(req.Status)})
	}

	if err := ac.submissions.UpdateStatus(tenantID, submissionUUID, req.Status, operator); err != nil {
		log.Warnf("[Admin] Status update failed for %s/%s: %v", tenantID, submissionUUID, err)
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "transition_rejected", "message": err.Error()})
	}

	log.Infof("[Admin] Submission %s/%s moved to %s by %s", tenantID, submissionUUID, req.Status, operator)
	return c.JSON(fiber.Map{"uuid": submissionUUID, "status": req.Status})
}

// HandleProcessSubmissions runs the migration batch synchronously and
// returns its result. A per-tenant lease keeps concurrent triggers mutually
// exclusive; authentication failures are surfaced distinctly so the operator
// can re-authorize instead of retrying.
func (ac *AdminController) HandleProcessSubmissions(c *fiber.Ctx) error {
	tenantID := c.Params("tenant")
	if !ac.reg.IsFeatureEnabled(tenantID, tenants.FeatureProcessing) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "feature_disabled", "message": "Processing is disabled for this tenant"})
	}

	lockKey := "formloft:process:" + tenantID
	token, acquired, err := cache.AcquireLock(lockKey, processLockTTL)
	if err != nil {
		log.Errorf("[Admin] Failed to acquire process lock for tenant %s: %v", tenantID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to acquire processing lock"})
	}
	if !acquired {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "already_running", "message": "A batch run is already in progress for this tenant"})
	}
	defer func() {
		if err := cache.ReleaseLock(lockKey, token); err != nil {
			log.Warnf("[Admin] Failed to release process lock for tenant %s: %v", tenantID, err)
		}
	}()

	result, err := ac.processor.Run(c.Context(), tenantID)
	if err != nil {
		if errors.Is(err, credentials.ErrNoCredential) {
			// nothing happened; the operator must re-authorize, not retry
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "not_authenticated",
				"message": "No valid document store credential; re-run the OAuth consent",
			})
		}
		log.Errorf("[Admin] Batch run failed for tenant %s: %v", tenantID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "batch_failed", "message": err.Error()})
	}

	return c.JSON(result)
}
