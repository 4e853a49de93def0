package controllers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/formloft/formloft/app/models"
	"github.com/formloft/formloft/app/repository"
	"github.com/formloft/formloft/internal/pkg/blobstore"
	"github.com/formloft/formloft/internal/pkg/tenants"
	"github.com/formloft/formloft/internal/pkg/upload"
)

// SubmitController handles the public intake endpoint. It is a thin wrapper:
// validate, land the files in blob storage, write the pending record. All
// migration logic lives in the processor.
type SubmitController struct {
	reg         *tenants.Registry
	submissions repository.SubmissionRepository
	blobs       *blobstore.Client
	validate    *validator.Validate
}

// NewSubmitController creates the intake controller.
func NewSubmitController(reg *tenants.Registry, submissions repository.SubmissionRepository, blobs *blobstore.Client) *SubmitController {
	return &SubmitController{
		reg:         reg,
		submissions: submissions,
		blobs:       blobs,
		validate:    validator.New(),
	}
}

type intakeFields struct {
	Email string `validate:"required,email"`
	Name  string `validate:"required,max=255"`
}

// HandleCreateSubmission accepts a multipart form with a primary document
// ("document"), optional attachments ("attachments") and arbitrary form
// fields, and creates a pending submission.
func (sc *SubmitController) HandleCreateSubmission(c *fiber.Ctx) error {
	tenantID := c.Params("tenant")
	if !sc.reg.IsConfigured(tenantID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown_tenant", "message": "Tenant is not configured"})
	}
	if !sc.reg.IsFeatureEnabled(tenantID, tenants.FeatureSubmissions) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "feature_disabled", "message": "Submissions are disabled for this tenant"})
	}
	cfg := sc.reg.Get(tenantID)

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid multipart form"})
	}
	defer form.RemoveAll()

	fields := intakeFields{
		Email: firstValue(form.Value, "email"),
		Name:  firstValue(form.Value, "name"),
	}
	if err := sc.validate.Struct(fields); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	primaries := form.File["document"]
	if len(primaries) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Primary document missing"})
	}
	primary := primaries[0]

	attachments := form.File["attachments"]
	if len(attachments) > 0 && !sc.reg.IsFeatureEnabled(tenantID, tenants.FeatureAttachments) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "feature_disabled", "message": "Attachments are disabled for this tenant"})
	}

	sizes := []int64{primary.Size}
	for _, fh := range attachments {
		sizes = append(sizes, fh.Size)
	}
	if err := upload.CheckTenantLimits(cfg, len(attachments)+1, sizes); err != nil {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "limit_exceeded", "message": err.Error()})
	}

	submission := &models.Submission{
		UUID:           uuid.NewString(),
		TenantID:       tenantID,
		SubmitterEmail: fields.Email,
		FormData:       formPayload(form.Value),
		Status:         models.StatusPending,
	}
	prefix := submission.StoragePrefix(cfg.BlobPrefix)

	primaryKey := prefix + safeFileName(primary.Filename)
	primaryType, err := sc.storeFile(c, primary, primaryKey)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "upload_failed", "message": err.Error()})
	}
	submission.PrimaryDocPath = primaryKey

	for _, fh := range attachments {
		key := submission.AttachmentPrefix(cfg.BlobPrefix) + safeFileName(fh.Filename)
		mediaType, err := sc.storeFile(c, fh, key)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "upload_failed", "message": err.Error()})
		}
		submission.Attachments = append(submission.Attachments, models.Attachment{
			FileName:    safeFileName(fh.Filename),
			StoragePath: key,
			Size:        fh.Size,
			MediaType:   mediaType,
		})
	}

	if err := sc.submissions.Create(tenantID, submission); err != nil {
		log.Errorf("[Submit] Failed to create submission for tenant %s: %v", tenantID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to store submission"})
	}

	log.Infof("[Submit] Created submission %s for tenant %s (%d attachments, primary type %s)",
		submission.UUID, tenantID, len(submission.Attachments), primaryType)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"uuid":   submission.UUID,
		"status": submission.Status,
	})
}

// storeFile sniffs, validates and lands one multipart file in blob storage,
// returning the detected media type.
func (sc *SubmitController) storeFile(c *fiber.Ctx, fh *multipart.FileHeader, key string) (string, error) {
	file, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", fh.Filename, err)
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("cannot read %s: %w", fh.Filename, err)
	}
	mediaType, err := upload.ValidateFileBySniff(fh.Filename, head[:n])
	if err != nil {
		return "", err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("cannot rewind %s: %w", fh.Filename, err)
	}
	if err := sc.blobs.Upload(c.Context(), key, file, fh.Size, mediaType); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", fh.Filename, err)
	}
	return mediaType, nil
}

// formPayload serializes all remaining form fields into the schema-less
// payload column. Validation of tenant-specific fields happens here at the
// boundary; the processor stays payload-agnostic.
func formPayload(values map[string][]string) models.JSON {
	payload := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			payload[key] = vals[0]
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return models.JSON("{}")
	}
	return models.JSON(data)
}

func firstValue(values map[string][]string, key string) string {
	if vals, ok := values[key]; ok && len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// safeFileName strips any path components a client may smuggle into the
// file name.
func safeFileName(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "upload.bin"
	}
	return base
}
