package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/formloft/formloft/app/models"
	"github.com/formloft/formloft/internal/pkg/tenants"
)

// submissionRepository implements the SubmissionRepository interface
type submissionRepository struct {
	db  *gorm.DB
	reg *tenants.Registry
}

// NewSubmissionRepository creates a new submission repository instance
func NewSubmissionRepository(db *gorm.DB, reg *tenants.Registry) SubmissionRepository {
	return &submissionRepository{db: db, reg: reg}
}

func (r *submissionRepository) table(tenantID string) *gorm.DB {
	return r.db.Table(r.reg.Get(tenantID).Collection(tenants.CollectionSubmissions))
}

// Create creates a new submission record
func (r *submissionRepository) Create(tenantID string, submission *models.Submission) error {
	return r.table(tenantID).Create(submission).Error
}

// GetByUUID retrieves a submission by its UUID
func (r *submissionRepository) GetByUUID(tenantID, uuid string) (*models.Submission, error) {
	var submission models.Submission
	err := r.table(tenantID).Where("uuid = ?", uuid).First(&submission).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

// ListPending returns every submission still awaiting migration, oldest
// first. Synced and completed submissions never show up here, which is what
// makes processor re-runs idempotent.
func (r *submissionRepository) ListPending(tenantID string) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.table(tenantID).
		Where("status = ?", models.StatusPending).
		Order("created_at ASC").
		Find(&submissions).Error
	return submissions, err
}

// List returns submissions for the admin fulfillment view, newest first
func (r *submissionRepository) List(tenantID string, offset, limit int) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.table(tenantID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&submissions).Error
	return submissions, err
}

// Update persists the full submission record. Select("*") forces zero
// values through, so a successful migration clears processing_error.
func (r *submissionRepository) Update(tenantID string, submission *models.Submission) error {
	return r.table(tenantID).
		Where("uuid = ?", submission.UUID).
		Select("*").Omit("id", "created_at").
		Updates(submission).Error
}

// UpdateStatus validates and applies an admin status transition. Completed
// submissions are deleted outright, not flagged; completed work has no
// further operational value.
func (r *submissionRepository) UpdateStatus(tenantID, uuid string, status models.SubmissionStatus, actor string) error {
	submission, err := r.GetByUUID(tenantID, uuid)
	if err != nil {
		return err
	}
	if !submission.Status.CanTransitionTo(status) {
		return fmt.Errorf("illegal status transition %s -> %s for submission %s", submission.Status, status, uuid)
	}
	if status == models.StatusCompleted {
		return r.Delete(tenantID, uuid)
	}
	return r.table(tenantID).
		Where("uuid = ?", uuid).
		Updates(map[string]any{
			"status":     status,
			"updated_by": actor,
			"updated_at": time.Now(),
		}).Error
}

// Delete removes a submission record
func (r *submissionRepository) Delete(tenantID, uuid string) error {
	return r.table(tenantID).Where("uuid = ?", uuid).Delete(&models.Submission{}).Error
}

// Count returns the total number of submissions for a tenant
func (r *submissionRepository) Count(tenantID string) (int64, error) {
	var count int64
	err := r.table(tenantID).Count(&count).Error
	return count, err
}
