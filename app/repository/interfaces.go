package repository

import (
	"gorm.io/gorm"

	"github.com/formloft/formloft/app/models"
	"github.com/formloft/formloft/internal/pkg/tenants"
)

// SubmissionRepository defines the interface for submission-related database operations.
// Every method is scoped to a tenant; table names are resolved through the registry.
type SubmissionRepository interface {
	Create(tenantID string, submission *models.Submission) error
	GetByUUID(tenantID, uuid string) (*models.Submission, error)
	ListPending(tenantID string) ([]models.Submission, error)
	List(tenantID string, offset, limit int) ([]models.Submission, error)
	Update(tenantID string, submission *models.Submission) error
	UpdateStatus(tenantID, uuid string, status models.SubmissionStatus, actor string) error
	Delete(tenantID, uuid string) error
	Count(tenantID string) (int64, error)
}

// CredentialRepository defines the interface for OAuth credential persistence.
type CredentialRepository interface {
	GetByIdentityKey(tenantID, identityKey string) (*models.OAuthCredential, error)
	Upsert(tenantID string, credential *models.OAuthCredential) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Submission SubmissionRepository
	Credential CredentialRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB, reg *tenants.Registry) *Repositories {
	return &Repositories{
		Submission: NewSubmissionRepository(db, reg),
		Credential: NewCredentialRepository(db, reg),
	}
}
