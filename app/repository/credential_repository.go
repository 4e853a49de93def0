package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/formloft/formloft/app/models"
	"github.com/formloft/formloft/internal/pkg/tenants"
)

// credentialRepository implements the CredentialRepository interface
type credentialRepository struct {
	db  *gorm.DB
	reg *tenants.Registry
}

// NewCredentialRepository creates a new credential repository instance
func NewCredentialRepository(db *gorm.DB, reg *tenants.Registry) CredentialRepository {
	return &credentialRepository{db: db, reg: reg}
}

func (r *credentialRepository) table(tenantID string) *gorm.DB {
	return r.db.Table(r.reg.Get(tenantID).Collection(tenants.CollectionCredentials))
}

// GetByIdentityKey retrieves the credential for an operator identity
func (r *credentialRepository) GetByIdentityKey(tenantID, identityKey string) (*models.OAuthCredential, error) {
	var credential models.OAuthCredential
	err := r.table(tenantID).Where("identity_key = ?", identityKey).First(&credential).Error
	if err != nil {
		return nil, err
	}
	return &credential, nil
}

// Upsert creates the credential on first consent and updates it in place on
// every refresh.
func (r *credentialRepository) Upsert(tenantID string, credential *models.OAuthCredential) error {
	existing, err := r.GetByIdentityKey(tenantID, credential.IdentityKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.table(tenantID).Create(credential).Error
		}
		return err
	}
	credential.ID = existing.ID
	credential.CreatedAt = existing.CreatedAt
	return r.table(tenantID).Where("identity_key = ?", credential.IdentityKey).Updates(credential).Error
}
