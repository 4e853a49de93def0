package repository

import (
	"sync"

	"gorm.io/gorm"

	"github.com/formloft/formloft/internal/pkg/tenants"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	reg   *tenants.Registry
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB, reg *tenants.Registry) *Factory {
	return &Factory{
		db:  db,
		reg: reg,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db, f.reg)
	})
	return f.repos
}

// GetSubmissionRepository returns the submission repository instance
func (f *Factory) GetSubmissionRepository() SubmissionRepository {
	return f.GetRepositories().Submission
}

// GetCredentialRepository returns the credential repository instance
func (f *Factory) GetCredentialRepository() CredentialRepository {
	return f.GetRepositories().Credential
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB, reg *tenants.Registry) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db, reg)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}
