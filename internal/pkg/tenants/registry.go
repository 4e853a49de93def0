package tenants

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/formloft/formloft/internal/pkg/env"
)

// Feature is a per-tenant switch for a pipeline capability.
type Feature string

const (
	FeatureSubmissions Feature = "submissions"
	FeatureAttachments Feature = "attachments"
	FeatureProcessing  Feature = "processing"
)

// Collection kinds resolved through the registry. Each tenant keeps its
// submissions and credentials in its own logical table.
const (
	CollectionSubmissions = "submissions"
	CollectionCredentials = "credentials"
)

// Config is the static configuration of a single tenant. Immutable after load.
type Config struct {
	TenantID          string          `json:"tenant_id"`
	ProductName       string          `json:"product_name"`
	AdminEmail        string          `json:"admin_email"`
	AdminTokenHash    string          `json:"admin_token_hash"`
	Collections       map[string]string `json:"collections"`
	BlobPrefix        string          `json:"blob_prefix"`
	Features          map[Feature]bool `json:"features"`
	MaxFileSize       int64           `json:"max_file_size"`
	MaxFilesPerUpload int             `json:"max_files_per_upload"`
	RateLimitWindowS  int             `json:"rate_limit_window_seconds"`
	RateLimitQuota    int             `json:"rate_limit_quota"`
}

// RateLimitWindow returns the configured window as a duration.
func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowS) * time.Second
}

// Collection resolves the table name for a data kind, falling back to a
// deterministic per-tenant default so lookups never fail.
func (c Config) Collection(kind string) string {
	if name, ok := c.Collections[kind]; ok && name != "" {
		return name
	}
	return c.TenantID + "_" + kind
}

// DefaultConfig is returned for unknown tenant ids. All features are
// disabled so unknown tenants stay operable but can do nothing.
func DefaultConfig(tenantID string) Config {
	return Config{
		TenantID:          tenantID,
		ProductName:       tenantID,
		Collections:       map[string]string{},
		BlobPrefix:        "submissions/" + tenantID,
		Features:          map[Feature]bool{},
		MaxFileSize:       10 << 20, // 10 MiB
		MaxFilesPerUpload: 5,
		RateLimitWindowS:  60,
		RateLimitQuota:    30,
	}
}

// Registry is the read-only lookup for tenant configuration. Loaded once at
// startup; lookups have no side effects and cannot fail.
type Registry struct {
	configs map[string]Config
}

// NewRegistry builds a registry from the given configs.
func NewRegistry(configs []Config) *Registry {
	m := make(map[string]Config, len(configs))
	for _, cfg := range configs {
		if cfg.BlobPrefix == "" {
			cfg.BlobPrefix = "submissions/" + cfg.TenantID
		}
		if cfg.Collections == nil {
			cfg.Collections = map[string]string{}
		}
		if cfg.Features == nil {
			cfg.Features = map[Feature]bool{}
		}
		m[cfg.TenantID] = cfg
	}
	return &Registry{configs: m}
}

// Load reads the tenants file referenced by TENANTS_FILE (default
// ./tenants.json). A missing file yields an empty registry so the service
// still boots; every tenant then resolves to the disabled default config.
func Load() (*Registry, error) {
	path := env.GetEnv("TENANTS_FILE", "./tenants.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("[Tenants] No tenants file at %s, starting with empty registry", path)
			return NewRegistry(nil), nil
		}
		return nil, fmt.Errorf("failed to read tenants file %s: %w", path, err)
	}

	var configs []Config
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("failed to parse tenants file %s: %w", path, err)
	}

	reg := NewRegistry(configs)
	log.Infof("[Tenants] Loaded %d tenant configs from %s", len(configs), path)
	return reg, nil
}

// Get returns the config for a tenant, or the disabled default when the
// tenant is unknown. Missing configuration is not an error.
func (r *Registry) Get(tenantID string) Config {
	if cfg, ok := r.configs[tenantID]; ok {
		return cfg
	}
	return DefaultConfig(tenantID)
}

// IsConfigured reports whether the tenant has an explicit config entry.
func (r *Registry) IsConfigured(tenantID string) bool {
	_, ok := r.configs[tenantID]
	return ok
}

// IsFeatureEnabled reports whether a feature is switched on for the tenant.
func (r *Registry) IsFeatureEnabled(tenantID string, feature Feature) bool {
	return r.Get(tenantID).Features[feature]
}

// TenantIDs returns the ids of all configured tenants.
func (r *Registry) TenantIDs() []string {
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	return ids
}
