package models

import (
	"strings"
	"time"
)

// OAuthCredential stores the delegated operator grant that authorizes writes
// to the document store. One row per (operator email, tenant); refreshed in
// place, never deleted by the pipeline.
type OAuthCredential struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	IdentityKey   string     `gorm:"type:varchar(320);uniqueIndex;not null" json:"identity_key"`
	OperatorEmail string     `gorm:"type:varchar(255);not null" json:"operator_email"`
	TenantID      string     `gorm:"type:varchar(64);index;not null" json:"tenant_id"`
	AccessToken   string     `gorm:"type:text" json:"-"`
	RefreshToken  string     `gorm:"type:text" json:"-"`
	ExpiresAt     *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	RootFolderID  string     `gorm:"type:varchar(128)" json:"root_folder_id,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IdentityKey builds the composite key used to look up the credential of an
// operator account within a tenant.
func IdentityKey(operatorEmail, tenantID string) string {
	return strings.ToLower(strings.TrimSpace(operatorEmail)) + ":" + tenantID
}

// Expired reports whether the access token is past its recorded expiry.
// Credentials without an expiry are treated as long-lived and never expire.
func (c *OAuthCredential) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Before(*c.ExpiresAt)
}
