package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Attachment describes a single uploaded file that accompanies a submission.
// The list lives in blob storage under the submission's attachment prefix
// until the processor migrates it to the document store.
type Attachment struct {
	FileName    string `json:"file_name"`
	StoragePath string `json:"storage_path"`
	Size        int64  `json:"size"`
	MediaType   string `json:"media_type"`
}

// AttachmentList is stored as a JSON column on the submission record.
type AttachmentList []Attachment

// Value implements the driver.Valuer interface
func (a AttachmentList) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (a *AttachmentList) Scan(value interface{}) error {
	if value == nil {
		*a = AttachmentList{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid scan source")
	}
	return json.Unmarshal(bytes, a)
}

type Submission struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	UUID            string           `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	TenantID        string           `gorm:"type:varchar(64);index;not null" json:"tenant_id"`
	SubmitterEmail  string           `gorm:"type:varchar(255);index" json:"submitter_email"`
	FormData        JSON             `gorm:"type:json" json:"form_data"`
	PrimaryDocPath  string           `gorm:"type:varchar(512)" json:"primary_doc_path"`
	Attachments     AttachmentList   `gorm:"type:json" json:"attachments"`
	Status          SubmissionStatus `gorm:"type:varchar(20);index;not null;default:'pending'" json:"status"`
	ProcessingError string           `gorm:"type:text" json:"processing_error,omitempty"`
	DriveFolderID   string           `gorm:"type:varchar(128)" json:"drive_folder_id,omitempty"`
	UpdatedBy       string           `gorm:"type:varchar(255)" json:"updated_by,omitempty"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// StoragePrefix is the blob-storage key prefix that holds every object
// belonging to this submission (primary document plus attachments).
func (s *Submission) StoragePrefix(tenantPrefix string) string {
	return tenantPrefix + "/" + s.UUID + "/"
}

// AttachmentPrefix is the blob-storage key prefix that holds only the
// attachments of this submission.
func (s *Submission) AttachmentPrefix(tenantPrefix string) string {
	return s.StoragePrefix(tenantPrefix) + "attachments/"
}
