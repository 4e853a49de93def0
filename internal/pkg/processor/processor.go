package processor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/gofiber/fiber/v2/log"

	"github.com/formloft/formloft/app/models"
	"github.com/formloft/formloft/internal/pkg/blobstore"
	"github.com/formloft/formloft/internal/pkg/docstore"
	"github.com/formloft/formloft/internal/pkg/tenants"
)

// SubmissionStore is the slice of the submission repository the processor
// needs: the pending scan and the status write-back.
type SubmissionStore interface {
	ListPending(tenantID string) ([]models.Submission, error)
	Update(tenantID string, submission *models.Submission) error
}

// BlobStore reads and cleans up the transient landing zone.
type BlobStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	ListPrefix(ctx context.Context, prefix string) ([]blobstore.ObjectInfo, error)
	DeletePrefix(ctx context.Context, prefix string) error
}

// DocumentStore writes folders and files into the durable destination.
type DocumentStore interface {
	EnsureFolder(ctx context.Context, name, parentID string) (string, error)
	UploadFile(ctx context.Context, folderID, name, mimeType string, data io.Reader) (string, error)
}

// CredentialSource resolves the operator grant that authorizes the run.
type CredentialSource interface {
	Get(tenantID, identityKey string) (*models.OAuthCredential, error)
	GetValidAccessToken(tenantID, identityKey string) (string, error)
}

// DocumentStoreFactory builds a document store client for one batch run's
// access token.
type DocumentStoreFactory func(accessToken string) DocumentStore

// Processor migrates pending submissions from blob storage into the document
// store. One logical run at a time per tenant; submissions are processed
// sequentially so the admin status path cannot race a migration in flight.
type Processor struct {
	reg         *tenants.Registry
	submissions SubmissionStore
	creds       CredentialSource
	blobs       BlobStore
	newDocStore DocumentStoreFactory
}

// New creates a processor.
func New(reg *tenants.Registry, submissions SubmissionStore, creds CredentialSource, blobs BlobStore, factory DocumentStoreFactory) *Processor {
	return &Processor{
		reg:         reg,
		submissions: submissions,
		creds:       creds,
		blobs:       blobs,
		newDocStore: factory,
	}
}

// SubmissionResult reports the outcome for one submission in a batch.
type SubmissionResult struct {
	UUID   string                  `json:"uuid"`
	Status models.SubmissionStatus `json:"status"`
	Error  string                  `json:"error,omitempty"`
}

// Result is the outcome of one batch run.
type Result struct {
	ProcessedCount int                `json:"processed_count"`
	ErrorCount     int                `json:"error_count"`
	Results        []SubmissionResult `json:"results"`
}

// outcome is the internal verdict for one submission before write-back.
type outcome struct {
	status   models.SubmissionStatus
	note     string
	folderID string
}

// Run executes one sequential batch over all pending submissions of the
// tenant. Missing credentials abort the whole run before any submission is
// mutated; everything after that is isolated per submission. Re-invocation is
// idempotent: synced submissions are excluded from the pending scan.
func (p *Processor) Run(ctx context.Context, tenantID string) (*Result, error) {
	cfg := p.reg.Get(tenantID)
	identityKey := models.IdentityKey(cfg.AdminEmail, tenantID)

	// operational precondition, not a per-submission failure
	token, err := p.creds.GetValidAccessToken(tenantID, identityKey)
	if err != nil {
		return nil, fmt.Errorf("cannot obtain access token for %s: %w", identityKey, err)
	}
	cred, err := p.creds.Get(tenantID, identityKey)
	if err != nil {
		return nil, fmt.Errorf("cannot load credential for %s: %w", identityKey, err)
	}

	pending, err := p.submissions.ListPending(tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending submissions: %w", err)
	}
	if len(pending) == 0 {
		log.Infof("[Processor] No pending submissions for tenant %s", tenantID)
		return &Result{}, nil
	}

	ds := p.newDocStore(token)

	// destination root, scoped by tenant and operator identity
	tenantRoot, err := ds.EnsureFolder(ctx, cfg.ProductName, cred.RootFolderID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure tenant folder: %w", err)
	}

	log.Infof("[Processor] Starting batch for tenant %s: %d pending submissions", tenantID, len(pending))

	result := &Result{}
	for i := range pending {
		sub := &pending[i]
		out := p.processOne(ctx, ds, cfg, tenantRoot, sub)

		sub.Status = out.status
		sub.ProcessingError = out.note
		if out.folderID != "" {
			sub.DriveFolderID = out.folderID
		}
		if err := p.submissions.Update(tenantID, sub); err != nil {
			log.Errorf("[Processor] Failed to update submission %s: %v", sub.UUID, err)
			out.status = models.StatusError
			out.note = err.Error()
		}

		if out.status == models.StatusSynced {
			result.ProcessedCount++
		} else {
			result.ErrorCount++
		}
		result.Results = append(result.Results, SubmissionResult{
			UUID:   sub.UUID,
			Status: out.status,
			Error:  out.note,
		})
	}

	log.Infof("[Processor] Batch for tenant %s done: %d synced, %d need attention",
		tenantID, result.ProcessedCount, result.ErrorCount)
	return result, nil
}

// processOne migrates a single submission. Transient file failures re-enter
// pending so the next run retries them without operator intervention; only
// unexpected failures escalate to the error status. A panic is contained
// here so one broken submission cannot take down the batch.
func (p *Processor) processOne(ctx context.Context, ds DocumentStore, cfg tenants.Config, tenantRoot string, sub *models.Submission) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Processor] Panic while processing submission %s: %v", sub.UUID, r)
			out = outcome{status: models.StatusError, note: fmt.Sprintf("panic: %v", r)}
		}
	}()

	folderName := submissionFolderName(cfg, sub)
	folderID, err := ds.EnsureFolder(ctx, folderName, tenantRoot)
	if err != nil {
		return outcome{status: models.StatusPending, note: fmt.Sprintf("failed to create destination folder: %v", err)}
	}

	// Primary document first: the canonical record must exist in the
	// destination before any supplementary asset is considered, and nothing
	// is deleted until every required copy is confirmed written.
	if sub.PrimaryDocPath != "" {
		data, err := p.blobs.Download(ctx, sub.PrimaryDocPath)
		if err != nil {
			log.Warnf("[Processor] Primary document download failed for %s: %v", sub.UUID, err)
			return outcome{status: models.StatusPending, note: fmt.Sprintf("primary document download failed: %v", err), folderID: folderID}
		}
		name := path.Base(sub.PrimaryDocPath)
		if _, err := ds.UploadFile(ctx, folderID, name, contentTypeFor(sub, name), bytes.NewReader(data)); err != nil {
			log.Warnf("[Processor] Primary document upload failed for %s: %v", sub.UUID, err)
			return outcome{status: models.StatusPending, note: fmt.Sprintf("primary document upload failed: %v", err), folderID: folderID}
		}
	}

	attachmentPrefix := sub.AttachmentPrefix(cfg.BlobPrefix)
	objects, err := p.blobs.ListPrefix(ctx, attachmentPrefix)
	if err != nil {
		return outcome{status: models.StatusPending, note: fmt.Sprintf("failed to list attachments: %v", err), folderID: folderID}
	}

	uploaded, failed := 0, 0
	for _, obj := range objects {
		data, err := p.blobs.Download(ctx, obj.Key)
		if err != nil {
			log.Warnf("[Processor] Attachment download failed for %s (%s): %v", sub.UUID, obj.Key, err)
			failed++
			continue
		}
		name := path.Base(obj.Key)
		if _, err := ds.UploadFile(ctx, folderID, name, contentTypeFor(sub, name), bytes.NewReader(data)); err != nil {
			log.Warnf("[Processor] Attachment upload failed for %s (%s): %v", sub.UUID, obj.Key, err)
			failed++
			continue
		}
		uploaded++
	}

	if failed > 0 {
		// already-uploaded attachments stay in the destination; retries
		// tolerate them as harmless duplicates
		return outcome{
			status:   models.StatusPending,
			note:     fmt.Sprintf("%d of %d attachments failed to migrate", failed, len(objects)),
			folderID: folderID,
		}
	}

	// all required copies are confirmed in the destination; only now is
	// source cleanup allowed
	if err := p.blobs.DeletePrefix(ctx, attachmentPrefix); err != nil {
		return outcome{status: models.StatusPending, note: fmt.Sprintf("attachment cleanup failed: %v", err), folderID: folderID}
	}
	if err := p.blobs.DeletePrefix(ctx, sub.StoragePrefix(cfg.BlobPrefix)); err != nil {
		return outcome{status: models.StatusPending, note: fmt.Sprintf("storage cleanup failed: %v", err), folderID: folderID}
	}

	log.Infof("[Processor] Synced submission %s into folder %s (%d attachments)", sub.UUID, folderID, uploaded)
	return outcome{status: models.StatusSynced, folderID: folderID}
}

// submissionFolderName builds the deterministic, human-browsable destination
// folder name. The UUID fragment keeps repeat submitters apart while retries
// of the same submission land in the same folder.
func submissionFolderName(cfg tenants.Config, sub *models.Submission) string {
	submitter := sub.SubmitterEmail
	if submitter == "" {
		submitter = "anonymous"
	}
	base := docstore.SanitizeFolderName(fmt.Sprintf("%s-%s-%s", cfg.ProductName, submitter, cfg.TenantID))
	fragment := sub.UUID
	if len(fragment) > 8 {
		fragment = fragment[:8]
	}
	return base + "-" + fragment
}

// contentTypeFor resolves the media type recorded at intake for a file name,
// falling back to a generic stream type.
func contentTypeFor(sub *models.Submission, name string) string {
	for _, att := range sub.Attachments {
		if att.FileName == name || path.Base(att.StoragePath) == name {
			return att.MediaType
		}
	}
	return "application/octet-stream"
}
