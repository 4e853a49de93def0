package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formloft/formloft/app/models"
	"github.com/formloft/formloft/internal/pkg/blobstore"
	"github.com/formloft/formloft/internal/pkg/tenants"
)

type fakeSubmissionStore struct {
	submissions map[string]*models.Submission
	updateErr   error
}

func (f *fakeSubmissionStore) ListPending(tenantID string) ([]models.Submission, error) {
	var out []models.Submission
	var uuids []string
	for uuid := range f.submissions {
		uuids = append(uuids, uuid)
	}
	sort.Strings(uuids)
	for _, uuid := range uuids {
		if f.submissions[uuid].Status == models.StatusPending {
			out = append(out, *f.submissions[uuid])
		}
	}
	return out, nil
}

func (f *fakeSubmissionStore) Update(tenantID string, submission *models.Submission) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	copied := *submission
	f.submissions[submission.UUID] = &copied
	return nil
}

type fakeBlobStore struct {
	objects       map[string][]byte
	failDownloads map[string]bool
	panicKeys     map[string]bool
	deletions     []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{
		objects:       make(map[string][]byte),
		failDownloads: make(map[string]bool),
		panicKeys:     make(map[string]bool),
	}
}

func (f *fakeBlobStore) Download(ctx context.Context, key string) ([]byte, error) {
	if f.panicKeys[key] {
		panic("blob store wedged on " + key)
	}
	if f.failDownloads[key] {
		return nil, errors.New("connection reset")
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object missing")
	}
	return data, nil
}

func (f *fakeBlobStore) ListPrefix(ctx context.Context, prefix string) ([]blobstore.ObjectInfo, error) {
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	var out []blobstore.ObjectInfo
	for _, key := range keys {
		out = append(out, blobstore.ObjectInfo{Key: key, Size: int64(len(f.objects[key]))})
	}
	return out, nil
}

func (f *fakeBlobStore) DeletePrefix(ctx context.Context, prefix string) error {
	f.deletions = append(f.deletions, prefix)
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			delete(f.objects, key)
		}
	}
	return nil
}

type uploadedFile struct {
	folderID string
	name     string
	size     int
}

type fakeDocStore struct {
	folders     map[string]string
	files       []uploadedFile
	failUploads map[string]bool
	folderErr   error
	nextID      int
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{
		folders:     make(map[string]string),
		failUploads: make(map[string]bool),
	}
}

func (f *fakeDocStore) EnsureFolder(ctx context.Context, name, parentID string) (string, error) {
	if f.folderErr != nil {
		return "", f.folderErr
	}
	key := parentID + "/" + name
	if id, ok := f.folders[key]; ok {
		return id, nil
	}
	f.nextID++
	id := fmt.Sprintf("folder-%d", f.nextID)
	f.folders[key] = id
	return id, nil
}

func (f *fakeDocStore) UploadFile(ctx context.Context, folderID, name, mimeType string, data io.Reader) (string, error) {
	if f.failUploads[name] {
		return "", errors.New("upload rejected")
	}
	body, _ := io.ReadAll(data)
	f.files = append(f.files, uploadedFile{folderID: folderID, name: name, size: len(body)})
	return fmt.Sprintf("file-%d", len(f.files)), nil
}

func (f *fakeDocStore) fileNames() []string {
	var names []string
	for _, file := range f.files {
		names = append(names, file.name)
	}
	sort.Strings(names)
	return names
}

type fakeCredentialSource struct {
	token    string
	cred     *models.OAuthCredential
	tokenErr error
}

func (f *fakeCredentialSource) Get(tenantID, identityKey string) (*models.OAuthCredential, error) {
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	return f.cred, nil
}

func (f *fakeCredentialSource) GetValidAccessToken(tenantID, identityKey string) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return f.token, nil
}

const testPrefix = "submissions/acme"

func testTenantRegistry() *tenants.Registry {
	return tenants.NewRegistry([]tenants.Config{
		{
			TenantID:    "acme",
			ProductName: "Acme Covers",
			AdminEmail:  "ops@acme.io",
			Features: map[tenants.Feature]bool{
				tenants.FeatureProcessing: true,
			},
		},
	})
}

// newTestFixture wires a processor over fakes with one pending submission
// holding a primary document and two attachments.
func newTestFixture() (*Processor, *fakeSubmissionStore, *fakeBlobStore, *fakeDocStore) {
	sub := &models.Submission{
		UUID:           "aaaa1111-0000-4000-8000-000000000001",
		TenantID:       "acme",
		SubmitterEmail: "jane@example.com",
		PrimaryDocPath: testPrefix + "/aaaa1111-0000-4000-8000-000000000001/order.pdf",
		Status:         models.StatusPending,
		Attachments: models.AttachmentList{
			{FileName: "photo-1.png", StoragePath: testPrefix + "/aaaa1111-0000-4000-8000-000000000001/attachments/photo-1.png", Size: 3, MediaType: "image/png"},
			{FileName: "photo-2.png", StoragePath: testPrefix + "/aaaa1111-0000-4000-8000-000000000001/attachments/photo-2.png", Size: 3, MediaType: "image/png"},
		},
	}

	store := &fakeSubmissionStore{submissions: map[string]*models.Submission{sub.UUID: sub}}

	blobs := newFakeBlobStore()
	blobs.objects[sub.PrimaryDocPath] = []byte("pdf-bytes")
	blobs.objects[sub.Attachments[0].StoragePath] = []byte("one")
	blobs.objects[sub.Attachments[1].StoragePath] = []byte("two")

	docs := newFakeDocStore()
	creds := &fakeCredentialSource{
		token: "access-token",
		cred:  &models.OAuthCredential{IdentityKey: "ops@acme.io:acme", RootFolderID: "root"},
	}

	proc := New(testTenantRegistry(), store, creds, blobs, func(token string) DocumentStore { return docs })
	return proc, store, blobs, docs
}

func TestRunFullSuccess(t *testing.T) {
	proc, store, blobs, docs := newTestFixture()

	result, err := proc.Run(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 0, result.ErrorCount)
	require.Len(t, result.Results, 1)
	assert.Equal(t, models.StatusSynced, result.Results[0].Status)

	sub := store.submissions["aaaa1111-0000-4000-8000-000000000001"]
	assert.Equal(t, models.StatusSynced, sub.Status)
	assert.Empty(t, sub.ProcessingError)
	assert.NotEmpty(t, sub.DriveFolderID)

	// all three files landed in the destination
	assert.Equal(t, []string{"order.pdf", "photo-1.png", "photo-2.png"}, docs.fileNames())
	// and the landing zone was emptied
	assert.Empty(t, blobs.objects)
}

func TestRunIdempotentRetry(t *testing.T) {
	proc, _, _, docs := newTestFixture()

	first, err := proc.Run(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, 1, first.ProcessedCount)
	uploadsAfterFirst := len(docs.files)

	// a second run finds nothing pending and does no work
	second, err := proc.Run(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 0, second.ProcessedCount)
	assert.Equal(t, 0, second.ErrorCount)
	assert.Empty(t, second.Results)
	assert.Equal(t, uploadsAfterFirst, len(docs.files))
}

func TestRunNoCredentialAbortsBatchWithoutMutation(t *testing.T) {
	proc, store, blobs, docs := newTestFixture()
	proc.creds = &fakeCredentialSource{tokenErr: errors.New("no valid credential")}

	_, err := proc.Run(context.Background(), "acme")
	require.Error(t, err)

	// nothing moved, nothing deleted, nothing re-stated
	sub := store.submissions["aaaa1111-0000-4000-8000-000000000001"]
	assert.Equal(t, models.StatusPending, sub.Status)
	assert.Empty(t, blobs.deletions)
	assert.Empty(t, docs.files)
}

func TestRunPrimaryDocumentPrecedence(t *testing.T) {
	proc, store, blobs, docs := newTestFixture()
	sub := store.submissions["aaaa1111-0000-4000-8000-000000000001"]
	blobs.failDownloads[sub.PrimaryDocPath] = true

	result, err := proc.Run(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.Equal(t, 1, result.ErrorCount)

	updated := store.submissions[sub.UUID]
	assert.Equal(t, models.StatusPending, updated.Status)
	assert.Contains(t, updated.ProcessingError, "primary document download failed")

	// attachments were never touched and nothing was deleted
	assert.Empty(t, docs.files)
	assert.Empty(t, blobs.deletions)
	assert.Len(t, blobs.objects, 3)
}

func TestRunPartialAttachmentFailure(t *testing.T) {
	proc, store, blobs, docs := newTestFixture()
	docs.failUploads["photo-2.png"] = true

	result, err := proc.Run(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.Equal(t, 1, result.ErrorCount)

	updated := store.submissions["aaaa1111-0000-4000-8000-000000000001"]
	assert.Equal(t, models.StatusPending, updated.Status)
	assert.Contains(t, updated.ProcessingError, "1 of 2 attachments failed")

	// destination holds the primary document and attachment #1 only
	assert.Equal(t, []string{"order.pdf", "photo-1.png"}, docs.fileNames())
	// zero deletions: the source still holds every object
	assert.Empty(t, blobs.deletions)
	assert.Len(t, blobs.objects, 3)

	// once the destination recovers the retry drains the submission,
	// tolerating the duplicate upload of attachment #1
	delete(docs.failUploads, "photo-2.png")
	retry, err := proc.Run(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, retry.ProcessedCount)
	assert.Equal(t, models.StatusSynced, store.submissions["aaaa1111-0000-4000-8000-000000000001"].Status)
	assert.Empty(t, blobs.objects)
}

func TestRunCleanupStrictlyAfterLastUpload(t *testing.T) {
	proc, _, blobs, docs := newTestFixture()
	// upload failure after N successes must leave zero deletions behind
	docs.failUploads["photo-2.png"] = true

	_, err := proc.Run(context.Background(), "acme")
	require.NoError(t, err)
	assert.NotEmpty(t, docs.files, "some uploads succeeded before the failure")
	assert.Empty(t, blobs.deletions, "no deletion may happen before every upload is confirmed")
}

func TestRunFaultIsolationBetweenSubmissions(t *testing.T) {
	proc, store, blobs, _ := newTestFixture()

	broken := &models.Submission{
		UUID:           "0000aaaa-0000-4000-8000-00000000000b",
		TenantID:       "acme",
		SubmitterEmail: "broken@example.com",
		PrimaryDocPath: testPrefix + "/0000aaaa-0000-4000-8000-00000000000b/form.pdf",
		Status:         models.StatusPending,
	}
	store.submissions[broken.UUID] = broken
	blobs.objects[broken.PrimaryDocPath] = []byte("x")
	blobs.panicKeys[broken.PrimaryDocPath] = true

	result, err := proc.Run(context.Background(), "acme")
	require.NoError(t, err)

	// the wedged submission is isolated as an error, the healthy one syncs
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Equal(t, models.StatusError, store.submissions[broken.UUID].Status)
	assert.Contains(t, store.submissions[broken.UUID].ProcessingError, "panic")
	assert.Equal(t, models.StatusSynced, store.submissions["aaaa1111-0000-4000-8000-000000000001"].Status)
}

func TestRunEmptyPendingSet(t *testing.T) {
	proc, store, _, docs := newTestFixture()
	store.submissions["aaaa1111-0000-4000-8000-000000000001"].Status = models.StatusSynced

	result, err := proc.Run(context.Background(), "acme")
	require.NoError(t, err)
	assert.Zero(t, result.ProcessedCount)
	assert.Zero(t, result.ErrorCount)
	assert.Empty(t, docs.files)
}

func TestSubmissionFolderNameDeterministic(t *testing.T) {
	cfg := tenants.Config{TenantID: "acme", ProductName: "Acme Covers"}
	sub := &models.Submission{UUID: "aaaa1111-0000-4000-8000-000000000001", SubmitterEmail: "Jane.Doe@Example.com"}

	name := submissionFolderName(cfg, sub)
	assert.Equal(t, name, submissionFolderName(cfg, sub))
	assert.Contains(t, name, "acme-covers-jane-doe-example-com-acme")
	assert.Contains(t, name, "aaaa1111")

	anon := &models.Submission{UUID: "bbbb2222-0000-4000-8000-000000000002"}
	assert.Contains(t, submissionFolderName(cfg, anon), "anonymous")
}
