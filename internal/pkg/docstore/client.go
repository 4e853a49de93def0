package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const (
	defaultAPIBase    = "https://www.googleapis.com/drive/v3"
	defaultUploadBase = "https://www.googleapis.com/upload/drive/v3"
	folderMimeType    = "application/vnd.google-apps.folder"
)

// Client talks to the Google Drive v3 API with a bearer token. The token is
// resolved once per batch run by the credential store; a Client is cheap and
// scoped to that run.
type Client struct {
	httpClient *http.Client
	apiBase    string
	uploadBase string
	token      string
}

// Option overrides client defaults, used by tests to point at a stub server.
type Option func(*Client)

// WithBaseURLs overrides the API and upload endpoints.
func WithBaseURLs(apiBase, uploadBase string) Option {
	return func(c *Client) {
		c.apiBase = apiBase
		c.uploadBase = uploadBase
	}
}

// NewClient creates a document store client for the given access token.
func NewClient(accessToken string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		apiBase:    defaultAPIBase,
		uploadBase: defaultUploadBase,
		token:      accessToken,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type driveFile struct {
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
	Parents  []string `json:"parents,omitempty"`
}

type driveFileList struct {
	Files []driveFile `json:"files"`
}

// EnsureFolder returns the id of a folder with the given name below parentID,
// creating it when absent. An empty parentID targets the Drive root.
func (c *Client) EnsureFolder(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(name), folderMimeType)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", escapeQuery(parentID))
	}

	u := fmt.Sprintf("%s/files?q=%s&fields=files(id,name)&pageSize=1", c.apiBase, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	var list driveFileList
	if err := c.do(req, &list); err != nil {
		return "", fmt.Errorf("failed to look up folder %q: %w", name, err)
	}
	if len(list.Files) > 0 {
		return list.Files[0].ID, nil
	}

	return c.createFolder(ctx, name, parentID)
}

func (c *Client) createFolder(ctx context.Context, name, parentID string) (string, error) {
	meta := driveFile{Name: name, MimeType: folderMimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	body, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/files?fields=id", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var created driveFile
	if err := c.do(req, &created); err != nil {
		return "", fmt.Errorf("failed to create folder %q: %w", name, err)
	}

	log.Infof("[DocStore] Created folder %q (%s)", name, created.ID)
	return created.ID, nil
}

// UploadFile uploads a file into the given folder using a multipart/related
// request (metadata part + media part) and returns the created file id.
// Re-uploads are safe to repeat; Drive keeps duplicates side by side, which
// the retry path tolerates.
func (c *Client) UploadFile(ctx context.Context, folderID, name, mimeType string, data io.Reader) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return "", err
	}
	meta := driveFile{Name: name, Parents: []string{folderID}}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return "", err
	}

	mediaHeader := textproto.MIMEHeader{}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	mediaHeader.Set("Content-Type", mimeType)
	mediaPart, err := writer.CreatePart(mediaHeader)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(mediaPart, data); err != nil {
		return "", fmt.Errorf("failed to buffer upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	u := c.uploadBase + "/files?uploadType=multipart&fields=id"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	var created driveFile
	if err := c.do(req, &created); err != nil {
		return "", fmt.Errorf("failed to upload %q: %w", name, err)
	}

	log.Infof("[DocStore] Uploaded %q into folder %s (%s)", name, folderID, created.ID)
	return created.ID, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("document store returned %d: %s", resp.StatusCode, string(payload))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// escapeQuery escapes single quotes inside Drive query string literals.
func escapeQuery(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\'' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
