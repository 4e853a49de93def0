package upload

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/formloft/formloft/internal/pkg/tenants"
)

var allowedExt = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".odt":  true,
	".txt":  true,
	".csv":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	// Note: SVG is intentionally excluded due to XSS risk without sanitization
}

var allowedMime = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.oasis.opendocument.text":                                 true,
	"text/plain":          true,
	"text/csv":            true,
	"image/jpeg":          true,
	"image/png":           true,
	"image/webp":          true,
	"application/zip":     true, // docx/odt containers sniff as zip
}

// ValidateFileBySniff checks the provided filename (extension) and the first
// bytes (head) against a whitelist of document types. Returns detected mime
// or an error.
func ValidateFileBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", errors.New("unsupported file type, allowed: PDF, DOC, DOCX, ODT, TXT, CSV, JPG, PNG, WEBP")
	}

	detected := http.DetectContentType(head)

	// Block obvious scriptable types regardless of extension
	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") {
		return "", errors.New("invalid file type: HTML content is not allowed")
	}
	if strings.HasPrefix(detected, "text/xml") || strings.HasPrefix(detected, "application/xml") || detected == "image/svg+xml" {
		// Block SVG/XML until a sanitizer is available
		return "", errors.New("SVG/XML uploads are not supported")
	}

	// Office formats and some text encodings sniff as octet-stream; the
	// extension whitelist already vouched for them
	if detected == "application/octet-stream" && allowedExt[ext] {
		return detected, nil
	}
	if strings.HasPrefix(detected, "text/plain") && allowedExt[ext] {
		return detected, nil
	}

	if allowedMime[strings.Split(detected, ";")[0]] {
		return detected, nil
	}

	return "", errors.New("the file type is not supported")
}

// CheckTenantLimits enforces the per-tenant file size and count limits
// before anything is written to blob storage.
func CheckTenantLimits(cfg tenants.Config, fileCount int, sizes []int64) error {
	if fileCount > cfg.MaxFilesPerUpload {
		return fmt.Errorf("too many files: %d exceeds the limit of %d", fileCount, cfg.MaxFilesPerUpload)
	}
	for _, size := range sizes {
		if size > cfg.MaxFileSize {
			return fmt.Errorf("file too large: %d bytes exceeds the limit of %d", size, cfg.MaxFileSize)
		}
	}
	return nil
}
