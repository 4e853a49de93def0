package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formloft/formloft/internal/pkg/tenants"
)

func TestValidateFileBySniffAcceptsPDF(t *testing.T) {
	head := []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	mime, err := ValidateFileBySniff("order.pdf", head)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", mime)
}

func TestValidateFileBySniffAcceptsPNG(t *testing.T) {
	head := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}

	mime, err := ValidateFileBySniff("photo.png", head)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
}

func TestValidateFileBySniffRejectsUnknownExtension(t *testing.T) {
	_, err := ValidateFileBySniff("script.exe", []byte("MZ"))
	assert.Error(t, err)
}

func TestValidateFileBySniffRejectsHTML(t *testing.T) {
	_, err := ValidateFileBySniff("page.txt", []byte("<!DOCTYPE html><html><body>x</body></html>"))
	assert.Error(t, err)
}

func TestValidateFileBySniffRejectsSVG(t *testing.T) {
	_, err := ValidateFileBySniff("image.png", []byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"></svg>`))
	assert.Error(t, err)
}

func TestCheckTenantLimits(t *testing.T) {
	cfg := tenants.Config{MaxFileSize: 1024, MaxFilesPerUpload: 2}

	assert.NoError(t, CheckTenantLimits(cfg, 2, []int64{100, 1024}))
	assert.Error(t, CheckTenantLimits(cfg, 3, []int64{100, 100, 100}), "file count over limit")
	assert.Error(t, CheckTenantLimits(cfg, 1, []int64{2048}), "file size over limit")
}
