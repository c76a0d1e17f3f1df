package resumes

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/resumeparser-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/resumeparser-backend/pkg/errors"
)

func TestValidateExtension(t *testing.T) {
	for _, name := range []string{"cv.pdf", "CV.DOCX", "cv.doc", "notes.txt", "scan.PNG", "a.jpg", "b.jpeg"} {
		_, err := ValidateExtension(name)
		assert.NoError(t, err, name)
	}

	for name, msg := range map[string]string{
		"resume.exe": "Unsupported file type: .exe",
		"README":     "Unsupported file type: ",
		"cv.pdf.zip": "Unsupported file type: .zip",
	} {
		_, err := ValidateExtension(name)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, name)
		assert.Equal(t, pkgerrors.CodeUnsupportedFileType, typed.Code())
		assert.Equal(t, msg, typed.Message())
	}
}

func TestContentTypeMatches(t *testing.T) {
	assert.True(t, ContentTypeMatches(".pdf", "application/pdf"))
	assert.True(t, ContentTypeMatches(".txt", "text/plain; charset=utf-8"))
	assert.True(t, ContentTypeMatches(".pdf", ""))
	assert.False(t, ContentTypeMatches(".pdf", "image/png"))
}

func TestReadAndHashBounds(t *testing.T) {
	cfg := config.UploadConfig{MaxFileSizeMB: 1}
	max := int(cfg.MaxBytes())

	data, hash, err := ReadAndHash(bytes.NewReader(make([]byte, max)), cfg)
	require.NoError(t, err)
	assert.Len(t, data, max)
	assert.Len(t, hash, 64)

	_, _, err = ReadAndHash(bytes.NewReader(make([]byte, max+1)), cfg)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodePayloadTooLarge, typed.Code())
	assert.Equal(t, "File too large. Max 1 MB", typed.Message())
}

func TestReadAndHashKnownDigest(t *testing.T) {
	_, hash, err := ReadAndHash(strings.NewReader("abc"), config.UploadConfig{MaxFileSizeMB: 1})
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hash)
}

func TestReadAndHashMapsMaxBytesError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too much"))
	body := http.MaxBytesReader(rec, req.Body, 2)

	_, _, err := ReadAndHash(body, config.UploadConfig{MaxFileSizeMB: 1})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodePayloadTooLarge))
}
