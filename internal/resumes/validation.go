package resumes

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/angelmondragon/resumeparser-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/resumeparser-backend/pkg/errors"
)

// expectedContentTypes maps each allowed extension to the content type a
// well-behaved client declares for it.
var expectedContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":  "application/msword",
	".txt":  "text/plain",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// ValidateExtension returns the lower-cased extension of fileName or an
// UNSUPPORTED_FILE_TYPE error when it is not allow-listed.
func ValidateExtension(fileName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := expectedContentTypes[ext]; !ok {
		return "", pkgerrors.New(pkgerrors.CodeUnsupportedFileType, fmt.Sprintf("Unsupported file type: %s", ext))
	}
	return ext, nil
}

// ContentTypeMatches reports whether the declared content type agrees with
// the extension. Blank types always match.
func ContentTypeMatches(ext, contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" {
		return true
	}
	return expectedContentTypes[ext] == ct
}

// ReadAndHash reads at most MaxBytes from r and returns the bytes with their
// hex SHA-256 digest.
func ReadAndHash(r io.Reader, cfg config.UploadConfig) ([]byte, string, error) {
	max := cfg.MaxBytes()
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, "", tooLarge(cfg)
		}
		return nil, "", err
	}
	if int64(len(data)) > max {
		return nil, "", tooLarge(cfg)
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}

func tooLarge(cfg config.UploadConfig) error {
	return pkgerrors.New(pkgerrors.CodePayloadTooLarge, TooLargeMessage(cfg))
}

// TooLargeMessage is the client-facing text for an oversized upload.
func TooLargeMessage(cfg config.UploadConfig) string {
	return fmt.Sprintf("File too large. Max %d MB", cfg.MaxFileSizeMB)
}
