package extraction

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/angelmondragon/resumeparser-backend/pkg/types"
)

const (
	KindStub     = "stub"
	KindDocument = "document"
)

// Document is the stored upload handed to an Extractor.
type Document struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Ext returns the lower-cased extension without the leading dot.
func (d Document) Ext() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(d.FileName)), ".")
}

// Result is what a successful extraction produces.
type Result struct {
	RawText        string
	StructuredData map[string]any
	AIEnhancements map[string]any
}

// Extractor turns a document into text and structured fields.
type Extractor interface {
	Extract(ctx context.Context, doc Document, opts types.ProcessingOptions) (*Result, error)
}

// New returns the extractor registered under kind.
func New(kind string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindStub, "":
		return StubExtractor{}, nil
	case KindDocument:
		return NewDocumentExtractor(), nil
	default:
		return nil, fmt.Errorf("unknown extractor %q", kind)
	}
}
