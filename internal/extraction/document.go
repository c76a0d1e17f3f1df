package extraction

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	"io"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/angelmondragon/resumeparser-backend/pkg/types"
)

const (
	redactedEmail = "[REDACTED_EMAIL]"
	redactedPhone = "[REDACTED_PHONE]"
	docxBodyPath  = "word/document.xml"

	defaultMaxTextBytes = 2 << 20
	defaultMaxXMLBytes  = 32 << 20
	defaultMaxPixels    = 40_000_000
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)

	technologies = []string{
		"Go", "Golang", "Python", "Java", "JavaScript", "TypeScript", "Rust", "C++", "C#", "Ruby", "PHP", "Kotlin", "Swift",
		"SQL", "PostgreSQL", "MySQL", "SQLite", "MongoDB", "Redis", "Kafka", "RabbitMQ",
		"Docker", "Kubernetes", "Terraform", "AWS", "GCP", "Azure", "Linux", "Git",
		"React", "Vue", "Angular", "Node.js", "Django", "Flask", "FastAPI", "SQLAlchemy", "Spring",
		"GraphQL", "gRPC", "REST", "Pandas", "TensorFlow", "PyTorch",
	}
	techPatterns = compileTechPatterns(technologies)

	pdfcpuOnce sync.Once
)

var (
	// ErrUnsupportedDocument is returned for extensions the extractor cannot read.
	ErrUnsupportedDocument = errors.New("unsupported document type")
	// ErrDocumentTooLarge is returned when extracted text, the docx body or an
	// image's pixel count passes the extractor's limits.
	ErrDocumentTooLarge = errors.New("document exceeds extraction limits")
)

// DocumentExtractor reads text and basic facts straight from the file.
// It does no OCR or language processing.
type DocumentExtractor struct {
	pdfConf *model.Configuration

	maxText   int
	maxXML    int64
	maxPixels int
}

func NewDocumentExtractor() *DocumentExtractor {
	pdfcpuOnce.Do(func() {
		// keep pdfcpu from creating a config dir under $HOME
		model.ConfigPath = "disable"
	})
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &DocumentExtractor{
		pdfConf:   conf,
		maxText:   defaultMaxTextBytes,
		maxXML:    defaultMaxXMLBytes,
		maxPixels: defaultMaxPixels,
	}
}

func (e *DocumentExtractor) Extract(ctx context.Context, doc Document, opts types.ProcessingOptions) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		res *Result
		err error
	)
	switch ext := doc.Ext(); ext {
	case "txt":
		if !utf8.Valid(doc.Data) {
			return nil, errors.New("text file is not valid utf-8")
		}
		if len(doc.Data) > e.maxText {
			return nil, fmt.Errorf("%w: text is %d bytes, limit %d", ErrDocumentTooLarge, len(doc.Data), e.maxText)
		}
		res = analyzeText(string(doc.Data), opts)
	case "docx":
		var text string
		text, err = e.docxText(doc.Data)
		if err == nil {
			res = analyzeText(text, opts)
		}
	case "pdf":
		res, err = e.pdf(doc.Data)
	case "png", "jpg", "jpeg":
		res, err = e.imageFacts(doc.Data)
	case "doc":
		res = &Result{RawText: "", StructuredData: map[string]any{}}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDocument, ext)
	}
	if err != nil {
		return nil, err
	}

	res.StructuredData["format"] = doc.Ext()
	res.StructuredData["bytes"] = len(doc.Data)
	res.AIEnhancements = map[string]any{
		"enabled":  opts.EnhanceWithAI,
		"language": opts.Language,
		"ocr":      opts.PerformOCR && isImage(doc.Ext()),
	}
	return res, nil
}

func (e *DocumentExtractor) pdf(data []byte) (*Result, error) {
	pages, err := api.PageCount(bytes.NewReader(data), e.pdfConf)
	if err != nil {
		return nil, fmt.Errorf("reading pdf: %w", err)
	}
	return &Result{RawText: "", StructuredData: map[string]any{"pages": pages}}, nil
}

func (e *DocumentExtractor) imageFacts(data []byte) (*Result, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(e.maxPixels) {
		return nil, fmt.Errorf("%w: image is %dx%d, limit %d pixels", ErrDocumentTooLarge, cfg.Width, cfg.Height, e.maxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	b := img.Bounds()
	return &Result{RawText: "", StructuredData: map[string]any{
		"width":  b.Dx(),
		"height": b.Dy(),
	}}, nil
}

func isImage(ext string) bool {
	switch ext {
	case "png", "jpg", "jpeg":
		return true
	}
	return false
}

func analyzeText(text string, opts types.ProcessingOptions) *Result {
	text = strings.TrimSpace(text)
	data := map[string]any{
		"word_count": len(strings.Fields(text)),
	}

	emails := unique(emailPattern.FindAllString(text, -1))
	phones := unique(findPhones(text))
	if opts.Anonymize {
		text = emailPattern.ReplaceAllString(text, redactedEmail)
		text = phonePattern.ReplaceAllStringFunc(text, func(m string) string {
			if isPhone(m) {
				return redactedPhone
			}
			return m
		})
		data["redacted"] = len(emails) + len(phones)
	} else {
		data["emails"] = emails
		data["phones"] = phones
	}

	if opts.ExtractTechnologies {
		data["skills"] = detectTechnologies(text)
	}
	return &Result{RawText: text, StructuredData: data}
}

func findPhones(text string) []string {
	var out []string
	for _, m := range phonePattern.FindAllString(text, -1) {
		if isPhone(m) {
			out = append(out, m)
		}
	}
	return out
}

// isPhone rejects year ranges and other short digit runs.
func isPhone(candidate string) bool {
	digits := 0
	for _, r := range candidate {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 9 && digits <= 15
}

func detectTechnologies(text string) []string {
	found := []string{}
	for i, re := range techPatterns {
		if re.MatchString(text) {
			found = append(found, technologies[i])
		}
	}
	return found
}

func compileTechPatterns(names []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(names))
	for i, name := range names {
		flags := ""
		if len(name) > 4 {
			flags = "(?i)"
		}
		out[i] = regexp.MustCompile(flags + `(^|[^A-Za-z0-9+#.])` + regexp.QuoteMeta(name) + `($|[^A-Za-z0-9+#])`)
	}
	return out
}

func unique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// docxText concatenates the w:t runs of the main document part, one line
// per paragraph. The decompressed part and the collected text are both capped.
func (e *DocumentExtractor) docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening docx: %w", err)
	}
	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBodyPath {
			body = f
			break
		}
	}
	if body == nil {
		return "", fmt.Errorf("docx is missing %s", docxBodyPath)
	}
	if body.UncompressedSize64 > uint64(e.maxXML) {
		return "", fmt.Errorf("%w: %s declares %d bytes, limit %d", ErrDocumentTooLarge, docxBodyPath, body.UncompressedSize64, e.maxXML)
	}
	rc, err := body.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var (
		sb     strings.Builder
		inText bool
	)
	// the zip header size is not trusted
	limited := &io.LimitedReader{R: rc, N: e.maxXML + 1}
	dec := xml.NewDecoder(limited)
	for {
		tok, err := dec.Token()
		if limited.N <= 0 {
			return "", fmt.Errorf("%w: %s is over %d bytes", ErrDocumentTooLarge, docxBodyPath, e.maxXML)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing docx: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
		if sb.Len() > e.maxText {
			return "", fmt.Errorf("%w: docx text is over %d bytes", ErrDocumentTooLarge, e.maxText)
		}
	}
	return sb.String(), nil
}
