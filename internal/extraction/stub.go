package extraction

import (
	"context"

	"github.com/angelmondragon/resumeparser-backend/pkg/types"
)

// StubExtractor returns a fixed result regardless of input.
type StubExtractor struct{}

func (StubExtractor) Extract(ctx context.Context, _ Document, _ types.ProcessingOptions) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Result{
		RawText: "This is simulated extracted text from the resume.",
		StructuredData: map[string]any{
			"name":             "John Doe",
			"email":            "john@example.com",
			"skills":           []any{"Python", "FastAPI", "SQLAlchemy"},
			"experience_years": 3,
		},
	}, nil
}
