package genai

import (
	"context"
	"log/slog"
	"time"

	"github.com/ostlive/bookingpipe/internal/extract"
	"github.com/ostlive/bookingpipe/internal/models"
)

// DefaultExtractTimeout bounds one extraction call against the model.
const DefaultExtractTimeout = 10 * time.Second

// Extractor satisfies extract.FieldExtractor using the model, falling back
// to regex extraction when the model call fails or returns garbage.
type Extractor struct {
	client   *Client
	fallback extract.FieldExtractor
	timeout  time.Duration
}

// NewExtractor wraps a GenAI client as a field extractor with a regex fallback.
func NewExtractor(client *Client) *Extractor {
	return &Extractor{
		client:   client,
		fallback: extract.NewRegexExtractor(),
		timeout:  DefaultExtractTimeout,
	}
}

// Extract pulls contact fields from input. Model failures degrade to the
// regex extractor so the booking flow never stalls on the LLM.
func (e *Extractor) Extract(input string, existing models.ClientInfo) models.ClientInfo {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	info, err := e.client.ExtractContactInfo(ctx, input, existing)
	if err != nil {
		slog.Warn("GenAI extraction failed, falling back to regex", "error", err)
		return e.fallback.Extract(input, existing)
	}
	return info
}
