package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"citelink/internal/classify"
	"citelink/internal/content"
	"citelink/internal/llmextract"
	"citelink/internal/logging"
	"citelink/internal/pipeline"
	"citelink/internal/records"
)

// extractTextBudget caps how much page text is sent to the model.
const extractTextBudget = 16000

// Extract asks a language model for bibliographic metadata when no
// authoritative source worked. Results above the confidence threshold park
// the record for user approval; low-confidence extractions terminate the
// run.
type Extract struct {
	extractor     llmextract.Extractor
	fetcher       *content.Fetcher
	store         *records.Store
	minConfidence float64
	logger        *slog.Logger
}

// NewExtract constructs the extraction stage.
func NewExtract(extractor llmextract.Extractor, fetcher *content.Fetcher, store *records.Store, minConfidence float64, logger *slog.Logger) *Extract {
	return &Extract{
		extractor:     extractor,
		fetcher:       fetcher,
		store:         store,
		minConfidence: minConfidence,
		logger:        logging.NewComponentLogger(logger, "stage-extract"),
	}
}

func (e *Extract) Name() string { return "extract" }

func (e *Extract) ProcessingStatus() records.Status { return records.StatusExtracting }

func (e *Extract) Supports(cap records.Capability) bool {
	return cap.SupportsExtraction && !cap.IsBinary
}

func (e *Extract) Run(ctx context.Context, rec *records.Record) (pipeline.Result, error) {
	path := rec.ContentPath
	if path == "" {
		fetched, err := e.fetcher.Fetch(ctx, rec.URL)
		if err != nil {
			return pipeline.Result{Method: "llm"}, err
		}
		path = fetched.Path
		rec.ContentPath = fetched.Path
		rec.ContentType = fetched.ContentType
		if err := e.store.Update(ctx, rec); err != nil {
			return pipeline.Result{Method: "llm"}, err
		}
	}

	doc, err := content.ParseFile(path)
	if err != nil {
		return pipeline.Result{Method: "llm"}, err
	}

	extraction, err := e.extractor.Extract(ctx, rec.URL, doc.Text(extractTextBudget))
	if err != nil {
		return pipeline.Result{Method: "llm"}, err
	}

	if extraction.Confidence < e.minConfidence {
		return pipeline.Result{Method: "llm"}, classify.Wrap(
			classify.ErrValidation,
			"extract", "threshold",
			fmt.Sprintf("confidence %.2f below threshold %.2f", extraction.Confidence, e.minConfidence),
			nil,
		)
	}

	if strings.TrimSpace(rec.Title) == "" && extraction.Title != "" {
		rec.Title = extraction.Title
		if err := e.store.Update(ctx, rec); err != nil {
			return pipeline.Result{Method: "llm"}, err
		}
	}

	metadata := map[string]string{
		"confidence": fmt.Sprintf("%.2f", extraction.Confidence),
		"extraction": extraction.Raw,
	}
	return pipeline.Result{
		Disposition: pipeline.DispositionAwaitingMetadata,
		Method:      "llm",
		Metadata:    metadata,
	}, nil
}
