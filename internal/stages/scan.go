package stages

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"citelink/internal/classify"
	"citelink/internal/content"
	"citelink/internal/identifiers"
	"citelink/internal/logging"
	"citelink/internal/pipeline"
	"citelink/internal/records"
)

// Scan fetches the page and hunts for embeddable identifiers in its URL,
// meta tags, links, and text. Found candidates park the record for user
// selection; an empty scan hands the record to extraction.
type Scan struct {
	fetcher *content.Fetcher
	store   *records.Store
	logger  *slog.Logger
}

// NewScan constructs the scan stage.
func NewScan(fetcher *content.Fetcher, store *records.Store, logger *slog.Logger) *Scan {
	return &Scan{
		fetcher: fetcher,
		store:   store,
		logger:  logging.NewComponentLogger(logger, "stage-scan"),
	}
}

func (s *Scan) Name() string { return "scan" }

func (s *Scan) ProcessingStatus() records.Status { return records.StatusScanning }

func (s *Scan) Supports(cap records.Capability) bool {
	return cap.HasDirectLookup && cap.Reachable
}

func (s *Scan) Run(ctx context.Context, rec *records.Record) (pipeline.Result, error) {
	candidates := identifiers.FromURL(rec.URL)

	fetched, err := s.fetcher.Fetch(ctx, rec.URL)
	if err != nil {
		if markUnreachable(err) {
			rec.Unreachable = true
			if uerr := s.store.Update(ctx, rec); uerr != nil {
				s.logger.Warn("mark unreachable failed",
					logging.Int64(logging.FieldURLID, rec.ID),
					logging.Error(uerr),
				)
			}
		}
		return pipeline.Result{Method: "identifier-scan"}, err
	}

	rec.ContentPath = fetched.Path
	rec.ContentType = fetched.ContentType
	rec.Unreachable = false
	if err := s.store.Update(ctx, rec); err != nil {
		return pipeline.Result{Method: "identifier-scan"}, err
	}

	if isHTML(fetched.ContentType) {
		doc, err := content.ParseFile(fetched.Path)
		if err != nil {
			return pipeline.Result{Method: "identifier-scan"}, err
		}
		candidates = append(candidates, identifiers.FromDocument(doc)...)
		if strings.TrimSpace(rec.Title) == "" {
			if title := doc.Title(); title != "" {
				rec.Title = title
				if err := s.store.Update(ctx, rec); err != nil {
					return pipeline.Result{Method: "identifier-scan"}, err
				}
			}
		}
	}

	if len(candidates) == 0 {
		return pipeline.Result{Method: "identifier-scan"},
			classify.Wrap(classify.ErrExternalAPI, "scan", "scan", "no identifier candidates found", nil)
	}

	metadata := map[string]string{
		"candidate_count": strconv.Itoa(len(candidates)),
	}
	for i, cand := range candidates {
		metadata["candidate_"+strconv.Itoa(i)] = string(cand.Kind) + ":" + cand.Value + " (" + cand.Source + ")"
	}
	return pipeline.Result{
		Disposition: pipeline.DispositionAwaitingSelection,
		Method:      "identifier-scan",
		Metadata:    metadata,
	}, nil
}

// markUnreachable reports whether a fetch failure means the host itself is
// unreachable, as opposed to an HTTP-level refusal.
func markUnreachable(err error) bool {
	if errors.Is(err, classify.ErrNetwork) {
		return true
	}
	var statusErr *classify.StatusError
	return errors.As(err, &statusErr) && (statusErr.Code == 404 || statusErr.Code == 410)
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "html") || strings.Contains(ct, "xml") || ct == ""
}
