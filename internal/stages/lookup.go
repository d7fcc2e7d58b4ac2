package stages

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"citelink/internal/classify"
	"citelink/internal/logging"
	"citelink/internal/pipeline"
	"citelink/internal/records"
	"citelink/internal/zotero"
)

// Lookup resolves a record against the reference library: by a known
// identifier when one exists, by direct URL translation otherwise.
type Lookup struct {
	api    zotero.API
	store  *records.Store
	logger *slog.Logger
}

// NewLookup constructs the lookup stage.
func NewLookup(api zotero.API, store *records.Store, logger *slog.Logger) *Lookup {
	return &Lookup{
		api:    api,
		store:  store,
		logger: logging.NewComponentLogger(logger, "stage-lookup"),
	}
}

func (l *Lookup) Name() string { return "lookup" }

func (l *Lookup) ProcessingStatus() records.Status { return records.StatusLookingUp }

func (l *Lookup) Supports(cap records.Capability) bool {
	return cap.HasIdentifier || cap.HasDirectLookup
}

// identifierFor returns the strongest identifier on the record and a method
// label for history.
func identifierFor(rec *records.Record) (string, string) {
	switch {
	case rec.DOI != "":
		return rec.DOI, "doi"
	case rec.ArXivID != "":
		return "arXiv:" + rec.ArXivID, "arxiv"
	case rec.PMID != "":
		return rec.PMID, "pmid"
	case rec.ISBN != "":
		return rec.ISBN, "isbn"
	default:
		return "", ""
	}
}

func (l *Lookup) Run(ctx context.Context, rec *records.Record) (pipeline.Result, error) {
	identifier, method := identifierFor(rec)

	var (
		item *zotero.Item
		err  error
	)
	if identifier != "" {
		item, err = l.api.ResolveIdentifier(ctx, identifier)
		if err != nil && isNotFound(err) && strings.TrimSpace(rec.URL) != "" {
			// A dead identifier does not doom the record; fall back to a
			// direct-URL translation before giving up on this stage.
			l.logger.Debug("identifier unresolvable, falling back to url",
				logging.Int64(logging.FieldURLID, rec.ID),
				logging.String("identifier", identifier),
			)
			identifier, method = "", "url"
			item, err = l.api.ResolveURL(ctx, rec.URL)
		}
	} else {
		method = "url"
		item, err = l.api.ResolveURL(ctx, rec.URL)
	}
	if err != nil {
		return pipeline.Result{Method: method}, err
	}

	if strings.TrimSpace(item.URL) == "" {
		item.URL = rec.URL
	}
	created, err := l.api.CreateItem(ctx, item)
	if err != nil {
		return pipeline.Result{Method: method}, err
	}

	rec.ItemKey = created.Key
	rec.ItemCreatedBy = true
	rec.ItemModified = false
	if strings.TrimSpace(rec.Title) == "" {
		rec.Title = created.Title
	}
	if err := l.store.Update(ctx, rec); err != nil {
		return pipeline.Result{Method: method}, err
	}

	validation := zotero.Validate(created)
	metadata := map[string]string{
		"citation": zotero.Citation(created),
	}
	if identifier != "" {
		metadata["identifier"] = identifier
	}
	if !validation.Complete {
		metadata["missing_fields"] = strings.Join(validation.MissingFields, ",")
		metadata["complete"] = strconv.FormatBool(false)
		return pipeline.Result{
			Disposition: pipeline.DispositionStoredIncomplete,
			Method:      method,
			ItemKey:     created.Key,
			Metadata:    metadata,
		}, nil
	}
	return pipeline.Result{
		Disposition: pipeline.DispositionStored,
		Method:      method,
		ItemKey:     created.Key,
		Metadata:    metadata,
	}, nil
}

func isNotFound(err error) bool {
	if errors.Is(err, classify.ErrNotFound) {
		return true
	}
	var statusErr *classify.StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}
