package stages_test

import (
	"context"
	"net/http"
	"testing"

	"citelink/internal/classify"
	"citelink/internal/logging"
	"citelink/internal/pipeline"
	"citelink/internal/records"
	"citelink/internal/stages"
	"citelink/internal/testsupport"
	"citelink/internal/zotero"
)

// fakeAPI implements zotero.API with pluggable behavior per call.
type fakeAPI struct {
	resolveIdentifier func(ctx context.Context, identifier string) (*zotero.Item, error)
	resolveURL        func(ctx context.Context, rawURL string) (*zotero.Item, error)
	createItem        func(ctx context.Context, item *zotero.Item) (*zotero.Item, error)
}

func (f *fakeAPI) ResolveIdentifier(ctx context.Context, identifier string) (*zotero.Item, error) {
	return f.resolveIdentifier(ctx, identifier)
}

func (f *fakeAPI) ResolveURL(ctx context.Context, rawURL string) (*zotero.Item, error) {
	return f.resolveURL(ctx, rawURL)
}

func (f *fakeAPI) CreateItem(ctx context.Context, item *zotero.Item) (*zotero.Item, error) {
	if f.createItem != nil {
		return f.createItem(ctx, item)
	}
	out := *item
	out.Key = "CREATED1"
	return &out, nil
}

func (f *fakeAPI) GetItem(ctx context.Context, key string) (*zotero.Item, error) {
	return nil, &classify.StatusError{Code: http.StatusNotFound}
}

func (f *fakeAPI) UpdateItem(ctx context.Context, item *zotero.Item) error { return nil }

func (f *fakeAPI) DeleteItem(ctx context.Context, key string, version int) error { return nil }

func completeItem() *zotero.Item {
	return &zotero.Item{
		ItemType:         zotero.ItemTypeJournalArticle,
		Title:            "A Complete Article",
		Creators:         []zotero.Creator{{CreatorType: "author", FirstName: "Jane", LastName: "Doe"}},
		Date:             "2020-01-01",
		PublicationTitle: "Journal of Examples",
	}
}

func TestLookupResolvesIdentifier(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := testsupport.AddURL(t, store, "https://doi.org/10.1000/example")
	rec.DOI = "10.1000/example"
	if err := store.Update(context.Background(), rec); err != nil {
		t.Fatalf("Update: %v", err)
	}

	api := &fakeAPI{
		resolveIdentifier: func(ctx context.Context, identifier string) (*zotero.Item, error) {
			if identifier != "10.1000/example" {
				t.Errorf("identifier = %q", identifier)
			}
			return completeItem(), nil
		},
	}
	stage := stages.NewLookup(api, store, logging.NewNop())

	result, err := stage.Run(context.Background(), rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Disposition != pipeline.DispositionStored {
		t.Fatalf("disposition = %v, want stored", result.Disposition)
	}
	if result.Method != "doi" || result.ItemKey != "CREATED1" {
		t.Fatalf("unexpected result: %+v", result)
	}

	stored, err := store.GetByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.ItemKey != "CREATED1" || !stored.ItemCreatedBy {
		t.Fatalf("record not linked: %+v", stored)
	}
	if stored.Title != "A Complete Article" {
		t.Fatalf("title = %q", stored.Title)
	}
}

func TestLookupIncompleteCitation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := testsupport.AddURL(t, store, "https://example.org/page")

	api := &fakeAPI{
		resolveURL: func(ctx context.Context, rawURL string) (*zotero.Item, error) {
			return &zotero.Item{ItemType: zotero.ItemTypeWebpage, Title: "Bare Page"}, nil
		},
	}
	stage := stages.NewLookup(api, store, logging.NewNop())

	result, err := stage.Run(context.Background(), rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Disposition != pipeline.DispositionStoredIncomplete {
		t.Fatalf("disposition = %v, want stored incomplete", result.Disposition)
	}
	if result.Metadata["missing_fields"] == "" {
		t.Fatalf("missing_fields not recorded: %v", result.Metadata)
	}
	if result.Method != "url" {
		t.Fatalf("method = %q, want url", result.Method)
	}
}

func TestLookupFallsBackToURLOnDeadIdentifier(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := testsupport.AddURL(t, store, "https://example.org/page")
	rec.DOI = "10.1000/dead"
	if err := store.Update(context.Background(), rec); err != nil {
		t.Fatalf("Update: %v", err)
	}

	urlCalls := 0
	api := &fakeAPI{
		resolveIdentifier: func(ctx context.Context, identifier string) (*zotero.Item, error) {
			return nil, &classify.StatusError{Code: http.StatusNotFound}
		},
		resolveURL: func(ctx context.Context, rawURL string) (*zotero.Item, error) {
			urlCalls++
			return completeItem(), nil
		},
	}
	stage := stages.NewLookup(api, store, logging.NewNop())

	result, err := stage.Run(context.Background(), rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if urlCalls != 1 {
		t.Fatalf("url fallback calls = %d, want 1", urlCalls)
	}
	if result.Method != "url" {
		t.Fatalf("method = %q, want url", result.Method)
	}
}

func TestLookupPropagatesResolveErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := testsupport.AddURL(t, store, "https://example.org/page")

	api := &fakeAPI{
		resolveURL: func(ctx context.Context, rawURL string) (*zotero.Item, error) {
			return nil, &classify.StatusError{Code: http.StatusBadGateway}
		},
	}
	stage := stages.NewLookup(api, store, logging.NewNop())

	_, err := stage.Run(context.Background(), rec)
	if got := classify.Classify(err); got != classify.CategoryHTTPServer {
		t.Fatalf("classified as %s, want http_server", got)
	}
}

func TestLookupSupports(t *testing.T) {
	stage := stages.NewLookup(&fakeAPI{}, nil, logging.NewNop())
	if stage.Supports(records.Capability{}) {
		t.Fatal("empty capability should not support lookup")
	}
	if !stage.Supports(records.Capability{HasIdentifier: true}) {
		t.Fatal("identifier capability should support lookup")
	}
	if !stage.Supports(records.Capability{HasDirectLookup: true}) {
		t.Fatal("direct lookup capability should support lookup")
	}
}
