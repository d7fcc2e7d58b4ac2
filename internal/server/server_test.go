package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"citelink/internal/actions"
	"citelink/internal/batch"
	"citelink/internal/config"
	"citelink/internal/logging"
	"citelink/internal/pipeline"
	"citelink/internal/records"
	"citelink/internal/server"
	"citelink/internal/state"
	"citelink/internal/testsupport"
	"citelink/internal/zotero"
)

type storedStage struct{}

func (storedStage) Name() string                     { return "lookup" }
func (storedStage) ProcessingStatus() records.Status { return records.StatusLookingUp }
func (storedStage) Supports(records.Capability) bool { return true }

func (storedStage) Run(ctx context.Context, rec *records.Record) (pipeline.Result, error) {
	return pipeline.Result{Disposition: pipeline.DispositionStored, Method: "url"}, nil
}

type fakeAPI struct {
	items map[string]*zotero.Item
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{items: make(map[string]*zotero.Item)}
}

func (f *fakeAPI) ResolveIdentifier(ctx context.Context, identifier string) (*zotero.Item, error) {
	return &zotero.Item{ItemType: zotero.ItemTypeJournalArticle, Title: "Resolved"}, nil
}

func (f *fakeAPI) ResolveURL(ctx context.Context, url string) (*zotero.Item, error) {
	return &zotero.Item{ItemType: zotero.ItemTypeWebpage, Title: "Resolved", URL: url}, nil
}

func (f *fakeAPI) CreateItem(ctx context.Context, item *zotero.Item) (*zotero.Item, error) {
	created := *item
	created.Key = fmt.Sprintf("ITEM%04d", len(f.items)+1)
	created.Version = 1
	f.items[created.Key] = &created
	return &created, nil
}

func (f *fakeAPI) GetItem(ctx context.Context, key string) (*zotero.Item, error) {
	item, ok := f.items[key]
	if !ok {
		return nil, fmt.Errorf("item %s not found", key)
	}
	return item, nil
}

func (f *fakeAPI) UpdateItem(ctx context.Context, item *zotero.Item) error {
	f.items[item.Key] = item
	return nil
}

func (f *fakeAPI) DeleteItem(ctx context.Context, key string, version int) error {
	delete(f.items, key)
	return nil
}

type testEnv struct {
	store   *records.Store
	machine *state.Machine
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, func(c *config.Config) {
		c.Batch.Concurrency = 2
	})
	store := testsupport.MustOpenStore(t, cfg)
	machine := state.NewMachine(store, logging.NewNop())
	orch := pipeline.New(store, machine, []pipeline.Stage{storedStage{}}, logging.NewNop())
	proc := batch.NewProcessor(cfg, store, orch, logging.NewNop())
	t.Cleanup(proc.Close)
	svc := actions.NewService(store, machine, newFakeAPI(), logging.NewNop())
	srv := server.New(cfg, store, svc, proc, logging.NewNop())
	return &testEnv{store: store, machine: machine, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestAddListShowURL(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/urls", map[string]string{"url": "https://example.org/a"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body %s", resp.Code, resp.Body.String())
	}
	var created server.URLView
	decodeInto(t, resp, &created)
	if created.Status != string(records.StatusNotStarted) {
		t.Fatalf("new record status = %s", created.Status)
	}

	resp = env.do(t, http.MethodPost, "/api/urls", map[string]string{"url": "https://example.org/a"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("duplicate add status = %d", resp.Code)
	}

	resp = env.do(t, http.MethodGet, "/api/urls?status=not_started", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("list status = %d", resp.Code)
	}
	var listed struct {
		URLs []server.URLView `json:"urls"`
	}
	decodeInto(t, resp, &listed)
	if len(listed.URLs) != 1 || listed.URLs[0].URL != "https://example.org/a" {
		t.Fatalf("unexpected list: %+v", listed.URLs)
	}

	resp = env.do(t, http.MethodGet, "/api/urls?status=bogus", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter = %d", resp.Code)
	}

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/urls/%d", created.ID), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("show status = %d", resp.Code)
	}

	resp = env.do(t, http.MethodGet, "/api/urls/9999", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("missing record status = %d", resp.Code)
	}

	resp = env.do(t, http.MethodGet, "/api/urls/abc", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", resp.Code)
	}
}

func TestSelectCandidateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := testsupport.AddURL(t, env.store, "https://example.org/paper")
	ctx := context.Background()
	if err := env.store.TransitionStatus(ctx, rec.ID, records.StatusNotStarted, records.StatusScanning, nil); err != nil {
		t.Fatalf("to scanning: %v", err)
	}
	if err := env.store.TransitionStatus(ctx, rec.ID, records.StatusScanning, records.StatusAwaitingSelection, nil); err != nil {
		t.Fatalf("to awaiting_selection: %v", err)
	}

	resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/urls/%d/select", rec.ID), map[string]string{
		"kind":  "doi",
		"value": "https://doi.org/10.1000/XYZ123",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("select status = %d, body %s", resp.Code, resp.Body.String())
	}
	var view server.URLView
	decodeInto(t, resp, &view)
	if view.DOI != "10.1000/xyz123" {
		t.Fatalf("doi = %q, want normalized", view.DOI)
	}
	if view.Status != string(records.StatusNotStarted) {
		t.Fatalf("status after select = %s", view.Status)
	}

	// A second select is rejected: the record is no longer awaiting selection.
	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/urls/%d/select", rec.ID), map[string]string{
		"kind":  "doi",
		"value": "10.1000/other",
	})
	if resp.Code != http.StatusConflict {
		t.Fatalf("repeat select status = %d", resp.Code)
	}

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/urls/%d/select", rec.ID), map[string]string{
		"kind":  "patent",
		"value": "x",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unknown kind status = %d", resp.Code)
	}
}

func TestIntentAndResetEndpoints(t *testing.T) {
	env := newTestEnv(t)
	rec := testsupport.AddURL(t, env.store, "https://example.org/later")

	resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/urls/%d/intent", rec.ID), map[string]string{"intent": "ignore"})
	if resp.Code != http.StatusOK {
		t.Fatalf("ignore status = %d, body %s", resp.Code, resp.Body.String())
	}
	var view server.URLView
	decodeInto(t, resp, &view)
	if view.Status != string(records.StatusIgnored) || view.Intent != string(records.IntentIgnore) {
		t.Fatalf("after ignore: status=%s intent=%s", view.Status, view.Intent)
	}

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/urls/%d/reset", rec.ID), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("reset status = %d, body %s", resp.Code, resp.Body.String())
	}
	decodeInto(t, resp, &view)
	if view.Status != string(records.StatusNotStarted) {
		t.Fatalf("after reset: status=%s", view.Status)
	}

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/urls/%d/intent", rec.ID), map[string]string{"intent": "priority"})
	if resp.Code != http.StatusOK {
		t.Fatalf("priority status = %d", resp.Code)
	}
	decodeInto(t, resp, &view)
	if view.Intent != string(records.IntentPriority) {
		t.Fatalf("intent = %s, want priority", view.Intent)
	}

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/urls/%d/intent", rec.ID), map[string]string{"intent": "whenever"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unknown intent status = %d", resp.Code)
	}
}

func TestBatchLifecycleEndpoints(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		testsupport.AddURL(t, env.store, fmt.Sprintf("https://example.org/batch-%d", i))
	}

	resp := env.do(t, http.MethodPost, "/api/batches", map[string]any{})
	if resp.Code != http.StatusAccepted {
		t.Fatalf("start batch status = %d, body %s", resp.Code, resp.Body.String())
	}
	var started server.SessionView
	decodeInto(t, resp, &started)
	if started.Total != 3 {
		t.Fatalf("batch total = %d, want 3", started.Total)
	}

	deadline := time.Now().Add(5 * time.Second)
	var final server.SessionView
	for time.Now().Before(deadline) {
		resp = env.do(t, http.MethodGet, "/api/batches/"+started.ID, nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("show batch status = %d", resp.Code)
		}
		decodeInto(t, resp, &final)
		if final.Status == string(batch.SessionCompleted) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if final.Status != string(batch.SessionCompleted) {
		t.Fatalf("batch never completed: %+v", final)
	}
	if final.Succeeded != 3 || final.Failed != 0 {
		t.Fatalf("batch counts: %+v", final)
	}
	if len(final.CompletedIDs) != 3 || len(final.FailedIDs) != 0 || len(final.SkippedIDs) != 0 {
		t.Fatalf("batch id lists: %+v", final)
	}

	var listed struct {
		Batches []server.SessionView `json:"batches"`
	}
	resp = env.do(t, http.MethodGet, "/api/batches", nil)
	decodeInto(t, resp, &listed)
	if len(listed.Batches) != 1 {
		t.Fatalf("batch list length = %d", len(listed.Batches))
	}

	resp = env.do(t, http.MethodPost, "/api/batches/nope/pause", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("unknown batch pause status = %d", resp.Code)
	}

	resp = env.do(t, http.MethodPost, "/api/batches/"+started.ID+"/pause", nil)
	if resp.Code != http.StatusConflict {
		t.Fatalf("pause completed batch status = %d", resp.Code)
	}
}

func TestBatchStartRejectsEmptySelection(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/batches", map[string]any{})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("empty batch status = %d", resp.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	testsupport.AddURL(t, env.store, "https://example.org/one")
	testsupport.AddURL(t, env.store, "https://example.org/two")

	resp := env.do(t, http.MethodGet, "/api/status", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d", resp.Code)
	}
	var view server.StatusView
	decodeInto(t, resp, &view)
	if view.Records != 2 {
		t.Fatalf("records = %d, want 2", view.Records)
	}
	if view.ByStatus[string(records.StatusNotStarted)] != 2 {
		t.Fatalf("by_status = %+v", view.ByStatus)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	env := newTestEnv(t)
	rec := testsupport.AddURL(t, env.store, "https://example.org/history")
	ctx := context.Background()
	if err := env.store.AppendAttempt(ctx, &records.Attempt{
		URLID:   rec.ID,
		Stage:   "lookup",
		Method:  "doi",
		Success: true,
		ItemKey: "ITEM0001",
	}); err != nil {
		t.Fatalf("append attempt: %v", err)
	}

	resp := env.do(t, http.MethodGet, fmt.Sprintf("/api/urls/%d/history", rec.ID), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("history status = %d", resp.Code)
	}
	var listed struct {
		History []server.AttemptView `json:"history"`
	}
	decodeInto(t, resp, &listed)
	if len(listed.History) != 1 || listed.History[0].Stage != "lookup" {
		t.Fatalf("unexpected history: %+v", listed.History)
	}

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/urls/%d/history/clear", rec.ID), map[string]string{"reason": "testing"})
	if resp.Code != http.StatusOK {
		t.Fatalf("clear status = %d, body %s", resp.Code, resp.Body.String())
	}

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/urls/%d/history", rec.ID), nil)
	decodeInto(t, resp, &listed)
	if len(listed.History) != 1 || listed.History[0].Stage != records.AuditStage {
		t.Fatalf("history after clear: %+v", listed.History)
	}
}
