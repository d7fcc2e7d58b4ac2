package actions_test

import (
	"context"
	"errors"
	"testing"

	"citelink/internal/actions"
	"citelink/internal/identifiers"
	"citelink/internal/logging"
	"citelink/internal/records"
	"citelink/internal/state"
	"citelink/internal/testsupport"
	"citelink/internal/zotero"
)

// fakeAPI is an in-memory zotero.API for action tests.
type fakeAPI struct {
	nextKey string
	items   map[string]*zotero.Item
	deleted []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{nextKey: "ITEM0001", items: make(map[string]*zotero.Item)}
}

func (f *fakeAPI) ResolveIdentifier(ctx context.Context, identifier string) (*zotero.Item, error) {
	return nil, errors.New("not used")
}

func (f *fakeAPI) ResolveURL(ctx context.Context, rawURL string) (*zotero.Item, error) {
	return nil, errors.New("not used")
}

func (f *fakeAPI) CreateItem(ctx context.Context, item *zotero.Item) (*zotero.Item, error) {
	out := *item
	out.Key = f.nextKey
	out.Version = 1
	f.items[out.Key] = &out
	return &out, nil
}

func (f *fakeAPI) GetItem(ctx context.Context, key string) (*zotero.Item, error) {
	item, ok := f.items[key]
	if !ok {
		return nil, errors.New("item not found")
	}
	return item, nil
}

func (f *fakeAPI) UpdateItem(ctx context.Context, item *zotero.Item) error { return nil }

func (f *fakeAPI) DeleteItem(ctx context.Context, key string, version int) error {
	delete(f.items, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func newService(t *testing.T) (*actions.Service, *records.Store, *fakeAPI) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	machine := state.NewMachine(store, logging.NewNop())
	api := newFakeAPI()
	return actions.NewService(store, machine, api, logging.NewNop()), store, api
}

func moveTo(t *testing.T, store *records.Store, id int64, path ...records.Status) {
	t.Helper()
	ctx := context.Background()
	rec, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	from := rec.Status
	for _, to := range path {
		if err := store.TransitionStatus(ctx, id, from, to, nil); err != nil {
			t.Fatalf("TransitionStatus %s -> %s: %v", from, to, err)
		}
		from = to
	}
}

func TestSelectCandidateSetsIdentifier(t *testing.T) {
	svc, store, _ := newService(t)
	rec := testsupport.AddURL(t, store, "https://example.org/paper")
	moveTo(t, store, rec.ID, records.StatusScanning, records.StatusAwaitingSelection)

	updated, err := svc.SelectCandidate(context.Background(), rec.ID, identifiers.KindDOI, "DOI:10.1000/Chosen")
	if err != nil {
		t.Fatalf("SelectCandidate: %v", err)
	}
	if updated.Status != records.StatusNotStarted {
		t.Fatalf("status = %s, want %s", updated.Status, records.StatusNotStarted)
	}
	if updated.DOI != "10.1000/chosen" {
		t.Fatalf("doi = %q", updated.DOI)
	}

	history, err := store.History(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].Stage != "selection" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestSelectCandidateRequiresAwaitingSelection(t *testing.T) {
	svc, store, _ := newService(t)
	rec := testsupport.AddURL(t, store, "https://example.org/paper")

	_, err := svc.SelectCandidate(context.Background(), rec.ID, identifiers.KindDOI, "10.1000/x")
	if !errors.Is(err, actions.ErrNotAllowed) {
		t.Fatalf("err = %v, want ErrNotAllowed", err)
	}
}

func TestApproveMetadataStoresItem(t *testing.T) {
	svc, store, api := newService(t)
	rec := testsupport.AddURL(t, store, "https://example.org/report")

	extraction := &records.Attempt{
		Stage:   "extract",
		Method:  "llm",
		Success: true,
		Metadata: map[string]string{
			"extraction": `{"item_type":"report","title":"Annual Report","authors":["Doe, Jane"],"date":"2022","publisher":"Example Press","confidence":0.9}`,
		},
	}
	moveTo(t, store, rec.ID, records.StatusExtracting)
	if err := store.TransitionStatus(context.Background(), rec.ID, records.StatusExtracting, records.StatusAwaitingMetadata, extraction); err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}

	updated, err := svc.ApproveMetadata(context.Background(), rec.ID, nil)
	if err != nil {
		t.Fatalf("ApproveMetadata: %v", err)
	}
	if updated.Status != records.StatusStored {
		t.Fatalf("status = %s, want %s", updated.Status, records.StatusStored)
	}
	if updated.ItemKey == "" || !updated.ItemCreatedBy {
		t.Fatalf("record not linked: %+v", updated)
	}

	item := api.items[updated.ItemKey]
	if item == nil || item.Title != "Annual Report" || item.Publisher != "Example Press" {
		t.Fatalf("unexpected stored item: %+v", item)
	}
	if len(item.Creators) != 1 || item.Creators[0].LastName != "Doe" {
		t.Fatalf("creators = %+v", item.Creators)
	}
}

func TestApproveMetadataWithOverridesAndIncomplete(t *testing.T) {
	svc, store, _ := newService(t)
	rec := testsupport.AddURL(t, store, "https://example.org/thing")

	extraction := &records.Attempt{
		Stage:   "extract",
		Method:  "llm",
		Success: true,
		Metadata: map[string]string{
			"extraction": `{"title":"Partial","confidence":0.8}`,
		},
	}
	moveTo(t, store, rec.ID, records.StatusExtracting)
	if err := store.TransitionStatus(context.Background(), rec.ID, records.StatusExtracting, records.StatusAwaitingMetadata, extraction); err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}

	updated, err := svc.ApproveMetadata(context.Background(), rec.ID, map[string]string{"title": "Corrected Title"})
	if err != nil {
		t.Fatalf("ApproveMetadata: %v", err)
	}
	// No creators or date: the item stores as incomplete, never rejected.
	if updated.Status != records.StatusStoredIncomplete {
		t.Fatalf("status = %s, want %s", updated.Status, records.StatusStoredIncomplete)
	}
	if updated.Title != "Corrected Title" {
		t.Fatalf("title = %q", updated.Title)
	}
}

func TestStoreCustomFromExhausted(t *testing.T) {
	svc, store, _ := newService(t)
	rec := testsupport.AddURL(t, store, "https://example.org/odd")
	moveTo(t, store, rec.ID, records.StatusLookingUp, records.StatusExhausted)

	updated, err := svc.StoreCustom(context.Background(), rec.ID, &zotero.Item{Title: "Hand Made"})
	if err != nil {
		t.Fatalf("StoreCustom: %v", err)
	}
	if updated.Status != records.StatusStoredCustom {
		t.Fatalf("status = %s, want %s", updated.Status, records.StatusStoredCustom)
	}
	if updated.ItemKey == "" {
		t.Fatal("record not linked")
	}
}

func TestResetClearsTransientState(t *testing.T) {
	svc, store, _ := newService(t)
	rec := testsupport.AddURL(t, store, "https://example.org/stuck")
	moveTo(t, store, rec.ID, records.StatusLookingUp, records.StatusExhausted)

	updated, err := svc.Reset(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if updated.Status != records.StatusNotStarted {
		t.Fatalf("status = %s, want %s", updated.Status, records.StatusNotStarted)
	}
}

func TestResetRefusesProcessingRecord(t *testing.T) {
	svc, store, _ := newService(t)
	rec := testsupport.AddURL(t, store, "https://example.org/inflight")
	moveTo(t, store, rec.ID, records.StatusLookingUp)

	_, err := svc.Reset(context.Background(), rec.ID)
	if !errors.Is(err, actions.ErrNotAllowed) {
		t.Fatalf("err = %v, want ErrNotAllowed", err)
	}
}

func TestIgnoreAndArchive(t *testing.T) {
	svc, store, _ := newService(t)
	rec := testsupport.AddURL(t, store, "https://example.org/noise")

	updated, err := svc.Ignore(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Ignore: %v", err)
	}
	if updated.Status != records.StatusIgnored || updated.Intent != records.IntentIgnore {
		t.Fatalf("unexpected record: %+v", updated)
	}

	updated, err = svc.Archive(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if updated.Status != records.StatusArchived || updated.Intent != records.IntentArchive {
		t.Fatalf("unexpected record: %+v", updated)
	}
}

func TestUnlinkWithDelete(t *testing.T) {
	svc, store, api := newService(t)
	rec := testsupport.AddURL(t, store, "https://example.org/linked")
	moveTo(t, store, rec.ID, records.StatusLookingUp, records.StatusStored)

	item, err := api.CreateItem(context.Background(), &zotero.Item{Title: "Linked Item"})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	loaded, err := store.GetByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	loaded.ItemKey = item.Key
	loaded.ItemCreatedBy = true
	if err := store.Update(context.Background(), loaded); err != nil {
		t.Fatalf("Update: %v", err)
	}

	updated, err := svc.Unlink(context.Background(), rec.ID, true)
	if err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if updated.Status != records.StatusNotStarted || updated.ItemKey != "" {
		t.Fatalf("unexpected record: %+v", updated)
	}
	if len(api.deleted) != 1 || api.deleted[0] != item.Key {
		t.Fatalf("deleted = %v", api.deleted)
	}
}

func TestUnlinkRefusesDeleteOfModifiedItem(t *testing.T) {
	svc, store, api := newService(t)
	rec := testsupport.AddURL(t, store, "https://example.org/edited")
	moveTo(t, store, rec.ID, records.StatusLookingUp, records.StatusStored)

	item, err := api.CreateItem(context.Background(), &zotero.Item{Title: "Edited Item"})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	loaded, err := store.GetByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	loaded.ItemKey = item.Key
	loaded.ItemCreatedBy = true
	loaded.ItemModified = true
	if err := store.Update(context.Background(), loaded); err != nil {
		t.Fatalf("Update: %v", err)
	}

	_, err = svc.Unlink(context.Background(), rec.ID, true)
	if !errors.Is(err, actions.ErrNotAllowed) {
		t.Fatalf("err = %v, want ErrNotAllowed", err)
	}
	if len(api.deleted) != 0 {
		t.Fatalf("item deleted despite guard: %v", api.deleted)
	}
}

func TestClearHistoryLeavesAuditEntry(t *testing.T) {
	svc, store, _ := newService(t)
	rec := testsupport.AddURL(t, store, "https://example.org/history")
	moveTo(t, store, rec.ID, records.StatusLookingUp)
	if err := store.AppendAttempt(context.Background(), &records.Attempt{URLID: rec.ID, Stage: "lookup", Method: "url", Success: false}); err != nil {
		t.Fatalf("AppendAttempt: %v", err)
	}

	if err := svc.ClearHistory(context.Background(), rec.ID, "test cleanup"); err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}

	history, err := store.History(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].Stage != records.AuditStage {
		t.Fatalf("unexpected history after clear: %+v", history)
	}
}
