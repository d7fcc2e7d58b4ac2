// Package actions implements the user-initiated operations on URL records:
// candidate selection, metadata approval, reset, ignore/archive, manual
// item creation, and unlinking. Every action is validated against the
// status guards before it touches the store or the reference library.
package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"citelink/internal/identifiers"
	"citelink/internal/llmextract"
	"citelink/internal/logging"
	"citelink/internal/records"
	"citelink/internal/state"
	"citelink/internal/zotero"
)

// ErrNotAllowed indicates the record's current status or guard rules forbid
// the requested action.
var ErrNotAllowed = errors.New("action not allowed for record state")

// ErrRecordNotFound indicates the target URL record does not exist.
var ErrRecordNotFound = errors.New("record not found")

// Service performs user actions over the store, state machine, and
// reference library.
type Service struct {
	store   *records.Store
	machine *state.Machine
	api     zotero.API
	logger  *slog.Logger
}

// NewService constructs the action service.
func NewService(store *records.Store, machine *state.Machine, api zotero.API, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		machine: machine,
		api:     api,
		logger:  logging.NewComponentLogger(logger, "actions"),
	}
}

func (s *Service) load(ctx context.Context, id int64) (*records.Record, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("record %d: %w", id, ErrRecordNotFound)
	}
	return rec, nil
}

// SelectCandidate records the user's choice from a scan's candidate list on
// the record, clearing the awaiting state so the pipeline re-enters at
// lookup with the explicit identifier.
func (s *Service) SelectCandidate(ctx context.Context, id int64, kind identifiers.Kind, value string) (*records.Record, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != records.StatusAwaitingSelection {
		return nil, fmt.Errorf("record %d is %s: %w", id, rec.Status, ErrNotAllowed)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("identifier value must not be empty")
	}

	switch kind {
	case identifiers.KindDOI:
		rec.DOI = identifiers.NormalizeDOI(value)
	case identifiers.KindArXiv:
		rec.ArXivID = value
	case identifiers.KindPMID:
		rec.PMID = value
	case identifiers.KindISBN:
		isbn, ok := identifiers.NormalizeISBN(value)
		if !ok {
			return nil, fmt.Errorf("invalid isbn %q", value)
		}
		rec.ISBN = isbn
	default:
		return nil, fmt.Errorf("unknown identifier kind %q", kind)
	}
	if err := s.store.Update(ctx, rec); err != nil {
		return nil, err
	}

	attempt := &records.Attempt{
		Stage:   "selection",
		Method:  "manual",
		Success: true,
		Metadata: map[string]string{
			"kind":  string(kind),
			"value": value,
		},
	}
	return s.machine.Transition(ctx, id, records.StatusAwaitingSelection, records.StatusNotStarted, attempt)
}

// ApproveMetadata turns the extraction parked on an awaiting_metadata record
// into a stored library item. Field overrides let the user correct the
// model before storage.
func (s *Service) ApproveMetadata(ctx context.Context, id int64, overrides map[string]string) (*records.Record, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != records.StatusAwaitingMetadata {
		return nil, fmt.Errorf("record %d is %s: %w", id, rec.Status, ErrNotAllowed)
	}

	extraction, err := s.latestExtraction(ctx, id)
	if err != nil {
		return nil, err
	}
	item := itemFromExtraction(rec, extraction, overrides)

	created, err := s.api.CreateItem(ctx, item)
	if err != nil {
		return nil, err
	}

	rec.ItemKey = created.Key
	rec.ItemCreatedBy = true
	rec.ItemModified = false
	if strings.TrimSpace(rec.Title) == "" {
		rec.Title = created.Title
	}
	if err := s.store.Update(ctx, rec); err != nil {
		return nil, err
	}

	validation := zotero.Validate(created)
	target := records.StatusStored
	attempt := &records.Attempt{
		Stage:   "approval",
		Method:  "manual",
		Success: true,
		ItemKey: created.Key,
		Metadata: map[string]string{
			"citation": zotero.Citation(created),
		},
	}
	if !validation.Complete {
		target = records.StatusStoredIncomplete
		attempt.Metadata["missing_fields"] = strings.Join(validation.MissingFields, ",")
	}
	return s.machine.Transition(ctx, id, records.StatusAwaitingMetadata, target, attempt)
}

// latestExtraction finds the raw payload of the most recent successful
// extraction attempt.
func (s *Service) latestExtraction(ctx context.Context, id int64) (*llmextract.Extraction, error) {
	history, err := s.store.History(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		if entry.Stage != "extract" || !entry.Success {
			continue
		}
		raw := entry.Metadata["extraction"]
		if raw == "" {
			continue
		}
		var extraction llmextract.Extraction
		if err := json.Unmarshal([]byte(raw), &extraction); err != nil {
			return nil, fmt.Errorf("decode stored extraction: %w", err)
		}
		return &extraction, nil
	}
	return nil, fmt.Errorf("record %d has no extraction to approve", id)
}

func itemFromExtraction(rec *records.Record, extraction *llmextract.Extraction, overrides map[string]string) *zotero.Item {
	item := &zotero.Item{
		ItemType:         extraction.ItemType,
		Title:            extraction.Title,
		Date:             extraction.Date,
		PublicationTitle: extraction.PublicationTitle,
		Publisher:        extraction.Publisher,
		DOI:              extraction.DOI,
		URL:              rec.URL,
	}
	if item.ItemType == "" {
		item.ItemType = zotero.ItemTypeWebpage
	}
	for _, author := range extraction.Authors {
		last, first, found := strings.Cut(author, ",")
		creator := zotero.Creator{CreatorType: "author"}
		if found {
			creator.LastName = strings.TrimSpace(last)
			creator.FirstName = strings.TrimSpace(first)
		} else {
			creator.Name = strings.TrimSpace(author)
		}
		item.Creators = append(item.Creators, creator)
	}
	for field, value := range overrides {
		value = strings.TrimSpace(value)
		switch field {
		case "title":
			item.Title = value
		case "date":
			item.Date = value
		case "publicationTitle":
			item.PublicationTitle = value
		case "publisher":
			item.Publisher = value
		case "itemType":
			item.ItemType = value
		}
	}
	return item
}

// StoreCustom links a hand-built item to the record, for URLs automation
// could not resolve.
func (s *Service) StoreCustom(ctx context.Context, id int64, item *zotero.Item) (*records.Record, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !state.CanTransition(rec.Status, records.StatusStoredCustom) {
		return nil, fmt.Errorf("record %d is %s: %w", id, rec.Status, ErrNotAllowed)
	}
	if item == nil || strings.TrimSpace(item.Title) == "" {
		return nil, errors.New("custom item requires at least a title")
	}
	if strings.TrimSpace(item.URL) == "" {
		item.URL = rec.URL
	}
	if item.ItemType == "" {
		item.ItemType = zotero.ItemTypeWebpage
	}

	created, err := s.api.CreateItem(ctx, item)
	if err != nil {
		return nil, err
	}

	rec.ItemKey = created.Key
	rec.ItemCreatedBy = true
	rec.ItemModified = false
	if strings.TrimSpace(rec.Title) == "" {
		rec.Title = created.Title
	}
	if err := s.store.Update(ctx, rec); err != nil {
		return nil, err
	}

	attempt := &records.Attempt{
		Stage:   "custom",
		Method:  "manual",
		Success: true,
		ItemKey: created.Key,
	}
	return s.machine.Transition(ctx, id, rec.Status, records.StatusStoredCustom, attempt)
}

// Reset returns a record to not_started, clearing transient error state.
// Linked items survive a reset; use Unlink for those.
func (s *Service) Reset(ctx context.Context, id int64) (*records.Record, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !state.CanReset(rec) {
		return nil, fmt.Errorf("record %d is %s: %w", id, rec.Status, ErrNotAllowed)
	}

	rec.ErrorMessage = ""
	rec.ErrorCategory = ""
	rec.Unreachable = false
	if err := s.store.Update(ctx, rec); err != nil {
		return nil, err
	}
	if rec.Status == records.StatusNotStarted {
		return rec, nil
	}
	return s.machine.Transition(ctx, id, rec.Status, records.StatusNotStarted, nil)
}

// Ignore marks a record as intentionally unprocessed.
func (s *Service) Ignore(ctx context.Context, id int64) (*records.Record, error) {
	return s.setAside(ctx, id, records.IntentIgnore, records.StatusIgnored)
}

// Archive marks a record as archived, out of any active workflow.
func (s *Service) Archive(ctx context.Context, id int64) (*records.Record, error) {
	return s.setAside(ctx, id, records.IntentArchive, records.StatusArchived)
}

func (s *Service) setAside(ctx context.Context, id int64, intent records.Intent, target records.Status) (*records.Record, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !state.CanTransition(rec.Status, target) {
		return nil, fmt.Errorf("record %d is %s: %w", id, rec.Status, ErrNotAllowed)
	}
	if err := s.store.SetIntent(ctx, id, intent); err != nil {
		return nil, err
	}
	return s.machine.Transition(ctx, id, rec.Status, target, nil)
}

// Unlink detaches the record from its library item and resets it. When
// deleteItem is set, the item is also removed from the library, but only
// when the ownership guards allow it: created by this system, never user
// modified, and not shared with another record.
func (s *Service) Unlink(ctx context.Context, id int64, deleteItem bool) (*records.Record, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !state.CanUnlink(rec) {
		return nil, fmt.Errorf("record %d is %s: %w", id, rec.Status, ErrNotAllowed)
	}

	if deleteItem {
		linkCount, err := s.store.ItemLinkCount(ctx, rec.ItemKey)
		if err != nil {
			return nil, err
		}
		if !state.CanDeleteLinkedItem(rec, linkCount) {
			return nil, fmt.Errorf("item %s is shared or user-modified: %w", rec.ItemKey, ErrNotAllowed)
		}
		item, err := s.api.GetItem(ctx, rec.ItemKey)
		if err != nil {
			return nil, err
		}
		if err := s.api.DeleteItem(ctx, rec.ItemKey, item.Version); err != nil {
			return nil, err
		}
		s.logger.Info("deleted linked item",
			logging.Int64(logging.FieldURLID, id),
			logging.String("item_key", rec.ItemKey),
		)
	}

	from := rec.Status
	rec.ItemKey = ""
	rec.ItemCreatedBy = false
	rec.ItemModified = false
	if err := s.store.Update(ctx, rec); err != nil {
		return nil, err
	}
	attempt := &records.Attempt{
		Stage:   "unlink",
		Method:  "manual",
		Success: true,
	}
	return s.machine.Transition(ctx, id, from, records.StatusNotStarted, attempt)
}

// ClearHistory wipes a record's attempt log, leaving a single audit entry
// describing the wipe.
func (s *Service) ClearHistory(ctx context.Context, id int64, reason string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	return s.store.ClearHistory(ctx, id, reason)
}
