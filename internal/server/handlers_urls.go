package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"citelink/internal/identifiers"
	"citelink/internal/records"
	"citelink/internal/zotero"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.StatusCounts(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	view := StatusView{ByStatus: make(map[string]int, len(counts))}
	for status, count := range counts {
		view.ByStatus[string(status)] = count
		view.Records += count
	}
	if s.processor != nil {
		view.Sessions = len(s.processor.List())
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleListURLs(w http.ResponseWriter, r *http.Request) {
	var statuses []records.Status
	for _, value := range r.URL.Query()["status"] {
		status, ok := records.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(value))
			return
		}
		statuses = append(statuses, status)
	}
	recs, err := s.store.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]URLView{"urls": viewsFromRecords(recs)})
}

func (s *Server) handleAddURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if existing, err := s.store.GetByURL(r.Context(), req.URL); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	} else if existing != nil {
		s.writeError(w, http.StatusConflict, "url already tracked")
		return
	}
	rec, err := s.store.Add(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, viewFromRecord(rec))
}

func (s *Server) urlID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid url id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleShowURL(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r)
	if !ok {
		return
	}
	rec, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "url record not found")
		return
	}
	s.writeJSON(w, http.StatusOK, viewFromRecord(rec))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r)
	if !ok {
		return
	}
	attempts, err := s.store.History(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]AttemptView, 0, len(attempts))
	for _, attempt := range attempts {
		views = append(views, viewFromAttempt(attempt))
	}
	s.writeJSON(w, http.StatusOK, map[string][]AttemptView{"history": views})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.actions.ClearHistory(r.Context(), id, req.Reason); err != nil {
		s.writeActionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"result": "cleared"})
}

var knownKinds = map[identifiers.Kind]struct{}{
	identifiers.KindDOI:   {},
	identifiers.KindArXiv: {},
	identifiers.KindPMID:  {},
	identifiers.KindISBN:  {},
}

func (s *Server) handleSelectCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind := identifiers.Kind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if _, known := knownKinds[kind]; !known {
		s.writeError(w, http.StatusBadRequest, "unknown identifier kind "+strconv.Quote(req.Kind))
		return
	}
	rec, err := s.actions.SelectCandidate(r.Context(), id, kind, req.Value)
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewFromRecord(rec))
}

func (s *Server) handleApproveMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		Overrides map[string]string `json:"overrides"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := s.actions.ApproveMetadata(r.Context(), id, req.Overrides)
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewFromRecord(rec))
}

func (s *Server) handleStoreCustom(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r)
	if !ok {
		return
	}
	var item zotero.Item
	if err := decodeBody(r, &item); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := s.actions.StoreCustom(r.Context(), id, &item)
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewFromRecord(rec))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r)
	if !ok {
		return
	}
	rec, err := s.actions.Reset(r.Context(), id)
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewFromRecord(rec))
}

func (s *Server) handleSetIntent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		Intent string `json:"intent"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	intent, known := records.ParseIntent(req.Intent)
	if !known {
		s.writeError(w, http.StatusBadRequest, "unknown intent "+strconv.Quote(req.Intent))
		return
	}

	var (
		rec *records.Record
		err error
	)
	switch intent {
	case records.IntentIgnore:
		rec, err = s.actions.Ignore(r.Context(), id)
	case records.IntentArchive:
		rec, err = s.actions.Archive(r.Context(), id)
	default:
		if err = s.store.SetIntent(r.Context(), id, intent); err == nil {
			rec, err = s.store.GetByID(r.Context(), id)
		}
	}
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "url record not found")
		return
	}
	s.writeJSON(w, http.StatusOK, viewFromRecord(rec))
}

func (s *Server) handleUnlink(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		DeleteItem bool `json:"delete_item"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := s.actions.Unlink(r.Context(), id, req.DeleteItem)
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewFromRecord(rec))
}
