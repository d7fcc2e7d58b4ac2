package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"citelink/internal/batch"
	"citelink/internal/records"
)

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	snaps := s.processor.List()
	views := make([]SessionView, 0, len(snaps))
	for _, snap := range snaps {
		views = append(views, viewFromSnapshot(snap))
	}
	s.writeJSON(w, http.StatusOK, map[string][]SessionView{"batches": views})
}

func (s *Server) handleStartBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URLIDs        []int64  `json:"url_ids"`
		Statuses      []string `json:"statuses"`
		RespectIntent bool     `json:"respect_intent"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ids := req.URLIDs
	if len(ids) == 0 {
		// Without explicit IDs, select by status filter (not_started when
		// no filter is given).
		statuses := []records.Status{records.StatusNotStarted}
		if len(req.Statuses) > 0 {
			statuses = statuses[:0]
			for _, value := range req.Statuses {
				status, ok := records.ParseStatus(value)
				if !ok {
					s.writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(value))
					return
				}
				statuses = append(statuses, status)
			}
		}
		recs, err := s.store.List(r.Context(), statuses...)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, rec := range recs {
			ids = append(ids, rec.ID)
		}
	}
	if len(ids) == 0 {
		s.writeError(w, http.StatusBadRequest, "no urls match the batch request")
		return
	}

	// The session must outlive this request; batch workers carry their own
	// lifecycle and are stopped through cancel, not request contexts.
	sess, err := s.processor.Start(context.WithoutCancel(r.Context()), ids, batch.Options{RespectIntent: req.RespectIntent})
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, viewFromSnapshot(sess.Snapshot()))
}

func (s *Server) batchID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "invalid batch id")
		return "", false
	}
	return id, true
}

func (s *Server) handleShowBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := s.batchID(w, r)
	if !ok {
		return
	}
	snap, err := s.processor.Get(id)
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewFromSnapshot(snap))
}

func (s *Server) handlePauseBatch(w http.ResponseWriter, r *http.Request) {
	s.controlBatch(w, r, s.processor.Pause)
}

func (s *Server) handleResumeBatch(w http.ResponseWriter, r *http.Request) {
	s.controlBatch(w, r, s.processor.Resume)
}

func (s *Server) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	s.controlBatch(w, r, s.processor.Cancel)
}

func (s *Server) controlBatch(w http.ResponseWriter, r *http.Request, action func(string) error) {
	id, ok := s.batchID(w, r)
	if !ok {
		return
	}
	if err := action(id); err != nil {
		s.writeActionError(w, err)
		return
	}
	snap, err := s.processor.Get(id)
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewFromSnapshot(snap))
}
