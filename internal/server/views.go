package server

import (
	"time"

	"citelink/internal/batch"
	"citelink/internal/records"
)

// URLView is the JSON shape of a URL record returned by the control API.
type URLView struct {
	ID            int64  `json:"id"`
	URL           string `json:"url"`
	Title         string `json:"title,omitempty"`
	Status        string `json:"status"`
	Intent        string `json:"intent"`
	ItemKey       string `json:"item_key,omitempty"`
	ItemCreatedBy bool   `json:"item_created_by"`
	ItemModified  bool   `json:"item_modified"`
	DOI           string `json:"doi,omitempty"`
	ArXivID       string `json:"arxiv_id,omitempty"`
	PMID          string `json:"pmid,omitempty"`
	ISBN          string `json:"isbn,omitempty"`
	ContentType   string `json:"content_type,omitempty"`
	Unreachable   bool   `json:"unreachable"`
	ErrorMessage  string `json:"error_message,omitempty"`
	ErrorCategory string `json:"error_category,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// AttemptView is the JSON shape of one processing history entry.
type AttemptView struct {
	Seq           int64             `json:"seq"`
	Stage         string            `json:"stage"`
	Method        string            `json:"method,omitempty"`
	Success       bool              `json:"success"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	ErrorCategory string            `json:"error_category,omitempty"`
	ItemKey       string            `json:"item_key,omitempty"`
	DurationMS    int64             `json:"duration_ms"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     string            `json:"created_at"`
}

// SessionView is the JSON shape of a batch session snapshot.
type SessionView struct {
	ID                  string  `json:"id"`
	Status              string  `json:"status"`
	Total               int     `json:"total"`
	Current             int     `json:"current"`
	Succeeded           int     `json:"succeeded"`
	Failed              int     `json:"failed"`
	Skipped             int     `json:"skipped"`
	CompletedIDs        []int64 `json:"completed_ids"`
	FailedIDs           []int64 `json:"failed_ids"`
	SkippedIDs          []int64 `json:"skipped_ids"`
	StartedAt           string  `json:"started_at"`
	FinishedAt          string  `json:"finished_at,omitempty"`
	EstimatedCompletion string  `json:"estimated_completion,omitempty"`
}

// StatusView summarizes the record corpus for the status endpoint.
type StatusView struct {
	Records  int            `json:"records"`
	ByStatus map[string]int `json:"by_status"`
	Sessions int            `json:"sessions"`
}

func viewFromRecord(rec *records.Record) URLView {
	return URLView{
		ID:            rec.ID,
		URL:           rec.URL,
		Title:         rec.Title,
		Status:        string(rec.Status),
		Intent:        string(rec.Intent),
		ItemKey:       rec.ItemKey,
		ItemCreatedBy: rec.ItemCreatedBy,
		ItemModified:  rec.ItemModified,
		DOI:           rec.DOI,
		ArXivID:       rec.ArXivID,
		PMID:          rec.PMID,
		ISBN:          rec.ISBN,
		ContentType:   rec.ContentType,
		Unreachable:   rec.Unreachable,
		ErrorMessage:  rec.ErrorMessage,
		ErrorCategory: rec.ErrorCategory,
		CreatedAt:     rec.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func viewsFromRecords(recs []*records.Record) []URLView {
	out := make([]URLView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, viewFromRecord(rec))
	}
	return out
}

func viewFromAttempt(attempt *records.Attempt) AttemptView {
	return AttemptView{
		Seq:           attempt.Seq,
		Stage:         attempt.Stage,
		Method:        attempt.Method,
		Success:       attempt.Success,
		ErrorMessage:  attempt.ErrorMessage,
		ErrorCategory: attempt.ErrorCategory,
		ItemKey:       attempt.ItemKey,
		DurationMS:    attempt.Duration.Milliseconds(),
		Metadata:      attempt.Metadata,
		CreatedAt:     attempt.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func viewFromSnapshot(snap batch.Snapshot) SessionView {
	view := SessionView{
		ID:           snap.ID,
		Status:       string(snap.Status),
		Total:        snap.Total,
		Current:      snap.Current,
		Succeeded:    snap.Succeeded,
		Failed:       snap.Failed,
		Skipped:      snap.Skipped,
		CompletedIDs: snap.CompletedIDs,
		FailedIDs:    snap.FailedIDs,
		SkippedIDs:   snap.SkippedIDs,
		StartedAt:    snap.StartedAt.UTC().Format(time.RFC3339),
	}
	if !snap.FinishedAt.IsZero() {
		view.FinishedAt = snap.FinishedAt.UTC().Format(time.RFC3339)
	}
	if !snap.EstimatedCompletion.IsZero() {
		view.EstimatedCompletion = snap.EstimatedCompletion.UTC().Format(time.RFC3339)
	}
	return view
}
