package records

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const recordColumns = "id, url, title, status, intent, item_key, item_created_by_us, item_user_modified, doi, arxiv_id, pmid, isbn, content_path, content_type, unreachable, error_message, error_category, created_at, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id            int64
		url           string
		title         sql.NullString
		statusStr     string
		intentStr     string
		itemKey       sql.NullString
		itemCreated   sql.NullInt64
		itemModified  sql.NullInt64
		doi           sql.NullString
		arxivID       sql.NullString
		pmid          sql.NullString
		isbn          sql.NullString
		contentPath   sql.NullString
		contentType   sql.NullString
		unreachable   sql.NullInt64
		errorMessage  sql.NullString
		errorCategory sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&url,
		&title,
		&statusStr,
		&intentStr,
		&itemKey,
		&itemCreated,
		&itemModified,
		&doi,
		&arxivID,
		&pmid,
		&isbn,
		&contentPath,
		&contentType,
		&unreachable,
		&errorMessage,
		&errorCategory,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	rec := &Record{
		ID:            id,
		URL:           url,
		Title:         title.String,
		Status:        Status(statusStr),
		Intent:        Intent(intentStr),
		ItemKey:       itemKey.String,
		ItemCreatedBy: itemCreated.Int64 != 0,
		ItemModified:  itemModified.Int64 != 0,
		DOI:           doi.String,
		ArXivID:       arxivID.String,
		PMID:          pmid.String,
		ISBN:          isbn.String,
		ContentPath:   contentPath.String,
		ContentType:   contentType.String,
		Unreachable:   unreachable.Int64 != 0,
		ErrorMessage:  errorMessage.String,
		ErrorCategory: errorCategory.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		rec.UpdatedAt = updated
	}
	return rec, nil
}

const attemptColumns = "id, url_id, seq, stage, method, success, error_message, error_category, item_key, duration_ms, metadata_json, created_at"

func scanAttempt(scanner interface{ Scan(dest ...any) error }) (*Attempt, error) {
	var (
		id            int64
		urlID         int64
		seq           int64
		stage         string
		method        sql.NullString
		success       int64
		errorMessage  sql.NullString
		errorCategory sql.NullString
		itemKey       sql.NullString
		durationMs    int64
		metadataRaw   sql.NullString
		createdRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&urlID,
		&seq,
		&stage,
		&method,
		&success,
		&errorMessage,
		&errorCategory,
		&itemKey,
		&durationMs,
		&metadataRaw,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	attempt := &Attempt{
		ID:            id,
		URLID:         urlID,
		Seq:           seq,
		Stage:         stage,
		Method:        method.String,
		Success:       success != 0,
		ErrorMessage:  errorMessage.String,
		ErrorCategory: errorCategory.String,
		ItemKey:       itemKey.String,
		Duration:      time.Duration(durationMs) * time.Millisecond,
	}
	if metadataRaw.Valid && metadataRaw.String != "" {
		meta := make(map[string]string)
		if err := json.Unmarshal([]byte(metadataRaw.String), &meta); err == nil {
			attempt.Metadata = meta
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		attempt.CreatedAt = created
	}
	return attempt, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
