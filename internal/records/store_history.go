package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

func insertAttemptTx(ctx context.Context, tx *sql.Tx, attempt *Attempt) error {
	if attempt == nil {
		return errors.New("attempt is nil")
	}
	if attempt.URLID == 0 {
		return errors.New("attempt url_id is zero")
	}

	var seq int64
	if err := tx.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM processing_attempts WHERE url_id = ?`,
		attempt.URLID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("next attempt seq: %w", err)
	}
	attempt.Seq = seq

	var metadataJSON any
	if len(attempt.Metadata) > 0 {
		raw, err := json.Marshal(attempt.Metadata)
		if err != nil {
			return fmt.Errorf("marshal attempt metadata: %w", err)
		}
		metadataJSON = string(raw)
	}

	now := time.Now().UTC()
	attempt.CreatedAt = now
	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO processing_attempts (
            url_id, seq, stage, method, success, error_message, error_category,
            item_key, duration_ms, metadata_json, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.URLID,
		attempt.Seq,
		attempt.Stage,
		nullableString(attempt.Method),
		boolToInt(attempt.Success),
		nullableString(attempt.ErrorMessage),
		nullableString(attempt.ErrorCategory),
		nullableString(attempt.ItemKey),
		attempt.Duration.Milliseconds(),
		metadataJSON,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		attempt.ID = id
	}
	return nil
}

// AppendAttempt appends one history entry without changing the record status.
func (s *Store) AppendAttempt(ctx context.Context, attempt *Attempt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attempt tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertAttemptTx(ctx, tx, attempt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attempt: %w", err)
	}
	return nil
}

// History returns the attempts for a record in append order.
func (s *Store) History(ctx context.Context, urlID int64) ([]*Attempt, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+attemptColumns+` FROM processing_attempts WHERE url_id = ? ORDER BY seq`,
		urlID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

// ClearHistory removes a record's attempts and appends an audit entry marking
// the clear, all in one transaction. The audit entry keeps the log honest:
// history never silently shrinks.
func (s *Store) ClearHistory(ctx context.Context, urlID int64, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var removed int64
	if err := tx.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM processing_attempts WHERE url_id = ?`,
		urlID,
	).Scan(&removed); err != nil {
		return fmt.Errorf("count attempts: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM processing_attempts WHERE url_id = ?`, urlID); err != nil {
		return fmt.Errorf("delete attempts: %w", err)
	}

	audit := &Attempt{
		URLID:   urlID,
		Stage:   AuditStage,
		Success: true,
		Metadata: map[string]string{
			"removed_entries": fmt.Sprintf("%d", removed),
			"reason":          reason,
		},
	}
	if err := insertAttemptTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}
