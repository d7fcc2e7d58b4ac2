package records

import (
	"context"
	"fmt"
	"time"
)

// TransitionStatus atomically moves a record from an expected status to a new
// one, optionally appending a history entry in the same transaction. When the
// persisted status no longer matches `from`, ErrStatusConflict is returned and
// nothing is written. This compare-and-swap is what serializes concurrent
// transitions on a single record.
func (s *Store) TransitionStatus(ctx context.Context, id int64, from, to Status, attempt *Attempt) error {
	if _, ok := statusSet[to]; !ok {
		return fmt.Errorf("unknown status %q", to)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	res, err := tx.ExecContext(
		ctx,
		`UPDATE url_records SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		now.Format(time.RFC3339Nano),
		id,
		from,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record %d: expected status %s: %w", id, from, ErrStatusConflict)
	}

	if attempt != nil {
		attempt.URLID = id
		if err := insertAttemptTx(ctx, tx, attempt); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}
