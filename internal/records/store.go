package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"citelink/internal/config"
)

// ErrStatusConflict indicates a compare-and-swap status update found a status
// other than the expected one, usually because a concurrent transition won.
var ErrStatusConflict = errors.New("status conflict")

// Store manages URL record persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the records database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "citelink.db")
	return OpenPath(dbPath)
}

// OpenPath opens the database at an explicit path and applies the schema.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Add inserts a new URL record in not_started status with auto intent.
func (s *Store) Add(ctx context.Context, url string) (*Record, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("url is empty")
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO url_records (url, status, intent, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		url,
		StatusNotStarted,
		IntentAuto,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert url: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a URL record by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM url_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// GetByURL fetches a URL record by its URL. Returns nil when absent.
func (s *Store) GetByURL(ctx context.Context, url string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM url_records WHERE url = ?`, strings.TrimSpace(url))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record by url: %w", err)
	}
	return rec, nil
}

// List returns records filtered by status set (or all records when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Record, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + recordColumns + ` FROM url_records`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Update persists mutable fields of an existing record. Status is deliberately
// excluded; status changes must go through TransitionStatus.
func (s *Store) Update(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	rec.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE url_records
         SET title = ?, intent = ?, item_key = ?, item_created_by_us = ?, item_user_modified = ?,
             doi = ?, arxiv_id = ?, pmid = ?, isbn = ?, content_path = ?, content_type = ?,
             unreachable = ?, error_message = ?, error_category = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(rec.Title),
		rec.Intent,
		nullableString(rec.ItemKey),
		boolToInt(rec.ItemCreatedBy),
		boolToInt(rec.ItemModified),
		nullableString(rec.DOI),
		nullableString(rec.ArXivID),
		nullableString(rec.PMID),
		nullableString(rec.ISBN),
		nullableString(rec.ContentPath),
		nullableString(rec.ContentType),
		boolToInt(rec.Unreachable),
		nullableString(rec.ErrorMessage),
		nullableString(rec.ErrorCategory),
		rec.UpdatedAt.Format(time.RFC3339Nano),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

// SetIntent updates the user intent for a record.
func (s *Store) SetIntent(ctx context.Context, id int64, intent Intent) error {
	if _, ok := intentSet[intent]; !ok {
		return fmt.Errorf("unknown intent %q", intent)
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE url_records SET intent = ?, updated_at = ? WHERE id = ?`,
		intent,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set intent: %w", err)
	}
	return nil
}

// ItemLinkCount reports how many URL records link the given external item.
func (s *Store) ItemLinkCount(ctx context.Context, itemKey string) (int, error) {
	itemKey = strings.TrimSpace(itemKey)
	if itemKey == "" {
		return 0, nil
	}
	var count int
	if err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM url_records WHERE item_key = ?`,
		itemKey,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count item links: %w", err)
	}
	return count, nil
}

// StatusCounts aggregates record counts by status.
func (s *Store) StatusCounts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM url_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}
