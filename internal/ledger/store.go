package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"
	_ "modernc.org/sqlite"

	"inkwell/internal/config"
)

// Store manages ledger persistence backed by SQLite.
type Store struct {
	db          *sql.DB
	path        string
	maxAttempts int
}

// Open initializes or connects to the ledger database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.LedgerPath()
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

	store := &Store{db: db, path: dbPath, maxAttempts: cfg.Retry.MaxAttempts}
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

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// IsProcessed reports whether the content at path has already been handled
// successfully. Storage errors report false so a failed lookup can never
// cause a silent skip.
func (s *Store) IsProcessed(ctx context.Context, path string) bool {
	hash, err := Hash(path)
	if err != nil {
		return false
	}
	return s.IsProcessedHash(ctx, hash)
}

// IsProcessedHash is IsProcessed for a pre-computed content hash.
func (s *Store) IsProcessedHash(ctx context.Context, contentHash string) bool {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM ledger_records WHERE content_hash = ?`, contentHash,
	).Scan(&status)
	if err != nil {
		return false
	}
	return Status(status) == StatusSuccess
}

// MarkProcessing upserts a record with status processing and returns the
// content hash so callers can reuse it after the file has been moved. A
// record that already reached success is left untouched.
func (s *Store) MarkProcessing(ctx context.Context, path string) (string, error) {
	hash, err := Hash(path)
	if err != nil {
		return "", err
	}
	var size int64
	if info, statErr := os.Stat(path); statErr == nil {
		size = info.Size()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ledger_records (content_hash, original_path, file_name, file_size, status, processed_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(content_hash) DO UPDATE SET
             original_path = excluded.original_path,
             file_name = excluded.file_name,
             file_size = excluded.file_size,
             status = excluded.status,
             processed_at = excluded.processed_at
         WHERE ledger_records.status != ?`,
		hash, path, filepath.Base(path), size, StatusProcessing, now, StatusSuccess,
	)
	if err != nil {
		return "", fmt.Errorf("mark processing: %w", err)
	}
	return hash, nil
}

// SuccessResult carries the metadata recorded alongside a successful run.
type SuccessResult struct {
	Duration       time.Duration
	NotePath       string
	AttachmentPath string
	Language       string
}

// MarkSuccess updates the record to status success with result metadata.
// The hash must be the value returned by MarkProcessing; the original file
// has usually been moved by the time this is called.
func (s *Store) MarkSuccess(ctx context.Context, contentHash string, result SuccessResult) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE ledger_records
         SET status = ?, processing_duration = ?, note_path = ?, attachment_path = ?,
             language = ?, error_message = NULL, processed_at = ?
         WHERE content_hash = ?`,
		StatusSuccess,
		result.Duration.Seconds(),
		nullableString(result.NotePath),
		nullableString(result.AttachmentPath),
		nullableString(normalizeLanguage(result.Language)),
		now,
		contentHash,
	)
	if err != nil {
		return fmt.Errorf("mark success: %w", err)
	}
	return nil
}

// MarkFailed updates the record after a failed attempt. The stored status is
// failed once the attempt count reaches the configured retry budget, and
// failed_retry before that. Returns the status written. A record already
// marked success is left untouched; a late failure for duplicate content
// must not regress it.
func (s *Store) MarkFailed(ctx context.Context, path, errorMessage string, attemptCount int) (Status, error) {
	hash, err := Hash(path)
	if err != nil {
		// The file may be gone; fall back to the path identity so the
		// failure still leaves a durable trace.
		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			abs = path
		}
		hash = hashString(abs)
	}
	status := StatusFailedRetry
	if attemptCount >= s.maxAttempts {
		status = StatusFailed
	}
	if len(errorMessage) > maxErrorMessageLen {
		errorMessage = errorMessage[:maxErrorMessageLen]
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ledger_records (content_hash, original_path, file_name, file_size, status, processed_at, error_message)
         VALUES (?, ?, ?, 0, ?, ?, ?)
         ON CONFLICT(content_hash) DO UPDATE SET
             status = excluded.status,
             error_message = excluded.error_message,
             processed_at = excluded.processed_at
         WHERE ledger_records.status != ?`,
		hash, path, filepath.Base(path), status, now, errorMessage, StatusSuccess,
	)
	if err != nil {
		return "", fmt.Errorf("mark failed: %w", err)
	}
	return status, nil
}

// Record fetches the ledger record for a path, or nil when none exists.
func (s *Store) Record(ctx context.Context, path string) (*Record, error) {
	hash, err := Hash(path)
	if err != nil {
		return nil, err
	}
	return s.RecordByHash(ctx, hash)
}

// RecordByHash fetches a ledger record by content hash, or nil when none
// exists.
func (s *Store) RecordByHash(ctx context.Context, contentHash string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM ledger_records WHERE content_hash = ?`, contentHash)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// FailedRetry returns records awaiting another attempt, oldest first.
func (s *Store) FailedRetry(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM ledger_records WHERE status = ? ORDER BY processed_at`,
		StatusFailedRetry,
	)
	if err != nil {
		return nil, fmt.Errorf("query failed_retry: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// StaleProcessing returns records left in processing by an earlier run.
// These are logged at startup; the reconciliation scan re-observes any that
// still exist on disk.
func (s *Store) StaleProcessing(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM ledger_records WHERE status = ? ORDER BY processed_at`,
		StatusProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("query stale processing: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Statistics returns aggregate counts for health reporting.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	var stats Statistics

	row := s.db.QueryRowContext(ctx,
		`SELECT
            COUNT(CASE WHEN status = 'success' THEN 1 END),
            COUNT(CASE WHEN status IN ('failed', 'failed_retry') THEN 1 END),
            COUNT(CASE WHEN status = 'processing' THEN 1 END),
            COALESCE(AVG(CASE WHEN status = 'success' THEN processing_duration END), 0),
            COALESCE(SUM(CASE WHEN status = 'success' THEN processing_duration END), 0),
            COUNT(CASE WHEN status = 'success' AND date(processed_at) = date('now') THEN 1 END)
         FROM ledger_records`)
	if err := row.Scan(
		&stats.TotalSuccess,
		&stats.TotalFailed,
		&stats.TotalProcessing,
		&stats.AvgDuration,
		&stats.TotalDuration,
		&stats.ProcessedToday,
	); err != nil {
		return Statistics{}, fmt.Errorf("ledger statistics: %w", err)
	}
	if total := stats.TotalSuccess + stats.TotalFailed; total > 0 {
		stats.SuccessRate = float64(stats.TotalSuccess) / float64(total) * 100
	}
	return stats, nil
}

// Cleanup deletes terminal records older than the retention window. Records
// in processing or failed_retry are never swept by age alone.
func (s *Store) Cleanup(ctx context.Context, daysToKeep int) (int64, error) {
	if daysToKeep <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -daysToKeep).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ledger_records
         WHERE processed_at < ? AND status IN (?, ?)`,
		cutoff, StatusSuccess, StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("ledger cleanup: %w", err)
	}
	return res.RowsAffected()
}

const recordColumns = "content_hash, original_path, file_name, file_size, status, processed_at, processing_duration, error_message, language, note_path, attachment_path"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		hash         string
		originalPath string
		fileName     string
		fileSize     int64
		statusStr    string
		processedRaw string
		duration     sql.NullFloat64
		errorMessage sql.NullString
		lang         sql.NullString
		notePath     sql.NullString
		attachment   sql.NullString
	)
	if err := scanner.Scan(
		&hash,
		&originalPath,
		&fileName,
		&fileSize,
		&statusStr,
		&processedRaw,
		&duration,
		&errorMessage,
		&lang,
		&notePath,
		&attachment,
	); err != nil {
		return nil, err
	}

	record := &Record{
		ContentHash:    hash,
		OriginalPath:   originalPath,
		FileName:       fileName,
		FileSize:       fileSize,
		Status:         Status(statusStr),
		Duration:       duration.Float64,
		ErrorMessage:   errorMessage.String,
		Language:       lang.String,
		NotePath:       notePath.String,
		AttachmentPath: attachment.String,
	}
	if processed, err := time.Parse(time.RFC3339Nano, processedRaw); err == nil {
		record.ProcessedAt = processed
	}
	return record, nil
}

func collectRecords(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// normalizeLanguage canonicalizes a detected language into a BCP 47 tag.
// Transcribers report values like "en", "EN", or "english"; unparseable
// values are stored as given.
func normalizeLanguage(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	tag, err := language.Parse(value)
	if err != nil {
		return strings.ToLower(value)
	}
	return tag.String()
}
