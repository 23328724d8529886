package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver
)

// codeDelimiter separates codes within a row.
const codeDelimiter = ","

// storedCodeLength filters stale rows written by earlier schema versions.
const storedCodeLength = 16

const schema = `
CREATE TABLE IF NOT EXISTS vouchers (
	image_path TEXT PRIMARY KEY,
	codes      TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// SQLite is the keyed-table backend. Upserts are serialized with a mutex so
// the per-key read-modify-write stays atomic under concurrent callers.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenSQLite opens (and if needed initializes) the voucher database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open voucher db %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize voucher schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Upsert records code for key. A missing row is created; an existing row has
// the code appended only when not already present, so repeated extraction of
// the same image never duplicates or drops codes.
func (s *SQLite) Upsert(ctx context.Context, key, code string) error {
	key = NormalizeKey(key)
	code = normalizeCode(code)
	if code == "" {
		return errors.New("store: empty code")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var stored string
	err := s.db.QueryRowContext(ctx,
		`SELECT codes FROM vouchers WHERE image_path = ?`, key).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO vouchers (image_path, codes) VALUES (?, ?)`, key, code)
		if err != nil {
			return fmt.Errorf("insert voucher row: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("read voucher row: %w", err)
	}

	codes := splitCodes(stored)
	for _, existing := range codes {
		if normalizeCode(existing) == code {
			return nil
		}
	}
	codes = append(codes, code)
	_, err = s.db.ExecContext(ctx,
		`UPDATE vouchers SET codes = ? WHERE image_path = ?`,
		strings.Join(codes, codeDelimiter), key)
	if err != nil {
		return fmt.Errorf("update voucher row: %w", err)
	}
	return nil
}

// Query returns the codes stored for key. Each code is re-normalized and
// length-filtered, so rows written by earlier schema versions cannot leak
// malformed values. A missing row returns ErrNotFound.
func (s *SQLite) Query(ctx context.Context, key string) ([]string, error) {
	var stored string
	err := s.db.QueryRowContext(ctx,
		`SELECT codes FROM vouchers WHERE image_path = ?`, NormalizeKey(key)).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read voucher row: %w", err)
	}

	var codes []string
	for _, raw := range splitCodes(stored) {
		code := normalizeCode(raw)
		if len(code) == storedCodeLength {
			codes = append(codes, code)
		}
	}
	return codes, nil
}

// List returns every stored record ordered by creation time.
func (s *SQLite) List(ctx context.Context) ([]VoucherRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT image_path, codes, created_at FROM vouchers ORDER BY created_at, image_path`)
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	defer rows.Close()

	var records []VoucherRecord
	for rows.Next() {
		var rec VoucherRecord
		var stored string
		var created time.Time
		if err := rows.Scan(&rec.Key, &stored, &created); err != nil {
			return nil, fmt.Errorf("scan voucher row: %w", err)
		}
		rec.CreatedAt = created
		for _, raw := range splitCodes(stored) {
			if code := normalizeCode(raw); len(code) == storedCodeLength {
				rec.Codes = append(rec.Codes, code)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

func splitCodes(stored string) []string {
	if stored == "" {
		return nil
	}
	return strings.Split(stored, codeDelimiter)
}
