// Package store persists extracted voucher codes. Two backends implement
// the same merge contract: a SQLite table keyed by normalized image path and
// a content-addressed JSON object store.
package store

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound signals that no record exists for the requested key.
var ErrNotFound = errors.New("store: not found")

// VoucherRecord is the persisted unit: one image key with its ordered,
// duplicate-free code list.
type VoucherRecord struct {
	Key       string    `json:"key"`
	Codes     []string  `json:"codes"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeKey folds a source locator into its canonical form: forward
// slashes, no redundant path elements. URLs pass through unchanged.
func NormalizeKey(key string) string {
	if strings.Contains(key, "://") {
		return key
	}
	return filepath.ToSlash(filepath.Clean(key))
}

// normalizeCode strips all whitespace from a stored code for comparison and
// re-validation.
func normalizeCode(code string) string {
	return strings.Join(strings.Fields(code), "")
}
