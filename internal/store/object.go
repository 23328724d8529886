package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ObjectStore is the content-addressed backend. Values are stored as JSON
// files named by the SHA-256 of their key. Save is a full overwrite;
// merging with previously stored data is the caller's responsibility.
type ObjectStore struct {
	dir string
}

// NewObjectStore creates the backing directory if needed.
func NewObjectStore(dir string) (*ObjectStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create object store dir %s: %w", dir, err)
	}
	return &ObjectStore{dir: dir}, nil
}

// Save overwrites the object stored under key. Shared and circular
// references inside value are preserved through $ref markers.
func (o *ObjectStore) Save(key string, value any) error {
	data, err := json.MarshalIndent(decycle(value), "", "  ")
	if err != nil {
		return fmt.Errorf("encode object for key %q: %w", key, err)
	}
	path := o.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write object for key %q: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit object for key %q: %w", key, err)
	}
	return nil
}

// Load returns the object stored under key, with $ref markers resolved back
// into shared references. Returns ErrNotFound when no object exists.
func (o *ObjectStore) Load(key string) (any, error) {
	data, err := os.ReadFile(o.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read object for key %q: %w", key, err)
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("decode object for key %q: %w", key, err)
	}
	return retrocycle(value)
}

// Delete removes the object stored under key. Missing objects are not an
// error.
func (o *ObjectStore) Delete(key string) error {
	err := os.Remove(o.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object for key %q: %w", key, err)
	}
	return nil
}

func (o *ObjectStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(o.dir, hex.EncodeToString(sum[:])+".json")
}
