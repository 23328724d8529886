package pipeline

import (
	"context"
	"errors"

	"github.com/MeKo-Tech/voucherscan/internal/store"
)

// Recorder persists extracted codes for a key. Implementations must keep
// previously recorded codes intact (idempotent merge).
type Recorder interface {
	Record(ctx context.Context, key string, codes []string) error
}

// sqliteRecorder upserts each code into the keyed voucher table. The table
// backend handles per-key merging itself.
type sqliteRecorder struct {
	db *store.SQLite
}

// NewSQLiteRecorder adapts the keyed-table backend.
func NewSQLiteRecorder(db *store.SQLite) Recorder {
	return &sqliteRecorder{db: db}
}

func (r *sqliteRecorder) Record(ctx context.Context, key string, codes []string) error {
	for _, code := range codes {
		if err := r.db.Upsert(ctx, key, code); err != nil {
			return err
		}
	}
	return nil
}

// objectRecorder stores the code list in the content-addressed object store.
// Save is a full overwrite, so previously stored codes are loaded and merged
// first.
type objectRecorder struct {
	objects *store.ObjectStore
}

// NewObjectRecorder adapts the object-store backend.
func NewObjectRecorder(objects *store.ObjectStore) Recorder {
	return &objectRecorder{objects: objects}
}

func (r *objectRecorder) Record(_ context.Context, key string, codes []string) error {
	merged := codes
	existing, err := r.objects.Load(key)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return err
	default:
		merged = mergeCodeLists(existing, codes)
	}

	out := make([]any, len(merged))
	for i, code := range merged {
		out[i] = code
	}
	return r.objects.Save(key, out)
}

// mergeCodeLists appends new codes to the stored list, keeping stored order
// and dropping repeats.
func mergeCodeLists(existing any, codes []string) []string {
	var merged []string
	seen := make(map[string]struct{})
	if list, ok := existing.([]any); ok {
		for _, v := range list {
			if code, ok := v.(string); ok {
				if _, dup := seen[code]; !dup {
					seen[code] = struct{}{}
					merged = append(merged, code)
				}
			}
		}
	}
	for _, code := range codes {
		if _, dup := seen[code]; !dup {
			seen[code] = struct{}{}
			merged = append(merged, code)
		}
	}
	return merged
}
