package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/voucherscan/internal/store"
)

func TestSQLiteRecorder(t *testing.T) {
	ctx := context.Background()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "vouchers.db"))
	require.NoError(t, err)
	defer db.Close()

	r := NewSQLiteRecorder(db)
	require.NoError(t, r.Record(ctx, "a.jpg", []string{
		"1111222233334444", "5555666677778888",
	}))
	// A second scan of the same image adds only the new code.
	require.NoError(t, r.Record(ctx, "a.jpg", []string{
		"1111222233334444", "9999000011112222",
	}))

	codes, err := db.Query(ctx, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"1111222233334444", "5555666677778888", "9999000011112222",
	}, codes)
}

func TestObjectRecorder_MergesWithStoredCodes(t *testing.T) {
	ctx := context.Background()
	objects, err := store.NewObjectStore(t.TempDir())
	require.NoError(t, err)

	r := NewObjectRecorder(objects)
	require.NoError(t, r.Record(ctx, "a.jpg", []string{"1111222233334444"}))
	require.NoError(t, r.Record(ctx, "a.jpg", []string{
		"1111222233334444", "5555666677778888",
	}))

	got, err := objects.Load("a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []any{"1111222233334444", "5555666677778888"}, got)
}

func TestMergeCodeLists(t *testing.T) {
	tests := []struct {
		name     string
		existing any
		codes    []string
		want     []string
	}{
		{
			name:     "no stored value",
			existing: nil,
			codes:    []string{"a"},
			want:     []string{"a"},
		},
		{
			name:     "stored order kept",
			existing: []any{"b", "a"},
			codes:    []string{"a", "c"},
			want:     []string{"b", "a", "c"},
		},
		{
			name:     "non-string entries skipped",
			existing: []any{"a", 7.0},
			codes:    []string{"b"},
			want:     []string{"a", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeCodeLists(tt.existing, tt.codes))
		})
	}
}
