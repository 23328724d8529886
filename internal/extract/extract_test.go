package extract

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "plain code without spaces",
			in:   "Gutschein: 5397123456781234",
			want: []string{"5397123456781234"},
		},
		{
			name: "space separated groups",
			in:   "5397 1234 5678 1234",
			want: []string{"5397123456781234"},
		},
		{
			name: "groups split across lines",
			in:   "5397 1234\n5678 1234",
			want: []string{"5397123456781234"},
		},
		{
			name: "multiple codes keep text order",
			in:   "first 1111 2222 3333 4444 then 5555 6666 7777 8888",
			want: []string{"1111222233334444", "5555666677778888"},
		},
		{
			name: "duplicates collapse to first occurrence",
			in:   "1111 2222 3333 4444 and again 1111222233334444",
			want: []string{"1111222233334444"},
		},
		{
			name: "placeholder code rejected",
			in:   "sample 1234 1234 1234 1234 real 9999 8888 7777 6666",
			want: []string{"9999888877776666"},
		},
		{
			name: "embedded in longer digit run rejected",
			in:   "12345678901234567890",
			want: nil,
		},
		{
			name: "too few digits",
			in:   "1234 5678 9012",
			want: nil,
		},
		{
			name: "full-width digits folded",
			in:   "５３９７ １２３４ ５６７８ １２３４",
			want: []string{"5397123456781234"},
		},
		{
			name: "no digits at all",
			in:   "voucher text without any code",
			want: nil,
		},
		{
			name: "empty input",
			in:   "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New().Codes(tt.in))
		})
	}
}

func TestCodesFromLines(t *testing.T) {
	got := New().CodesFromLines([]string{"5397 1234", "5678 1234"})
	assert.Equal(t, []string{"5397123456781234"}, got)
}

func TestCodes_DebugArtifact(t *testing.T) {
	dir := t.TempDir()
	e := New(WithDebugDir(dir))

	got := e.Codes("code 1111 2222 3333 4444")
	require.Equal(t, []string{"1111222233334444"}, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "1111222233334444")

	var artifact struct {
		Input   string   `json:"input"`
		Pattern string   `json:"pattern"`
		Codes   []string `json:"codes"`
	}
	require.NoError(t, json.Unmarshal(data, &artifact))
	assert.Equal(t, codePattern.String(), artifact.Pattern)
	assert.Equal(t, []string{"1111222233334444"}, artifact.Codes)
}

func TestCodes_DebugFailureDoesNotPropagate(t *testing.T) {
	// A file path cannot be created as a directory, so artifact emission
	// fails while extraction still succeeds.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	e := New(WithDebugDir(filepath.Join(blocker, "sub")))
	assert.Equal(t, []string{"1111222233334444"}, e.Codes("1111 2222 3333 4444"))
}
