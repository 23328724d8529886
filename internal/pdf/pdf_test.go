package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF("sheet.pdf"))
	assert.True(t, IsPDF("SHEET.PDF"))
	assert.False(t, IsPDF("voucher.png"))
	assert.False(t, IsPDF("pdf"))
}

func TestParsePageSelection(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []int
		wantErr bool
	}{
		{name: "empty selects all", in: "", want: nil},
		{name: "single page", in: "3", want: []int{3}},
		{name: "list", in: "1,3,5", want: []int{1, 3, 5}},
		{name: "range", in: "2-5", want: []int{2, 3, 4, 5}},
		{name: "mixed", in: "1, 3-4", want: []int{1, 3, 4}},
		{name: "reversed range", in: "5-2", wantErr: true},
		{name: "garbage", in: "a-b", wantErr: true},
		{name: "trailing comma", in: "1,", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePageSelection(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePageFilename(t *testing.T) {
	tests := []struct {
		in       string
		page     int
		index    int
		parsable bool
	}{
		{in: "page_1_image_1.png", page: 1, index: 1, parsable: true},
		{in: "page_12_image_3.jpg", page: 12, index: 3, parsable: true},
		{in: "thumb.png", parsable: false},
		{in: "page_x_image_1.png", parsable: false},
		{in: "page_1_thumb_1.png", parsable: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			page, index, ok := parsePageFilename(tt.in)
			require.Equal(t, tt.parsable, ok)
			if ok {
				assert.Equal(t, tt.page, page)
				assert.Equal(t, tt.index, index)
			}
		})
	}
}

func TestExtractImages_MissingFile(t *testing.T) {
	_, err := ExtractImages("does-not-exist.pdf", "")
	require.Error(t, err)
}
