package ocr

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/voucherscan/internal/segment"
)

// fakeEngine returns canned lines per call and records call order.
type fakeEngine struct {
	results [][]Line
	errs    []error
	calls   int
}

func (f *fakeEngine) Recognize(_ context.Context, _ image.Image) ([]Line, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return nil, nil
}

func (f *fakeEngine) Close() error { return nil }

func lines(texts ...string) []Line {
	out := make([]Line, len(texts))
	for i, t := range texts {
		out[i] = Line{Text: t}
	}
	return out
}

func testRegions(n int) []segment.Region {
	names := []string{
		segment.RegionFull, segment.RegionTopLeft, segment.RegionTopRight,
		segment.RegionBottomLeft, segment.RegionBottomRight,
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	regions := make([]segment.Region, n)
	for i := range regions {
		regions[i] = segment.Region{Name: names[i], Image: img}
	}
	return regions
}

func TestAggregator_LabelsLinesByRegion(t *testing.T) {
	engine := &fakeEngine{results: [][]Line{
		lines("1234 5678"),
		lines("9999"),
	}}
	agg := NewAggregator(engine)

	got := agg.Recognize(context.Background(), testRegions(2))
	require.Len(t, got, 2)
	assert.Equal(t, segment.RegionFull, got[0].Region)
	assert.Equal(t, segment.RegionTopLeft, got[1].Region)
}

func TestAggregator_RegionFailureDoesNotAbort(t *testing.T) {
	engine := &fakeEngine{
		results: [][]Line{lines("first"), nil, lines("third")},
		errs:    []error{nil, errors.New("tesseract internal error"), nil},
	}
	agg := NewAggregator(engine)

	got := agg.Recognize(context.Background(), testRegions(3))
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "third", got[1].Text)
	assert.Equal(t, 3, engine.calls, "remaining regions still processed")
}

func TestAggregator_SecondPassAppendsAfterPrimary(t *testing.T) {
	primary := &fakeEngine{results: [][]Line{lines("alpha")}}
	secondary := &fakeEngine{results: [][]Line{lines("beta", "alpha")}}
	agg := NewAggregator(primary, WithSecondPass(secondary))

	got := agg.Recognize(context.Background(), testRegions(1))
	require.Len(t, got, 3)
	assert.Equal(t, []string{"alpha", "beta"}, MergeLines(got))
}

func TestMergeLines(t *testing.T) {
	tests := []struct {
		name string
		in   []Line
		want []string
	}{
		{
			name: "trims and drops empty",
			in:   lines("  1234 5678  ", "", "   ", "tail"),
			want: []string{"1234 5678", "tail"},
		},
		{
			name: "dedup keeps first occurrence position",
			in:   lines("a", "b", "a", "c", "b"),
			want: []string{"a", "b", "c"},
		},
		{
			name: "dedup applies after trimming",
			in:   lines("code", "  code  "),
			want: []string{"code"},
		},
		{
			name: "no lines",
			in:   nil,
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeLines(tt.in))
		})
	}
}

func TestMerger_IncrementalAcrossPasses(t *testing.T) {
	m := NewMerger()
	m.Add(lines("1111 2222 3333 4444", "noise")...)
	m.Add(lines("noise", "5555 6666 7777 8888")...)
	assert.Equal(t, []string{
		"1111 2222 3333 4444", "noise", "5555 6666 7777 8888",
	}, m.Lines())
}
