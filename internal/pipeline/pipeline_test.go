package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/voucherscan/internal/ocr"
	"github.com/MeKo-Tech/voucherscan/internal/segment"
)

// scriptEngine returns the same canned lines for every region.
type scriptEngine struct {
	lines []ocr.Line
	err   error
	calls atomic.Int32
}

func (s *scriptEngine) Recognize(_ context.Context, _ image.Image) ([]ocr.Line, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.lines, nil
}

func (s *scriptEngine) Close() error { return nil }

// spyRecorder captures Record calls.
type spyRecorder struct {
	keys  []string
	codes [][]string
	err   error
}

func (s *spyRecorder) Record(_ context.Context, key string, codes []string) error {
	if s.err != nil {
		return s.err
	}
	s.keys = append(s.keys, key)
	s.codes = append(s.codes, codes)
	return nil
}

func buildTestPipeline(t *testing.T, engine ocr.Engine, recorder Recorder) *Pipeline {
	t.Helper()
	p, err := NewBuilder().
		WithEngine(engine).
		WithSecondPass(false).
		WithRecorder(recorder).
		Build()
	require.NoError(t, err)
	return p
}

func blankImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return img
}

func voucherPhoto() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 15, G: 15, B: 15, A: 255}},
		image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(50, 40, 250, 160), &image.Uniform{C: color.White},
		image.Point{}, draw.Src)
	return img
}

func TestProcessImage_BlankImageStoresNothing(t *testing.T) {
	engine := &scriptEngine{}
	recorder := &spyRecorder{}
	p := buildTestPipeline(t, engine, recorder)

	result, err := p.ProcessImage(context.Background(), "blank.png", blankImage(20, 20))
	require.NoError(t, err)

	assert.False(t, result.Rectified, "no boundary on a blank image")
	assert.Equal(t, []string{
		segment.RegionFull, segment.RegionTopLeft, segment.RegionTopRight,
		segment.RegionBottomLeft, segment.RegionBottomRight,
	}, result.Regions)
	assert.EqualValues(t, 5, engine.calls.Load(), "all five regions recognized")
	assert.Empty(t, result.MergedText)
	assert.Empty(t, result.Codes)
	assert.False(t, result.Stored)
	assert.Empty(t, recorder.keys, "no persistence write without codes")
}

func TestProcessImage_ExtractsAndRecordsCodes(t *testing.T) {
	engine := &scriptEngine{lines: []ocr.Line{
		{Text: "Gutschein 5397 1234 5678 1234"},
	}}
	recorder := &spyRecorder{}
	p := buildTestPipeline(t, engine, recorder)

	result, err := p.ProcessImage(context.Background(), "v.png", blankImage(40, 40))
	require.NoError(t, err)

	assert.Equal(t, []string{"5397123456781234"}, result.Codes)
	assert.True(t, result.Stored)
	require.Len(t, recorder.keys, 1)
	assert.Equal(t, "v.png", recorder.keys[0])
	assert.Equal(t, []string{"5397123456781234"}, recorder.codes[0])
}

func TestProcessImage_RectifiedRunsOriginalPassToo(t *testing.T) {
	engine := &scriptEngine{}
	p := buildTestPipeline(t, engine, nil)

	result, err := p.ProcessImage(context.Background(), "photo.png", voucherPhoto())
	require.NoError(t, err)

	assert.True(t, result.Rectified)
	assert.Len(t, result.Boundary, 4)
	assert.EqualValues(t, 10, engine.calls.Load(), "five rectified regions plus five original regions")
}

func TestProcessImage_RecorderFailurePropagates(t *testing.T) {
	engine := &scriptEngine{lines: []ocr.Line{{Text: "1111 2222 3333 4444"}}}
	recorder := &spyRecorder{err: errors.New("disk full")}
	p := buildTestPipeline(t, engine, recorder)

	_, err := p.ProcessImage(context.Background(), "v.png", blankImage(40, 40))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestProcessImage_DegenerateImageCompletesWithNoRegions(t *testing.T) {
	engine := &scriptEngine{lines: []ocr.Line{{Text: "1111 2222 3333 4444"}}}
	recorder := &spyRecorder{}
	p := buildTestPipeline(t, engine, recorder)

	result, err := p.ProcessImage(context.Background(), "dot.png", blankImage(1, 1))
	require.NoError(t, err)

	assert.Empty(t, result.Regions)
	assert.Empty(t, result.Codes)
	assert.False(t, result.Stored)
	assert.Empty(t, recorder.keys, "nothing persisted for an empty scan")
	assert.Zero(t, engine.calls.Load())
}

func TestProcess_MissingFile(t *testing.T) {
	p := buildTestPipeline(t, &scriptEngine{}, nil)
	_, err := p.Process(context.Background(), filepath.Join(t.TempDir(), "nope.png"))
	require.Error(t, err)
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestProcessBatch(t *testing.T) {
	dir := t.TempDir()
	a := writePNG(t, dir, "a.png", blankImage(30, 30))
	b := writePNG(t, dir, "b.png", blankImage(30, 30))

	engine := &scriptEngine{lines: []ocr.Line{{Text: "1111 2222 3333 4444"}}}
	recorder := &spyRecorder{}
	p := buildTestPipeline(t, engine, recorder)

	results, err := p.ProcessBatch(context.Background(), []string{a, b},
		BatchOptions{Workers: 2, ContinueOnError: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, a, results[0].Locator)
	assert.Equal(t, b, results[1].Locator)
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, []string{"1111222233334444"}, r.Result.Codes)
	}
	assert.Len(t, recorder.keys, 2)
}

func TestProcessBatch_ContinueOnError(t *testing.T) {
	dir := t.TempDir()
	good := writePNG(t, dir, "good.png", blankImage(30, 30))
	missing := filepath.Join(dir, "missing.png")

	p := buildTestPipeline(t, &scriptEngine{}, nil)
	results, err := p.ProcessBatch(context.Background(), []string{missing, good},
		BatchOptions{Workers: 1, ContinueOnError: true})
	require.NoError(t, err, "failures are carried per result")
	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
}

func TestProcessBatch_StopOnError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.png")
	p := buildTestPipeline(t, &scriptEngine{}, nil)

	_, err := p.ProcessBatch(context.Background(), []string{missing},
		BatchOptions{Workers: 1})
	require.Error(t, err)
}

func TestBuilder_RejectsBadSegmentMode(t *testing.T) {
	_, err := NewBuilder().
		WithEngine(&scriptEngine{}).
		WithSecondPass(false).
		WithSegmentMode(segment.Mode("thirds")).
		Build()
	require.Error(t, err)
}

func TestFormatResults(t *testing.T) {
	results := []*Result{{
		Source:     "v.png",
		Rectified:  true,
		MergedText: []string{"5397 1234 5678 1234"},
		Codes:      []string{"5397123456781234"},
	}}

	text, err := FormatResults(results, "text")
	require.NoError(t, err)
	assert.Contains(t, text, "v.png")
	assert.Contains(t, text, "code: 5397123456781234")

	jsonOut, err := FormatResults(results, "json")
	require.NoError(t, err)
	assert.Contains(t, jsonOut, `"codes"`)

	yamlOut, err := FormatResults(results, "yaml")
	require.NoError(t, err)
	assert.Contains(t, yamlOut, "codes:")

	_, err = FormatResults(results, "xml")
	require.Error(t, err)
}

func TestFormatResults_TextWithoutCodes(t *testing.T) {
	out, err := FormatResults([]*Result{{Source: "empty.png"}}, "")
	require.NoError(t, err)
	assert.Contains(t, out, "no voucher codes found")
}
