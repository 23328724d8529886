package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/voucherscan/internal/common"
	"github.com/MeKo-Tech/voucherscan/internal/ocr"
	"github.com/MeKo-Tech/voucherscan/internal/pdf"
	"github.com/MeKo-Tech/voucherscan/internal/rectify"
	"github.com/MeKo-Tech/voucherscan/internal/segment"
	"github.com/MeKo-Tech/voucherscan/internal/store"
)

// Process resolves the locator (file path or URL), runs the full scan
// sequence and persists any extracted codes under the normalized key.
func (p *Pipeline) Process(ctx context.Context, locator string) (*Result, error) {
	img, err := p.loader.Load(ctx, locator)
	if err != nil {
		return nil, err
	}
	return p.ProcessImage(ctx, store.NormalizeKey(locator), img)
}

// ProcessImage runs the scan sequence on an already decoded image stored
// under key.
func (p *Pipeline) ProcessImage(ctx context.Context, key string, img image.Image) (*Result, error) {
	timer := common.NewNamedTimer("scan")
	result := &Result{Source: key}

	rectified := p.applyRectification(img, result)

	regions, err := segment.Split(rectified, p.cfg.SegmentMode)
	if err != nil {
		if !errors.Is(err, segment.ErrDegenerateImage) {
			return nil, fmt.Errorf("segment %s: %w", key, err)
		}
		// Too small to carve up. Finish the scan with no regions so the
		// caller still gets a result instead of a failed run.
		p.log.Warn("image too small to segment", "source", key)
		regions = nil
	}
	for _, region := range regions {
		result.Regions = append(result.Regions, region.Name)
	}

	merger := ocr.NewMerger()
	lines := p.agg.Recognize(ctx, regions)
	merger.Add(lines...)
	result.Lines = lines

	// When rectification changed the geometry, a pass over the original
	// image can still pick up digits the warp distorted.
	if result.Rectified {
		origRegions, err := segment.Split(img, p.cfg.SegmentMode)
		if err == nil {
			origLines := p.agg.Recognize(ctx, origRegions)
			merger.Add(origLines...)
			result.Lines = append(result.Lines, origLines...)
		}
	}

	result.MergedText = merger.Lines()
	result.Codes = p.extractor.CodesFromLines(result.MergedText)

	if len(result.Codes) > 0 && p.recorder != nil {
		if err := p.recorder.Record(ctx, key, result.Codes); err != nil {
			return nil, fmt.Errorf("record codes for %s: %w", key, err)
		}
		result.Stored = true
	}

	result.Duration = timer.Stop()
	p.log.Info("voucher scan finished",
		"source", key,
		"rectified", result.Rectified,
		"regions", len(result.Regions),
		"lines", len(result.Lines),
		"codes", len(result.Codes),
		"duration", result.Duration)
	return result, nil
}

func (p *Pipeline) applyRectification(img image.Image, result *Result) image.Image {
	rectified, quad, err := p.rectifier.Apply(img)
	if err != nil {
		if !errors.Is(err, rectify.ErrNoBoundary) {
			p.log.Warn("rectification failed, using original image",
				"source", result.Source, "error", err)
		}
		return img
	}
	result.Rectified = true
	result.Boundary = quad[:]
	return rectified
}

// ProcessPDF extracts the embedded page images of a PDF voucher sheet and
// scans each one. Page keys append the page and image index to the path.
func (p *Pipeline) ProcessPDF(ctx context.Context, path, pageSelection string) ([]*Result, error) {
	return p.ProcessPDFAs(ctx, path, path, pageSelection)
}

// ProcessPDFAs scans the PDF at path but derives page keys from key. For
// callers that stage the document in a scratch file the key names the
// document itself, so rescanning the same sheet merges into the same
// records.
func (p *Pipeline) ProcessPDFAs(ctx context.Context, path, key, pageSelection string) ([]*Result, error) {
	pages, err := pdf.ExtractImages(path, pageSelection)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(pages))
	for _, page := range pages {
		pageKey := fmt.Sprintf("%s#page%d-%d", store.NormalizeKey(key), page.Page, page.Index)
		result, err := p.ProcessImage(ctx, pageKey, page.Image)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}
