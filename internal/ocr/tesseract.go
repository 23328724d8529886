package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// TesseractConfig configures the Tesseract-backed engine.
type TesseractConfig struct {
	Language    string // tesseract language code, e.g. "eng" or "deu"
	PageSegMode int    // tesseract page segmentation mode
	Whitelist   string // restricts recognition to these characters when set
}

// DefaultTesseractConfig returns the settings used for voucher scans.
func DefaultTesseractConfig() TesseractConfig {
	return TesseractConfig{
		Language:    "eng",
		PageSegMode: int(gosseract.PSM_AUTO),
	}
}

// Tesseract is an Engine backed by a gosseract client. The client is not
// safe for concurrent use, so calls are serialized with a mutex.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseract creates a Tesseract engine with the given configuration.
func NewTesseract(cfg TesseractConfig) (*Tesseract, error) {
	client := gosseract.NewClient()
	if cfg.Language != "" {
		if err := client.SetLanguage(cfg.Language); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set language %q: %w", cfg.Language, err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	if cfg.Whitelist != "" {
		if err := client.SetWhitelist(cfg.Whitelist); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}
	return &Tesseract{client: client}, nil
}

// Recognize runs line-level recognition on the image.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) ([]Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("ocr: nil image")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode region: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}

	lines := make([]Line, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		lines = append(lines, Line{
			Text:       text,
			Confidence: clampConfidence(b.Confidence / 100),
			Box:        b.Box,
		})
	}
	return lines, nil
}

// Close releases the underlying tesseract client.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
