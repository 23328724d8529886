// Package pipeline wires the voucher scan stages together: load, rectify,
// segment, recognize, extract and persist.
package pipeline

import (
	"errors"
	"log/slog"

	"github.com/MeKo-Tech/voucherscan/internal/extract"
	"github.com/MeKo-Tech/voucherscan/internal/loader"
	"github.com/MeKo-Tech/voucherscan/internal/ocr"
	"github.com/MeKo-Tech/voucherscan/internal/rectify"
	"github.com/MeKo-Tech/voucherscan/internal/segment"
)

// Config holds configuration for the scan pipeline and its components.
type Config struct {
	Rectify     rectify.Config
	SegmentMode segment.Mode
	OCR         ocr.TesseractConfig
	SecondPass  bool
	SecondOCR   ocr.TesseractConfig
	CacheDir    string
	DebugDir    string
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	secondOCR := ocr.DefaultTesseractConfig()
	secondOCR.PageSegMode = 6
	return Config{
		Rectify:     rectify.DefaultConfig(),
		SegmentMode: segment.ModeQuarters,
		OCR:         ocr.DefaultTesseractConfig(),
		SecondPass:  true,
		SecondOCR:   secondOCR,
	}
}

// Pipeline runs the full image-to-code extraction sequence for one voucher
// image at a time. A Pipeline is safe for concurrent use: every stage
// operates on per-call state and the recognition engines serialize access
// internally, which is how ProcessBatch shares one Pipeline across workers.
type Pipeline struct {
	cfg       Config
	loader    *loader.Loader
	rectifier *rectify.Rectifier
	agg       *ocr.Aggregator
	engines   []ocr.Engine
	extractor *extract.Extractor
	recorder  Recorder
	log       *slog.Logger
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg      Config
	engine   ocr.Engine
	second   ocr.Engine
	recorder Recorder
	log      *slog.Logger
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the entire pipeline configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithRectification toggles document boundary detection.
func (b *Builder) WithRectification(enabled bool) *Builder {
	b.cfg.Rectify.Enabled = enabled
	return b
}

// WithSegmentMode sets the region layout.
func (b *Builder) WithSegmentMode(mode segment.Mode) *Builder {
	b.cfg.SegmentMode = mode
	return b
}

// WithLanguage sets the recognition language for both passes.
func (b *Builder) WithLanguage(lang string) *Builder {
	if lang != "" {
		b.cfg.OCR.Language = lang
		b.cfg.SecondOCR.Language = lang
	}
	return b
}

// WithSecondPass toggles the secondary recognition pass.
func (b *Builder) WithSecondPass(enabled bool) *Builder {
	b.cfg.SecondPass = enabled
	return b
}

// WithCacheDir sets the URL fetch cache directory.
func (b *Builder) WithCacheDir(dir string) *Builder {
	b.cfg.CacheDir = dir
	return b
}

// WithDebugDir enables debug artifact emission for all stages.
func (b *Builder) WithDebugDir(dir string) *Builder {
	b.cfg.DebugDir = dir
	b.cfg.Rectify.DebugDir = dir
	return b
}

// WithEngine overrides the primary recognition engine. The caller retains
// ownership and closes it.
func (b *Builder) WithEngine(engine ocr.Engine) *Builder {
	b.engine = engine
	return b
}

// WithSecondEngine overrides the secondary recognition engine.
func (b *Builder) WithSecondEngine(engine ocr.Engine) *Builder {
	b.second = engine
	return b
}

// WithRecorder sets the persistence backend adapter. Without one, extracted
// codes are returned but not stored.
func (b *Builder) WithRecorder(recorder Recorder) *Builder {
	b.recorder = recorder
	return b
}

// WithLogger sets the pipeline logger.
func (b *Builder) WithLogger(log *slog.Logger) *Builder {
	b.log = log
	return b
}

// Build validates the configuration and assembles the pipeline. Engines not
// supplied via WithEngine are created from the OCR configuration.
func (b *Builder) Build() (*Pipeline, error) {
	if _, err := segment.ParseMode(string(b.cfg.SegmentMode)); err != nil {
		return nil, err
	}
	log := b.log
	if log == nil {
		log = slog.Default()
	}

	p := &Pipeline{
		cfg:       b.cfg,
		rectifier: rectify.New(b.cfg.Rectify),
		recorder:  b.recorder,
		log:       log,
	}

	loaderOpts := []loader.Option{loader.WithLogger(log)}
	if b.cfg.CacheDir != "" {
		loaderOpts = append(loaderOpts, loader.WithCacheDir(b.cfg.CacheDir))
	}
	p.loader = loader.New(loaderOpts...)

	extractOpts := []extract.Option{extract.WithLogger(log)}
	if b.cfg.DebugDir != "" {
		extractOpts = append(extractOpts, extract.WithDebugDir(b.cfg.DebugDir))
	}
	p.extractor = extract.New(extractOpts...)

	primary := b.engine
	if primary == nil {
		engine, err := ocr.NewTesseract(b.cfg.OCR)
		if err != nil {
			return nil, err
		}
		primary = engine
		p.engines = append(p.engines, engine)
	}

	aggOpts := []ocr.AggregatorOption{ocr.WithLogger(log)}
	if b.cfg.SecondPass {
		second := b.second
		if second == nil {
			engine, err := ocr.NewTesseract(b.cfg.SecondOCR)
			if err != nil {
				p.closeEngines()
				return nil, err
			}
			second = engine
			p.engines = append(p.engines, engine)
		}
		aggOpts = append(aggOpts, ocr.WithSecondPass(second))
	}
	p.agg = ocr.NewAggregator(primary, aggOpts...)

	return p, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Close releases the engines the pipeline created itself. Engines injected
// through the builder are the caller's to close.
func (p *Pipeline) Close() error {
	return p.closeEngines()
}

func (p *Pipeline) closeEngines() error {
	var errs []error
	for _, engine := range p.engines {
		if err := engine.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.engines = nil
	return errors.Join(errs...)
}
