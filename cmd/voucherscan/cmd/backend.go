package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/voucherscan/internal/config"
	"github.com/MeKo-Tech/voucherscan/internal/pipeline"
	"github.com/MeKo-Tech/voucherscan/internal/segment"
	"github.com/MeKo-Tech/voucherscan/internal/server"
	"github.com/MeKo-Tech/voucherscan/internal/store"
)

// storeBackend bundles the persistence pieces built from configuration.
// lister is nil when the backend cannot enumerate records.
type storeBackend struct {
	recorder pipeline.Recorder
	lister   server.VoucherLister
	close    func() error
}

// openStoreBackend opens the configured persistence backend.
func openStoreBackend(cfg *config.Config) (*storeBackend, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		db, err := store.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open voucher database: %w", err)
		}
		return &storeBackend{
			recorder: pipeline.NewSQLiteRecorder(db),
			lister:   db,
			close:    db.Close,
		}, nil
	case "object":
		objects, err := store.NewObjectStore(cfg.Store.ObjectDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open object store: %w", err)
		}
		return &storeBackend{
			recorder: pipeline.NewObjectRecorder(objects),
			close:    func() error { return nil },
		}, nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

// buildPipeline assembles a scan pipeline from configuration plus the
// recorder of an already opened backend.
func buildPipeline(cfg *config.Config, recorder pipeline.Recorder) (*pipeline.Pipeline, error) {
	mode, err := segment.ParseMode(cfg.Pipeline.Segment.Mode)
	if err != nil {
		return nil, err
	}

	plCfg := pipeline.DefaultConfig()
	plCfg.Rectify = cfg.ToRectifyConfig()
	plCfg.OCR = cfg.ToTesseractConfig()
	plCfg.SecondPass = cfg.Pipeline.OCR.SecondPassEnabled
	plCfg.SecondOCR = cfg.ToSecondPassConfig()
	plCfg.CacheDir = cfg.Pipeline.CacheDir
	plCfg.DebugDir = cfg.Pipeline.DebugDir

	b := pipeline.NewBuilder().
		WithConfig(plCfg).
		WithSegmentMode(mode).
		WithRecorder(recorder)
	if cfg.Pipeline.DebugDir != "" {
		b = b.WithDebugDir(cfg.Pipeline.DebugDir)
	}
	return b.Build()
}
