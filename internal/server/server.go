// Package server exposes the voucher scan pipeline over HTTP: image and PDF
// uploads, stored voucher queries, Prometheus metrics and a websocket feed
// of completed scans.
package server

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/voucherscan/internal/pipeline"
	"github.com/MeKo-Tech/voucherscan/internal/store"
)

// scanPipeline is the part of the pipeline the server needs.
type scanPipeline interface {
	Process(ctx context.Context, locator string) (*pipeline.Result, error)
	ProcessImage(ctx context.Context, key string, img image.Image) (*pipeline.Result, error)
	ProcessPDFAs(ctx context.Context, path, key, pageSelection string) ([]*pipeline.Result, error)
}

// VoucherLister reads stored voucher records. The keyed-table backend
// implements it; the object backend does not support listing.
type VoucherLister interface {
	Query(ctx context.Context, key string) ([]string, error)
	List(ctx context.Context) ([]store.VoucherRecord, error)
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    scanPipeline
	vouchers    VoucherLister
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	log         *slog.Logger
	hub         *liveHub
}

// New creates a server around an already built pipeline. vouchers may be
// nil when the configured backend cannot list records.
func New(cfg Config, pl scanPipeline, vouchers VoucherLister, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		pipeline:    pl,
		vouchers:    vouchers,
		corsOrigin:  cfg.CORSOrigin,
		maxUploadMB: cfg.MaxUploadMB,
		timeoutSec:  cfg.TimeoutSec,
		log:         log,
		hub:         newLiveHub(log),
	}
	go s.hub.run()
	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.middleware(s.healthHandler))
	mux.HandleFunc("/scan", s.middleware(s.scanImageHandler))
	mux.HandleFunc("/scan/pdf", s.middleware(s.scanPDFHandler))
	mux.HandleFunc("/vouchers", s.middleware(s.vouchersHandler))
	mux.HandleFunc("/live", s.liveHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, cfg Config) error {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.TimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.TimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("voucher scan server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Close stops the websocket hub.
func (s *Server) Close() error {
	s.hub.stop()
	return nil
}
