package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"

	"github.com/MeKo-Tech/voucherscan/internal/pipeline"
	"github.com/MeKo-Tech/voucherscan/internal/store"
)

// HealthResponse reports server liveness.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// ScanResponse wraps one or more scan results.
type ScanResponse struct {
	Success bool               `json:"success"`
	Results []*pipeline.Result `json:"results,omitempty"`
	Error   string             `json:"error,omitempty"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// ScanRequest is the JSON body form of a scan request, naming a file path
// or URL on the server side instead of uploading pixels.
type ScanRequest struct {
	Source string `json:"source"`
}

// scanImageHandler accepts either a multipart image upload or a JSON body
// naming a source locator, and runs the scan pipeline on it.
func (s *Server) scanImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		s.scanSourceHandler(w, r)
		return
	}

	data, filename, ok := s.readUpload(w, r, "image")
	if !ok {
		return
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.writeError(w, "invalid image format", http.StatusBadRequest)
		return
	}

	timer := time.Now()
	result, err := s.pipeline.ProcessImage(r.Context(), filename, img)
	if err != nil {
		scansTotal.WithLabelValues("image", "error").Inc()
		s.writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.recordScan("image", timer, result)

	s.hub.broadcast(result)
	s.writeJSON(w, http.StatusOK, ScanResponse{Success: true, Results: []*pipeline.Result{result}})
}

// scanSourceHandler scans a locator (path or URL) resolvable by the server.
func (s *Server) scanSourceHandler(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Source == "" {
		s.writeError(w, "no source provided", http.StatusBadRequest)
		return
	}

	timer := time.Now()
	result, err := s.pipeline.Process(r.Context(), req.Source)
	if err != nil {
		scansTotal.WithLabelValues("source", "error").Inc()
		s.writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.recordScan("source", timer, result)

	s.hub.broadcast(result)
	s.writeJSON(w, http.StatusOK, ScanResponse{Success: true, Results: []*pipeline.Result{result}})
}

// scanPDFHandler accepts a PDF voucher sheet upload and scans each embedded
// page image.
func (s *Server) scanPDFHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, filename, ok := s.readUpload(w, r, "pdf")
	if !ok {
		return
	}

	// pdfcpu reads from a file, stage the upload in a scratch file.
	tmp, err := os.CreateTemp("", "voucherscan-upload-*.pdf")
	if err != nil {
		s.writeError(w, "failed to stage upload", http.StatusInternalServerError)
		return
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		s.writeError(w, "failed to stage upload", http.StatusInternalServerError)
		return
	}

	// Key results by the upload name, not the scratch path, so rescans of
	// the same sheet hit the same records.
	timer := time.Now()
	results, err := s.pipeline.ProcessPDFAs(r.Context(), tmp.Name(), filepath.Base(filename), r.URL.Query().Get("pages"))
	if err != nil {
		scansTotal.WithLabelValues("pdf", "error").Inc()
		s.writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	for _, result := range results {
		s.recordScan("pdf", timer, result)
		s.hub.broadcast(result)
	}
	s.writeJSON(w, http.StatusOK, ScanResponse{Success: true, Results: results})
}

// vouchersHandler lists stored voucher records.
func (s *Server) vouchersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.vouchers == nil {
		s.writeError(w, "configured store backend does not support listing", http.StatusNotImplemented)
		return
	}
	if key := r.URL.Query().Get("key"); key != "" {
		codes, err := s.vouchers.Query(r.Context(), key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.writeError(w, "no record for key", http.StatusNotFound)
				return
			}
			s.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, store.VoucherRecord{Key: store.NormalizeKey(key), Codes: codes})
		return
	}
	records, err := s.vouchers.List(r.Context())
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

// readUpload parses a multipart upload and returns the file content and
// name. Writes the error response itself when ok is false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) (data []byte, filename string, ok bool) {
	maxBytes := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		s.writeError(w, "failed to parse form data", http.StatusBadRequest)
		return nil, "", false
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		s.writeError(w, "no "+field+" file provided", http.StatusBadRequest)
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	uploadSizeBytes.Observe(float64(header.Size))
	data, err = io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, "file too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeError(w, "failed to read upload", http.StatusInternalServerError)
		}
		return nil, "", false
	}
	return data, header.Filename, true
}

func (s *Server) recordScan(kind string, start time.Time, result *pipeline.Result) {
	scansTotal.WithLabelValues(kind, "ok").Inc()
	scanDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	codesExtracted.Add(float64(len(result.Codes)))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, msg string, status int) {
	s.writeJSON(w, status, ScanResponse{Success: false, Error: msg})
}
