package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/idextract/internal/pipeline"
	"github.com/MeKo-Tech/idextract/internal/utils"
	"github.com/MeKo-Tech/idextract/internal/version"
	"github.com/google/uuid"
)

// uploadFields are the multipart fields accepted for the document, in order.
var uploadFields = []string{"file", "image"}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// uploadHandler stores the uploaded document in a temporary file, runs the
// pipeline on it and returns the pipeline result as the body.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := formFile(r)
	if err != nil {
		s.writeErrorResponse(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	requestID := uuid.NewString()
	path, err := s.saveUpload(file, requestID, header.Filename)
	if err != nil {
		slog.Error("Failed to store upload", "request_id", requestID, "error", err)
		s.writeErrorResponse(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Error("Failed to remove upload", "request_id", requestID, "path", path, "error", err)
		}
	}()

	ctx, cancel := s.requestContext(r.Context())
	defer cancel()

	start := time.Now()
	res := s.extractor.ExtractFile(ctx, path)
	recordExtraction("upload", res, time.Since(start))
	slog.Debug("Upload processed",
		"request_id", requestID,
		"file", header.Filename,
		"size", header.Size,
		"success", res.Success,
		"template", res.Template,
		"duration", time.Since(start))

	s.writeJSON(w, http.StatusOK, res)
}

func formFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	var lastErr error
	for _, field := range uploadFields {
		file, header, err := r.FormFile(field)
		if err == nil {
			return file, header, nil
		}
		lastErr = err
	}
	return nil, nil, lastErr
}

// saveUpload copies the upload to a temp file named after the request id.
func (s *Server) saveUpload(src io.Reader, requestID, filename string) (string, error) {
	f, err := os.CreateTemp(s.tempDir, requestID+"-*"+uploadExt(filename))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), nil
}

// uploadExt keeps a known extension from the client filename.
func uploadExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".pdf" || utils.IsSupportedImage(filename) {
		return ext
	}
	return ""
}

func (s *Server) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(parent, s.timeout)
	}
	return context.WithCancel(parent)
}

func recordExtraction(source string, res pipeline.Result, d time.Duration) {
	status := "success"
	if !res.Success {
		status = res.Code
	}
	template := res.Template
	if template == "" {
		template = "none"
	}
	extractionsTotal.WithLabelValues(source, template, status).Inc()
	extractionDuration.WithLabelValues(template).Observe(d.Seconds())
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes the failure envelope with the given status.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, pipeline.Result{Success: false, Error: message})
}
