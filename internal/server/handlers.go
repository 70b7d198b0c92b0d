package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/docfill/docfill/internal/batch"
)

// multipartMemory caps how much of a parsed multipart body stays in RAM
// before spilling to temp files.
const multipartMemory = 32 << 20

var wordSplitter = regexp.MustCompile(`[,;\n]`)

// handleProcess accepts a multipart upload with a `zipfile` part plus one
// form value per canonical field and responds with the filled archive.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	zipData, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	values := make(map[string]string, len(s.keys))
	for _, key := range s.keys {
		if v := strings.TrimSpace(r.PostFormValue(key)); v != "" {
			values[key] = v
		}
	}
	if len(values) == 0 {
		writeError(w, http.StatusBadRequest, "no field values supplied", nil)
		return
	}

	out, results, err := s.orch.ProcessBundle(zipData, values)
	if err != nil {
		s.writeBatchError(w, err, results)
		return
	}

	writeArchive(w, "processed_pdfs.zip", out)
}

// handleHighlight accepts a multipart upload with a `zipfile` part plus
// selected and/or custom phrases and responds with the highlighted archive.
func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	zipData, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	// Read from the POST body only; query-string values don't count.
	phrases := append([]string(nil), r.PostForm["highlight_words"]...)
	for _, custom := range wordSplitter.Split(r.PostFormValue("custom_words"), -1) {
		if custom = strings.TrimSpace(custom); custom != "" {
			phrases = append(phrases, custom)
		}
	}
	if len(phrases) == 0 {
		writeError(w, http.StatusBadRequest, "select at least one word to highlight", nil)
		return
	}

	out, results, err := s.orch.HighlightBundle(zipData, phrases)
	if err != nil {
		s.writeBatchError(w, err, results)
		return
	}

	writeArchive(w, "highlighted_documents.zip", out)
}

// readUpload validates and reads the `zipfile` multipart part. On failure
// it has already written the response.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart upload: %v", err), nil)
		return nil, false
	}

	file, header, err := r.FormFile("zipfile")
	if err != nil {
		writeError(w, http.StatusBadRequest, "upload a .zip file containing PDFs in the 'zipfile' field", nil)
		return nil, false
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".zip") {
		writeError(w, http.StatusBadRequest, "upload must be a .zip file", nil)
		return nil, false
	}

	zipData, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cannot read upload", nil)
		return nil, false
	}
	return zipData, true
}

func (s *Server) writeBatchError(w http.ResponseWriter, err error, results []batch.Result) {
	switch {
	case errors.Is(err, batch.ErrBadArchive):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, batch.ErrEmptyBatch):
		writeError(w, http.StatusBadRequest, err.Error(), batch.FailedFilenames(results))
	default:
		s.logger.Error("batch processing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func writeArchive(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string, failed []string) {
	body := map[string]any{"error": msg}
	if len(failed) > 0 {
		body["failed"] = failed
	}
	writeJSON(w, status, body)
}
