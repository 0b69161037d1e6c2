package orchestrator

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfsqueeze/internal/dispatcher"
)

// handleCompressUpload accepts multipart uploads from the dashboard.
// Fields: file (required), target_size, tolerance. Office documents are
// accepted; the worker converts them before compressing.
func (o *Orchestrator) handleCompressUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	maxBytes := o.deps.Compression.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 100 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	targetBytes, tolName, err := o.normalizeParams(r.FormValue("target_size"), r.FormValue("tolerance"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(o.deps.Storage.InputDir, 0o755); err != nil {
		http.Error(w, "cannot create upload dir", http.StatusInternalServerError)
		return
	}
	jobID := uuid.NewString()
	name := filepath.Base(hdr.Filename)
	if name == "" || name == "." {
		name = "upload.pdf"
	}
	localPath := filepath.Join(o.deps.Storage.InputDir, fmt.Sprintf("%s_%s", jobID, name))
	out, err := os.Create(localPath)
	if err != nil {
		http.Error(w, "cannot save upload", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(localPath)
		http.Error(w, "write failed", http.StatusInternalServerError)
		return
	}
	_ = out.Close()

	info, err := o.deps.Detector.Detect(localPath)
	if err != nil || !info.Supported {
		os.Remove(localPath)
		http.Error(w, "unsupported file type", http.StatusUnsupportedMediaType)
		return
	}

	if err := o.enqueueJob(r.Context(), dispatcher.Job{
		JobID:       jobID,
		Op:          dispatcher.OpCompress,
		InputPath:   localPath,
		OutputPath:  o.resultPath(jobID, "_"+compressedName(name)),
		TargetBytes: targetBytes,
		Tolerance:   tolName,
	}); err != nil {
		os.Remove(localPath)
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
		return
	}

	log.Info().Str("job_id", jobID).Str("file", name).Str("type", info.Description).Bool("needs_conversion", info.NeedsConversion).Msg("upload job created")
	writeJSON(w, http.StatusCreated, jobResp{Status: "ok", JobID: jobID, Message: "upload job created"})
}

// compressedName maps an upload name to its PDF result name.
func compressedName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" {
		base = "result"
	}
	return base + "_compressed.pdf"
}
