// Package orchestrator exposes the HTTP surface: job submission,
// uploads, quick analysis, progress, result download and previews. It
// makes no compression decisions itself; jobs go through the queue and
// the workers do the heavy lifting.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfsqueeze/internal/compress"
	"github.com/local/pdfsqueeze/internal/config"
	"github.com/local/pdfsqueeze/internal/dispatcher"
	"github.com/local/pdfsqueeze/internal/docmodel"
	"github.com/local/pdfsqueeze/internal/filetype"
	"github.com/local/pdfsqueeze/internal/imaging"
	"github.com/local/pdfsqueeze/internal/sizeutil"
	"github.com/local/pdfsqueeze/internal/statuscheck"
	"github.com/local/pdfsqueeze/internal/store"
)

// Queue is the enqueue-side slice of the job queue.
type Queue interface {
	Enqueue(ctx context.Context, payload []byte) error
	CancelJob(ctx context.Context, jobID string) error
}

// StatusStore is the read/write slice of job status the API needs.
type StatusStore interface {
	Set(ctx context.Context, jobID string, st store.Status) error
	Get(ctx context.Context, jobID string) (store.Status, bool, error)
	GetResult(ctx context.Context, jobID string) (*compress.Result, bool, error)
}

// Resolver turns an input reference into a local PDF path, used by the
// synchronous endpoints (analyze) that cannot wait for a worker.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, func(), error)
}

type Dependencies struct {
	Queue       Queue
	Status      StatusStore
	Provider    docmodel.Provider
	Detector    *filetype.Detector
	Resolver    Resolver
	Checker     *statuscheck.Checker
	Compression config.CompressionConfig
	Storage     config.StorageConfig
}

type Orchestrator struct {
	deps Dependencies
}

func New(deps Dependencies) *Orchestrator {
	return &Orchestrator{deps: deps}
}

func (o *Orchestrator) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", o.handleHealth)
	mux.HandleFunc("/compress", o.handleCompress)
	mux.HandleFunc("/compress_upload", o.handleCompressUpload)
	mux.HandleFunc("/analyze", o.handleAnalyze)
	mux.HandleFunc("/extract_text", o.handleExtractText)
	mux.HandleFunc("/remove_text", o.handleRemoveText)
	mux.HandleFunc("/progress/", o.handleProgress)
	mux.HandleFunc("/download/", o.handleDownload)
	mux.HandleFunc("/preview/", o.handlePreview)
	mux.HandleFunc("/webhook/cancel_job", o.handleCancelJob)
	mux.HandleFunc("/internal/job_done", o.handleJobDone)
}

func (o *Orchestrator) handleHealth(w http.ResponseWriter, r *http.Request) {
	if o.deps.Checker != nil && !o.deps.Checker.Healthy(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, o.deps.Checker.Summary(r.Context()))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type compressReq struct {
	FilePath    string `json:"file_path"`
	FileURL     string `json:"file_url"`
	TargetSize  string `json:"target_size"`
	Tolerance   string `json:"tolerance"`
	ExtractText bool   `json:"extract_text"`
	RemoveText  bool   `json:"remove_text"`
}

type jobResp struct {
	Status     string `json:"status"`
	JobID      string `json:"job_id"`
	Message    string `json:"message"`
	TextJobID  string `json:"text_job_id,omitempty"`
	CleanJobID string `json:"clean_job_id,omitempty"`
}

func (o *Orchestrator) handleCompress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req compressReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	ref := req.FilePath
	if ref == "" {
		ref = req.FileURL
	}
	if ref == "" {
		http.Error(w, "missing file_path or file_url", http.StatusBadRequest)
		return
	}

	targetBytes, tolName, err := o.normalizeParams(req.TargetSize, req.Tolerance)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	jobID := uuid.NewString()
	resp := jobResp{Status: "ok", JobID: jobID, Message: "compression job created"}
	if err := o.enqueueJob(r.Context(), dispatcher.Job{
		JobID:       jobID,
		Op:          dispatcher.OpCompress,
		InputPath:   ref,
		OutputPath:  o.resultPath(jobID, ".pdf"),
		TargetBytes: targetBytes,
		Tolerance:   tolName,
	}); err != nil {
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
		return
	}

	// Companion text jobs share the input but get their own job IDs so
	// progress and downloads stay per-artifact.
	if req.ExtractText {
		id := uuid.NewString()
		if err := o.enqueueJob(r.Context(), dispatcher.Job{
			JobID:      id,
			Op:         dispatcher.OpExtractText,
			InputPath:  ref,
			OutputPath: o.resultPath(id, "_text.txt"),
		}); err == nil {
			resp.TextJobID = id
		}
	}
	if req.RemoveText {
		id := uuid.NewString()
		if err := o.enqueueJob(r.Context(), dispatcher.Job{
			JobID:      id,
			Op:         dispatcher.OpRemoveText,
			InputPath:  ref,
			OutputPath: o.resultPath(id, "_notext.pdf"),
		}); err == nil {
			resp.CleanJobID = id
		}
	}

	log.Info().Str("job_id", jobID).Str("file", ref).Int64("target", targetBytes).Str("tolerance", tolName).Msg("job created")
	writeJSON(w, http.StatusCreated, resp)
}

func (o *Orchestrator) handleExtractText(w http.ResponseWriter, r *http.Request) {
	o.handleTextOp(w, r, dispatcher.OpExtractText, "_text.txt", "text extraction job created")
}

func (o *Orchestrator) handleRemoveText(w http.ResponseWriter, r *http.Request) {
	o.handleTextOp(w, r, dispatcher.OpRemoveText, "_notext.pdf", "text removal job created")
}

func (o *Orchestrator) handleTextOp(w http.ResponseWriter, r *http.Request, op, suffix, msg string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req compressReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	ref := req.FilePath
	if ref == "" {
		ref = req.FileURL
	}
	if ref == "" {
		http.Error(w, "missing file_path or file_url", http.StatusBadRequest)
		return
	}

	jobID := uuid.NewString()
	if err := o.enqueueJob(r.Context(), dispatcher.Job{
		JobID:      jobID,
		Op:         op,
		InputPath:  ref,
		OutputPath: o.resultPath(jobID, suffix),
	}); err != nil {
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
		return
	}
	log.Info().Str("job_id", jobID).Str("op", op).Str("file", ref).Msg("job created")
	writeJSON(w, http.StatusCreated, jobResp{Status: "ok", JobID: jobID, Message: msg})
}

type progressResp struct {
	JobID    string           `json:"job_id"`
	Status   string           `json:"status"`
	Stage    string           `json:"stage,omitempty"`
	Progress int              `json:"progress"`
	Message  string           `json:"message,omitempty"`
	Result   *compress.Result `json:"result,omitempty"`
}

func (o *Orchestrator) handleProgress(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/progress/")
	if jobID == "" {
		http.Error(w, "missing job id", http.StatusBadRequest)
		return
	}
	st, ok, err := o.deps.Status.Get(r.Context(), jobID)
	if err != nil {
		http.Error(w, "status store unavailable", http.StatusServiceUnavailable)
		return
	}
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	resp := progressResp{
		JobID:    jobID,
		Status:   st.Status,
		Stage:    st.Stage,
		Progress: st.Progress,
		Message:  st.Message,
	}
	if st.Status == store.StatusDone || st.Status == store.StatusFailed {
		if res, found, _ := o.deps.Status.GetResult(r.Context(), jobID); found {
			resp.Result = res
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (o *Orchestrator) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/download/")
	st, ok, err := o.deps.Status.Get(r.Context(), jobID)
	if err != nil || !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if st.Status != store.StatusDone {
		http.Error(w, "result not ready", http.StatusAccepted)
		return
	}
	if st.OutputPath == "" {
		http.Error(w, "result not available", http.StatusNotFound)
		return
	}

	f, err := os.Open(st.OutputPath)
	if err != nil {
		http.Error(w, "result not available", http.StatusNotFound)
		return
	}
	defer f.Close()

	name := filepath.Base(st.OutputPath)
	if strings.HasSuffix(name, ".txt") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/pdf")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, time.Time{}, f)
}

// handlePreview renders a page of the finished result as a JPEG so the
// dashboard can show what the chosen tolerance actually did.
func (o *Orchestrator) handlePreview(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/preview/")
	st, ok, err := o.deps.Status.Get(r.Context(), jobID)
	if err != nil || !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if st.Status != store.StatusDone || st.OutputPath == "" || !strings.HasSuffix(st.OutputPath, ".pdf") {
		http.Error(w, "no previewable result", http.StatusNotFound)
		return
	}

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	mode := imaging.ColorRGB
	if r.URL.Query().Get("gray") == "true" {
		mode = imaging.ColorGray
	}

	data, _, _, err := imaging.RenderPagePreview(st.OutputPath, page, o.deps.Compression.PreviewDPI, o.deps.Compression.PreviewQuality, mode)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Int("page", page).Msg("preview render failed")
		http.Error(w, "preview failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(data)
}

type cancelReq struct {
	JobID  string `json:"job_id"`
	Reason string `json:"reason"`
}

func (o *Orchestrator) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req cancelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobID == "" {
		http.Error(w, "missing job_id", http.StatusBadRequest)
		return
	}

	if err := o.deps.Queue.CancelJob(r.Context(), req.JobID); err != nil {
		http.Error(w, "cancel failed", http.StatusServiceUnavailable)
		return
	}
	msg := req.Reason
	if msg == "" {
		msg = "cancelled via webhook"
	}
	_ = o.deps.Status.Set(r.Context(), req.JobID, store.Status{Status: store.StatusCancelled, Message: msg})
	log.Warn().Str("job_id", req.JobID).Str("reason", req.Reason).Msg("job cancelled")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "job_id": req.JobID})
}

func (o *Orchestrator) handleJobDone(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		http.Error(w, "missing job_id", http.StatusBadRequest)
		return
	}
	log.Debug().Str("job_id", jobID).Msg("job done hook")
	w.WriteHeader(http.StatusOK)
}

func (o *Orchestrator) normalizeParams(targetSize, tolerance string) (int64, string, error) {
	if targetSize == "" {
		targetSize = o.deps.Compression.DefaultTarget
	}
	targetBytes, err := sizeutil.ParseSize(targetSize)
	if err != nil {
		return 0, "", fmt.Errorf("invalid target_size: %v", err)
	}
	tol, err := compress.ToleranceByName(tolerance)
	if err != nil {
		return 0, "", err
	}
	return targetBytes, tol.Name, nil
}

func (o *Orchestrator) enqueueJob(ctx context.Context, job dispatcher.Job) error {
	job.Attempt = 1
	job.IdemKey = "job:" + job.JobID
	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0o755); err != nil {
		return err
	}

	now := time.Now()
	_ = o.deps.Status.Set(ctx, job.JobID, store.Status{Status: store.StatusQueued, Message: "queued", Start: &now})

	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := o.deps.Queue.Enqueue(ctx, payload); err != nil {
		log.Error().Err(err).Str("job_id", job.JobID).Msg("enqueue failed")
		return err
	}
	return nil
}

func (o *Orchestrator) resultPath(jobID, suffix string) string {
	return filepath.Join(o.deps.Storage.ResultDir, jobID+suffix)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
