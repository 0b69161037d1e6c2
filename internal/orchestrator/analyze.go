package orchestrator

import (
	"encoding/json"
	"math"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfsqueeze/internal/compress"
	"github.com/local/pdfsqueeze/internal/textops"
)

type analyzeReq struct {
	FilePath string `json:"file_path"`
	FileURL  string `json:"file_url"`
}

type analyzeResp struct {
	FilePath           string  `json:"file_path"`
	FileSize           int64   `json:"file_size"`
	PageCount          int     `json:"page_count"`
	HasText            bool    `json:"has_text"`
	TextCharacterCount int     `json:"text_character_count"`
	ImageCount         int     `json:"image_count"`
	TotalImageBytes    int64   `json:"total_image_bytes"`
	ImagePercentage    float64 `json:"image_percentage"`
	PDFType            string  `json:"pdf_type"`
	EstimatedMinSize   int64   `json:"estimated_min_size"`
	EstimatedMaxSize   int64   `json:"estimated_max_size"`
	HasEmbeddedFonts   bool    `json:"has_embedded_fonts"`
	Error              string  `json:"error,omitempty"`
}

// handleAnalyze profiles a document synchronously: content class,
// advisory size bounds and text stats, without running any compression.
func (o *Orchestrator) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req analyzeReq
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

	localPath, cleanup, err := o.deps.Resolver.Resolve(r.Context(), ref)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, analyzeResp{FilePath: ref, Error: err.Error()})
		return
	}
	defer cleanup()

	resp := o.analyze(ref, localPath)
	status := http.StatusOK
	if resp.Error != "" {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

func (o *Orchestrator) analyze(ref, localPath string) analyzeResp {
	resp := analyzeResp{FilePath: ref}

	fi, err := os.Stat(localPath)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.FileSize = fi.Size()

	doc, err := o.deps.Provider.Open(localPath)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	defer doc.Close()

	profile, err := compress.Classify(doc, resp.FileSize)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	bounds := compress.EstimateBounds(profile, resp.FileSize)

	resp.PageCount = profile.PageCount
	resp.TextCharacterCount = profile.TextCharacterCount
	resp.ImageCount = len(profile.Images)
	resp.TotalImageBytes = profile.TotalImageBytes
	resp.ImagePercentage = math.Round(profile.ImagePercentage*10) / 10
	resp.PDFType = string(profile.ContentClass)
	resp.EstimatedMinSize = bounds.MinBytes
	resp.EstimatedMaxSize = bounds.MaxBytes
	resp.HasEmbeddedFonts = profile.HasEmbeddedFonts

	// The sampling probe is deliberately stricter than "any character":
	// it reports whether enough text exists to be worth extracting.
	hasText, _, probeErr := textops.HasExtractableText(o.deps.Provider, localPath, 0)
	if probeErr != nil {
		resp.HasText = profile.HasText
	} else {
		resp.HasText = hasText
	}

	log.Debug().Str("file", ref).Str("class", resp.PDFType).Int("pages", resp.PageCount).Float64("image_pct", resp.ImagePercentage).Msg("analyzed")
	return resp
}
