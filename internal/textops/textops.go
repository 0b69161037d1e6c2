// Package textops extracts a document's text layer to plain text and
// strips the text layer from a PDF while keeping images and graphics.
package textops

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfsqueeze/internal/docmodel"
)

const markerRule = "=================================================="

// ExtractResult describes one text extraction run.
type ExtractResult struct {
	TotalCharacters int    `json:"total_characters"`
	TotalPages      int    `json:"total_pages"`
	PagesWithText   int    `json:"pages_with_text"`
	Text            string `json:"-"`
	OutputPath      string `json:"output_path,omitempty"`
}

// RemoveResult describes one text removal run.
type RemoveResult struct {
	InputPath      string `json:"input_path"`
	OutputPath     string `json:"output_path"`
	OriginalSize   int64  `json:"original_size"`
	NewSize        int64  `json:"new_size"`
	TextRemoved    bool   `json:"text_removed"`
	PagesProcessed int    `json:"pages_processed"`
}

// Extract collects the text of every page in page order. With markers
// enabled each page's text is preceded by a "Page N" banner. Pages
// whose text cannot be read are skipped.
func Extract(doc docmodel.Document, includePageMarkers bool) *ExtractResult {
	res := &ExtractResult{TotalPages: doc.PageCount()}

	var parts []string
	for page := 1; page <= res.TotalPages; page++ {
		text, err := doc.PageText(page)
		if err != nil {
			log.Debug().Err(err).Int("page", page).Msg("page text unreadable, skipping")
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		res.PagesWithText++
		if includePageMarkers {
			parts = append(parts,
				"\n"+markerRule,
				fmt.Sprintf("Page %d", page),
				markerRule+"\n",
			)
		}
		parts = append(parts, text)
	}

	res.Text = strings.Join(parts, "\n")
	res.TotalCharacters = countVisible(res.Text)
	return res
}

// ExtractToFile runs Extract and writes the result to outPath.
func ExtractToFile(provider docmodel.Provider, inPath, outPath string, includePageMarkers bool) (*ExtractResult, error) {
	doc, err := provider.Open(inPath)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	res := Extract(doc, includePageMarkers)
	if err := os.WriteFile(outPath, []byte(res.Text), 0o644); err != nil {
		return nil, fmt.Errorf("write extracted text: %w", err)
	}
	res.OutputPath = outPath
	return res, nil
}

// Remove strips the text layer from every page and saves the result
// with maximum object garbage collection. Images and vector graphics
// are preserved.
func Remove(provider docmodel.Provider, inPath, outPath string) (*RemoveResult, error) {
	fi, err := os.Stat(inPath)
	if err != nil {
		return nil, &docmodel.OpenError{Path: inPath, Cause: err}
	}
	res := &RemoveResult{InputPath: inPath, OutputPath: outPath, OriginalSize: fi.Size()}

	doc, err := provider.Open(inPath)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	for page := 1; page <= doc.PageCount(); page++ {
		if err := doc.RemoveText(page); err != nil {
			return nil, fmt.Errorf("remove text on page %d: %w", page, err)
		}
		res.PagesProcessed++
	}

	size, err := doc.Save(outPath, docmodel.MaxCompression())
	if err != nil {
		return nil, err
	}
	res.NewSize = size
	res.TextRemoved = true

	log.Info().
		Str("input", inPath).
		Int("pages", res.PagesProcessed).
		Int64("size", size).
		Msg("text layer removed")
	return res, nil
}

// HasText reports whether any page carries non-whitespace text. It
// stops at the first page that does.
func HasText(doc docmodel.Document) bool {
	for page := 1; page <= doc.PageCount(); page++ {
		text, err := doc.PageText(page)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			return true
		}
	}
	return false
}

// countVisible counts characters excluding newlines and spaces.
func countVisible(s string) int {
	n := 0
	for _, r := range s {
		if r != '\n' && r != ' ' {
			n++
		}
	}
	return n
}
