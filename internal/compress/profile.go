package compress

import (
	"github.com/local/pdfsqueeze/internal/docmodel"
)

// ContentClass is the coarse structural category of a document. It
// drives which compression strategy runs.
type ContentClass string

const (
	ImageHeavy ContentClass = "image_heavy"
	TextHeavy  ContentClass = "text_heavy"
	Mixed      ContentClass = "mixed"
)

// Classification thresholds. Fixed constants, not tunable.
const (
	imageHeavyPercent = 70.0
	textHeavyPercent  = 20.0
	textHeavyCharsPP  = 500
)

// ImageDescriptor is one distinct image object in the document. The
// same object referenced from several pages appears once.
type ImageDescriptor struct {
	Page       int               `json:"page"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	BitDepth   int               `json:"bit_depth"`
	ColorSpace string            `json:"color_space"`
	SizeBytes  int64             `json:"size_bytes"`
	Codec      string            `json:"codec"`
	Ref        docmodel.ImageRef `json:"-"`
}

// ContentProfile is the classifier's output: what the document is made
// of. Built once per compression request and never mutated afterwards.
type ContentProfile struct {
	PageCount          int               `json:"page_count"`
	HasText            bool              `json:"has_text"`
	TextCharacterCount int               `json:"text_character_count"`
	Images             []ImageDescriptor `json:"images"`
	TotalImageBytes    int64             `json:"total_image_bytes"`
	ImagePercentage    float64           `json:"image_percentage"`
	ContentClass       ContentClass      `json:"content_class"`
	HasEmbeddedFonts   bool              `json:"has_embedded_fonts"`
}

// Classify inspects an open document and builds its ContentProfile.
// fileSize is the raw byte size of the source file on disk.
func Classify(doc docmodel.Document, fileSize int64) (*ContentProfile, error) {
	p := &ContentProfile{PageCount: doc.PageCount()}

	seen := make(map[docmodel.ImageRef]bool)
	for page := 1; page <= p.PageCount; page++ {
		text, err := doc.PageText(page)
		if err == nil {
			p.TextCharacterCount += len([]rune(text))
		}

		if !p.HasEmbeddedFonts {
			hasFonts, err := doc.PageHasFonts(page)
			if err == nil && hasFonts {
				p.HasEmbeddedFonts = true
			}
		}

		infos, err := doc.PageImages(page)
		if err != nil {
			continue
		}
		for _, info := range infos {
			if seen[info.Ref] {
				continue
			}
			seen[info.Ref] = true
			p.Images = append(p.Images, ImageDescriptor{
				Page:       page,
				Width:      info.Width,
				Height:     info.Height,
				BitDepth:   info.BitsPerComponent,
				ColorSpace: info.ColorSpace,
				SizeBytes:  info.SizeBytes,
				Codec:      info.Codec,
				Ref:        info.Ref,
			})
			p.TotalImageBytes += info.SizeBytes
		}
	}

	p.HasText = p.TextCharacterCount > 0
	if fileSize > 0 {
		p.ImagePercentage = float64(p.TotalImageBytes) / float64(fileSize) * 100
	}
	p.ContentClass = classify(p)
	return p, nil
}

// classify applies the threshold policy; first match wins.
func classify(p *ContentProfile) ContentClass {
	if p.ImagePercentage > imageHeavyPercent {
		return ImageHeavy
	}
	pages := p.PageCount
	if pages < 1 {
		pages = 1
	}
	charsPerPage := float64(p.TextCharacterCount) / float64(pages)
	if p.ImagePercentage < textHeavyPercent && charsPerPage > textHeavyCharsPP {
		return TextHeavy
	}
	return Mixed
}
