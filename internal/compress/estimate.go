package compress

import "strings"

// SizeBounds is the estimator's advisory [min, max] achievable output
// size. It is surfaced to callers but never gates the search.
type SizeBounds struct {
	MinBytes int64 `json:"min_bytes"`
	MaxBytes int64 `json:"max_bytes"`
}

// EstimateBounds predicts an achievable size range from the codec mix.
// JPEG re-encoding has limited headroom; PNG-to-lossy conversion has a
// lot. Both bounds are floored at 10% of the file size because deeper
// reduction is not reliably predictable.
func EstimateBounds(p *ContentProfile, fileSize int64) SizeBounds {
	imageBytes := float64(fileSize) * p.ImagePercentage / 100
	nonImageBytes := float64(fileSize) - imageBytes

	redMin, redMax := imageReductionFactors(p.Images)

	nonImgMin, nonImgMax := 0.8, 0.95
	if p.HasEmbeddedFonts {
		nonImgMin *= 0.9
		nonImgMax *= 0.95
	}

	minBytes := int64(imageBytes*redMin + nonImageBytes*nonImgMin)
	maxBytes := int64(imageBytes*redMax + nonImageBytes*nonImgMax)

	floor := fileSize / 10
	if minBytes < floor {
		minBytes = floor
	}
	if maxBytes < floor {
		maxBytes = floor
	}
	if maxBytes < minBytes {
		maxBytes = minBytes
	}
	return SizeBounds{MinBytes: minBytes, MaxBytes: maxBytes}
}

// imageReductionFactors picks the reduction pair for the dominant
// source codec across the document's images.
func imageReductionFactors(images []ImageDescriptor) (float64, float64) {
	if len(images) == 0 {
		return 0.3, 0.7
	}
	var jpegCount, pngCount int
	for _, img := range images {
		switch {
		case isJPEGFamily(img.Codec):
			jpegCount++
		case img.Codec == "png":
			pngCount++
		}
	}
	total := float64(len(images))
	switch {
	case float64(jpegCount)/total >= 0.8:
		return 0.5, 0.8
	case float64(pngCount)/total > 0.5:
		return 0.2, 0.5
	default:
		return 0.3, 0.7
	}
}

func isJPEGFamily(codec string) bool {
	return codec == "jpeg" || codec == "jpg" || strings.HasPrefix(codec, "jp")
}
