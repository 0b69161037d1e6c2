package compress

// QualityLabel maps a size ratio to a coarse human-facing quality tag.
// The ratio here is compressedSize/originalSize: the more of the
// original that survives, the less visual quality was sacrificed.
func QualityLabel(compressedSize, originalSize int64, imagePercentage float64, qualityUsed int) string {
	if originalSize <= 0 {
		return "Excellent"
	}
	ratio := float64(compressedSize) / float64(originalSize)
	switch {
	case ratio > 0.7:
		return "Excellent"
	case ratio > 0.5:
		return "Good"
	case ratio > 0.3:
		return "Fair"
	case imagePercentage > 70 && qualityUsed < 50:
		return "Acceptable"
	default:
		return "Reduced"
	}
}
