package compress

import (
	"strings"
	"testing"
)

func TestClassifyThresholdBoundaries(t *testing.T) {
	cases := []struct {
		name     string
		imagePct float64
		chars    int
		pages    int
		want     ContentClass
	}{
		{"71 percent is image heavy", 71, 0, 1, ImageHeavy},
		{"70 percent is not image heavy", 70, 0, 1, Mixed},
		{"text heavy", 10, 2000, 2, TextHeavy},
		{"500 chars per page is not enough", 10, 500, 1, Mixed},
		{"501 chars per page qualifies", 10, 501, 1, TextHeavy},
		{"20 percent images blocks text heavy", 20, 5000, 1, Mixed},
		{"zero pages treated as one", 5, 600, 0, TextHeavy},
		{"fractional chars per page counts", 10, 1001, 2, TextHeavy},
		{"exactly 500 across two pages stays mixed", 10, 1000, 2, Mixed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &ContentProfile{
				PageCount:          tc.pages,
				ImagePercentage:    tc.imagePct,
				TextCharacterCount: tc.chars,
			}
			if got := classify(p); got != tc.want {
				t.Errorf("classify() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClassifyDeduplicatesSharedImages(t *testing.T) {
	doc := newFakeDoc(3)
	doc.addImage(1, 42, 1000, "jpeg")
	// pages 2 and 3 reference the same object
	doc.images[2] = append(doc.images[2], doc.images[1][0])
	doc.images[3] = append(doc.images[3], doc.images[1][0])
	doc.addImage(2, 43, 500, "png")

	p, err := Classify(doc, 10000)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(p.Images) != 2 {
		t.Errorf("got %d distinct images, want 2", len(p.Images))
	}
	if p.TotalImageBytes != 1500 {
		t.Errorf("totalImageBytes = %d, want 1500 (shared object counted once)", p.TotalImageBytes)
	}
	if p.ImagePercentage != 15 {
		t.Errorf("imagePercentage = %v, want 15", p.ImagePercentage)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	doc := newFakeDoc(2)
	doc.texts[1] = strings.Repeat("a", 700)
	doc.addImage(1, 1, 100, "jpeg")
	doc.fonts[2] = true

	first, err := Classify(doc, 5000)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	second, err := Classify(doc, 5000)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if first.ContentClass != second.ContentClass ||
		first.TextCharacterCount != second.TextCharacterCount ||
		first.TotalImageBytes != second.TotalImageBytes ||
		first.ImagePercentage != second.ImagePercentage ||
		first.HasEmbeddedFonts != second.HasEmbeddedFonts {
		t.Errorf("repeated classification differs: %+v vs %+v", first, second)
	}
	if !first.HasEmbeddedFonts {
		t.Error("font on page 2 not detected")
	}
	if !first.HasText {
		t.Error("hasText = false with 700 chars present")
	}
}

func TestClassifyZeroFileSize(t *testing.T) {
	doc := newFakeDoc(1)
	doc.addImage(1, 1, 100, "jpeg")
	p, err := Classify(doc, 0)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if p.ImagePercentage != 0 {
		t.Errorf("imagePercentage = %v for zero-size file, want 0", p.ImagePercentage)
	}
}
