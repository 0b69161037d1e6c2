package textops

import (
	"strings"
	"testing"
)

func TestProbeBelowThreshold(t *testing.T) {
	doc := &fakeDoc{texts: map[int]string{1: "short", 2: "", 3: "also short"}}
	has, res, err := HasExtractableText(fakeProvider{doc}, "in.pdf", 300)
	if err != nil {
		t.Fatalf("HasExtractableText: %v", err)
	}
	if has || res.HasText {
		t.Error("sparse document reported as having extractable text")
	}
	if len(res.SampledPages) != 3 {
		t.Errorf("sampled %d pages of a 3-page doc, want all 3", len(res.SampledPages))
	}
}

func TestProbeMeetsThreshold(t *testing.T) {
	long := strings.Repeat("x", 200)
	doc := &fakeDoc{texts: map[int]string{1: long, 2: long}}
	has, res, err := HasExtractableText(fakeProvider{doc}, "in.pdf", 300)
	if err != nil {
		t.Fatalf("HasExtractableText: %v", err)
	}
	if !has {
		t.Error("400 visible chars did not meet threshold 300")
	}
	if res.CharsInSample < 300 {
		t.Errorf("charsInSample = %d, want >= 300", res.CharsInSample)
	}
}

func TestProbeIgnoresWhitespace(t *testing.T) {
	doc := &fakeDoc{texts: map[int]string{1: strings.Repeat(" \t\n", 500)}}
	has, res, err := HasExtractableText(fakeProvider{doc}, "in.pdf", 10)
	if err != nil {
		t.Fatalf("HasExtractableText: %v", err)
	}
	if has || res.CharsInSample != 0 {
		t.Errorf("whitespace counted: charsInSample = %d", res.CharsInSample)
	}
}

func TestSamplePagesLargeDoc(t *testing.T) {
	pages := samplePages(100)
	if len(pages) != 5 {
		t.Fatalf("sampled %d pages, want 5", len(pages))
	}
	seen := map[int]bool{}
	for _, p := range pages {
		if p < 1 || p > 100 {
			t.Errorf("page %d out of range", p)
		}
		if seen[p] {
			t.Errorf("page %d sampled twice", p)
		}
		seen[p] = true
	}
	if !seen[1] || !seen[51] || !seen[100] {
		t.Errorf("first/middle/last not all sampled: %v", pages)
	}
}
