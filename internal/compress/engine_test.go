package compress

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/local/pdfsqueeze/internal/docmodel"
)

// writeInput creates an input file of the given size and returns its
// path plus an output path in the same temp dir.
func writeInput(t *testing.T, size int) (string, string) {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(in, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return in, filepath.Join(dir, "out.pdf")
}

// imageHeavyDoc builds a one-page document whose single jpeg image
// accounts for 80% of a 1000-byte file.
func imageHeavyDoc() *fakeDoc {
	doc := newFakeDoc(1)
	doc.addImage(1, 7, 800, "jpeg")
	return doc
}

func newTestCompressor(doc *fakeDoc, encSize func(int) int) (*Compressor, *fakeCodec) {
	codec := &fakeCodec{encSize: encSize}
	return &Compressor{Provider: fakeProvider{doc: doc}, Codec: codec}, codec
}

func TestCompressMissingInputReturnsOpenError(t *testing.T) {
	c, _ := newTestCompressor(imageHeavyDoc(), func(int) int { return 100 })
	res, err := c.Compress(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"), "out.pdf", 500, ToleranceBalanced)
	if err == nil {
		t.Fatal("expected error for missing input")
	}
	var oe *docmodel.OpenError
	if !errors.As(err, &oe) {
		t.Errorf("err = %T, want *docmodel.OpenError", err)
	}
	if res == nil || res.Success {
		t.Errorf("result = %+v, want failed result", res)
	}
}

func TestCompressAlreadySmallCopies(t *testing.T) {
	in, out := writeInput(t, 500)
	doc := imageHeavyDoc()
	c, codec := newTestCompressor(doc, func(q int) int { return q })

	res, err := c.Compress(context.Background(), in, out, 1000, ToleranceBalanced)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !res.Success || !res.TargetAchieved {
		t.Errorf("got success=%v achieved=%v, want both true", res.Success, res.TargetAchieved)
	}
	if res.CompressionRatio != 0 {
		t.Errorf("ratio = %v, want 0", res.CompressionRatio)
	}
	if res.QualityLabel != "Excellent" {
		t.Errorf("label = %q, want Excellent", res.QualityLabel)
	}
	if res.IterationsUsed != 0 {
		t.Errorf("iterations = %d, want 0", res.IterationsUsed)
	}
	fi, err := os.Stat(out)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if fi.Size() != 500 {
		t.Errorf("output size = %d, want unmodified 500", fi.Size())
	}
	if doc.saveCalls != 0 || codec.encodes != 0 {
		t.Errorf("already-small input must not open a search: saves=%d encodes=%d", doc.saveCalls, codec.encodes)
	}
}

func TestAttemptBudgetExactCounts(t *testing.T) {
	cases := []struct {
		tol  Tolerance
		want int
	}{
		{ToleranceStrict, 10},
		{ToleranceBalanced, 6},
		{ToleranceHighClarity, 4},
	}
	for _, tc := range cases {
		t.Run(tc.tol.Name, func(t *testing.T) {
			in, out := writeInput(t, 1000)
			doc := imageHeavyDoc()
			doc.saveSizes = []int64{900} // never meets target
			c, _ := newTestCompressor(doc, func(q int) int { return 10000 })

			res, err := c.Compress(context.Background(), in, out, 100, tc.tol)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			if doc.saveCalls != tc.want {
				t.Errorf("save attempts = %d, want exactly %d", doc.saveCalls, tc.want)
			}
			if res.IterationsUsed != tc.want {
				t.Errorf("iterations = %d, want %d", res.IterationsUsed, tc.want)
			}
			if !res.Success || res.TargetAchieved {
				t.Errorf("exhausted budget: got success=%v achieved=%v, want true/false", res.Success, res.TargetAchieved)
			}
		})
	}
}

func TestFirstSuccessReturnsImmediately(t *testing.T) {
	in, out := writeInput(t, 1000)
	doc := imageHeavyDoc()
	doc.saveSizes = []int64{90}
	c, _ := newTestCompressor(doc, func(q int) int { return q })

	res, err := c.Compress(context.Background(), in, out, 100, ToleranceBalanced)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !res.TargetAchieved {
		t.Error("want targetAchieved=true")
	}
	if res.IterationsUsed != 1 {
		t.Errorf("iterations = %d, want 1", res.IterationsUsed)
	}
	if doc.saveCalls != 1 {
		t.Errorf("save calls = %d, want 1", doc.saveCalls)
	}
	if res.CompressedSize != 90 {
		t.Errorf("compressedSize = %d, want 90", res.CompressedSize)
	}
}

func TestLadderFloorsHaltSearch(t *testing.T) {
	in, out := writeInput(t, 1000)
	doc := imageHeavyDoc()
	doc.saveSizes = []int64{900}
	c, _ := newTestCompressor(doc, func(q int) int { return 10000 })

	// Only quality=95 passes a floor of 90, and only DPI=300 passes a
	// floor of 250, so exactly one pair is examined despite the budget.
	tol := Tolerance{Name: "custom", MaxIterations: 100, MinQuality: 90, MinDPI: 250}
	res, err := c.Compress(context.Background(), in, out, 100, tol)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if doc.saveCalls != 1 {
		t.Errorf("save attempts = %d, want 1", doc.saveCalls)
	}
	if res.IterationsUsed != 1 {
		t.Errorf("iterations = %d, want 1", res.IterationsUsed)
	}
}

func TestBestEffortRetainsSmallest(t *testing.T) {
	in, out := writeInput(t, 1000)
	doc := imageHeavyDoc()
	doc.saveSizes = []int64{900, 700, 800, 600, 650, 640}
	c, _ := newTestCompressor(doc, func(q int) int { return 10000 })

	res, err := c.Compress(context.Background(), in, out, 100, ToleranceBalanced)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !res.Success {
		t.Fatalf("want best-effort success, got error %q", res.Error)
	}
	if res.TargetAchieved {
		t.Error("no attempt met target, want targetAchieved=false")
	}
	if res.CompressedSize != 600 {
		t.Errorf("compressedSize = %d, want smallest attempt 600", res.CompressedSize)
	}
	if res.CompressionRatio != 0.4 {
		t.Errorf("ratio = %v, want 0.4", res.CompressionRatio)
	}
	if res.QualityLabel != "Good" {
		t.Errorf("label = %q, want Good for 0.6 size ratio", res.QualityLabel)
	}
	fi, err := os.Stat(out)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if fi.Size() != 600 {
		t.Errorf("file on disk = %d bytes, want the best attempt's 600", fi.Size())
	}
}

func TestReplaceOnlyWhenStrictlySmaller(t *testing.T) {
	t.Run("larger encoding keeps original", func(t *testing.T) {
		in, out := writeInput(t, 1000)
		doc := imageHeavyDoc()
		doc.saveSizes = []int64{900}
		c, _ := newTestCompressor(doc, func(q int) int { return 10000 })

		res, err := c.Compress(context.Background(), in, out, 100, ToleranceHighClarity)
		if err != nil {
			t.Fatalf("Compress: %v", err)
		}
		if len(doc.replaced) != 0 {
			t.Errorf("replaced %d images, want 0", len(doc.replaced))
		}
		if res.ImagesProcessed != 0 {
			t.Errorf("imagesProcessed = %d, want 0", res.ImagesProcessed)
		}
	})

	t.Run("smaller encoding replaces", func(t *testing.T) {
		in, out := writeInput(t, 1000)
		doc := imageHeavyDoc()
		doc.saveSizes = []int64{900}
		c, _ := newTestCompressor(doc, func(q int) int { return q })

		res, err := c.Compress(context.Background(), in, out, 100, ToleranceHighClarity)
		if err != nil {
			t.Fatalf("Compress: %v", err)
		}
		rep, ok := doc.replaced[7]
		if !ok {
			t.Fatal("image 7 was never replaced")
		}
		// high_clarity examines (95,300..150) then (85,300); the last
		// strictly-smaller rewrite is the quality-85 encoding
		if len(rep) != 85 {
			t.Errorf("final replacement = %d bytes, want 85 (lowest quality tried)", len(rep))
		}
		if res.ImagesProcessed != 1 {
			t.Errorf("imagesProcessed = %d, want 1", res.ImagesProcessed)
		}
	})
}

func TestTextHeavySinglePass(t *testing.T) {
	in, out := writeInput(t, 500*1024)
	doc := newFakeDoc(2)
	doc.texts[1] = string(make([]rune, 600))
	doc.texts[2] = string(make([]rune, 600))
	doc.saveSizes = []int64{380 * 1024}
	c, codec := newTestCompressor(doc, func(q int) int { return q })

	res, err := c.Compress(context.Background(), in, out, 400*1024, ToleranceBalanced)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if res.ContentClass != TextHeavy {
		t.Fatalf("class = %v, want text_heavy", res.ContentClass)
	}
	if doc.saveCalls != 1 {
		t.Errorf("save calls = %d, want single pass", doc.saveCalls)
	}
	if codec.decodes != 0 || codec.encodes != 0 {
		t.Errorf("codec invoked %d/%d times, want never", codec.decodes, codec.encodes)
	}
	if res.ImagesProcessed != 0 {
		t.Errorf("imagesProcessed = %d, want 0", res.ImagesProcessed)
	}
	if !res.TargetAchieved {
		t.Error("380KB output under 400KB target, want targetAchieved=true")
	}
}

func TestCancelBetweenAttempts(t *testing.T) {
	in, out := writeInput(t, 1000)
	doc := imageHeavyDoc()
	doc.saveSizes = []int64{900}
	ctx, cancel := context.WithCancel(context.Background())
	doc.onSave = cancel
	c, _ := newTestCompressor(doc, func(q int) int { return 10000 })

	res, err := c.Compress(ctx, in, out, 100, ToleranceStrict)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if doc.saveCalls != 1 {
		t.Errorf("save calls = %d, want 1 (cancelled before second attempt)", doc.saveCalls)
	}
	if !res.Success || res.TargetAchieved {
		t.Errorf("got success=%v achieved=%v, want best-effort true/false", res.Success, res.TargetAchieved)
	}
}

func TestProgressStagesEmitted(t *testing.T) {
	in, out := writeInput(t, 1000)
	doc := imageHeavyDoc()
	doc.saveSizes = []int64{90}
	c, _ := newTestCompressor(doc, func(q int) int { return q })

	var stages []string
	c.Progress = func(stage string, pct int) {
		if pct < 0 || pct > 100 {
			t.Errorf("stage %s percent %d out of range", stage, pct)
		}
		stages = append(stages, stage)
	}

	if _, err := c.Compress(context.Background(), in, out, 100, ToleranceBalanced); err != nil {
		t.Fatalf("Compress: %v", err)
	}
	want := map[string]bool{StageAnalyzing: false, StageProcessingImages: false, StageFinalizing: false}
	for _, s := range stages {
		if _, ok := want[s]; ok {
			want[s] = true
		}
	}
	for stage, seen := range want {
		if !seen {
			t.Errorf("stage %s never emitted", stage)
		}
	}
}

func TestDocumentClosedOnReturn(t *testing.T) {
	in, out := writeInput(t, 1000)
	doc := imageHeavyDoc()
	doc.saveSizes = []int64{90}
	c, _ := newTestCompressor(doc, func(q int) int { return q })

	if _, err := c.Compress(context.Background(), in, out, 100, ToleranceBalanced); err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !doc.closed {
		t.Error("document handle not released")
	}
}
