package compress

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfsqueeze/internal/docmodel"
	"github.com/local/pdfsqueeze/internal/imaging"
	"github.com/local/pdfsqueeze/internal/sizeutil"
)

// Parameter ladders, traversed from least to most aggressive. First
// success wins, which biases the result toward minimal quality loss.
var (
	qualityLadder = []int{95, 85, 75, 65, 55, 45, 35, 25}
	dpiLadder     = []int{300, 200, 150, 120, 100, 72}
)

const (
	// Source images carry no usable DPI metadata, so scaling assumes
	// this embedding resolution. Known approximation.
	assumedSourceDPI = 150.0
	// Resizing below this edge length destroys small images outright.
	minPixelDim = 10
)

// Progress stage names, emitted at coarse milestones.
const (
	StageAnalyzing         = "ANALYZING"
	StageProcessingImages  = "PROCESSING_IMAGES"
	StageOptimizingObjects = "OPTIMIZING_OBJECTS"
	StageFinalizing        = "FINALIZING"
)

// ProgressFunc receives advisory stage/percent events. It carries no
// cancel semantics; cancellation goes through the context.
type ProgressFunc func(stage string, percent int)

// Codec is the image transcoding surface the engine drives.
// imaging.Codec is the production implementation.
type Codec interface {
	Decode(data []byte) (image.Image, error)
	FlattenOpaque(img image.Image) *image.RGBA
	Resize(img image.Image, width, height int) image.Image
	EncodeJPEG(img image.Image, quality int) ([]byte, error)
}

// Compressor runs target-size-constrained compression of one document
// at a time. Provider and Codec must be set; Progress is optional.
type Compressor struct {
	Provider docmodel.Provider
	Codec    Codec
	Progress ProgressFunc
}

// New builds a Compressor on the production PDF provider and codec.
func New(provider docmodel.Provider) *Compressor {
	return &Compressor{Provider: provider, Codec: imaging.Codec{}}
}

// Result is the terminal record of one compression run.
type Result struct {
	Success          bool         `json:"success"`
	OriginalSize     int64        `json:"original_size"`
	CompressedSize   int64        `json:"compressed_size"`
	CompressionRatio float64      `json:"compression_ratio"`
	TargetSize       int64        `json:"target_size"`
	TargetAchieved   bool         `json:"target_achieved"`
	QualityLabel     string       `json:"quality_label"`
	ContentClass     ContentClass `json:"content_class,omitempty"`
	Bounds           SizeBounds   `json:"estimated_bounds"`
	PagesProcessed   int          `json:"pages_processed"`
	ImagesProcessed  int          `json:"images_processed"`
	IterationsUsed   int          `json:"iterations_used"`
	Error            string       `json:"error,omitempty"`
}

// Compress shrinks the PDF at inPath to at most targetBytes, writing
// the output to outPath. It holds exactly one document handle for the
// duration of the call and releases it before returning.
func (c *Compressor) Compress(ctx context.Context, inPath, outPath string, targetBytes int64, tol Tolerance) (*Result, error) {
	fi, err := os.Stat(inPath)
	if err != nil {
		return failedResult(0, targetBytes, fmt.Sprintf("cannot stat input: %v", err)),
			&docmodel.OpenError{Path: inPath, Cause: err}
	}
	originalSize := fi.Size()

	// Already under target: a plain byte copy is the answer.
	if originalSize <= targetBytes {
		if err := copyFile(inPath, outPath); err != nil {
			return failedResult(originalSize, targetBytes, fmt.Sprintf("copy failed: %v", err)), err
		}
		c.progress(StageFinalizing, 100)
		return &Result{
			Success:        true,
			OriginalSize:   originalSize,
			CompressedSize: originalSize,
			TargetSize:     targetBytes,
			TargetAchieved: true,
			QualityLabel:   "Excellent",
		}, nil
	}

	doc, err := c.Provider.Open(inPath)
	if err != nil {
		return failedResult(originalSize, targetBytes, err.Error()), err
	}
	defer doc.Close()

	c.progress(StageAnalyzing, 5)
	profile, err := Classify(doc, originalSize)
	if err != nil {
		return failedResult(originalSize, targetBytes, err.Error()), err
	}
	bounds := EstimateBounds(profile, originalSize)
	c.progress(StageAnalyzing, 15)

	log.Info().
		Str("class", string(profile.ContentClass)).
		Int("pages", profile.PageCount).
		Int("images", len(profile.Images)).
		Float64("image_pct", profile.ImagePercentage).
		Str("target", sizeutil.FormatSize(targetBytes)).
		Str("tolerance", tol.Name).
		Msg("profile built, starting compression")

	var res *Result
	if profile.ContentClass == TextHeavy {
		res = c.compressTextOnly(doc, profile, outPath, targetBytes, originalSize)
	} else {
		res = c.gridSearch(ctx, doc, profile, outPath, targetBytes, tol, originalSize)
	}
	res.ContentClass = profile.ContentClass
	res.Bounds = bounds
	res.PagesProcessed = profile.PageCount

	c.progress(StageFinalizing, 100)
	return res, nil
}

// compressTextOnly is the text-dominant path: one save pass with
// maximum garbage collection and stream recompression, no image work.
func (c *Compressor) compressTextOnly(doc docmodel.Document, profile *ContentProfile, outPath string, targetBytes, originalSize int64) *Result {
	c.progress(StageOptimizingObjects, 50)
	tmp := outPath + ".tmp"
	size, err := doc.Save(tmp, docmodel.MaxCompression())
	if err != nil {
		os.Remove(tmp)
		return failedResult(originalSize, targetBytes, fmt.Sprintf("save failed: %v", err))
	}
	if err := os.Rename(tmp, outPath); err != nil {
		os.Remove(tmp)
		return failedResult(originalSize, targetBytes, fmt.Sprintf("finalize failed: %v", err))
	}
	return &Result{
		Success:          true,
		OriginalSize:     originalSize,
		CompressedSize:   size,
		CompressionRatio: sizeutil.CompressionRatio(originalSize, size),
		TargetSize:       targetBytes,
		TargetAchieved:   size <= targetBytes,
		QualityLabel:     QualityLabel(size, originalSize, profile.ImagePercentage, 100),
		IterationsUsed:   1,
	}
}

// gridSearch walks the (quality, DPI) ladders under a shared attempt
// budget. Image replacements accumulate in the document handle across
// attempts, so each save reflects every rewrite so far.
func (c *Compressor) gridSearch(ctx context.Context, doc docmodel.Document, profile *ContentProfile, outPath string, targetBytes int64, tol Tolerance, originalSize int64) *Result {
	curSize := make(map[docmodel.ImageRef]int64, len(profile.Images))
	for _, img := range profile.Images {
		curSize[img.Ref] = img.SizeBytes
	}
	rewritten := make(map[docmodel.ImageRef]bool)

	tmp := outPath + ".tmp"
	attempts := 0
	bestSize := int64(-1)
	bestQuality := 0

search:
	for _, quality := range qualityLadder {
		if quality < tol.MinQuality {
			break
		}
		for _, dpi := range dpiLadder {
			if dpi < tol.MinDPI {
				break
			}
			if attempts >= tol.MaxIterations {
				break search
			}
			if ctx.Err() != nil {
				log.Warn().Int("attempts", attempts).Msg("compression cancelled between attempts")
				break search
			}
			attempts++
			c.progress(StageProcessingImages, 15+attempts*70/tol.MaxIterations)

			n := c.rewriteImages(doc, profile.Images, quality, dpi, curSize, rewritten)

			c.progress(StageOptimizingObjects, 15+attempts*70/tol.MaxIterations)
			size, err := doc.Save(tmp, docmodel.MaxCompression())
			if err != nil {
				log.Warn().Err(err).Int("quality", quality).Int("dpi", dpi).Msg("save attempt failed, discarding")
				os.Remove(tmp)
				continue
			}

			log.Debug().
				Int("attempt", attempts).
				Int("quality", quality).
				Int("dpi", dpi).
				Int("images_rewritten", n).
				Str("size", sizeutil.FormatSize(size)).
				Msg("attempt complete")

			if size <= targetBytes {
				if err := os.Rename(tmp, outPath); err != nil {
					os.Remove(tmp)
					continue
				}
				return &Result{
					Success:          true,
					OriginalSize:     originalSize,
					CompressedSize:   size,
					CompressionRatio: sizeutil.CompressionRatio(originalSize, size),
					TargetSize:       targetBytes,
					TargetAchieved:   true,
					QualityLabel:     QualityLabel(size, originalSize, profile.ImagePercentage, quality),
					ImagesProcessed:  len(rewritten),
					IterationsUsed:   attempts,
				}
			}

			if bestSize < 0 || size < bestSize {
				if err := os.Rename(tmp, outPath); err != nil {
					os.Remove(tmp)
					continue
				}
				bestSize = size
				bestQuality = quality
			} else {
				os.Remove(tmp)
			}
		}
	}

	if bestSize < 0 {
		return failedResult(originalSize, targetBytes, "no compression attempt produced usable output")
	}

	// Budget exhausted without meeting the target: best effort stands.
	return &Result{
		Success:          true,
		OriginalSize:     originalSize,
		CompressedSize:   bestSize,
		CompressionRatio: sizeutil.CompressionRatio(originalSize, bestSize),
		TargetSize:       targetBytes,
		TargetAchieved:   false,
		QualityLabel:     QualityLabel(bestSize, originalSize, profile.ImagePercentage, bestQuality),
		ImagesProcessed:  len(rewritten),
		IterationsUsed:   attempts,
	}
}

// rewriteImages re-encodes every image at the trial quality and DPI,
// replacing a stream only when the new encoding is strictly smaller
// than the current one. Per-image failures skip that image and leave
// its stream untouched. Returns how many streams were replaced.
func (c *Compressor) rewriteImages(doc docmodel.Document, images []ImageDescriptor, quality, dpi int, curSize map[docmodel.ImageRef]int64, rewritten map[docmodel.ImageRef]bool) int {
	scale := float64(dpi) / assumedSourceDPI
	if scale > 1 {
		scale = 1
	}

	replaced := 0
	for _, desc := range images {
		data, err := doc.ExtractImage(desc.Ref)
		if err != nil {
			log.Debug().Err(err).Int("ref", int(desc.Ref)).Msg("image extract failed, keeping original")
			continue
		}
		img, err := c.Codec.Decode(data)
		if err != nil {
			log.Debug().Err(err).Int("ref", int(desc.Ref)).Msg("image decode failed, keeping original")
			continue
		}
		if imaging.HasTransparency(img) {
			img = c.Codec.FlattenOpaque(img)
		}
		if scale < 1 {
			b := img.Bounds()
			w := int(float64(b.Dx()) * scale)
			h := int(float64(b.Dy()) * scale)
			if w > minPixelDim && h > minPixelDim {
				img = c.Codec.Resize(img, w, h)
			}
		}
		enc, err := c.Codec.EncodeJPEG(img, quality)
		if err != nil {
			continue
		}
		if int64(len(enc)) >= curSize[desc.Ref] {
			continue
		}
		if err := doc.ReplaceImage(desc.Ref, enc); err != nil {
			log.Debug().Err(err).Int("ref", int(desc.Ref)).Msg("image replace failed, keeping original")
			continue
		}
		curSize[desc.Ref] = int64(len(enc))
		rewritten[desc.Ref] = true
		replaced++
	}
	return replaced
}

func (c *Compressor) progress(stage string, percent int) {
	if c.Progress != nil {
		if percent > 100 {
			percent = 100
		}
		c.Progress(stage, percent)
	}
}

func failedResult(originalSize, targetBytes int64, msg string) *Result {
	return &Result{
		OriginalSize: originalSize,
		TargetSize:   targetBytes,
		Error:        msg,
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
