// Package docmodel defines the narrow document-model contract the
// compression engine depends on, together with its production
// implementation backed by pdfcpu and go-fitz. The engine never touches a
// PDF library directly; everything goes through Document, which keeps the
// core testable against in-memory fakes.
package docmodel

import "fmt"

// ImageRef identifies an image object within an open document. Refs are
// opaque to callers and stable for the lifetime of one Document.
type ImageRef int

// ImageInfo describes one distinct image object.
type ImageInfo struct {
	Ref              ImageRef
	Width            int
	Height           int
	BitsPerComponent int
	ColorSpace       string
	SizeBytes        int64
	Codec            string // "jpeg", "png", "jpx", "ccitt" or "unknown"
}

// SaveOptions mirrors the save-time optimizations a provider supports.
type SaveOptions struct {
	GarbageCollect      bool
	DeflateStreams      bool
	CleanContentStreams bool
	DeflateImages       bool
	DeflateFonts        bool
}

// MaxCompression enables every save-time optimization.
func MaxCompression() SaveOptions {
	return SaveOptions{
		GarbageCollect:      true,
		DeflateStreams:      true,
		CleanContentStreams: true,
		DeflateImages:       true,
		DeflateFonts:        true,
	}
}

// Document is an open, mutable in-memory document. Implementations are not
// safe for concurrent use; one goroutine owns a handle at a time.
type Document interface {
	PageCount() int
	// PageText returns the text of a 1-based page in reading order.
	PageText(page int) (string, error)
	// PageImages lists the image objects referenced by a 1-based page.
	// The same underlying object referenced from several pages yields the
	// same Ref on each of them.
	PageImages(page int) ([]ImageInfo, error)
	PageHasFonts(page int) (bool, error)
	// ExtractImage returns the image as bytes decodable by a standard
	// image codec.
	ExtractImage(ref ImageRef) ([]byte, error)
	// ReplaceImage swaps the underlying image stream for a JPEG encoding.
	ReplaceImage(ref ImageRef, jpeg []byte) error
	// RemoveText strips the text layer from a 1-based page, leaving
	// images and graphics in place.
	RemoveText(page int) error
	// Save writes the document to path and returns the output byte count.
	Save(path string, opts SaveOptions) (int64, error)
	Close() error
}

// Provider opens documents.
type Provider interface {
	Open(path string) (Document, error)
}

// OpenError means the input could not be read or parsed. Fatal to a run.
type OpenError struct {
	Path  string
	Cause error
}

func (e *OpenError) Error() string { return fmt.Sprintf("open %s: %v", e.Path, e.Cause) }
func (e *OpenError) Unwrap() error { return e.Cause }

// ExtractError means a single image could not be read or decoded. Callers
// skip the image and continue.
type ExtractError struct {
	Ref   ImageRef
	Cause error
}

func (e *ExtractError) Error() string { return fmt.Sprintf("extract image %d: %v", e.Ref, e.Cause) }
func (e *ExtractError) Unwrap() error { return e.Cause }

// SaveError means one save attempt failed. The attempt is discarded.
type SaveError struct {
	Path  string
	Cause error
}

func (e *SaveError) Error() string { return fmt.Sprintf("save %s: %v", e.Path, e.Cause) }
func (e *SaveError) Unwrap() error { return e.Cause }
