// Package imaging is the image codec used by the compression engine:
// decode, flatten to an opaque color model, resize, and lossy re-encode.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// Codec bundles the decode/resize/encode operations the engine needs.
// The zero value is ready to use.
type Codec struct{}

// Decode parses JPEG or PNG bytes into a pixel buffer.
func (Codec) Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// FlattenOpaque composites the image onto a white background, discarding
// any alpha channel or palette. Lossy JPEG encoding cannot carry
// transparency, so translucent pixels blend toward white.
func (Codec) FlattenOpaque(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	xdraw.Draw(out, out.Bounds(), img, bounds.Min, xdraw.Over)
	return out
}

// Resize scales the image to width x height with a Catmull-Rom kernel.
func (Codec) Resize(img image.Image, width, height int) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return out
}

// EncodeJPEG renders the image as JPEG at the given quality (1-100).
func (Codec) EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// HasTransparency reports whether the image carries an alpha channel or
// indexed palette that lossy encoding would lose.
func HasTransparency(img image.Image) bool {
	switch img.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.RGBA64, *image.Paletted, *image.Alpha, *image.Alpha16:
		return true
	case *image.RGBA:
		// RGBA from our own pipeline is already opaque; decoded RGBA may
		// not be, so check the model's opaque method below.
	}
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}
