package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestFlattenOpaqueBlendsTowardWhite(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	// fully transparent pixel should come out white
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 0})
	// opaque red stays red
	src.SetNRGBA(1, 1, color.NRGBA{R: 255, A: 255})

	var c Codec
	out := c.FlattenOpaque(src)

	r, g, b, a := out.At(0, 0).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff || a != 0xffff {
		t.Errorf("transparent pixel = %v %v %v %v, want white opaque", r, g, b, a)
	}
	r, g, b, _ = out.At(1, 1).RGBA()
	if r != 0xffff || g != 0 || b != 0 {
		t.Errorf("opaque red pixel = %v %v %v, want red", r, g, b)
	}
}

func TestResizeDimensions(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 50))
	var c Codec
	out := c.Resize(src, 40, 20)
	if got := out.Bounds(); got.Dx() != 40 || got.Dy() != 20 {
		t.Errorf("resized bounds = %dx%d, want 40x20", got.Dx(), got.Dy())
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			src.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}

	var c Codec
	data, err := c.EncodeJPEG(src, 85)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("EncodeJPEG returned no data")
	}

	img, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := img.Bounds(); got.Dx() != 16 || got.Dy() != 16 {
		t.Errorf("decoded bounds = %dx%d, want 16x16", got.Dx(), got.Dy())
	}
}

func TestEncodeLowerQualitySmaller(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			src.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: uint8((x + y) * 2), A: 255})
		}
	}

	var c Codec
	hi, err := c.EncodeJPEG(src, 95)
	if err != nil {
		t.Fatalf("EncodeJPEG(95): %v", err)
	}
	lo, err := c.EncodeJPEG(src, 25)
	if err != nil {
		t.Fatalf("EncodeJPEG(25): %v", err)
	}
	if len(lo) >= len(hi) {
		t.Errorf("quality 25 output %d bytes, not smaller than quality 95 output %d bytes", len(lo), len(hi))
	}
}

func TestHasTransparency(t *testing.T) {
	if !HasTransparency(image.NewNRGBA(image.Rect(0, 0, 1, 1))) {
		t.Error("NRGBA should report transparency")
	}
	opaque := image.NewRGBA(image.Rect(0, 0, 1, 1))
	opaque.Set(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	if HasTransparency(opaque) {
		t.Error("opaque RGBA should not report transparency")
	}
}
