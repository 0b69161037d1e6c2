package compress

import "testing"

func jpegProfile(pct float64, n int) *ContentProfile {
	p := &ContentProfile{ImagePercentage: pct}
	for i := 0; i < n; i++ {
		p.Images = append(p.Images, ImageDescriptor{Codec: "jpeg"})
	}
	return p
}

func TestEstimateBoundsCodecMix(t *testing.T) {
	const fileSize = 10_000_000

	t.Run("jpeg dominant has limited headroom", func(t *testing.T) {
		p := jpegProfile(80, 10)
		b := EstimateBounds(p, fileSize)
		// 8MB images * 0.5 + 2MB other * 0.8 = 5.6MB
		if b.MinBytes != 5_600_000 {
			t.Errorf("minBytes = %d, want 5600000", b.MinBytes)
		}
		// 8MB * 0.8 + 2MB * 0.95 = 8.3MB
		if b.MaxBytes != 8_300_000 {
			t.Errorf("maxBytes = %d, want 8300000", b.MaxBytes)
		}
	})

	t.Run("png dominant has large headroom", func(t *testing.T) {
		p := &ContentProfile{ImagePercentage: 80}
		for i := 0; i < 6; i++ {
			p.Images = append(p.Images, ImageDescriptor{Codec: "png"})
		}
		for i := 0; i < 4; i++ {
			p.Images = append(p.Images, ImageDescriptor{Codec: "jpeg"})
		}
		b := EstimateBounds(p, fileSize)
		// 8MB * 0.2 + 2MB * 0.8 = 3.2MB
		if b.MinBytes != 3_200_000 {
			t.Errorf("minBytes = %d, want 3200000", b.MinBytes)
		}
	})

	t.Run("mixed codecs use default factors", func(t *testing.T) {
		p := &ContentProfile{ImagePercentage: 50}
		p.Images = append(p.Images,
			ImageDescriptor{Codec: "jpeg"},
			ImageDescriptor{Codec: "png"},
			ImageDescriptor{Codec: "unknown"},
		)
		b := EstimateBounds(p, fileSize)
		// 5MB * 0.3 + 5MB * 0.8 = 5.5MB
		if b.MinBytes != 5_500_000 {
			t.Errorf("minBytes = %d, want 5500000", b.MinBytes)
		}
	})

	t.Run("embedded fonts tighten non-image portion", func(t *testing.T) {
		p := &ContentProfile{ImagePercentage: 0, HasEmbeddedFonts: true}
		b := EstimateBounds(p, fileSize)
		// 10MB * 0.8 * 0.9 = 7.2MB
		if b.MinBytes != 7_200_000 {
			t.Errorf("minBytes = %d, want 7200000", b.MinBytes)
		}
		// 10MB * 0.95 * 0.95 = 9.025MB
		if b.MaxBytes != 9_025_000 {
			t.Errorf("maxBytes = %d, want 9025000", b.MaxBytes)
		}
	})
}

func TestEstimateBoundsInvariants(t *testing.T) {
	profiles := []*ContentProfile{
		jpegProfile(100, 5),
		jpegProfile(0, 0),
		{ImagePercentage: 95, Images: []ImageDescriptor{{Codec: "png"}}},
		{ImagePercentage: 42, HasEmbeddedFonts: true, Images: []ImageDescriptor{{Codec: "unknown"}}},
	}
	for _, fileSize := range []int64{0, 1024, 10_000_000} {
		for _, p := range profiles {
			b := EstimateBounds(p, fileSize)
			floor := fileSize / 10
			if b.MinBytes < floor {
				t.Errorf("fileSize %d: minBytes %d below 10%% floor %d", fileSize, b.MinBytes, floor)
			}
			if b.MaxBytes < b.MinBytes {
				t.Errorf("fileSize %d: maxBytes %d < minBytes %d", fileSize, b.MaxBytes, b.MinBytes)
			}
		}
	}
}

func TestEstimateBoundsAllPNGImages(t *testing.T) {
	p := &ContentProfile{ImagePercentage: 100}
	for i := 0; i < 3; i++ {
		p.Images = append(p.Images, ImageDescriptor{Codec: "png"})
	}
	b := EstimateBounds(p, 1000)
	if b.MinBytes != 200 {
		t.Errorf("minBytes = %d, want 200", b.MinBytes)
	}
	if b.MaxBytes != 500 {
		t.Errorf("maxBytes = %d, want 500", b.MaxBytes)
	}
}
