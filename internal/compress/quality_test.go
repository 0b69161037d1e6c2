package compress

import "testing"

func TestQualityLabel(t *testing.T) {
	cases := []struct {
		name        string
		compressed  int64
		original    int64
		imagePct    float64
		qualityUsed int
		want        string
	}{
		{"barely shrunk", 800, 1000, 50, 95, "Excellent"},
		{"moderate", 600, 1000, 50, 85, "Good"},
		{"heavy", 400, 1000, 50, 65, "Fair"},
		{"deep cut on image heavy at low quality", 200, 1000, 80, 35, "Acceptable"},
		{"deep cut on text document", 200, 1000, 30, 35, "Reduced"},
		{"deep cut at high quality", 200, 1000, 80, 55, "Reduced"},
		{"zero original", 0, 0, 0, 95, "Excellent"},
		{"exactly 0.7 is good not excellent", 700, 1000, 50, 95, "Good"},
		{"exactly 0.5 is fair not good", 500, 1000, 50, 85, "Fair"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := QualityLabel(tc.compressed, tc.original, tc.imagePct, tc.qualityUsed)
			if got != tc.want {
				t.Errorf("QualityLabel(%d, %d, %v, %d) = %q, want %q",
					tc.compressed, tc.original, tc.imagePct, tc.qualityUsed, got, tc.want)
			}
		})
	}
}

func TestToleranceByName(t *testing.T) {
	cases := []struct {
		name        string
		wantIters   int
		wantQuality int
		wantDPI     int
	}{
		{"strict", 10, 25, 72},
		{"balanced", 6, 45, 100},
		{"high_clarity", 4, 65, 150},
		{"", 6, 45, 100},
	}
	for _, tc := range cases {
		tol, err := ToleranceByName(tc.name)
		if err != nil {
			t.Errorf("ToleranceByName(%q): %v", tc.name, err)
			continue
		}
		if tol.MaxIterations != tc.wantIters || tol.MinQuality != tc.wantQuality || tol.MinDPI != tc.wantDPI {
			t.Errorf("ToleranceByName(%q) = %+v, want {%d %d %d}",
				tc.name, tol, tc.wantIters, tc.wantQuality, tc.wantDPI)
		}
	}

	if _, err := ToleranceByName("maximum_overdrive"); err == nil {
		t.Error("unknown profile name should error")
	}
}
