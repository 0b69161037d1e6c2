package textops

import (
	"math/rand"
	"regexp"
	"sort"

	"github.com/local/pdfsqueeze/internal/docmodel"
)

// DefaultProbeThreshold is used when a non-positive threshold is passed in.
const DefaultProbeThreshold = 300

var whitespaceRegex = regexp.MustCompile(`\s+`)

// ProbeResult reports what the sampling probe saw.
type ProbeResult struct {
	TotalPages    int   `json:"total_pages"`
	SampledPages  []int `json:"sampled_pages"`
	CharsInSample int   `json:"chars_in_sample"`
	Threshold     int   `json:"threshold"`
	HasText       bool  `json:"has_text"`
}

// HasExtractableText samples a handful of pages and reports whether the
// document carries at least threshold visible characters. It exits as
// soon as the threshold is met, so large documents stay cheap to probe.
func HasExtractableText(provider docmodel.Provider, path string, threshold int) (bool, *ProbeResult, error) {
	if threshold <= 0 {
		threshold = DefaultProbeThreshold
	}

	doc, err := provider.Open(path)
	if err != nil {
		return false, nil, err
	}
	defer doc.Close()

	total := doc.PageCount()
	res := &ProbeResult{TotalPages: total, SampledPages: []int{}, Threshold: threshold}
	if total <= 0 {
		return false, res, nil
	}

	res.SampledPages = samplePages(total)
	for _, page := range res.SampledPages {
		text, err := doc.PageText(page)
		if err != nil {
			continue
		}
		res.CharsInSample += len([]rune(whitespaceRegex.ReplaceAllString(text, "")))
		if res.CharsInSample >= threshold {
			break
		}
	}

	res.HasText = res.CharsInSample >= threshold
	return res.HasText, res, nil
}

// samplePages picks up to five 1-based pages: everything when the
// document is short, otherwise first, middle, last plus random fill.
func samplePages(total int) []int {
	if total <= 5 {
		pages := make([]int, total)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages
	}

	picked := map[int]struct{}{1: {}, total/2 + 1: {}, total: {}}
	for len(picked) < 5 {
		picked[rand.Intn(total)+1] = struct{}{}
	}

	out := make([]int, 0, len(picked))
	for p := range picked {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
