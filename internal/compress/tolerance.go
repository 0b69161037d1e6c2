package compress

import "fmt"

// Tolerance bounds how aggressively the search engine may degrade a
// document: total attempt budget plus quality and resolution floors.
type Tolerance struct {
	Name          string `json:"name"`
	MaxIterations int    `json:"max_iterations"`
	MinQuality    int    `json:"min_quality"`
	MinDPI        int    `json:"min_dpi"`
}

var (
	// ToleranceStrict trades the most visual quality for size.
	ToleranceStrict = Tolerance{Name: "strict", MaxIterations: 10, MinQuality: 25, MinDPI: 72}
	// ToleranceBalanced is the default.
	ToleranceBalanced = Tolerance{Name: "balanced", MaxIterations: 6, MinQuality: 45, MinDPI: 100}
	// ToleranceHighClarity keeps quality high at the cost of search depth.
	ToleranceHighClarity = Tolerance{Name: "high_clarity", MaxIterations: 4, MinQuality: 65, MinDPI: 150}
)

// ToleranceByName resolves a profile name. Empty string selects balanced.
func ToleranceByName(name string) (Tolerance, error) {
	switch name {
	case "strict":
		return ToleranceStrict, nil
	case "balanced", "":
		return ToleranceBalanced, nil
	case "high_clarity":
		return ToleranceHighClarity, nil
	default:
		return Tolerance{}, fmt.Errorf("unknown tolerance profile %q", name)
	}
}
