package quality

import "math"

// Dimension names.
const (
	Completeness = "completeness"
	Consistency  = "consistency"
	Accuracy     = "accuracy"
	Timeliness   = "timeliness"
	Integrity    = "integrity"
	Uniqueness   = "uniqueness"
	Compliance   = "compliance"
)

// Dimensions lists the quality dimensions in report order.
var Dimensions = []string{
	Completeness,
	Consistency,
	Accuracy,
	Timeliness,
	Integrity,
	Uniqueness,
	Compliance,
}

// Governance area names.
const (
	Catalog  = "catalog"
	Lineage  = "lineage"
	Taxonomy = "taxonomy"
)

// GovernanceAreas lists the governance areas in report order.
var GovernanceAreas = []string{Catalog, Lineage, Taxonomy}

// DetailNoData is set to 1 in a score's detail when its denominator was zero.
const DetailNoData = "no_data"

// DimensionScore is the result of one assessor.
type DimensionScore struct {
	Name   string             `json:"name"`
	Score  float64            `json:"score"`
	Detail map[string]float64 `json:"detail"`
}

// NoData reports whether the score was computed over an empty denominator.
func (d DimensionScore) NoData() bool {
	return d.Detail[DetailNoData] == 1
}

func newScore(name string) DimensionScore {
	return DimensionScore{Name: name, Detail: make(map[string]float64)}
}

// noData returns a zero score flagged as having no data.
func noData(s DimensionScore) DimensionScore {
	s.Score = 0
	s.Detail[DetailNoData] = 1
	return s
}

// percent returns round(100*num/den, 2), or 0 when den is zero.
func percent(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return round2(100 * float64(num) / float64(den))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
