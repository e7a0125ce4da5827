package quality

// Band is the categorical rating of an overall score.
type Band string

const (
	Excellent Band = "Excellent"
	Good      Band = "Good"
	Regular   Band = "Regular"
	Poor      Band = "Poor"
	Critical  Band = "Critical"
)

// Classify maps a score in [0,100] to its band. Lower bounds are inclusive.
func Classify(score float64) Band {
	switch {
	case score >= 90:
		return Excellent
	case score >= 80:
		return Good
	case score >= 70:
		return Regular
	case score >= 60:
		return Poor
	default:
		return Critical
	}
}

// AlertLevel grades a low dimension score.
type AlertLevel string

const (
	AlertCritical  AlertLevel = "critical"
	AlertAttention AlertLevel = "attention"
)

// Alert flags a quality dimension scoring below 80.
type Alert struct {
	Level     AlertLevel `json:"level"`
	Dimension string     `json:"dimension"`
	Score     float64    `json:"score"`
}

// Priority ranks a recommendation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
)

// Recommendation names an area that needs work. Rendering it as advice is
// left to the reporting layer.
type Recommendation struct {
	Area     string   `json:"area"`
	Priority Priority `json:"priority"`
	Score    float64  `json:"score"`
}

// recommendationRules are checked in order; an area is recommended when its
// score is below the threshold.
var recommendationRules = []struct {
	area      string
	threshold float64
	priority  Priority
}{
	{Completeness, 80, PriorityHigh},
	{Consistency, 80, PriorityHigh},
	{Uniqueness, 90, PriorityMedium},
	{Compliance, 90, PriorityHigh},
	{"governance", 80, PriorityMedium},
}

// aggregate fills the overall scores, bands, alerts and recommendations of r
// from its dimension and governance scores.
func aggregate(r *Result) {
	scores := make([]float64, 0, len(Dimensions))
	for _, name := range Dimensions {
		scores = append(scores, r.Dimensions[name].Score)
	}
	r.OverallQuality = round2(mean(scores))

	gov := make([]float64, 0, len(GovernanceAreas))
	for _, name := range GovernanceAreas {
		gov = append(gov, r.Governance[name].Score)
	}
	r.OverallGovernance = round2(mean(gov))

	r.Classification = Classify(r.OverallQuality)
	r.GovernanceClassification = Classify(r.OverallGovernance)

	r.Alerts = nil
	for _, name := range Dimensions {
		score := r.Dimensions[name].Score
		switch {
		case score < 60:
			r.Alerts = append(r.Alerts, Alert{Level: AlertCritical, Dimension: name, Score: score})
		case score < 80:
			r.Alerts = append(r.Alerts, Alert{Level: AlertAttention, Dimension: name, Score: score})
		}
	}

	r.Recommendations = nil
	for _, rule := range recommendationRules {
		score := r.OverallGovernance
		if rule.area != "governance" {
			score = r.Dimensions[rule.area].Score
		}
		if score < rule.threshold {
			r.Recommendations = append(r.Recommendations, Recommendation{
				Area:     rule.area,
				Priority: rule.priority,
				Score:    score,
			})
		}
	}
}
