package quality

import (
	"fmt"
	"regexp"
	"slices"

	"filmgov/internal/config"
	"filmgov/internal/model"
)

// Accuracy metric names, also the keys of Policy.AccuracyWeights.
const (
	MetricRuntime           = "runtime"
	MetricRating            = "rating"
	MetricBudget            = "budget"
	MetricRevenue           = "revenue"
	MetricROI               = "roi"
	MetricRatingReliability = "rating_reliability"
)

// AccuracyMetrics lists the accuracy metrics in report order.
var AccuracyMetrics = []string{
	MetricRuntime,
	MetricRating,
	MetricBudget,
	MetricRevenue,
	MetricROI,
	MetricRatingReliability,
}

// ComplianceWeights weights the three compliance sub-checks.
type ComplianceWeights struct {
	Traceability float64
	Retention    float64
	PersonalData float64
}

// Policy holds every tunable of an assessment run.
type Policy struct {
	RecentYears          int
	RetentionWindowYears int
	MinReliableVotes     int64
	RuntimeMaxMinutes    float64
	BudgetMin            int64
	BudgetCeiling        int64
	RevenueCeiling       int64
	ROIMinPercent        float64
	ROIMaxPercent        float64

	// LossIsInconsistency counts revenue below budget as a consistency
	// issue. When false it is only reported.
	LossIsInconsistency bool

	RequiredTagKinds  []model.TagKind
	ComplianceWeights ComplianceWeights
	AccuracyWeights   map[string]float64

	// PersonalDataAllowedFields are text fields declared to carry personal
	// data; they are not scanned.
	PersonalDataAllowedFields []string
	personalData              []*regexp.Regexp
}

// emailPattern matches addresses regardless of configured keywords.
var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// PolicyFromConfig builds a Policy from the [assessment] section.
func PolicyFromConfig(cfg config.AssessmentConfig) (*Policy, error) {
	p := &Policy{
		RecentYears:               cfg.RecentYears,
		RetentionWindowYears:      cfg.RetentionWindowYears,
		MinReliableVotes:          cfg.MinReliableVotes,
		RuntimeMaxMinutes:         cfg.RuntimeMaxMinutes,
		BudgetMin:                 cfg.BudgetMin,
		BudgetCeiling:             cfg.BudgetCeiling,
		RevenueCeiling:            cfg.RevenueCeiling,
		ROIMinPercent:             cfg.ROIMinPercent,
		ROIMaxPercent:             cfg.ROIMaxPercent,
		LossIsInconsistency:       cfg.LossIsInconsistency,
		PersonalDataAllowedFields: cfg.PersonalData.AllowedFields,
		ComplianceWeights: ComplianceWeights{
			Traceability: cfg.ComplianceWeights.Traceability,
			Retention:    cfg.ComplianceWeights.Retention,
			PersonalData: cfg.ComplianceWeights.PersonalData,
		},
		AccuracyWeights: make(map[string]float64, len(AccuracyMetrics)),
	}

	for _, kind := range cfg.RequiredTagKinds {
		k := model.TagKind(kind)
		if !k.Valid() {
			return nil, fmt.Errorf("unknown required tag kind %q", kind)
		}
		p.RequiredTagKinds = append(p.RequiredTagKinds, k)
	}

	for _, metric := range AccuracyMetrics {
		p.AccuracyWeights[metric] = 1
	}
	for metric, w := range cfg.AccuracyWeights {
		if !slices.Contains(AccuracyMetrics, metric) {
			return nil, fmt.Errorf("unknown accuracy metric %q", metric)
		}
		if w < 0 {
			return nil, fmt.Errorf("accuracy weight for %s must not be negative", metric)
		}
		p.AccuracyWeights[metric] = w
	}

	w := p.ComplianceWeights
	if w.Traceability < 0 || w.Retention < 0 || w.PersonalData < 0 {
		return nil, fmt.Errorf("compliance weights must not be negative")
	}
	if w.Traceability+w.Retention+w.PersonalData == 0 {
		p.ComplianceWeights = ComplianceWeights{Traceability: 1, Retention: 1, PersonalData: 1}
	}

	for _, kw := range cfg.PersonalData.Keywords {
		if kw == "" {
			continue
		}
		re, err := regexp.Compile(keywordPattern(kw))
		if err != nil {
			return nil, fmt.Errorf("personal data keyword %q: %w", kw, err)
		}
		p.personalData = append(p.personalData, re)
	}
	return p, nil
}

// keywordPattern matches kw case-insensitively as a whole token. A word
// boundary is only required on a side where kw starts or ends with a word
// character, so keywords such as "+55" or "@handle" still match.
func keywordPattern(kw string) string {
	pattern := regexp.QuoteMeta(kw)
	if isWordByte(kw[0]) {
		pattern = `\b` + pattern
	}
	if isWordByte(kw[len(kw)-1]) {
		pattern += `\b`
	}
	return `(?i)` + pattern
}

func isWordByte(b byte) bool {
	return b == '_' || '0' <= b && b <= '9' || 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z'
}

// DefaultPolicy returns the policy built from config.DefaultAssessment.
func DefaultPolicy() *Policy {
	p, err := PolicyFromConfig(config.DefaultAssessment())
	if err != nil {
		panic(fmt.Sprintf("default assessment policy is invalid: %v", err))
	}
	return p
}

// containsPersonalData reports whether any scanned text field of m looks
// like it carries directly identifying data.
func (p *Policy) containsPersonalData(m *model.Movie) bool {
	fields := []struct {
		name  string
		value string
	}{
		{"title", m.Title},
		{"original_title", m.OriginalTitle},
		{"overview", m.Overview},
		{"tagline", m.Tagline},
		{"homepage", m.Homepage},
	}
	for _, f := range fields {
		if f.value == "" || slices.Contains(p.PersonalDataAllowedFields, f.name) {
			continue
		}
		if emailPattern.MatchString(f.value) {
			return true
		}
		for _, re := range p.personalData {
			if re.MatchString(f.value) {
				return true
			}
		}
	}
	return false
}
