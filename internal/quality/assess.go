// Package quality scores a catalog snapshot along seven quality dimensions
// and three governance areas.
//
// Assessors are pure functions over a model.Dataset; they never touch the
// store. A zero denominator yields a score of 0 flagged with DetailNoData
// instead of an error.
package quality

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"filmgov/internal/catalog"
	"filmgov/internal/model"
)

// Result is the complete outcome of one assessment.
type Result struct {
	ReferenceDate time.Time `json:"reference_date"`
	Entities      int       `json:"entities"`

	Dimensions map[string]DimensionScore `json:"dimensions"`
	Governance map[string]DimensionScore `json:"governance"`

	OverallQuality           float64 `json:"overall_quality"`
	OverallGovernance        float64 `json:"overall_governance"`
	Classification           Band    `json:"classification"`
	GovernanceClassification Band    `json:"governance_classification"`

	Alerts          []Alert          `json:"alerts"`
	Recommendations []Recommendation `json:"recommendations"`
}

var dimensionAssessors = map[string]assessor{
	Completeness: assessCompleteness,
	Consistency:  assessConsistency,
	Accuracy:     assessAccuracy,
	Timeliness:   assessTimeliness,
	Integrity:    assessIntegrity,
	Uniqueness:   assessUniqueness,
	Compliance:   assessCompliance,
}

var governanceAssessors = map[string]assessor{
	Catalog:  assessCatalog,
	Lineage:  assessLineage,
	Taxonomy: assessTaxonomy,
}

// Engine runs assessments under one policy.
type Engine struct {
	policy *Policy
	logger catalog.Logger
}

// NewEngine creates an Engine. A nil policy uses DefaultPolicy.
func NewEngine(policy *Policy, logger catalog.Logger) *Engine {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = catalog.NewNopLogger()
	}
	return &Engine{policy: policy, logger: logger}
}

// Assess scores ds as of ref. The ten assessors run concurrently over the
// same read-only dataset; ds must not be modified until Assess returns.
// The only error is cancellation of ctx.
func (e *Engine) Assess(ctx context.Context, ds *model.Dataset, ref time.Time) (*Result, error) {
	names := append(append([]string(nil), Dimensions...), GovernanceAreas...)
	scores := make([]DimensionScore, len(names))

	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		fn, ok := dimensionAssessors[name]
		if !ok {
			fn = governanceAssessors[name]
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			scores[i] = fn(ds, e.policy, ref)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r := &Result{
		ReferenceDate: ref,
		Entities:      len(ds.Movies),
		Dimensions:    make(map[string]DimensionScore, len(Dimensions)),
		Governance:    make(map[string]DimensionScore, len(GovernanceAreas)),
	}
	for i, s := range scores {
		if i < len(Dimensions) {
			r.Dimensions[s.Name] = s
		} else {
			r.Governance[s.Name] = s
		}
		if s.NoData() {
			e.logger.Warn("assessment without data", "area", s.Name)
		}
		e.logger.Debug("score computed", "area", s.Name, "score", s.Score)
	}
	aggregate(r)

	e.logger.Info("assessment complete",
		"entities", r.Entities,
		"overall_quality", r.OverallQuality,
		"overall_governance", r.OverallGovernance,
		"classification", r.Classification,
		"alerts", len(r.Alerts))
	return r, nil
}

// Assess scores ds with policy. It is shorthand for NewEngine(policy, nil).Assess.
func Assess(ctx context.Context, ds *model.Dataset, policy *Policy, ref time.Time) (*Result, error) {
	return NewEngine(policy, nil).Assess(ctx, ds, ref)
}
