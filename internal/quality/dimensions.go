package quality

import (
	"time"

	"filmgov/internal/catalog"
	"filmgov/internal/model"
)

// assessor computes one score from a read-only dataset.
type assessor func(ds *model.Dataset, p *Policy, ref time.Time) DimensionScore

// completenessFields are the fields whose fill rate is measured. Numeric
// fields count as filled when positive since 0 is the coercion default.
var completenessFields = []struct {
	name   string
	filled func(f *model.MovieFacts) bool
}{
	{"title", func(f *model.MovieFacts) bool { return f.Title != "" }},
	{"overview", func(f *model.MovieFacts) bool { return f.Overview != "" }},
	{"release_date", func(f *model.MovieFacts) bool { return f.ReleaseDate != nil }},
	{"original_language", func(f *model.MovieFacts) bool { return f.Language != "" }},
	{"budget", func(f *model.MovieFacts) bool { return f.Budget > 0 }},
	{"revenue", func(f *model.MovieFacts) bool { return f.Revenue > 0 }},
	{"rating", func(f *model.MovieFacts) bool { return f.Rating > 0 }},
	{"rating_count", func(f *model.MovieFacts) bool { return f.RatingCount > 0 }},
	{"genres", func(f *model.MovieFacts) bool { return f.TagCounts[model.TagGenre] > 0 }},
	{"keywords", func(f *model.MovieFacts) bool { return f.TagCounts[model.TagKeyword] > 0 }},
}

func assessCompleteness(ds *model.Dataset, _ *Policy, _ time.Time) DimensionScore {
	s := newScore(Completeness)
	n := len(ds.Movies)

	rates := make([]float64, 0, len(completenessFields))
	for _, field := range completenessFields {
		filled := 0
		for i := range ds.Movies {
			if field.filled(&ds.Movies[i]) {
				filled++
			}
		}
		rate := percent(filled, n)
		s.Detail[field.name] = rate
		rates = append(rates, rate)
	}
	if n == 0 {
		return noData(s)
	}
	s.Score = round2(mean(rates))
	return s
}

func assessConsistency(ds *model.Dataset, p *Policy, ref time.Time) DimensionScore {
	s := newScore(Consistency)
	n := len(ds.Movies)

	var withoutRating, future, releasedUndated, outOfRange, loss int
	for i := range ds.Movies {
		m := &ds.Movies[i]
		if m.RatingCount > 0 && m.Rating == 0 {
			withoutRating++
		}
		if m.ReleaseDate != nil && m.ReleaseDate.After(ref) {
			future++
		}
		if m.Status == "Released" && m.ReleaseDate == nil {
			releasedUndated++
		}
		if m.Rating < 0 || m.Rating > catalog.MaxRating {
			outOfRange++
		}
		if m.Budget > 0 && m.Revenue > 0 && m.Revenue < m.Budget {
			loss++
		}
	}

	issues := withoutRating + future + releasedUndated + outOfRange
	if p.LossIsInconsistency {
		issues += loss
	}
	s.Detail["rating_count_without_rating"] = float64(withoutRating)
	s.Detail["future_release_date"] = float64(future)
	s.Detail["released_without_date"] = float64(releasedUndated)
	s.Detail["rating_out_of_range"] = float64(outOfRange)
	s.Detail["revenue_below_budget"] = float64(loss)
	s.Detail["issues"] = float64(issues)

	if n == 0 {
		return noData(s)
	}
	s.Score = max(0, round2(100-100*float64(issues)/float64(n)))
	return s
}

// accuracyCheck reports whether the metric applies to m and, if so, whether
// m passes it.
type accuracyCheck func(m *model.MovieFacts, p *Policy) (applies, ok bool)

var accuracyChecks = map[string]accuracyCheck{
	MetricRuntime: func(m *model.MovieFacts, p *Policy) (bool, bool) {
		return m.Runtime > 0, m.Runtime <= p.RuntimeMaxMinutes
	},
	MetricRating: func(m *model.MovieFacts, _ *Policy) (bool, bool) {
		return true, m.Rating >= 0 && m.Rating <= catalog.MaxRating
	},
	MetricBudget: func(m *model.MovieFacts, p *Policy) (bool, bool) {
		return m.Budget > 0, m.Budget >= p.BudgetMin && m.Budget <= p.BudgetCeiling
	},
	MetricRevenue: func(m *model.MovieFacts, p *Policy) (bool, bool) {
		return m.Revenue > 0, m.Revenue <= p.RevenueCeiling
	},
	MetricROI: func(m *model.MovieFacts, p *Policy) (bool, bool) {
		if m.Budget <= 0 || m.Revenue <= 0 {
			return false, false
		}
		roi := float64(m.Revenue-m.Budget) * 100 / float64(m.Budget)
		return true, roi >= p.ROIMinPercent && roi <= p.ROIMaxPercent
	},
	MetricRatingReliability: func(m *model.MovieFacts, p *Policy) (bool, bool) {
		return m.Rating > 0, m.RatingCount >= p.MinReliableVotes
	},
}

func assessAccuracy(ds *model.Dataset, p *Policy, _ time.Time) DimensionScore {
	s := newScore(Accuracy)

	var weighted, weights float64
	for _, metric := range AccuracyMetrics {
		check := accuracyChecks[metric]
		applicable, passed := 0, 0
		for i := range ds.Movies {
			applies, ok := check(&ds.Movies[i], p)
			if !applies {
				continue
			}
			applicable++
			if ok {
				passed++
			}
		}
		if applicable == 0 {
			s.Detail[metric+"_no_data"] = 1
			continue
		}
		rate := percent(passed, applicable)
		s.Detail[metric] = rate
		w := p.AccuracyWeights[metric]
		weighted += w * rate
		weights += w
	}

	if weights == 0 {
		return noData(s)
	}
	s.Score = round2(weighted / weights)
	return s
}

func assessTimeliness(ds *model.Dataset, p *Policy, ref time.Time) DimensionScore {
	s := newScore(Timeliness)
	n := len(ds.Movies)
	refYear := ref.Year()

	var recent, dated, totalAge int
	for i := range ds.Movies {
		year, ok := ds.Movies[i].ReleaseYear()
		if !ok {
			continue
		}
		dated++
		totalAge += refYear - year
		if year >= refYear-p.RecentYears && year <= refYear {
			recent++
		}
	}

	s.Detail["recent_entities"] = float64(recent)
	s.Detail["dated_entities"] = float64(dated)
	if dated > 0 {
		s.Detail["average_age_years"] = round1(float64(totalAge) / float64(dated))
	}
	if n == 0 {
		return noData(s)
	}
	s.Score = percent(recent, n)
	return s
}

func assessIntegrity(ds *model.Dataset, p *Policy, _ time.Time) DimensionScore {
	s := newScore(Integrity)
	n := len(ds.Movies)

	passing, missingEdges := 0, 0
	coverage := make(map[model.TagKind]int, len(model.TagKinds))
	for i := range ds.Movies {
		m := &ds.Movies[i]
		missingEdges += m.MissingTagEdges
		for _, kind := range model.TagKinds {
			if m.TagCounts[kind] > 0 {
				coverage[kind]++
			}
		}
		if m.MissingTagEdges > 0 {
			continue
		}
		ok := true
		for _, kind := range p.RequiredTagKinds {
			if m.TagCounts[kind] == 0 {
				ok = false
				break
			}
		}
		if ok {
			passing++
		}
	}

	for _, kind := range model.TagKinds {
		s.Detail[string(kind)+"_coverage"] = percent(coverage[kind], n)
	}
	s.Detail["entities_passing"] = float64(passing)
	s.Detail["dangling_edges"] = float64(ds.DanglingEdges)
	s.Detail["missing_tag_edges"] = float64(missingEdges)
	s.Detail["duplicate_external_ids"] = float64(ds.DuplicateExternalIDs)

	if n == 0 {
		return noData(s)
	}
	s.Score = percent(passing, n)
	return s
}

func assessUniqueness(ds *model.Dataset, _ *Policy, _ time.Time) DimensionScore {
	s := newScore(Uniqueness)
	n := len(ds.Movies)

	groups := make(map[string]int, n)
	titles := make(map[string]int, n)
	for i := range ds.Movies {
		m := &ds.Movies[i].Movie
		groups[catalog.DuplicateKey(m)]++
		titles[catalog.Normalize(m.Title)]++
	}

	duplicates, duplicateGroups := 0, 0
	for _, count := range groups {
		if count > 1 {
			duplicates += count - 1
			duplicateGroups++
		}
	}
	titleOnly := 0
	for _, count := range titles {
		titleOnly += count - 1
	}

	s.Detail["duplicate_records"] = float64(duplicates)
	s.Detail["duplicate_groups"] = float64(duplicateGroups)
	s.Detail["title_only_duplicates"] = float64(titleOnly)

	if n == 0 {
		return noData(s)
	}
	s.Score = percent(n-duplicates, n)
	return s
}

func assessCompliance(ds *model.Dataset, p *Policy, ref time.Time) DimensionScore {
	s := newScore(Compliance)
	n := len(ds.Movies)
	horizon := ref.AddDate(-p.RetentionWindowYears, 0, 0)

	var traceable, retained, flagged int
	for i := range ds.Movies {
		m := &ds.Movies[i]
		if m.SourceRunID != 0 || m.SourceRef != "" {
			traceable++
		}
		// An unknown release date is not evidence of age.
		if m.ReleaseDate == nil || !m.ReleaseDate.Before(horizon) {
			retained++
		}
		if p.containsPersonalData(&m.Movie) {
			flagged++
		}
	}

	traceability := percent(traceable, n)
	retention := percent(retained, n)
	personal := percent(n-flagged, n)
	s.Detail["traceability"] = traceability
	s.Detail["retention"] = retention
	s.Detail["personal_data"] = personal
	s.Detail["personal_data_entities"] = float64(flagged)

	if n == 0 {
		return noData(s)
	}
	w := p.ComplianceWeights
	total := w.Traceability + w.Retention + w.PersonalData
	if total == 0 {
		w, total = ComplianceWeights{Traceability: 1, Retention: 1, PersonalData: 1}, 3
	}
	s.Score = round2((w.Traceability*traceability + w.Retention*retention + w.PersonalData*personal) / total)
	return s
}
