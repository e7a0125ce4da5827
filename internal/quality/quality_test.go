package quality

import (
	"context"
	"fmt"
	"testing"
	"time"

	"filmgov/internal/config"
	"filmgov/internal/model"
)

var refDate = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func date(year, month, day int) *time.Time {
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &d
}

// facts returns a movie that passes every check under the default policy at
// refDate.
func facts(i int) model.MovieFacts {
	return model.MovieFacts{
		Movie: model.Movie{
			ID:          int64(i + 1),
			ExternalID:  fmt.Sprintf("%d", 1000+i),
			Title:       fmt.Sprintf("Movie %d", i),
			Overview:    "Two rivals meet on a train.",
			ReleaseDate: date(2020, 6, 1),
			Budget:      1_000_000,
			Revenue:     3_000_000,
			Runtime:     120,
			Rating:      7,
			RatingCount: 100,
			Language:    "en",
			Status:      "Released",
			SourceRunID: 1,
			SourceRef:   fmt.Sprintf("movies.csv:%d", i+2),
		},
		TagCounts: map[model.TagKind]int{model.TagGenre: 1, model.TagKeyword: 2},
		Traced:    true,
	}
}

func dataset(n int, mods ...func(i int, f *model.MovieFacts)) *model.Dataset {
	ds := &model.Dataset{Metadata: map[string]string{}}
	for i := 0; i < n; i++ {
		f := facts(i)
		for _, mod := range mods {
			mod(i, &f)
		}
		ds.Movies = append(ds.Movies, f)
	}
	for _, field := range model.CatalogFields {
		ds.Metadata[field] = "x"
	}
	return ds
}

func TestAssess_CleanDataset(t *testing.T) {
	r, err := Assess(context.Background(), dataset(5), DefaultPolicy(), refDate)
	if err != nil {
		t.Fatalf("Assess() error = %v", err)
	}
	for _, name := range Dimensions {
		if got := r.Dimensions[name].Score; got != 100 {
			t.Errorf("%s = %v, want 100 (detail %v)", name, got, r.Dimensions[name].Detail)
		}
	}
	for _, name := range GovernanceAreas {
		if got := r.Governance[name].Score; got != 100 {
			t.Errorf("%s = %v, want 100 (detail %v)", name, got, r.Governance[name].Detail)
		}
	}
	if r.OverallQuality != 100 || r.Classification != Excellent {
		t.Errorf("overall = %v %s, want 100 Excellent", r.OverallQuality, r.Classification)
	}
	if len(r.Alerts) != 0 || len(r.Recommendations) != 0 {
		t.Errorf("alerts = %v, recommendations = %v, want none", r.Alerts, r.Recommendations)
	}
	if r.Entities != 5 || !r.ReferenceDate.Equal(refDate) {
		t.Errorf("Entities = %d, ReferenceDate = %v", r.Entities, r.ReferenceDate)
	}
}

func TestAssess_EmptyDataset(t *testing.T) {
	r, err := Assess(context.Background(), &model.Dataset{}, DefaultPolicy(), refDate)
	if err != nil {
		t.Fatalf("Assess() error = %v", err)
	}
	for _, name := range Dimensions {
		s, ok := r.Dimensions[name]
		if !ok {
			t.Errorf("dimension %s missing", name)
			continue
		}
		if s.Score != 0 || !s.NoData() {
			t.Errorf("%s = %v no_data=%v, want 0 with no_data", name, s.Score, s.NoData())
		}
	}
	for _, name := range GovernanceAreas {
		if _, ok := r.Governance[name]; !ok {
			t.Errorf("governance area %s missing", name)
		}
	}
	if !r.Governance[Lineage].NoData() || !r.Governance[Taxonomy].NoData() {
		t.Error("lineage and taxonomy should report no_data")
	}
	if r.OverallQuality != 0 || r.Classification != Critical {
		t.Errorf("overall = %v %s, want 0 Critical", r.OverallQuality, r.Classification)
	}
	if len(r.Alerts) != len(Dimensions) {
		t.Errorf("alerts = %d, want %d", len(r.Alerts), len(Dimensions))
	}
}

func TestAssess_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Assess(ctx, dataset(3), DefaultPolicy(), refDate); err == nil {
		t.Error("Assess() with cancelled context should fail")
	}
}

func TestCompleteness(t *testing.T) {
	t.Run("revenue fill rate", func(t *testing.T) {
		ds := dataset(10, func(i int, f *model.MovieFacts) {
			if i < 3 {
				f.Revenue = 0
			}
		})
		s := assessCompleteness(ds, DefaultPolicy(), refDate)
		if got := s.Detail["revenue"]; got != 70.0 {
			t.Errorf("revenue = %v, want 70.0", got)
		}
		if got := s.Detail["budget"]; got != 100 {
			t.Errorf("budget = %v, want 100", got)
		}
		if got := s.Score; got != 97 {
			t.Errorf("Score = %v, want 97", got)
		}
	})

	t.Run("tag kinds", func(t *testing.T) {
		ds := dataset(4, func(i int, f *model.MovieFacts) {
			if i == 0 {
				f.TagCounts = nil
			}
		})
		s := assessCompleteness(ds, DefaultPolicy(), refDate)
		if s.Detail["genres"] != 75 || s.Detail["keywords"] != 75 {
			t.Errorf("genres/keywords = %v/%v, want 75/75", s.Detail["genres"], s.Detail["keywords"])
		}
	})

	t.Run("filling a field never lowers the score", func(t *testing.T) {
		ds := dataset(6, func(i int, f *model.MovieFacts) {
			f.Overview = ""
			f.Language = ""
			f.ReleaseDate = nil
		})
		prev := assessCompleteness(ds, DefaultPolicy(), refDate).Score
		for i := range ds.Movies {
			ds.Movies[i].Overview = "filled"
			got := assessCompleteness(ds, DefaultPolicy(), refDate).Score
			if got < prev {
				t.Fatalf("score fell from %v to %v after filling overview %d", prev, got, i)
			}
			prev = got
		}
	})
}

func TestConsistency(t *testing.T) {
	t.Run("issues", func(t *testing.T) {
		ds := dataset(4, func(i int, f *model.MovieFacts) {
			switch i {
			case 0:
				f.Rating = 0
			case 1:
				f.ReleaseDate = date(2025, 3, 1)
			case 2:
				f.ReleaseDate = nil
			}
		})
		s := assessConsistency(ds, DefaultPolicy(), refDate)
		if s.Score != 25 {
			t.Errorf("Score = %v, want 25 (detail %v)", s.Score, s.Detail)
		}
		for _, key := range []string{"rating_count_without_rating", "future_release_date", "released_without_date"} {
			if s.Detail[key] != 1 {
				t.Errorf("%s = %v, want 1", key, s.Detail[key])
			}
		}
	})

	t.Run("loss", func(t *testing.T) {
		ds := dataset(2, func(i int, f *model.MovieFacts) {
			if i == 0 {
				f.Revenue = f.Budget / 2
			}
		})
		p := DefaultPolicy()
		s := assessConsistency(ds, p, refDate)
		if s.Score != 100 || s.Detail["revenue_below_budget"] != 1 {
			t.Errorf("default: Score = %v, loss = %v, want 100, 1", s.Score, s.Detail["revenue_below_budget"])
		}

		p.LossIsInconsistency = true
		if got := assessConsistency(ds, p, refDate).Score; got != 50 {
			t.Errorf("LossIsInconsistency: Score = %v, want 50", got)
		}
	})

	t.Run("empty", func(t *testing.T) {
		s := assessConsistency(&model.Dataset{}, DefaultPolicy(), refDate)
		if s.Score != 0 || !s.NoData() {
			t.Errorf("Score = %v, NoData = %v", s.Score, s.NoData())
		}
	})
}

func TestAccuracy(t *testing.T) {
	t.Run("runtime out of range", func(t *testing.T) {
		ds := dataset(2, func(i int, f *model.MovieFacts) {
			if i == 0 {
				f.Runtime = 1200
			}
		})
		s := assessAccuracy(ds, DefaultPolicy(), refDate)
		if s.Detail[MetricRuntime] != 50 {
			t.Errorf("runtime = %v, want 50", s.Detail[MetricRuntime])
		}
		if s.Score != 91.67 {
			t.Errorf("Score = %v, want 91.67", s.Score)
		}

		p := DefaultPolicy()
		p.AccuracyWeights[MetricRuntime] = 0
		if got := assessAccuracy(ds, p, refDate).Score; got != 100 {
			t.Errorf("Score with runtime weight 0 = %v, want 100", got)
		}
	})

	t.Run("metrics without applicable entities", func(t *testing.T) {
		ds := dataset(3, func(_ int, f *model.MovieFacts) {
			f.Budget = 0
			f.Revenue = 0
		})
		s := assessAccuracy(ds, DefaultPolicy(), refDate)
		for _, metric := range []string{MetricBudget, MetricRevenue, MetricROI} {
			if s.Detail[metric+"_no_data"] != 1 {
				t.Errorf("%s_no_data = %v, want 1", metric, s.Detail[metric+"_no_data"])
			}
			if _, ok := s.Detail[metric]; ok {
				t.Errorf("%s should not be reported", metric)
			}
		}
		if s.Score != 100 || s.NoData() {
			t.Errorf("Score = %v, NoData = %v, want 100 with data", s.Score, s.NoData())
		}
	})

	t.Run("roi bounds", func(t *testing.T) {
		ds := dataset(2, func(i int, f *model.MovieFacts) {
			if i == 0 {
				f.Budget = 1000
				f.Revenue = 1_000_000_000
			}
		})
		s := assessAccuracy(ds, DefaultPolicy(), refDate)
		if s.Detail[MetricROI] != 50 {
			t.Errorf("roi = %v, want 50", s.Detail[MetricROI])
		}
	})

	t.Run("unreliable ratings", func(t *testing.T) {
		ds := dataset(4, func(i int, f *model.MovieFacts) {
			if i == 0 {
				f.RatingCount = 3
			}
		})
		s := assessAccuracy(ds, DefaultPolicy(), refDate)
		if s.Detail[MetricRatingReliability] != 75 {
			t.Errorf("rating_reliability = %v, want 75", s.Detail[MetricRatingReliability])
		}
	})
}

func TestTimeliness(t *testing.T) {
	years := []int{2014, 2013, 2024, 0}
	ds := dataset(len(years), func(i int, f *model.MovieFacts) {
		if years[i] == 0 {
			f.ReleaseDate = nil
			return
		}
		f.ReleaseDate = date(years[i], 5, 1)
	})
	s := assessTimeliness(ds, DefaultPolicy(), refDate)
	if s.Score != 50 {
		t.Errorf("Score = %v, want 50 (detail %v)", s.Score, s.Detail)
	}
	if s.Detail["recent_entities"] != 2 || s.Detail["dated_entities"] != 3 {
		t.Errorf("recent/dated = %v/%v, want 2/3", s.Detail["recent_entities"], s.Detail["dated_entities"])
	}
	if s.Detail["average_age_years"] != 7 {
		t.Errorf("average_age_years = %v, want 7", s.Detail["average_age_years"])
	}
}

func TestIntegrity(t *testing.T) {
	ds := dataset(3, func(i int, f *model.MovieFacts) {
		switch i {
		case 0:
			f.TagCounts = map[model.TagKind]int{model.TagGenre: 1}
		case 1:
			f.MissingTagEdges = 1
		}
	})
	ds.DanglingEdges = 4

	s := assessIntegrity(ds, DefaultPolicy(), refDate)
	if s.Score != 33.33 {
		t.Errorf("Score = %v, want 33.33 (detail %v)", s.Score, s.Detail)
	}
	if s.Detail["dangling_edges"] != 4 || s.Detail["missing_tag_edges"] != 1 {
		t.Errorf("dangling/missing = %v/%v", s.Detail["dangling_edges"], s.Detail["missing_tag_edges"])
	}
	if s.Detail["keyword_coverage"] != 66.67 {
		t.Errorf("keyword_coverage = %v, want 66.67", s.Detail["keyword_coverage"])
	}

	p := DefaultPolicy()
	p.RequiredTagKinds = []model.TagKind{model.TagGenre}
	if got := assessIntegrity(ds, p, refDate).Score; got != 66.67 {
		t.Errorf("Score with genre only = %v, want 66.67", got)
	}
}

func TestUniqueness(t *testing.T) {
	ds := dataset(4, func(i int, f *model.MovieFacts) {
		switch i {
		case 0, 1:
			f.Title = "Avatar"
			f.ReleaseDate = date(2009, 12, 10)
		case 2:
			f.Title = "Avatar"
			f.ReleaseDate = nil
		case 3:
			f.Title = "Titanic"
		}
	})
	s := assessUniqueness(ds, DefaultPolicy(), refDate)
	if s.Score != 75 {
		t.Errorf("Score = %v, want 75 (detail %v)", s.Score, s.Detail)
	}
	if s.Detail["duplicate_records"] != 1 || s.Detail["duplicate_groups"] != 1 {
		t.Errorf("duplicates = %v in %v groups", s.Detail["duplicate_records"], s.Detail["duplicate_groups"])
	}
	if s.Detail["title_only_duplicates"] != 2 {
		t.Errorf("title_only_duplicates = %v, want 2", s.Detail["title_only_duplicates"])
	}
}

func TestCompliance(t *testing.T) {
	ds := dataset(4, func(i int, f *model.MovieFacts) {
		switch i {
		case 0:
			f.SourceRunID, f.SourceRef = 0, ""
		case 1:
			f.SourceRunID, f.SourceRef = 0, ""
			f.ReleaseDate = date(1990, 1, 1)
		case 2:
			f.Overview = "Write to jane.doe@example.com for tickets."
		}
	})

	s := assessCompliance(ds, DefaultPolicy(), refDate)
	if s.Detail["traceability"] != 50 || s.Detail["retention"] != 75 || s.Detail["personal_data"] != 75 {
		t.Errorf("detail = %v", s.Detail)
	}
	if s.Score != 66.67 {
		t.Errorf("Score = %v, want 66.67", s.Score)
	}

	t.Run("weights", func(t *testing.T) {
		p := DefaultPolicy()
		p.ComplianceWeights = ComplianceWeights{Traceability: 1}
		if got := assessCompliance(ds, p, refDate).Score; got != 50 {
			t.Errorf("traceability only = %v, want 50", got)
		}
		p.ComplianceWeights = ComplianceWeights{}
		if got := assessCompliance(ds, p, refDate).Score; got != 66.67 {
			t.Errorf("zero weights = %v, want equal weighting 66.67", got)
		}
	})

	t.Run("allowed field", func(t *testing.T) {
		p := DefaultPolicy()
		p.PersonalDataAllowedFields = []string{"overview"}
		if got := assessCompliance(ds, p, refDate).Detail["personal_data"]; got != 100 {
			t.Errorf("personal_data = %v, want 100", got)
		}
	})
}

func TestContainsPersonalData(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name  string
		movie model.Movie
		want  bool
	}{
		{"clean", model.Movie{Title: "Heat", Overview: "A thief plans one last job."}, false},
		{"email", model.Movie{Homepage: "mailto:info@studio.example"}, true},
		{"keyword", model.Movie{Tagline: "Her Phone Number was the last clue."}, true},
		{"keyword inside word", model.Movie{Overview: "A microphone numbering system fails."}, false},
		{"cpf", model.Movie{Overview: "Documento CPF 123.456.789-00"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.containsPersonalData(&tt.movie); got != tt.want {
				t.Errorf("containsPersonalData() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContainsPersonalData_SymbolKeywords(t *testing.T) {
	cfg := config.DefaultAssessment()
	cfg.PersonalData.Keywords = []string{"+55", "@handle", "tel:"}
	p, err := PolicyFromConfig(cfg)
	if err != nil {
		t.Fatalf("PolicyFromConfig() error = %v", err)
	}
	tests := []struct {
		name  string
		movie model.Movie
		want  bool
	}{
		{"leading plus", model.Movie{Overview: "Call +55 11 5555-0000 for tickets."}, true},
		{"at sign", model.Movie{Tagline: "Follow @HANDLE for updates."}, true},
		{"trailing colon", model.Movie{Homepage: "tel:5550000"}, true},
		{"word boundary still applies", model.Movie{Overview: "A hotel: the last stop."}, false},
		{"absent", model.Movie{Overview: "Fifty-five minutes of silence."}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.containsPersonalData(&tt.movie); got != tt.want {
				t.Errorf("containsPersonalData() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGovernance(t *testing.T) {
	ds := dataset(4, func(i int, f *model.MovieFacts) {
		switch i {
		case 0:
			f.Traced = false
		case 1:
			f.TagCounts = nil
		case 2:
			f.NonCanonicalTags = 1
		}
	})
	delete(ds.Metadata, model.MetaOwner)
	delete(ds.Metadata, model.MetaLicense)

	if got := assessCatalog(ds, nil, refDate); got.Score != 71.43 || got.Detail[model.MetaOwner] != 0 {
		t.Errorf("catalog = %v (detail %v), want 71.43", got.Score, got.Detail)
	}
	if got := assessLineage(ds, nil, refDate).Score; got != 75 {
		t.Errorf("lineage = %v, want 75", got)
	}
	tax := assessTaxonomy(ds, nil, refDate)
	if tax.Score != 66.67 {
		t.Errorf("taxonomy = %v, want 66.67", tax.Score)
	}
	if tax.Detail["classified_percentage"] != 75 {
		t.Errorf("classified_percentage = %v, want 75", tax.Detail["classified_percentage"])
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		score float64
		want  Band
	}{
		{100, Excellent},
		{90, Excellent},
		{89.99, Good},
		{80.0, Good},
		{79.99, Regular},
		{70, Regular},
		{60, Poor},
		{59.99, Critical},
		{0, Critical},
	}
	for _, tt := range tests {
		if got := Classify(tt.score); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestAggregate(t *testing.T) {
	r := &Result{
		Dimensions: map[string]DimensionScore{},
		Governance: map[string]DimensionScore{},
	}
	scores := map[string]float64{
		Completeness: 50,
		Consistency:  79.99,
		Accuracy:     80,
		Timeliness:   100,
		Integrity:    100,
		Uniqueness:   85,
		Compliance:   60,
	}
	for name, score := range scores {
		r.Dimensions[name] = DimensionScore{Name: name, Score: score}
	}
	for _, name := range GovernanceAreas {
		r.Governance[name] = DimensionScore{Name: name, Score: 90}
	}
	aggregate(r)

	// (50 + 79.99 + 80 + 100 + 100 + 85 + 60) / 7
	if r.OverallQuality != 79.28 || r.Classification != Regular {
		t.Errorf("overall = %v %s, want 79.28 Regular", r.OverallQuality, r.Classification)
	}
	if r.OverallGovernance != 90 || r.GovernanceClassification != Excellent {
		t.Errorf("governance = %v %s", r.OverallGovernance, r.GovernanceClassification)
	}

	wantAlerts := []Alert{
		{Level: AlertCritical, Dimension: Completeness, Score: 50},
		{Level: AlertAttention, Dimension: Consistency, Score: 79.99},
		{Level: AlertAttention, Dimension: Compliance, Score: 60},
	}
	if len(r.Alerts) != len(wantAlerts) {
		t.Fatalf("alerts = %v, want %v", r.Alerts, wantAlerts)
	}
	for i, want := range wantAlerts {
		if r.Alerts[i] != want {
			t.Errorf("alert[%d] = %v, want %v", i, r.Alerts[i], want)
		}
	}

	wantRecs := []Recommendation{
		{Area: Completeness, Priority: PriorityHigh, Score: 50},
		{Area: Consistency, Priority: PriorityHigh, Score: 79.99},
		{Area: Uniqueness, Priority: PriorityMedium, Score: 85},
		{Area: Compliance, Priority: PriorityHigh, Score: 60},
	}
	if len(r.Recommendations) != len(wantRecs) {
		t.Fatalf("recommendations = %v, want %v", r.Recommendations, wantRecs)
	}
	for i, want := range wantRecs {
		if r.Recommendations[i] != want {
			t.Errorf("recommendation[%d] = %v, want %v", i, r.Recommendations[i], want)
		}
	}
}

func TestAggregate_ExactlyEighty(t *testing.T) {
	r := &Result{Dimensions: map[string]DimensionScore{}, Governance: map[string]DimensionScore{}}
	for _, name := range Dimensions {
		r.Dimensions[name] = DimensionScore{Name: name, Score: 80}
	}
	aggregate(r)
	if r.OverallQuality != 80 || r.Classification != Good {
		t.Errorf("overall = %v %s, want 80 Good", r.OverallQuality, r.Classification)
	}
	if len(r.Alerts) != 0 {
		t.Errorf("alerts = %v, want none at 80", r.Alerts)
	}
}

func TestPolicyFromConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p, err := PolicyFromConfig(config.DefaultAssessment())
		if err != nil {
			t.Fatalf("PolicyFromConfig() error = %v", err)
		}
		for _, metric := range AccuracyMetrics {
			if p.AccuracyWeights[metric] != 1 {
				t.Errorf("weight %s = %v, want 1", metric, p.AccuracyWeights[metric])
			}
		}
		if len(p.RequiredTagKinds) != 2 {
			t.Errorf("RequiredTagKinds = %v", p.RequiredTagKinds)
		}
	})

	t.Run("zero compliance weights", func(t *testing.T) {
		cfg := config.DefaultAssessment()
		cfg.ComplianceWeights = config.ComplianceWeights{}
		p, err := PolicyFromConfig(cfg)
		if err != nil {
			t.Fatalf("PolicyFromConfig() error = %v", err)
		}
		want := ComplianceWeights{Traceability: 1, Retention: 1, PersonalData: 1}
		if p.ComplianceWeights != want {
			t.Errorf("ComplianceWeights = %+v, want %+v", p.ComplianceWeights, want)
		}
	})

	invalid := []struct {
		name string
		mod  func(*config.AssessmentConfig)
	}{
		{"unknown tag kind", func(c *config.AssessmentConfig) { c.RequiredTagKinds = []string{"mood"} }},
		{"unknown metric", func(c *config.AssessmentConfig) { c.AccuracyWeights = map[string]float64{"popularity": 1} }},
		{"negative accuracy weight", func(c *config.AssessmentConfig) { c.AccuracyWeights = map[string]float64{MetricROI: -1} }},
		{"negative compliance weight", func(c *config.AssessmentConfig) { c.ComplianceWeights.Retention = -0.5 }},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultAssessment()
			tt.mod(&cfg)
			if _, err := PolicyFromConfig(cfg); err == nil {
				t.Error("PolicyFromConfig() should fail")
			}
		})
	}
}
