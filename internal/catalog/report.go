package catalog

import (
	"cmp"
	"context"
	"math"
	"slices"

	"filmgov/internal/model"
)

// ReportOptions bounds the ranked sections of a Report.
type ReportOptions struct {
	TopRevenue  int
	TopROI      int
	TopKeywords int
	// ROIMinBudget excludes micro budgets, whose ROI dwarfs everything else.
	ROIMinBudget int64
}

// DefaultReportOptions returns the limits used by the report command.
func DefaultReportOptions() ReportOptions {
	return ReportOptions{
		TopRevenue:   10,
		TopROI:       10,
		TopKeywords:  15,
		ROIMinBudget: 1_000_000,
	}
}

// Report is the analytical summary of the live store. Averages skip zero
// values, which stand for unknown.
type Report struct {
	General    GeneralStats `json:"general"`
	TopRevenue []RevenueRow `json:"top_revenue"`
	TopROI     []ROIRow     `json:"top_roi"`
	ROIBands   []ROIBand    `json:"roi_bands"`
	Genres     []TagStats   `json:"genres"`
	Keywords   []TagStats   `json:"keywords"`
	Decades    []DecadeRow  `json:"decades"`
}

type GeneralStats struct {
	Movies     int     `json:"movies"`
	AvgBudget  float64 `json:"avg_budget"`
	AvgRevenue float64 `json:"avg_revenue"`
	AvgRating  float64 `json:"avg_rating"`
	AvgRuntime float64 `json:"avg_runtime"`
	// LossMaking counts movies with a known budget and revenue where
	// revenue is below budget.
	LossMaking int `json:"loss_making"`
}

type RevenueRow struct {
	ExternalID string `json:"external_id"`
	Title      string `json:"title"`
	Revenue    int64  `json:"revenue"`
	Budget     int64  `json:"budget"`
	Profit     int64  `json:"profit"`
}

type ROIRow struct {
	ExternalID string  `json:"external_id"`
	Title      string  `json:"title"`
	Budget     int64   `json:"budget"`
	Revenue    int64   `json:"revenue"`
	ROIPercent float64 `json:"roi_percent"`
}

// ROIBand counts movies whose ROI percentage falls in [Min, Max). A nil
// bound is open.
type ROIBand struct {
	Label  string   `json:"label"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Movies int      `json:"movies"`
}

// TagStats aggregates the rated movies carrying one tag.
type TagStats struct {
	Name       string  `json:"name"`
	Movies     int     `json:"movies"`
	AvgRating  float64 `json:"avg_rating"`
	AvgRevenue float64 `json:"avg_revenue"`
	AvgBudget  float64 `json:"avg_budget"`
}

type DecadeRow struct {
	Decade     int     `json:"decade"`
	Movies     int     `json:"movies"`
	AvgBudget  float64 `json:"avg_budget"`
	AvgRevenue float64 `json:"avg_revenue"`
	AvgRating  float64 `json:"avg_rating"`
}

// Report computes the analytical summary over a snapshot of the live store.
func (s *Service) Report(ctx context.Context, opts ReportOptions) (*Report, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return BuildReport(ds, opts), nil
}

// BuildReport computes the report from ds. It does not modify ds.
func BuildReport(ds *model.Dataset, opts ReportOptions) *Report {
	r := &Report{
		General:    generalStats(ds),
		TopRevenue: topRevenue(ds, opts.TopRevenue),
		Genres:     tagStats(ds, model.TagGenre, 0),
		Keywords:   tagStats(ds, model.TagKeyword, opts.TopKeywords),
		Decades:    decades(ds),
	}
	r.TopROI, r.ROIBands = roi(ds, opts)
	return r
}

// average accumulates positive values only.
type average struct {
	sum float64
	n   int
}

func (a *average) add(v float64) {
	if v > 0 {
		a.sum += v
		a.n++
	}
}

func (a *average) value() float64 {
	if a.n == 0 {
		return 0
	}
	return round2(a.sum / float64(a.n))
}

func generalStats(ds *model.Dataset) GeneralStats {
	var budget, revenue, rating, runtime average
	g := GeneralStats{Movies: len(ds.Movies)}
	for i := range ds.Movies {
		m := &ds.Movies[i].Movie
		budget.add(float64(m.Budget))
		revenue.add(float64(m.Revenue))
		rating.add(m.Rating)
		runtime.add(m.Runtime)
		if m.Budget > 0 && m.Revenue > 0 && m.Revenue < m.Budget {
			g.LossMaking++
		}
	}
	g.AvgBudget = budget.value()
	g.AvgRevenue = revenue.value()
	g.AvgRating = rating.value()
	g.AvgRuntime = runtime.value()
	return g
}

func topRevenue(ds *model.Dataset, limit int) []RevenueRow {
	rows := []RevenueRow{}
	for i := range ds.Movies {
		m := &ds.Movies[i].Movie
		if m.Revenue <= 0 {
			continue
		}
		rows = append(rows, RevenueRow{
			ExternalID: m.ExternalID,
			Title:      m.Title,
			Revenue:    m.Revenue,
			Budget:     m.Budget,
			Profit:     m.Revenue - m.Budget,
		})
	}
	slices.SortStableFunc(rows, func(a, b RevenueRow) int { return cmp.Compare(b.Revenue, a.Revenue) })
	return truncate(rows, limit)
}

var roiBands = []struct {
	label    string
	min, max float64
}{
	{"loss", math.Inf(-1), 0},
	{"0-100%", 0, 100},
	{"100-500%", 100, 500},
	{"500%+", 500, math.Inf(1)},
}

// roi ranks profitable movies with a budget of at least opts.ROIMinBudget
// and bands every movie with a known budget and revenue.
func roi(ds *model.Dataset, opts ReportOptions) ([]ROIRow, []ROIBand) {
	bands := make([]ROIBand, len(roiBands))
	for i, b := range roiBands {
		bands[i] = ROIBand{Label: b.label, Min: finite(b.min), Max: finite(b.max)}
	}

	top := []ROIRow{}
	for i := range ds.Movies {
		m := &ds.Movies[i].Movie
		if m.Budget <= 0 || m.Revenue <= 0 {
			continue
		}
		pct := 100 * float64(m.Revenue-m.Budget) / float64(m.Budget)
		for j, b := range roiBands {
			if pct >= b.min && pct < b.max {
				bands[j].Movies++
				break
			}
		}
		if m.Budget >= opts.ROIMinBudget && m.Revenue > m.Budget {
			top = append(top, ROIRow{
				ExternalID: m.ExternalID,
				Title:      m.Title,
				Budget:     m.Budget,
				Revenue:    m.Revenue,
				ROIPercent: round2(pct),
			})
		}
	}
	slices.SortStableFunc(top, func(a, b ROIRow) int { return cmp.Compare(b.ROIPercent, a.ROIPercent) })
	return truncate(top, opts.TopROI), bands
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// tagStats groups rated movies by tag name, most common first. limit <= 0
// keeps every tag.
func tagStats(ds *model.Dataset, kind model.TagKind, limit int) []TagStats {
	type acc struct {
		movies                  int
		rating, revenue, budget average
	}
	byName := make(map[string]*acc)
	for i := range ds.Movies {
		f := &ds.Movies[i]
		if f.Rating <= 0 {
			continue
		}
		for _, name := range slices.Compact(slices.Sorted(slices.Values(f.Tags[kind]))) {
			a := byName[name]
			if a == nil {
				a = &acc{}
				byName[name] = a
			}
			a.movies++
			a.rating.add(f.Rating)
			a.revenue.add(float64(f.Revenue))
			a.budget.add(float64(f.Budget))
		}
	}

	out := make([]TagStats, 0, len(byName))
	for name, a := range byName {
		out = append(out, TagStats{
			Name:       name,
			Movies:     a.movies,
			AvgRating:  a.rating.value(),
			AvgRevenue: a.revenue.value(),
			AvgBudget:  a.budget.value(),
		})
	}
	slices.SortFunc(out, func(a, b TagStats) int {
		if c := cmp.Compare(b.Movies, a.Movies); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return truncate(out, limit)
}

// decades groups dated movies by release decade, oldest first.
func decades(ds *model.Dataset) []DecadeRow {
	type acc struct {
		movies                  int
		budget, revenue, rating average
	}
	byDecade := make(map[int]*acc)
	for i := range ds.Movies {
		m := &ds.Movies[i].Movie
		year, ok := m.ReleaseYear()
		if !ok {
			continue
		}
		d := year - year%10
		a := byDecade[d]
		if a == nil {
			a = &acc{}
			byDecade[d] = a
		}
		a.movies++
		a.budget.add(float64(m.Budget))
		a.revenue.add(float64(m.Revenue))
		a.rating.add(m.Rating)
	}

	out := make([]DecadeRow, 0, len(byDecade))
	for d, a := range byDecade {
		out = append(out, DecadeRow{
			Decade:     d,
			Movies:     a.movies,
			AvgBudget:  a.budget.value(),
			AvgRevenue: a.revenue.value(),
			AvgRating:  a.rating.value(),
		})
	}
	slices.SortFunc(out, func(a, b DecadeRow) int { return cmp.Compare(a.Decade, b.Decade) })
	return out
}

func truncate[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
