package model

import "time"

// DateLayout is the storage and snapshot format for release dates.
const DateLayout = "2006-01-02"

// Movie is the primary catalogued entity.
type Movie struct {
	ID            int64  // Surrogate key assigned by the store
	ExternalID    string // Stable id from the source catalog, unique among live movies
	Title         string
	OriginalTitle string
	Overview      string
	ReleaseDate   *time.Time // nil when unknown
	Budget        int64
	Revenue       int64
	Runtime       float64 // minutes
	Rating        float64 // 0..10
	RatingCount   int64
	Popularity    float64
	Language      string
	Status        string
	Tagline       string
	Homepage      string
	SourceRunID   int64  // Run that last wrote this row, 0 when unknown
	SourceRef     string // e.g. "movies.csv:42"
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReleaseYear returns the release year and whether it is known.
func (m *Movie) ReleaseYear() (int, bool) {
	if m.ReleaseDate == nil {
		return 0, false
	}
	return m.ReleaseDate.Year(), true
}

// Values returns the audited field set of the movie keyed by column name.
// Bookkeeping columns (id, timestamps) are excluded.
func (m *Movie) Values() Values {
	var date any
	if m.ReleaseDate != nil {
		date = m.ReleaseDate.Format(DateLayout)
	}
	return Values{
		"external_id":       m.ExternalID,
		"title":             m.Title,
		"original_title":    m.OriginalTitle,
		"overview":          m.Overview,
		"release_date":      date,
		"budget":            m.Budget,
		"revenue":           m.Revenue,
		"runtime":           m.Runtime,
		"vote_average":      m.Rating,
		"vote_count":        m.RatingCount,
		"popularity":        m.Popularity,
		"original_language": m.Language,
		"status":            m.Status,
		"tagline":           m.Tagline,
		"homepage":          m.Homepage,
		"source_ref":        m.SourceRef,
	}
}

// Values is a point-in-time field snapshot used by audit entries.
type Values map[string]any

// ChangedValues returns the entries of next whose value differs from prior.
func ChangedValues(prior, next Values) Values {
	out := Values{}
	for k, v := range next {
		if pv, ok := prior[k]; !ok || pv != v {
			out[k] = v
		}
	}
	return out
}
