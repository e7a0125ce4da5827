package catalog

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"filmgov/internal/model"
)

// MaxRating is the top of the rating scale.
const MaxRating = 10

// defaultDateLayouts are tried, in order, before any configured layouts.
var defaultDateLayouts = []string{
	model.DateLayout,
	time.RFC3339,
	"2006/01/02",
	"02/01/2006",
	"2006-01-02 15:04:05",
}

// CoerceOptions controls how raw text is turned into typed values.
type CoerceOptions struct {
	GenreDelimiter   string   // empty splits on whitespace
	KeywordDelimiter string   // empty splits on whitespace
	DateLayouts      []string // tried after the default layouts
}

// Coerced is a raw record after typing and cleanup, before it touches the store.
type Coerced struct {
	Movie  *model.Movie // nil when the record is rejected
	Tags   map[model.TagKind][]string
	Issues []model.ValidationIssue
}

// Rejected reports whether any issue causes the record to be skipped.
func (c *Coerced) Rejected() bool {
	for _, issue := range c.Issues {
		if issue.Rejects() {
			return true
		}
	}
	return false
}

// Coerce validates and types one raw record. It never fails: problems are
// returned as issues, and a record with a rejecting issue has a nil Movie.
func Coerce(rec model.RawRecord, opts CoerceOptions) *Coerced {
	c := &coercer{ref: rec.SourceRef}
	m := &model.Movie{
		ExternalID:    strings.TrimSpace(rec.ExternalID),
		Title:         CleanText(rec.Title),
		OriginalTitle: CleanText(rec.OriginalTitle),
		Overview:      CleanText(rec.Overview),
		Tagline:       CleanText(rec.Tagline),
		Language:      strings.TrimSpace(rec.Language),
		Status:        strings.TrimSpace(rec.Status),
		Homepage:      strings.TrimSpace(rec.Homepage),
		SourceRef:     rec.SourceRef,
	}

	if m.ExternalID == "" {
		c.missing("external_id")
	}
	if m.Title == "" {
		c.missing("title")
	}

	m.Budget = c.count("budget", rec.Budget)
	m.Revenue = c.count("revenue", rec.Revenue)
	m.RatingCount = c.count("vote_count", rec.RatingCount)
	m.Runtime = c.real("runtime", rec.Runtime)
	m.Popularity = c.real("popularity", rec.Popularity)
	m.Rating = c.real("vote_average", rec.Rating)
	if m.Rating > MaxRating {
		c.coerced("vote_average", rec.Rating, "rating above 10, clamped")
		m.Rating = MaxRating
	}
	m.ReleaseDate = c.date("release_date", rec.ReleaseDate, opts.DateLayouts)

	out := &Coerced{
		Tags: map[model.TagKind][]string{
			model.TagGenre:   SplitTags(rec.Genres, opts.GenreDelimiter),
			model.TagKeyword: SplitTags(rec.Keywords, opts.KeywordDelimiter),
		},
		Issues: c.issues,
	}
	if !out.Rejected() {
		out.Movie = m
	}
	return out
}

type coercer struct {
	ref    string
	issues []model.ValidationIssue
}

func (c *coercer) missing(field string) {
	c.issues = append(c.issues, model.ValidationIssue{
		Kind:      model.MissingRequiredField,
		Field:     field,
		SourceRef: c.ref,
		Message:   "required field is empty",
	})
}

func (c *coercer) coerced(field, value, msg string) {
	c.issues = append(c.issues, model.ValidationIssue{
		Kind:      model.CoercedInvalidValue,
		Field:     field,
		Value:     value,
		SourceRef: c.ref,
		Message:   msg,
	})
}

// maxCount is 2^63, the first float64 that does not fit in an int64.
const maxCount = 0x1p63

// count parses a non-negative integer. Integral decimals such as "1500.0"
// are accepted since spreadsheet exports commonly produce them.
func (c *coercer) count(field, raw string) int64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			c.coerced(field, raw, "negative value, defaulted to 0")
			return 0
		}
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f >= maxCount {
		c.coerced(field, raw, "not an integer in range, defaulted to 0")
		return 0
	}
	if f < 0 {
		c.coerced(field, raw, "negative value, defaulted to 0")
		return 0
	}
	return int64(f)
}

func (c *coercer) real(field, raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		c.coerced(field, raw, "not a number, defaulted to 0")
		return 0
	}
	if f < 0 {
		c.coerced(field, raw, "negative value, defaulted to 0")
		return 0
	}
	return f
}

func (c *coercer) date(field, raw string, extra []string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	t, ok := ParseDate(s, extra)
	if !ok {
		c.coerced(field, raw, "unparsable date, set to null")
		return nil
	}
	return &t
}

// ParseDate parses s with the default layouts followed by extra. The result
// is truncated to the calendar day in UTC.
func ParseDate(s string, extra []string) (time.Time, bool) {
	layouts := defaultDateLayouts
	if len(extra) > 0 {
		layouts = append(append([]string(nil), defaultDateLayouts...), extra...)
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// CleanText collapses internal whitespace runs to one space and trims.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SplitTags splits a multi-valued field into its raw tag names. A JSON array
// of strings or of objects with a "name" member is decoded as such; anything
// else is split on delim, or on whitespace when delim is empty. Blank entries
// are dropped.
func SplitTags(raw, delim string) []string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "[") {
		if names, ok := decodeTagArray(s); ok {
			return names
		}
	}

	var parts []string
	if delim == "" {
		parts = strings.Fields(s)
	} else {
		parts = strings.Split(s, delim)
	}
	names := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

func decodeTagArray(s string) ([]string, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, false
	}
	var names []string
	for _, item := range items {
		var name string
		if err := json.Unmarshal(item, &name); err != nil {
			var obj struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(item, &obj); err != nil {
				return nil, false
			}
			name = obj.Name
		}
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names, true
}
