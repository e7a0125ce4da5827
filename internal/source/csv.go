// Package source reads raw movie records from catalog exports.
package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filmgov/internal/model"
)

// Column names of the TMDB movie export. Only id and title are required in
// the header; any other column may be absent.
const (
	ColumnID            = "id"
	ColumnTitle         = "title"
	ColumnOriginalTitle = "original_title"
	ColumnOverview      = "overview"
	ColumnReleaseDate   = "release_date"
	ColumnBudget        = "budget"
	ColumnRevenue       = "revenue"
	ColumnRuntime       = "runtime"
	ColumnRating        = "vote_average"
	ColumnRatingCount   = "vote_count"
	ColumnPopularity    = "popularity"
	ColumnLanguage      = "original_language"
	ColumnStatus        = "status"
	ColumnTagline       = "tagline"
	ColumnHomepage      = "homepage"
	ColumnGenres        = "genres"
	ColumnKeywords      = "keywords"
)

var requiredColumns = []string{ColumnID, ColumnTitle}

// fieldSetters maps a header name to the RawRecord field it fills.
var fieldSetters = map[string]func(r *model.RawRecord, v string){
	ColumnID:            func(r *model.RawRecord, v string) { r.ExternalID = v },
	ColumnTitle:         func(r *model.RawRecord, v string) { r.Title = v },
	ColumnOriginalTitle: func(r *model.RawRecord, v string) { r.OriginalTitle = v },
	ColumnOverview:      func(r *model.RawRecord, v string) { r.Overview = v },
	ColumnReleaseDate:   func(r *model.RawRecord, v string) { r.ReleaseDate = v },
	ColumnBudget:        func(r *model.RawRecord, v string) { r.Budget = v },
	ColumnRevenue:       func(r *model.RawRecord, v string) { r.Revenue = v },
	ColumnRuntime:       func(r *model.RawRecord, v string) { r.Runtime = v },
	ColumnRating:        func(r *model.RawRecord, v string) { r.Rating = v },
	ColumnRatingCount:   func(r *model.RawRecord, v string) { r.RatingCount = v },
	ColumnPopularity:    func(r *model.RawRecord, v string) { r.Popularity = v },
	ColumnLanguage:      func(r *model.RawRecord, v string) { r.Language = v },
	ColumnStatus:        func(r *model.RawRecord, v string) { r.Status = v },
	ColumnTagline:       func(r *model.RawRecord, v string) { r.Tagline = v },
	ColumnHomepage:      func(r *model.RawRecord, v string) { r.Homepage = v },
	ColumnGenres:        func(r *model.RawRecord, v string) { r.Genres = v },
	ColumnKeywords:      func(r *model.RawRecord, v string) { r.Keywords = v },
}

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// CSVSource reads RawRecords from a CSV export with a header row. It
// implements catalog.RecordSource.
type CSVSource struct {
	name    string
	reader  *csv.Reader
	closer  io.Closer
	columns []func(r *model.RawRecord, v string)
}

// Open opens the CSV file at path. The caller must Close the source.
func Open(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	s, err := NewCSVSource(filepath.Base(path), f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.closer = f
	return s, nil
}

// NewCSVSource reads the header row from r. name prefixes every record's
// SourceRef.
func NewCSVSource(name string, r io.Reader) (*CSVSource, error) {
	reader := csv.NewReader(r)
	// Short and long rows are tolerated; unknown trailing cells are dropped
	// and missing ones read as empty.
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty source: %w", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	s := &CSVSource{name: name, reader: reader, columns: make([]func(*model.RawRecord, string), len(header))}
	seen := make(map[string]bool, len(header))
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		if setter, ok := fieldSetters[col]; ok && !seen[col] {
			s.columns[i] = setter
			seen[col] = true
		}
	}
	for _, col := range requiredColumns {
		if !seen[col] {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, col)
		}
	}
	return s, nil
}

// Next returns the next record, or io.EOF after the last one. Malformed CSV
// (for example an unterminated quote) is returned as an error; it is not a
// record-level issue.
func (s *CSVSource) Next(ctx context.Context) (model.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.RawRecord{}, err
	}
	row, err := s.reader.Read()
	if err == io.EOF {
		return model.RawRecord{}, io.EOF
	}
	if err != nil {
		return model.RawRecord{}, fmt.Errorf("%s: %w", s.name, err)
	}

	line, _ := s.reader.FieldPos(0)
	rec := model.RawRecord{SourceRef: fmt.Sprintf("%s:%d", s.name, line)}
	for i, v := range row {
		if i >= len(s.columns) || s.columns[i] == nil {
			continue
		}
		s.columns[i](&rec, v)
	}
	return rec, nil
}

// Name returns the file name the records come from.
func (s *CSVSource) Name() string { return s.name }

// Close releases the underlying file, if any.
func (s *CSVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
