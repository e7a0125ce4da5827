package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filmgov/internal/model"
)

const sample = `budget,genres,homepage,id,keywords,original_language,original_title,overview,popularity,release_date,revenue,runtime,status,tagline,title,vote_average,vote_count
237000000,Action Adventure Fantasy,http://www.avatarmovie.com/,19995,culture clash future,en,Avatar,"In the 22nd century, a paraplegic Marine is dispatched to the moon Pandora.",150.437577,2009-12-10,2787965087,162,Released,Enter the World of Pandora.,Avatar,7.2,11800
0,,,"459488",,en,"Untitled ""Sequel""","Line one
line two",0,,0,,Rumored,,"Untitled ""Sequel""",0,0
`

func readAll(t *testing.T, s *CSVSource) []model.RawRecord {
	t.Helper()
	var out []model.RawRecord
	for {
		rec, err := s.Next(context.Background())
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		out = append(out, rec)
	}
}

func TestCSVSource_Read(t *testing.T) {
	s, err := NewCSVSource("movies.csv", strings.NewReader(sample))
	if err != nil {
		t.Fatalf("NewCSVSource() error = %v", err)
	}
	records := readAll(t, s)
	if len(records) != 2 {
		t.Fatalf("read %d records, want 2", len(records))
	}

	avatar := records[0]
	want := model.RawRecord{
		ExternalID:    "19995",
		Title:         "Avatar",
		OriginalTitle: "Avatar",
		Overview:      "In the 22nd century, a paraplegic Marine is dispatched to the moon Pandora.",
		ReleaseDate:   "2009-12-10",
		Budget:        "237000000",
		Revenue:       "2787965087",
		Runtime:       "162",
		Rating:        "7.2",
		RatingCount:   "11800",
		Popularity:    "150.437577",
		Language:      "en",
		Status:        "Released",
		Tagline:       "Enter the World of Pandora.",
		Homepage:      "http://www.avatarmovie.com/",
		Genres:        "Action Adventure Fantasy",
		Keywords:      "culture clash future",
		SourceRef:     "movies.csv:2",
	}
	if avatar != want {
		t.Errorf("record = %+v\nwant %+v", avatar, want)
	}

	sequel := records[1]
	if sequel.Title != `Untitled "Sequel"` {
		t.Errorf("Title = %q", sequel.Title)
	}
	if sequel.Overview != "Line one\nline two" {
		t.Errorf("Overview = %q", sequel.Overview)
	}
	if sequel.SourceRef != "movies.csv:3" {
		t.Errorf("SourceRef = %q, want movies.csv:3", sequel.SourceRef)
	}
	if sequel.Runtime != "" || sequel.ReleaseDate != "" {
		t.Errorf("empty cells should stay empty: %+v", sequel)
	}
}

func TestCSVSource_LineNumbersAfterMultilineField(t *testing.T) {
	data := "id,title,overview\n1,A,\"one\ntwo\nthree\"\n2,B,plain\n"
	s, err := NewCSVSource("m.csv", strings.NewReader(data))
	if err != nil {
		t.Fatalf("NewCSVSource() error = %v", err)
	}
	records := readAll(t, s)
	if len(records) != 2 {
		t.Fatalf("read %d records, want 2", len(records))
	}
	if records[1].SourceRef != "m.csv:5" {
		t.Errorf("SourceRef = %q, want m.csv:5", records[1].SourceRef)
	}
}

func TestCSVSource_RaggedRows(t *testing.T) {
	data := "id,title,runtime\n1,Short\n2,Long,90,extra,cells\n"
	s, err := NewCSVSource("m.csv", strings.NewReader(data))
	if err != nil {
		t.Fatalf("NewCSVSource() error = %v", err)
	}
	records := readAll(t, s)
	if len(records) != 2 {
		t.Fatalf("read %d records, want 2", len(records))
	}
	if records[0].Runtime != "" || records[1].Runtime != "90" {
		t.Errorf("Runtime = %q, %q", records[0].Runtime, records[1].Runtime)
	}
}

func TestCSVSource_Header(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"minimal", "id,title\n", false},
		{"byte order mark and case", "\ufeffID, Title ,Unknown\n", false},
		{"missing id", "title,overview\n", true},
		{"missing title", "id,overview\n", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVSource("m.csv", strings.NewReader(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewCSVSource() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrMissingColumn) {
				t.Errorf("error = %v, want ErrMissingColumn", err)
			}
		})
	}
}

func TestCSVSource_Malformed(t *testing.T) {
	s, err := NewCSVSource("m.csv", strings.NewReader("id,title\n1,\"unterminated\n"))
	if err != nil {
		t.Fatalf("NewCSVSource() error = %v", err)
	}
	if _, err := s.Next(context.Background()); err == nil || err == io.EOF {
		t.Errorf("Next() error = %v, want parse error", err)
	}
}

func TestCSVSource_Cancelled(t *testing.T) {
	s, err := NewCSVSource("m.csv", strings.NewReader(sample))
	if err != nil {
		t.Fatalf("NewCSVSource() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next() error = %v, want context.Canceled", err)
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmdb_5000_movies.csv")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if s.Name() != "tmdb_5000_movies.csv" {
		t.Errorf("Name() = %q", s.Name())
	}
	records := readAll(t, s)
	if len(records) != 2 || records[0].SourceRef != "tmdb_5000_movies.csv:2" {
		t.Errorf("records = %+v", records)
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("Open() of a missing file should fail")
	}
}
