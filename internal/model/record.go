package model

import "fmt"

// RawRecord is one source row before coercion. Every field holds the raw
// text from the source; an empty string means the field was absent.
type RawRecord struct {
	ExternalID    string
	Title         string
	OriginalTitle string
	Overview      string
	ReleaseDate   string
	Budget        string
	Revenue       string
	Runtime       string
	Rating        string
	RatingCount   string
	Popularity    string
	Language      string
	Status        string
	Tagline       string
	Homepage      string
	Genres        string
	Keywords      string

	SourceRef string // where the row came from, e.g. "movies.csv:42"
}

// IssueKind classifies a record-level validation problem.
type IssueKind string

const (
	// MissingRequiredField rejects the record; it is skipped, not inserted.
	MissingRequiredField IssueKind = "MissingRequiredField"
	// CoercedInvalidValue accepts the record with a default in place of the value.
	CoercedInvalidValue IssueKind = "CoercedInvalidValue"
)

// ValidationIssue describes one record-level problem found during normalization.
type ValidationIssue struct {
	Kind      IssueKind
	Field     string
	Value     string
	SourceRef string
	Message   string
}

func (i ValidationIssue) String() string {
	if i.Value == "" {
		return fmt.Sprintf("%s %s: %s", i.Kind, i.Field, i.Message)
	}
	return fmt.Sprintf("%s %s=%q: %s", i.Kind, i.Field, i.Value, i.Message)
}

// Rejects reports whether the issue causes the record to be skipped.
func (i ValidationIssue) Rejects() bool {
	return i.Kind == MissingRequiredField
}
