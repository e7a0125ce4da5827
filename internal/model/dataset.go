package model

// MovieFacts is a live movie together with the relational facts the
// assessors need about it.
type MovieFacts struct {
	Movie

	// TagCounts is the number of edges per kind that resolve to a tag row.
	TagCounts map[TagKind]int
	// Tags holds the stored names of the resolved tags per kind.
	Tags map[TagKind][]string
	// MissingTagEdges counts edges whose tag row does not exist.
	MissingTagEdges int
	// NonCanonicalTags counts resolved tags whose stored name is not in
	// canonical (normalized) form.
	NonCanonicalTags int
	// Traced is true when SourceRunID resolves to a recorded run.
	Traced bool
}

// HasTags reports whether the movie carries at least one resolved tag.
func (f *MovieFacts) HasTags() bool {
	for _, n := range f.TagCounts {
		if n > 0 {
			return true
		}
	}
	return false
}

// Dataset is a read-only, point-in-time view of the live store.
type Dataset struct {
	Movies []MovieFacts

	// DanglingEdges counts join rows whose movie no longer exists.
	DanglingEdges int
	// DuplicateExternalIDs counts live rows sharing an external id beyond
	// the first; the schema makes this zero.
	DuplicateExternalIDs int
	// Metadata holds the dataset-level catalog entries.
	Metadata map[string]string
}
