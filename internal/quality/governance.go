package quality

import (
	"time"

	"filmgov/internal/model"
)

// assessCatalog measures how many descriptive dataset fields are populated.
func assessCatalog(ds *model.Dataset, _ *Policy, _ time.Time) DimensionScore {
	s := newScore(Catalog)

	populated := 0
	for _, field := range model.CatalogFields {
		if ds.Metadata[field] != "" {
			populated++
			s.Detail[field] = 1
		} else {
			s.Detail[field] = 0
		}
	}
	s.Detail["fields_populated"] = float64(populated)
	s.Detail["fields_expected"] = float64(len(model.CatalogFields))
	s.Score = percent(populated, len(model.CatalogFields))
	return s
}

// assessLineage measures how many live movies trace back to a recorded run.
func assessLineage(ds *model.Dataset, _ *Policy, _ time.Time) DimensionScore {
	s := newScore(Lineage)
	n := len(ds.Movies)

	traced := 0
	for i := range ds.Movies {
		if ds.Movies[i].Traced {
			traced++
		}
	}
	s.Detail["traced_entities"] = float64(traced)
	if n == 0 {
		return noData(s)
	}
	s.Score = percent(traced, n)
	return s
}

// assessTaxonomy measures how many tagged movies carry only dictionary
// tags in canonical form. Anything below 100 points at a normalization
// defect rather than at the source data.
func assessTaxonomy(ds *model.Dataset, _ *Policy, _ time.Time) DimensionScore {
	s := newScore(Taxonomy)
	n := len(ds.Movies)

	tagged, canonical := 0, 0
	for i := range ds.Movies {
		m := &ds.Movies[i]
		if !m.HasTags() && m.MissingTagEdges == 0 {
			continue
		}
		tagged++
		if m.NonCanonicalTags == 0 && m.MissingTagEdges == 0 {
			canonical++
		}
	}
	s.Detail["tagged_entities"] = float64(tagged)
	s.Detail["canonical_entities"] = float64(canonical)
	s.Detail["classified_percentage"] = percent(tagged, n)
	if tagged == 0 {
		return noData(s)
	}
	s.Score = percent(canonical, tagged)
	return s
}
