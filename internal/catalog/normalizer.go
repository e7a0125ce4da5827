package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"filmgov/internal/model"
)

// Normalized is the outcome of normalizing one raw record.
type Normalized struct {
	Movie     *model.Movie // nil when skipped
	Edges     []model.TagEdge
	Issues    []model.ValidationIssue
	Operation model.AuditOperation // create or update; empty when skipped
}

// Skipped reports whether the record was rejected and nothing was written.
func (n *Normalized) Skipped() bool {
	return n.Movie == nil
}

// Normalizer turns raw records into movie rows and tag edges, upserting by
// external id.
type Normalizer struct {
	dict  *Dictionary
	audit *AuditRecorder
	clock Clock
	opts  CoerceOptions
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(dict *Dictionary, audit *AuditRecorder, clock Clock, opts CoerceOptions) *Normalizer {
	return &Normalizer{dict: dict, audit: audit, clock: clock, opts: opts}
}

// Normalize writes one record inside tx: the movie row, its audit entry and
// its tag edges. Rejected records return a result with Skipped() true and no
// writes. runID is stored as the movie's lineage.
//
// The caller owns the transaction and must Commit or Discard the dictionary
// once it knows whether tx committed.
func (n *Normalizer) Normalize(ctx context.Context, tx Tx, rec model.RawRecord, runID int64) (*Normalized, error) {
	coerced := Coerce(rec, n.opts)
	res := &Normalized{Issues: coerced.Issues}
	if coerced.Movie == nil {
		return res, nil
	}

	m := coerced.Movie
	m.SourceRunID = runID

	existing, err := tx.FindMovieByExternalID(ctx, m.ExternalID)
	if err != nil {
		return nil, storageError("finding movie by external id", err)
	}

	now := n.clock.Now()
	if existing == nil {
		if err := n.create(ctx, tx, m, now); err != nil {
			return nil, err
		}
		res.Operation = model.AuditCreate
	} else {
		if err := n.update(ctx, tx, existing, m, now); err != nil {
			return nil, err
		}
		res.Operation = model.AuditUpdate
	}

	edges, err := n.replaceTags(ctx, tx, m.ID, coerced.Tags)
	if err != nil {
		return nil, err
	}
	res.Movie = m
	res.Edges = edges
	return res, nil
}

func (n *Normalizer) create(ctx context.Context, tx Tx, m *model.Movie, now time.Time) error {
	m.CreatedAt = now
	m.UpdatedAt = now
	id, err := tx.InsertMovie(ctx, m)
	if errors.Is(err, ErrDuplicateExternalID) {
		// The lookup found nothing, yet the unique key matched a live row.
		return fmt.Errorf("%w: external id %q not found but insert conflicted", ErrNormalizationInvariant, m.ExternalID)
	}
	if err != nil {
		return storageError("inserting movie", err)
	}
	m.ID = id

	_, err = n.audit.Record(ctx, tx, StoreMovies, model.AuditCreate, id, nil, m.Values())
	return err
}

func (n *Normalizer) update(ctx context.Context, tx Tx, existing, m *model.Movie, now time.Time) error {
	if existing.ExternalID != m.ExternalID {
		return fmt.Errorf("%w: lookup for external id %q matched movie %d with external id %q",
			ErrNormalizationInvariant, m.ExternalID, existing.ID, existing.ExternalID)
	}
	m.ID = existing.ID
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = now
	if err := tx.UpdateMovie(ctx, m); err != nil {
		return storageError("updating movie", err)
	}

	prior := existing.Values()
	next := model.ChangedValues(prior, m.Values())
	if len(next) == 0 {
		next = prior
	}
	_, err := n.audit.Record(ctx, tx, StoreMovies, model.AuditUpdate, m.ID, prior, next)
	return err
}

// replaceTags resolves every tag name and sets the movie's edges per kind.
// Names that normalize to the same tag produce a single edge.
func (n *Normalizer) replaceTags(ctx context.Context, tx Tx, movieID int64, tags map[model.TagKind][]string) ([]model.TagEdge, error) {
	var edges []model.TagEdge
	for _, kind := range model.TagKinds {
		seen := make(map[int64]bool)
		var ids []int64
		for _, name := range tags[kind] {
			id, ok, err := n.dict.Resolve(ctx, tx, kind, name)
			if err != nil {
				return nil, storageError("resolving tag", err)
			}
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
			edges = append(edges, model.TagEdge{MovieID: movieID, Kind: kind, TagID: id})
		}
		if err := tx.ReplaceEdges(ctx, movieID, kind, ids); err != nil {
			return nil, storageError(fmt.Sprintf("replacing %s edges", kind), err)
		}
	}
	return edges, nil
}
