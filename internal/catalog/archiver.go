package catalog

import (
	"context"
	"fmt"
	"strconv"

	"filmgov/internal/model"
)

// Archiver moves movies from the live store into the archive.
type Archiver struct {
	audit *AuditRecorder
	clock Clock
}

// NewArchiver creates an Archiver.
func NewArchiver(audit *AuditRecorder, clock Clock) *Archiver {
	return &Archiver{audit: audit, clock: clock}
}

// ArchiveMovie copies movie id into the archive with reason, deletes it and
// its tag edges from the live store and records a delete audit entry, all
// inside tx. It returns false when the movie is no longer live.
func (a *Archiver) ArchiveMovie(ctx context.Context, tx Tx, id int64, reason model.ArchiveReason) (bool, error) {
	m, err := tx.FindMovieByID(ctx, id)
	if err != nil {
		return false, storageError("finding movie", err)
	}
	if m == nil {
		return false, nil
	}

	rec := &model.ArchiveRecord{
		MovieID:     m.ID,
		ExternalID:  m.ExternalID,
		Title:       m.Title,
		ReleaseDate: m.ReleaseDate,
		Budget:      m.Budget,
		Revenue:     m.Revenue,
		ArchivedAt:  a.clock.Now(),
		Reason:      reason,
	}
	if _, err := tx.InsertArchiveRecord(ctx, rec); err != nil {
		return false, storageError("inserting archive record", err)
	}
	if err := tx.DeleteMovie(ctx, m.ID); err != nil {
		return false, storageError("deleting movie", err)
	}
	if _, err := a.audit.Record(ctx, tx, StoreMovies, model.AuditDelete, m.ID, m.Values(), nil); err != nil {
		return false, err
	}
	return true, nil
}

// DuplicateKey identifies movies that describe the same release: the
// normalized title plus the release year. A movie without a release date
// only matches other undated movies with the same title.
func DuplicateKey(m *model.Movie) string {
	year := "-"
	if y, ok := m.ReleaseYear(); ok {
		year = strconv.Itoa(y)
	}
	return fmt.Sprintf("%s\x00%s", Normalize(m.Title), year)
}

// DuplicateIDs returns the ids of every movie after the first (by position)
// sharing a DuplicateKey. movies must be ordered by id so the oldest row of
// each group is kept.
func DuplicateIDs(movies []*model.Movie) []int64 {
	seen := make(map[string]bool, len(movies))
	var dups []int64
	for _, m := range movies {
		key := DuplicateKey(m)
		if seen[key] {
			dups = append(dups, m.ID)
			continue
		}
		seen[key] = true
	}
	return dups
}
