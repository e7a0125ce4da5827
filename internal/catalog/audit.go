package catalog

import (
	"context"
	"fmt"

	"filmgov/internal/model"
)

// StoreMovies is the store name recorded on audit entries for movie mutations.
const StoreMovies = "movies"

// AuditRecorder appends audit entries for mutations of the live store. It is
// called explicitly around every mutation; nothing is captured implicitly.
type AuditRecorder struct {
	clock Clock
}

// NewAuditRecorder creates an AuditRecorder stamping entries with clock.
func NewAuditRecorder(clock Clock) *AuditRecorder {
	return &AuditRecorder{clock: clock}
}

// Record appends one entry through w. A failure is a storage failure and
// must abort the surrounding transaction.
func (r *AuditRecorder) Record(ctx context.Context, w AuditWriter, store string, op model.AuditOperation, entityID int64, prior, next model.Values) (*model.AuditEntry, error) {
	entry := &model.AuditEntry{
		StoreName: store,
		Operation: op,
		EntityID:  entityID,
		Prior:     prior,
		New:       next,
		Timestamp: r.clock.Now(),
	}
	id, err := w.InsertAuditEntry(ctx, entry)
	if err != nil {
		return nil, storageError(fmt.Sprintf("recording %s audit entry for %s %d", op, store, entityID), err)
	}
	entry.ID = id
	return entry, nil
}
