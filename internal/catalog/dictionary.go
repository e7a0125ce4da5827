package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"filmgov/internal/model"
)

// DefaultDictionaryCacheSize bounds the per-kind name -> id cache.
const DefaultDictionaryCacheSize = 4096

// Normalize returns the canonical form of a tag value: NFC, internal
// whitespace collapsed, trimmed and case folded.
func Normalize(raw string) string {
	s := strings.Join(strings.Fields(norm.NFC.String(raw)), " ")
	if s == "" {
		return ""
	}
	// A Caser is stateful, so one is created per call.
	return cases.Fold().String(s)
}

// IsCanonical reports whether name is already in normalized form.
func IsCanonical(name string) bool {
	return name != "" && Normalize(name) == name
}

// Dictionary resolves raw tag values to tag ids, creating tags on first
// encounter. Resolution of one value is serialized so the same normalized
// value never produces two tag rows.
//
// Ids created inside a transaction are cached provisionally; the caller
// must Commit or Discard once the transaction outcome is known.
type Dictionary struct {
	mu      sync.Mutex
	caches  map[model.TagKind]*lru.Cache[string, int64]
	pending []pendingTag
}

type pendingTag struct {
	kind model.TagKind
	name string
}

// NewDictionary creates a Dictionary caching up to size names per tag kind.
func NewDictionary(size int) (*Dictionary, error) {
	if size <= 0 {
		size = DefaultDictionaryCacheSize
	}
	caches := make(map[model.TagKind]*lru.Cache[string, int64], len(model.TagKinds))
	for _, kind := range model.TagKinds {
		c, err := lru.New[string, int64](size)
		if err != nil {
			return nil, fmt.Errorf("creating %s cache: %w", kind, err)
		}
		caches[kind] = c
	}
	return &Dictionary{caches: caches}, nil
}

// Resolve returns the tag id for raw. ok is false when raw normalizes to the
// empty string; such values are skipped, never inserted.
func (d *Dictionary) Resolve(ctx context.Context, store TagStore, kind model.TagKind, raw string) (id int64, ok bool, err error) {
	name := Normalize(raw)
	if name == "" {
		return 0, false, nil
	}
	cache, known := d.caches[kind]
	if !known {
		return 0, false, fmt.Errorf("unknown tag kind: %q", kind)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if id, hit := cache.Get(name); hit {
		return id, true, nil
	}

	id, found, err := store.FindTag(ctx, kind, name)
	if err != nil {
		return 0, false, fmt.Errorf("finding %s %q: %w", kind, name, err)
	}
	if !found {
		id, err = store.InsertTag(ctx, kind, name)
		if err != nil {
			return 0, false, fmt.Errorf("inserting %s %q: %w", kind, name, err)
		}
		d.pending = append(d.pending, pendingTag{kind: kind, name: name})
	}

	cache.Add(name, id)
	return id, true, nil
}

// Commit keeps every provisionally cached id.
func (d *Dictionary) Commit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = d.pending[:0]
}

// Discard evicts ids created by a transaction that rolled back.
func (d *Dictionary) Discard() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.pending {
		d.caches[p.kind].Remove(p.name)
	}
	d.pending = d.pending[:0]
}
