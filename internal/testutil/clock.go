package testutil

import (
	"fmt"
	"sync"
	"time"

	"filmgov/internal/catalog"
)

var (
	_ catalog.Clock       = (*StubClock)(nil)
	_ catalog.IDGenerator = (*StubIDGenerator)(nil)
)

// ReferenceDate is the instant FixedClock reports. Assessment tests measure
// release ages and retention windows against it.
var ReferenceDate = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// StubClock is a settable clock for ingest, retention and audit tests.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t.UTC()}
}

// FixedClock returns a StubClock at ReferenceDate.
func FixedClock() *StubClock {
	return NewStubClock(ReferenceDate)
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward, e.g. past the audit horizon.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// StubIDGenerator hands out run UUIDs "run-1", "run-2", ... Share one
// generator across apps that open the same database, since run_uuid is
// unique.
type StubIDGenerator struct {
	mu   sync.Mutex
	next int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("run-%d", g.next)
}
