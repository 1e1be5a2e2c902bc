package testutil

import (
	"strconv"
	"sync"
	"time"
)

// ReferenceTime is the instant FixedClock starts at.
var ReferenceTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// StubClock is a settable clock for workspace tests.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStubClock starts a StubClock at t.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock starts a StubClock at ReferenceTime.
func FixedClock() *StubClock {
	return NewStubClock(ReferenceTime)
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock by d, so updatedAt stamps differ from createdAt.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// StubIDGenerator hands out a script of ids, then "id-1", "id-2", ...
type StubIDGenerator struct {
	mu     sync.Mutex
	queue  []string
	issued int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

// NewScriptedIDGenerator returns ids in order before the numbered ones.
// Repeating an id exercises collision handling in the workspace.
func NewScriptedIDGenerator(ids ...string) *StubIDGenerator {
	return &StubIDGenerator{queue: append([]string(nil), ids...)}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queue) > 0 {
		next := g.queue[0]
		g.queue = g.queue[1:]
		return next
	}
	g.issued++
	return "id-" + strconv.Itoa(g.issued)
}
