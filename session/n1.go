package session

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sqlmodel/sqlmodel-go/internal/debug"
)

// DefaultN1Threshold is how many repeated lazy loads of the same
// relationship trigger a warning.
const DefaultN1Threshold = 3

// maxCallSites bounds how many recent call sites a warning reports.
const maxCallSites = 5

// trackingDisabled turns N+1 tracking off process-wide.
var trackingDisabled atomic.Bool

// DisableN1Tracking turns tracking off globally; pass false to re-enable.
func DisableN1Tracking(disabled bool) {
	trackingDisabled.Store(disabled)
}

// relKey identifies one (parent type, relationship) pair.
type relKey struct {
	parent       string
	relationship string
}

// relStats accumulates per-relationship lazy-load counts.
type relStats struct {
	count     int
	warned    bool
	callSites []string
}

// N1QueryTracker detects N+1 query patterns: repeated single-row
// relationship loads that a batch LoadMany would serve in one query.
// Tracking is per session; Reset starts a fresh window.
type N1QueryTracker struct {
	mu        sync.Mutex
	threshold int
	stats     map[relKey]*relStats
}

// NewN1QueryTracker creates a tracker; threshold 0 uses the default.
func NewN1QueryTracker(threshold int) *N1QueryTracker {
	if threshold <= 0 {
		threshold = DefaultN1Threshold
	}
	return &N1QueryTracker{threshold: threshold, stats: map[relKey]*relStats{}}
}

// Record notes one lazy relationship load. When the count reaches the
// threshold a warning is logged with the recent call sites.
func (t *N1QueryTracker) Record(parentType, relationship string) {
	if t == nil || trackingDisabled.Load() {
		return
	}
	site := callerSite()

	t.mu.Lock()
	defer t.mu.Unlock()
	key := relKey{parent: parentType, relationship: relationship}
	s := t.stats[key]
	if s == nil {
		s = &relStats{}
		t.stats[key] = s
	}
	s.count++
	s.callSites = append(s.callSites, site)
	if len(s.callSites) > maxCallSites {
		s.callSites = s.callSites[len(s.callSites)-maxCallSites:]
	}
	if s.count >= t.threshold && !s.warned {
		s.warned = true
		debug.Warn("possible N+1 query pattern",
			"parent", parentType,
			"relationship", relationship,
			"count", s.count,
			"call_sites", s.callSites,
			"hint", "consider LoadMany to batch this relationship")
	}
}

// PotentialN1 lists the (parent, relationship) pairs at or past the
// threshold, sorted for stable output.
func (t *N1QueryTracker) PotentialN1() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for key, s := range t.stats {
		if s.count >= t.threshold {
			out = append(out, fmt.Sprintf("%s.%s (%d loads)", key.parent, key.relationship, s.count))
		}
	}
	sort.Strings(out)
	return out
}

// Count returns the recorded load count for one relationship.
func (t *N1QueryTracker) Count(parentType, relationship string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := t.stats[relKey{parent: parentType, relationship: relationship}]; s != nil {
		return s.count
	}
	return 0
}

// Reset clears all recorded counts.
func (t *N1QueryTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats = map[relKey]*relStats{}
}

// callerSite reports the first caller outside this package.
func callerSite() string {
	var pcs [8]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.File != "" {
			return fmt.Sprintf("%s:%d", frame.File, frame.Line)
		}
		if !more {
			return "unknown"
		}
	}
}
