package perf

import (
	"cmp"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default capacity of the ring buffer.
const DefaultRingSize = 10000

// EntryKind distinguishes request vs query entries.
type EntryKind uint8

const (
	KindRequest EntryKind = iota
	KindQuery
)

// Entry is a single timing record.
type Entry struct {
	Kind       EntryKind
	Label      string // "GET /events/{slug}" or "SELECT booking"
	Status     int    // HTTP status, 0 for queries
	DurationMs float64
	At         time.Time
}

// Collector keeps the most recent entries in a fixed ring. Recording never
// blocks on aggregation; Snapshot does all the work.
type Collector struct {
	mu      sync.Mutex
	ring    []Entry
	next    int
	written atomic.Int64
}

// NewCollector creates a collector holding up to size entries.
// POST: size <= 0 falls back to DefaultRingSize
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{ring: make([]Entry, size)}
}

// Record stores e, overwriting the oldest entry when the ring is full.
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.ring[c.next] = e
	c.next = (c.next + 1) % len(c.ring)
	c.mu.Unlock()
	c.written.Add(1)
}

// TotalRecorded returns the number of entries ever recorded.
func (c *Collector) TotalRecorded() int64 {
	return c.written.Load()
}

// Stat aggregates timings for one label.
type Stat struct {
	Label   string
	Count   int
	Errors  int // responses with status >= 500
	TotalMs float64
	AvgMs   float64
	MaxMs   float64
}

// Snapshot is the aggregated view shown on the admin performance page.
type Snapshot struct {
	Since          time.Time
	TotalRecorded  int64
	Requests       int
	ServerErrors   int
	RequestP50Ms   float64
	RequestP95Ms   float64
	RequestP99Ms   float64
	SlowestPaths   []Stat
	SlowestQueries []Stat
}

// Snapshot aggregates entries recorded at or after since and returns the
// topN slowest request and query labels by average duration.
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	c.mu.Lock()
	buf := slices.Clone(c.ring)
	c.mu.Unlock()

	snap := Snapshot{Since: since, TotalRecorded: c.TotalRecorded()}
	requests := map[string]*Stat{}
	queries := map[string]*Stat{}
	var durations []float64

	for _, e := range buf {
		if e.At.IsZero() || e.At.Before(since) {
			continue
		}
		group := queries
		if e.Kind == KindRequest {
			group = requests
			durations = append(durations, e.DurationMs)
			snap.Requests++
			if e.Status >= 500 {
				snap.ServerErrors++
			}
		}
		s := group[e.Label]
		if s == nil {
			s = &Stat{Label: e.Label}
			group[e.Label] = s
		}
		s.Count++
		s.TotalMs += e.DurationMs
		s.MaxMs = max(s.MaxMs, e.DurationMs)
		if e.Status >= 500 {
			s.Errors++
		}
	}

	snap.SlowestPaths = slowest(requests, topN)
	snap.SlowestQueries = slowest(queries, topN)
	if len(durations) > 0 {
		slices.Sort(durations)
		snap.RequestP50Ms = percentile(durations, 50)
		snap.RequestP95Ms = percentile(durations, 95)
		snap.RequestP99Ms = percentile(durations, 99)
	}
	return snap
}

// percentile interpolates the p-th percentile of an ascending slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p / 100 * float64(len(sorted)-1)
	lo, hi := int(math.Floor(idx)), int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func slowest(stats map[string]*Stat, n int) []Stat {
	list := make([]Stat, 0, len(stats))
	for _, s := range stats {
		s.AvgMs = s.TotalMs / float64(s.Count)
		list = append(list, *s)
	}
	slices.SortFunc(list, func(a, b Stat) int {
		if c := cmp.Compare(b.AvgMs, a.AvgMs); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	if n > 0 && len(list) > n {
		list = list[:n]
	}
	return list
}
