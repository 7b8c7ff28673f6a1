package observability

import (
	"sort"
	"sync"
	"time"
)

// SegmentStats tracks how often each segment is queried and how those queries
// ended.
type SegmentStats struct {
	mu       sync.RWMutex
	segments map[string]*SegmentStat
	window   time.Duration
}

// SegmentStat holds the statistics of one segment label.
type SegmentStat struct {
	Segment   string           `json:"segment"`
	Frequency int64            `json:"frequency"`
	LastSeen  time.Time        `json:"last_seen"`
	Outcomes  map[string]int64 `json:"outcomes"` // outcome → count (e.g., "ok" → 5, "unknown_segment" → 1)
}

// NewSegmentStats creates a tracker. Entries not seen within window are
// removed by Prune.
func NewSegmentStats(window time.Duration) *SegmentStats {
	return &SegmentStats{
		segments: make(map[string]*SegmentStat),
		window:   window,
	}
}

// Record registers one query of segment with the given outcome.
func (s *SegmentStats) Record(segment, outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stat, exists := s.segments[segment]
	if !exists {
		stat = &SegmentStat{
			Segment:  segment,
			Outcomes: make(map[string]int64),
		}
		s.segments[segment] = stat
	}

	stat.Frequency++
	stat.LastSeen = time.Now()
	stat.Outcomes[outcome]++
}

// Top returns copies of the n most frequently queried segments, most frequent
// first. Ties are ordered by label.
func (s *SegmentStats) Top(n int) []SegmentStat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.segments) == 0 {
		return []SegmentStat{}
	}

	stats := make([]SegmentStat, 0, len(s.segments))
	for _, st := range s.segments {
		c := SegmentStat{
			Segment:   st.Segment,
			Frequency: st.Frequency,
			LastSeen:  st.LastSeen,
			Outcomes:  make(map[string]int64, len(st.Outcomes)),
		}
		for outcome, count := range st.Outcomes {
			c.Outcomes[outcome] = count
		}
		stats = append(stats, c)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].Segment < stats[j].Segment
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Prune removes entries where time.Since(LastSeen) > window.
func (s *SegmentStats) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := time.Now().Add(-s.window)
	for segment, st := range s.segments {
		if st.LastSeen.Before(threshold) {
			delete(s.segments, segment)
		}
	}
}
