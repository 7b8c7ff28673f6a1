package index

import (
	"sort"
	"sync"
)

// SegmentIndex maps a market segment label to the deduplicated set of
// customer keys in that segment.
type SegmentIndex struct {
	freezable
	mu      sync.RWMutex
	buckets map[string]*keySet
	shards  int
}

// NewSegmentIndex creates an empty segment index whose per-segment key sets
// are split into the given number of shards.
func NewSegmentIndex(shards int) *SegmentIndex {
	return &SegmentIndex{
		buckets: make(map[string]*keySet),
		shards:  shardCount(shards),
	}
}

// Add inserts custKey into the set for segment, creating the set on first use.
// segment may alias a shared read-only buffer; it is copied only when a new
// set is created.
func (s *SegmentIndex) Add(segment []byte, custKey uint64) error {
	if s.Frozen() {
		return ErrFrozen
	}
	s.getOrCreate(segment).add(custKey)
	return nil
}

func (s *SegmentIndex) getOrCreate(segment []byte) *keySet {
	s.mu.RLock()
	set, ok := s.buckets[string(segment)]
	s.mu.RUnlock()
	if ok {
		return set
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.buckets[string(segment)]; ok {
		return set
	}
	set = newKeySet(s.shards)
	s.buckets[string(segment)] = set
	return set
}

func (s *SegmentIndex) lookup(segment string) (*keySet, bool) {
	if s.Frozen() {
		set, ok := s.buckets[segment]
		return set, ok
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.buckets[segment]
	return set, ok
}

// Customers returns the customer keys of segment in no particular order. The
// second result is false when the segment never appeared in the input.
func (s *SegmentIndex) Customers(segment string) ([]uint64, bool) {
	set, ok := s.lookup(segment)
	if !ok {
		return nil, false
	}
	return set.keys(s.Frozen()), true
}

// Contains reports whether custKey belongs to segment.
func (s *SegmentIndex) Contains(segment string, custKey uint64) bool {
	set, ok := s.lookup(segment)
	if !ok {
		return false
	}
	return set.contains(custKey, s.Frozen())
}

// Segments returns the known segment labels in sorted order.
func (s *SegmentIndex) Segments() []string {
	if !s.Frozen() {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	labels := make([]string, 0, len(s.buckets))
	for label := range s.buckets {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Len returns the total number of distinct customer keys across segments.
func (s *SegmentIndex) Len() int {
	frozen := s.Frozen()
	if !frozen {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	n := 0
	for _, set := range s.buckets {
		n += set.len(frozen)
	}
	return n
}

// Snapshot returns every segment with its sorted customer keys.
func (s *SegmentIndex) Snapshot() map[string][]uint64 {
	out := make(map[string][]uint64)
	for _, label := range s.Segments() {
		keys, _ := s.Customers(label)
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		out[label] = keys
	}
	return out
}

// keySet is a sharded set of uint64 keys.
type keySet struct {
	shards []keyShard
	mask   uint64
}

type keyShard struct {
	mu   sync.Mutex
	keys map[uint64]struct{}
}

func newKeySet(shards int) *keySet {
	ks := &keySet{
		shards: make([]keyShard, shards),
		mask:   uint64(shards - 1),
	}
	for i := range ks.shards {
		ks.shards[i].keys = make(map[uint64]struct{})
	}
	return ks
}

func (ks *keySet) add(key uint64) {
	sh := &ks.shards[hashKey(key)&ks.mask]
	sh.mu.Lock()
	sh.keys[key] = struct{}{}
	sh.mu.Unlock()
}

func (ks *keySet) contains(key uint64, frozen bool) bool {
	sh := &ks.shards[hashKey(key)&ks.mask]
	if !frozen {
		sh.mu.Lock()
		defer sh.mu.Unlock()
	}
	_, ok := sh.keys[key]
	return ok
}

func (ks *keySet) len(frozen bool) int {
	n := 0
	for i := range ks.shards {
		sh := &ks.shards[i]
		if !frozen {
			sh.mu.Lock()
		}
		n += len(sh.keys)
		if !frozen {
			sh.mu.Unlock()
		}
	}
	return n
}

func (ks *keySet) keys(frozen bool) []uint64 {
	out := make([]uint64, 0, ks.len(frozen))
	for i := range ks.shards {
		sh := &ks.shards[i]
		if !frozen {
			sh.mu.Lock()
		}
		for k := range sh.keys {
			out = append(out, k)
		}
		if !frozen {
			sh.mu.Unlock()
		}
	}
	return out
}
