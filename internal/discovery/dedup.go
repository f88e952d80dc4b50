package discovery

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// pathSet deduplicates paths. The bloom filter answers most misses; the
// exact map settles its false positives.
type pathSet struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

func newPathSet(estimated int) *pathSet {
	if estimated < 256 {
		estimated = 256
	}
	return &pathSet{
		filter: bloom.NewWithEstimates(uint(estimated), 0.001),
		exact:  make(map[string]struct{}),
	}
}

// Add inserts path and reports whether it was new.
func (s *pathSet) Add(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filter.TestString(path) {
		if _, ok := s.exact[path]; ok {
			return false
		}
	}
	s.filter.AddString(path)
	s.exact[path] = struct{}{}
	return true
}

// Len returns the number of unique paths.
func (s *pathSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.exact)
}
