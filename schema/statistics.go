package schema

import (
	"sync"

	"github.com/typedb/typedb-sub006/concept"
)

// Statistics holds the per-type instance counts the match planner's cost
// model consults. Modelled as a small immutable snapshot rebuilt
// periodically by a background task, mirroring how Cache itself is
// rebuilt-and-swapped rather than mutated in place.
type Statistics struct {
	instanceCount map[concept.Type]int64
}

func NewStatistics() *Statistics {
	return &Statistics{instanceCount: make(map[concept.Type]int64)}
}

func (s *Statistics) SetCount(t concept.Type, n int64) {
	s.instanceCount[t] = n
}

// Count returns the estimated instance count of exactly t (not its
// subtypes); the planner's ThingPlanner sums it over every type in a
// variable's annotated type set.
func (s *Statistics) Count(t concept.Type) int64 {
	return s.instanceCount[t]
}

// StatisticsCache is the swap point for Statistics, analogous to
// CacheHolder but refreshed on a timer rather than on schema commit.
type StatisticsCache struct {
	mu      sync.RWMutex
	current *Statistics
}

func NewStatisticsCache() *StatisticsCache {
	return &StatisticsCache{current: NewStatistics()}
}

func (sc *StatisticsCache) Current() *Statistics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.current
}

func (sc *StatisticsCache) Swap(s *Statistics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.current = s
}
