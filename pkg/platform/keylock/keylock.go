// Package keylock provides per-key mutual exclusion over a fixed set of
// striped mutexes, so memory stays bounded regardless of key cardinality.
package keylock

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultStripes is used when New is given a non-positive count.
const DefaultStripes = 256

// Striped maps keys onto a fixed pool of mutexes. Two different keys may share
// a stripe, which only costs contention, never correctness.
type Striped struct {
	stripes []sync.Mutex
}

// New allocates a lock set with n stripes.
func New(n int) *Striped {
	if n <= 0 {
		n = DefaultStripes
	}
	return &Striped{stripes: make([]sync.Mutex, n)}
}

func (s *Striped) stripe(key string) *sync.Mutex {
	h := murmur3.Sum64([]byte(key))
	return &s.stripes[h%uint64(len(s.stripes))]
}

// Lock acquires the stripe for key and returns its unlock function.
//
//	unlock := locks.Lock(userID)
//	defer unlock()
func (s *Striped) Lock(key string) func() {
	m := s.stripe(key)
	m.Lock()
	return m.Unlock
}

// Stripes reports the number of stripes.
func (s *Striped) Stripes() int {
	return len(s.stripes)
}
