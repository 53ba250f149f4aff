// Package keylock provides striped mutexes keyed by principal id. Two keys that hash
// to the same stripe share a mutex, which only costs some contention.
package keylock

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultStripes is used when New is given a non-positive count.
const DefaultStripes = 256

// Striped is a fixed array of mutexes selected by murmur3 hash of the key.
type Striped struct {
	stripes []sync.Mutex
}

// New returns a Striped lock set with n stripes.
func New(n int) *Striped {
	if n <= 0 {
		n = DefaultStripes
	}
	return &Striped{stripes: make([]sync.Mutex, n)}
}

func (s *Striped) index(key string) int {
	return int(murmur3.Sum32([]byte(key)) % uint32(len(s.stripes)))
}

// Lock acquires the stripe for key and returns its unlock function.
func (s *Striped) Lock(key string) func() {
	mu := &s.stripes[s.index(key)]
	mu.Lock()
	return mu.Unlock
}
