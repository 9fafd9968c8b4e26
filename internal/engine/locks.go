package engine

import (
	"sync"

	"sigtrade/internal/state"
)

// symbolLocks serializes load, decide and save per store record, so two
// spellings of one symbol share a mutex.
type symbolLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSymbolLocks() *symbolLocks {
	return &symbolLocks{locks: make(map[string]*sync.Mutex)}
}

func (s *symbolLocks) lock(symbol string) func() {
	k := state.Key(symbol)
	s.mu.Lock()
	l, ok := s.locks[k]
	if !ok {
		l = &sync.Mutex{}
		s.locks[k] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}
