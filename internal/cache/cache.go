// Package cache holds short-lived, per-process caches of derived data and a
// sweeper that evicts their expired entries.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	applog "cardspend/internal/log"
)

// Cleaner is a cache that can drop its expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Sweeper periodically cleans every registered cache.
type Sweeper struct {
	logger *applog.Logger
	caches []Cleaner

	stop     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

func NewSweeper(logger *applog.Logger) *Sweeper {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Sweeper{
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Register must be called before Start.
func (s *Sweeper) Register(c Cleaner) {
	s.caches = append(s.caches, c)
}

func (s *Sweeper) Start(interval time.Duration) {
	if s.started.CompareAndSwap(false, true) {
		go s.run(interval)
	}
}

func (s *Sweeper) run(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("Evicted expired cache entries", applog.FieldCount, n)
			}
		case <-s.stop:
			return
		}
	}
}

// Sweep cleans every cache once and returns the number of evicted entries.
func (s *Sweeper) Sweep() int {
	total := 0
	for _, c := range s.caches {
		total += c.CleanExpired()
	}
	return total
}

// Stop ends the sweep loop started by Start. It is safe to call more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.started.Load() {
			<-s.done
		}
	})
}
