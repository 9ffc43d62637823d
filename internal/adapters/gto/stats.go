package gto

import (
	"sync"
	"time"

	"gto_dupfinder/internal/domain"
)

// Stats aggregates outbound request volume and latency. Shared by every
// call through one Client, so updates happen under a single lock.
type Stats struct {
	mu     sync.Mutex
	count  int64
	sumMs  float64
	peakMs float64
}

func (s *Stats) Observe(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000
	s.mu.Lock()
	s.count++
	s.sumMs += ms
	if ms > s.peakMs {
		s.peakMs = ms
	}
	s.mu.Unlock()
}

func (s *Stats) Snapshot() domain.UpstreamStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := domain.UpstreamStats{RequestCount: s.count, PeakResponseMs: s.peakMs}
	if s.count > 0 {
		out.AvgResponseMs = s.sumMs / float64(s.count)
	}
	return out
}
