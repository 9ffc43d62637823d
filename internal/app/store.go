package app

import (
	"sort"
	"sync"
	"time"

	"gto_dupfinder/internal/domain"
)

const (
	DefaultMaxScans   = 50
	DefaultHistoryTTL = 2 * time.Hour
)

type scanEntry struct {
	snap            domain.ScanSnapshot
	cancelRequested bool
	createdAt       time.Time
}

// ScanStore is the process-wide scan state, keyed by scan id. Every read and
// write happens under one lock, so a status read never observes a counter
// update interleaved with a state transition. Finished scans are retained as
// history until TTL or the size cap evicts them.
type ScanStore struct {
	mu         sync.Mutex
	scans      map[string]*scanEntry
	maxScans   int
	historyTTL time.Duration
	now        func() time.Time
}

func NewScanStore(maxScans int, historyTTL time.Duration) *ScanStore {
	if maxScans <= 0 {
		maxScans = DefaultMaxScans
	}
	if historyTTL <= 0 {
		historyTTL = DefaultHistoryTTL
	}
	return &ScanStore{
		scans:      map[string]*scanEntry{},
		maxScans:   maxScans,
		historyTTL: historyTTL,
		now:        time.Now,
	}
}

// Put registers a new scan, evicting stale history first.
func (s *ScanStore) Put(snap domain.ScanSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	s.scans[snap.ID] = &scanEntry{snap: snap, createdAt: s.now()}
}

// Get returns a consistent snapshot of one scan.
func (s *ScanStore) Get(id string) (domain.ScanSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.scans[id]
	if !ok {
		return domain.ScanSnapshot{}, false
	}
	return copySnap(e.snap), true
}

// Update applies fn to the scan's state inside the store's critical section.
// The owning scan task is the only caller that mutates.
func (s *ScanStore) Update(id string, fn func(*domain.ScanSnapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.scans[id]; ok {
		fn(&e.snap)
	}
}

// RequestCancel marks the scan for cooperative cancellation. Reports whether
// the scan exists and was still running (or queued).
func (s *ScanStore) RequestCancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.scans[id]
	if !ok || e.snap.Status.Terminal() {
		return false
	}
	e.cancelRequested = true
	return true
}

// CancelRequested is polled by the scan task at its safe checkpoints.
func (s *ScanStore) CancelRequested(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.scans[id]
	return ok && e.cancelRequested
}

// List returns all retained scans, newest first.
func (s *ScanStore) List() []domain.ScanSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	out := make([]domain.ScanSnapshot, 0, len(s.scans))
	order := make(map[string]time.Time, len(s.scans))
	for id, e := range s.scans {
		out = append(out, copySnap(e.snap))
		order[id] = e.createdAt
	}
	sort.Slice(out, func(i, j int) bool {
		return order[out[i].ID].After(order[out[j].ID])
	})
	return out
}

// pruneLocked drops finished scans past the TTL, then enforces the size cap
// by evicting terminal scans oldest-first. Running scans are never evicted.
func (s *ScanStore) pruneLocked() {
	now := s.now()
	for id, e := range s.scans {
		if e.snap.Status.Terminal() && e.snap.FinishedAt != nil &&
			now.Sub(*e.snap.FinishedAt) > s.historyTTL {
			delete(s.scans, id)
		}
	}
	for len(s.scans) >= s.maxScans {
		oldest := ""
		var oldestAt time.Time
		for id, e := range s.scans {
			if !e.snap.Status.Terminal() {
				continue
			}
			if oldest == "" || e.createdAt.Before(oldestAt) {
				oldest, oldestAt = id, e.createdAt
			}
		}
		if oldest == "" {
			return
		}
		delete(s.scans, oldest)
	}
}

func copySnap(in domain.ScanSnapshot) domain.ScanSnapshot {
	out := in
	if in.Rows != nil {
		out.Rows = make([]domain.ResultRow, len(in.Rows))
		copy(out.Rows, in.Rows)
	}
	return out
}
