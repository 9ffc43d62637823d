package app

import (
	"testing"
	"time"

	"gto_dupfinder/internal/domain"
)

func snapWith(id string, status domain.ScanStatus) domain.ScanSnapshot {
	return domain.ScanSnapshot{ID: id, Type: domain.ScanDuplicates, Status: status}
}

func TestScanStore_GetReturnsIsolatedSnapshot(t *testing.T) {
	s := NewScanStore(10, time.Hour)
	s.Put(snapWith("a", domain.StatusQueued))
	conf := 0.9
	s.Update("a", func(sn *domain.ScanSnapshot) {
		sn.Status = domain.StatusDone
		sn.Rows = []domain.ResultRow{{PrimaryID: 1, Confidence: &conf}}
	})

	got, ok := s.Get("a")
	if !ok || got.Status != domain.StatusDone {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	// Mutating the returned rows must not leak into the store.
	got.Rows[0].PrimaryID = 999
	again, _ := s.Get("a")
	if again.Rows[0].PrimaryID != 1 {
		t.Fatalf("snapshot rows alias store state")
	}
}

func TestScanStore_CancelOnlyLiveScans(t *testing.T) {
	s := NewScanStore(10, time.Hour)
	s.Put(snapWith("live", domain.StatusRunning))
	s.Put(snapWith("dead", domain.StatusDone))

	if !s.RequestCancel("live") {
		t.Fatalf("running scan must accept cancellation")
	}
	if !s.CancelRequested("live") {
		t.Fatalf("cancel flag not visible")
	}
	if s.RequestCancel("dead") {
		t.Fatalf("terminal scan must reject cancellation")
	}
	if s.RequestCancel("missing") {
		t.Fatalf("unknown scan must reject cancellation")
	}
}

func TestScanStore_TTLPrune(t *testing.T) {
	s := NewScanStore(10, time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	old := now.Add(-2 * time.Minute)
	done := snapWith("old", domain.StatusDone)
	done.FinishedAt = &old
	s.Put(done)
	s.Put(snapWith("fresh", domain.StatusRunning))

	// Prune runs on the next Put.
	s.Put(snapWith("trigger", domain.StatusQueued))
	if _, ok := s.Get("old"); ok {
		t.Fatalf("expired history entry survived prune")
	}
	if _, ok := s.Get("fresh"); !ok {
		t.Fatalf("running scan was pruned")
	}
}

func TestScanStore_SizeCapEvictsOldestTerminal(t *testing.T) {
	s := NewScanStore(3, time.Hour)
	base := time.Now()
	tick := 0
	s.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Second) }

	fin := base
	for _, id := range []string{"t1", "t2"} {
		sn := snapWith(id, domain.StatusDone)
		sn.FinishedAt = &fin
		s.Put(sn)
	}
	s.Put(snapWith("run", domain.StatusRunning))
	s.Put(snapWith("new", domain.StatusQueued)) // over cap: evicts t1

	if _, ok := s.Get("t1"); ok {
		t.Fatalf("oldest terminal scan should be evicted")
	}
	for _, id := range []string{"t2", "run", "new"} {
		if _, ok := s.Get(id); !ok {
			t.Fatalf("scan %s unexpectedly evicted", id)
		}
	}
}

func TestScanStore_ListNewestFirst(t *testing.T) {
	s := NewScanStore(10, time.Hour)
	base := time.Now()
	tick := 0
	s.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Second) }

	s.Put(snapWith("first", domain.StatusDone))
	s.Put(snapWith("second", domain.StatusRunning))
	s.Put(snapWith("third", domain.StatusQueued))

	got := s.List()
	if len(got) != 3 || got[0].ID != "third" || got[2].ID != "first" {
		t.Fatalf("unexpected order: %+v", got)
	}
}
