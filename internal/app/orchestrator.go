package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"gto_dupfinder/internal/adapters/observability"
	"gto_dupfinder/internal/dedup"
	"gto_dupfinder/internal/domain"
)

const (
	hotelsPerPage = 100

	// Progress bands, matching the three phases of a duplicate scan:
	// load 5..40, enrich 40..90, score/cluster to 100.
	pctLoadFloor  = 5
	pctLoadCeil   = 40
	pctEnrichCeil = 90
	pctScored     = 95
)

var (
	ErrEmptyScope  = errors.New("scan scope needs at least one city")
	ErrBadScanType = errors.New("unknown scan type")
	errCancelled   = errors.New("scan cancelled")
)

// ScanService owns scan lifecycles: it starts each scan as its own task,
// reports progress through the ScanStore, and honours cooperative
// cancellation between upstream calls.
type ScanService struct {
	client        domain.CatalogClient
	store         *ScanStore
	cache         domain.Cache // optional detail cache, may be nil
	detailTTLSec  int
	enrichWorkers int64
}

func NewScanService(client domain.CatalogClient, store *ScanStore, cache domain.Cache, enrichWorkers, detailTTLSec int) *ScanService {
	if enrichWorkers <= 0 {
		enrichWorkers = 4
	}
	if detailTTLSec <= 0 {
		detailTTLSec = 900
	}
	return &ScanService{
		client:        client,
		store:         store,
		cache:         cache,
		detailTTLSec:  detailTTLSec,
		enrichWorkers: int64(enrichWorkers),
	}
}

// Start validates the request, registers a queued scan and launches its task.
func (s *ScanService) Start(scope domain.Scope, rps float64, typ domain.ScanType) (string, error) {
	if len(scope.CityIDs) == 0 {
		return "", ErrEmptyScope
	}
	if typ == "" {
		typ = domain.ScanDuplicates
	}
	if typ != domain.ScanDuplicates && typ != domain.ScanErrors {
		return "", fmt.Errorf("%w: %q", ErrBadScanType, typ)
	}

	s.client.SetRate(rps)

	id := uuid.NewString()
	s.store.Put(domain.ScanSnapshot{
		ID:     id,
		Type:   typ,
		Scope:  scope,
		Status: domain.StatusQueued,
	})
	observability.ScansStarted.WithLabelValues(string(typ)).Inc()

	go s.run(id, scope, typ)
	return id, nil
}

// Cancel requests cooperative cancellation; the scan observes it at its next
// safe checkpoint. Reports whether a live scan accepted the request.
func (s *ScanService) Cancel(id string) bool { return s.store.RequestCancel(id) }

// Status returns a consistent snapshot with live upstream stats attached.
func (s *ScanService) Status(id string) (domain.ScanSnapshot, bool) {
	snap, ok := s.store.Get(id)
	if !ok {
		return domain.ScanSnapshot{}, false
	}
	snap.Stats = s.client.Stats()
	return snap, true
}

// History lists retained scans, newest first.
func (s *ScanService) History() []domain.ScanSnapshot { return s.store.List() }

// ---- scan task ----

func (s *ScanService) run(id string, scope domain.Scope, typ domain.ScanType) {
	// The context deliberately never carries the cancel signal: cancellation
	// is polled between calls so an in-flight request always completes.
	ctx := context.Background()
	started := time.Now()
	s.store.Update(id, func(sn *domain.ScanSnapshot) {
		sn.Status = domain.StatusRunning
		sn.StartedAt = &started
		sn.ProgressPct = pctLoadFloor
	})
	log.Info().Str("scan", id).Str("type", string(typ)).Ints64("cities", scope.CityIDs).Msg("scan started")

	rows, err := s.execute(ctx, id, scope, typ)
	finished := time.Now()
	switch {
	case errors.Is(err, errCancelled):
		s.store.Update(id, func(sn *domain.ScanSnapshot) {
			sn.Status = domain.StatusCancelled
			sn.FinishedAt = &finished
		})
		observability.ScansFinished.WithLabelValues(string(typ), string(domain.StatusCancelled)).Inc()
		log.Info().Str("scan", id).Msg("scan cancelled")
	case err != nil:
		s.store.Update(id, func(sn *domain.ScanSnapshot) {
			sn.Status = domain.StatusError
			sn.Error = err.Error()
			sn.FinishedAt = &finished
		})
		observability.ScansFinished.WithLabelValues(string(typ), string(domain.StatusError)).Inc()
		log.Error().Str("scan", id).Err(err).Msg("scan failed")
	default:
		s.store.Update(id, func(sn *domain.ScanSnapshot) {
			sn.Status = domain.StatusDone
			sn.Rows = rows
			sn.ProgressPct = 100
			sn.FinishedAt = &finished
		})
		observability.ScansFinished.WithLabelValues(string(typ), string(domain.StatusDone)).Inc()
		log.Info().Str("scan", id).Int("rows", len(rows)).Dur("took", finished.Sub(started)).Msg("scan done")
	}
}

func (s *ScanService) execute(ctx context.Context, id string, scope domain.Scope, typ domain.ScanType) ([]domain.ResultRow, error) {
	hotels, err := s.loadHotels(ctx, id, scope)
	if err != nil {
		return nil, err
	}

	if typ == domain.ScanErrors {
		return s.errorRows(id, hotels), nil
	}

	pairs := dedup.Candidates(hotels)
	details, err := s.enrich(ctx, id, hotels, pairs)
	if err != nil {
		return nil, err
	}

	scorer := dedup.NewScorer(hotels, details)
	scored := make([]dedup.ScoredPair, 0, len(pairs))
	flags := 0
	for _, p := range pairs {
		sp := scorer.Score(p)
		scored = append(scored, sp)
		if sp.Flag != dedup.FlagNone {
			flags++
			observability.FlagsFound.WithLabelValues(string(sp.Flag)).Inc()
		}
	}
	done, found := len(scored), flags
	s.store.Update(id, func(sn *domain.ScanSnapshot) {
		sn.Counters.ComparisonsDone = done
		sn.Counters.FlagsFound = found
		sn.ProgressPct = pctScored
	})
	if s.store.CancelRequested(id) {
		return nil, errCancelled
	}

	return dedup.Clusters(scored, hotels), nil
}

// loadHotels walks every scoped city page by page. Cancellation is checked
// between pages, never mid-call.
func (s *ScanService) loadHotels(ctx context.Context, id string, scope domain.Scope) ([]domain.HotelRecord, error) {
	var all []domain.HotelRecord
	for _, cityID := range scope.CityIDs {
		for page := 1; ; page++ {
			if s.store.CancelRequested(id) {
				return nil, errCancelled
			}
			batch, err := s.client.HotelsPage(ctx, cityID, scope.CountryID, page, hotelsPerPage)
			if err != nil {
				return nil, fmt.Errorf("load hotels for city %d: %w", cityID, err)
			}
			all = append(all, batch...)

			loaded := len(all)
			s.store.Update(id, func(sn *domain.ScanSnapshot) {
				sn.Counters.HotelsLoaded = loaded
				sn.ProgressPct = loadPct(loaded)
			})
			if len(batch) < hotelsPerPage {
				break
			}
		}
	}
	return all, nil
}

func loadPct(loaded int) int {
	frac := float64(loaded) / 500
	if frac > 1 {
		frac = 1
	}
	return pctLoadFloor + int(float64(pctLoadCeil-pctLoadFloor)*frac)
}

// enrich fetches contact details for every hotel that appears in at least
// one candidate pair, with bounded concurrency gated by the shared rate
// limiter. ErrNotFound means the catalog has no detail record; the hotel
// simply scores without contact evidence.
func (s *ScanService) enrich(ctx context.Context, id string, hotels []domain.HotelRecord, pairs []dedup.CandidatePair) (map[int64]domain.HotelDetail, error) {
	ids := dedup.ParticipantIDs(pairs)
	s.store.Update(id, func(sn *domain.ScanSnapshot) { sn.ProgressPct = pctLoadCeil })
	if len(ids) == 0 {
		return nil, nil
	}

	var (
		mu       sync.Mutex
		details  = make(map[int64]domain.HotelDetail, len(ids))
		fetched  int
		firstErr error
	)
	sem := semaphore.NewWeighted(s.enrichWorkers)
	var wg sync.WaitGroup

	for _, hotelID := range ids {
		if s.store.CancelRequested(id) {
			wg.Wait()
			return nil, errCancelled
		}
		mu.Lock()
		failed := firstErr != nil
		mu.Unlock()
		if failed {
			break
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(hotelID int64) {
			defer wg.Done()
			defer sem.Release(1)

			d, err := s.fetchDetail(ctx, hotelID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("enrich hotel %d: %w", hotelID, err)
				}
				return
			}
			if d.HasContact() {
				details[hotelID] = d
			}
			fetched++
			pct := pctLoadCeil + (pctEnrichCeil-pctLoadCeil)*fetched/len(ids)
			s.store.Update(id, func(sn *domain.ScanSnapshot) {
				if pct > sn.ProgressPct {
					sn.ProgressPct = pct
				}
			})
		}(hotelID)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return details, nil
}

func (s *ScanService) fetchDetail(ctx context.Context, hotelID int64) (domain.HotelDetail, error) {
	key := fmt.Sprintf("hotelinfo:%d", hotelID)
	if s.cache != nil {
		var d domain.HotelDetail
		if ok, _ := s.cache.Get(ctx, key, &d); ok {
			return d, nil
		}
	}
	d, err := s.client.HotelDetail(ctx, hotelID)
	if err != nil {
		// A missing detail record is an absent optional, not a failure.
		if errors.Is(err, domain.ErrNotFound) || strings.Contains(strings.ToLower(err.Error()), "not found") {
			return domain.HotelDetail{HotelID: hotelID}, nil
		}
		return domain.HotelDetail{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, d, s.detailTTLSec)
	}
	return d, nil
}

// errorRows reports hotels whose listed name carries the catalog's error
// marker, one row each.
func (s *ScanService) errorRows(id string, hotels []domain.HotelRecord) []domain.ResultRow {
	var rows []domain.ResultRow
	for _, h := range hotels {
		if !strings.Contains(strings.ToLower(h.Name), "error") {
			continue
		}
		rows = append(rows, domain.ResultRow{
			HotelName: h.Name,
			PrimaryID: h.ID,
			Address:   h.Address,
			Stars:     h.Stars,
			Flag:      "error",
			Reason:    "name contains 'Error'",
		})
	}
	found := len(rows)
	s.store.Update(id, func(sn *domain.ScanSnapshot) {
		sn.Counters.FlagsFound = found
		sn.ProgressPct = pctScored
	})
	return rows
}
